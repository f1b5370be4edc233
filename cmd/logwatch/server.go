package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/logwatch/internal/analytics"
	"github.com/tinytelemetry/logwatch/internal/anomaly"
	"github.com/tinytelemetry/logwatch/internal/broadcast"
	"github.com/tinytelemetry/logwatch/internal/buffer"
	"github.com/tinytelemetry/logwatch/internal/forward"
	"github.com/tinytelemetry/logwatch/internal/httpserver"
	"github.com/tinytelemetry/logwatch/internal/ingest"
	"github.com/tinytelemetry/logwatch/internal/linein"
	"github.com/tinytelemetry/logwatch/internal/logstore"
	"github.com/tinytelemetry/logwatch/internal/metrics"
	"github.com/tinytelemetry/logwatch/internal/otlp"
	"github.com/tinytelemetry/logwatch/internal/reader"
	"github.com/tinytelemetry/logwatch/internal/stats"
	"github.com/tinytelemetry/logwatch/internal/tenant"
)

// runServer wires the pipeline, serves until SIGINT/SIGTERM and flushes
// pending records on the way out.
func runServer(cfg appConfig) error {
	setupLogger(cfg.LogFormat)
	setLogLevel(cfg.LogLevel)

	store, err := logstore.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open data dir: %w", err)
	}
	alerts := anomaly.NewAlertLog(store.Dir())

	registry := metrics.NewRegistry()
	counters := metrics.New(registry)

	buf := buffer.New(store, buffer.Config{
		Threshold:      cfg.FlushThreshold,
		FlushInterval:  cfg.FlushInterval,
		FlushQueueSize: cfg.FlushQueueSize,
		Retries:        cfg.FlushRetries,
		Metrics:        counters,
	})
	// Runs last so records accepted during shutdown still reach disk.
	defer buf.Stop()

	tenants, err := tenant.NewRegistry(cfg.KeysFile)
	if err != nil {
		return fmt.Errorf("failed to load keys file: %w", err)
	}
	defer tenants.Close()
	counters.Tenants = metrics.NewTenantLabels(metrics.DefaultTenantLabelLimit, tenants.Known)

	hub := broadcast.NewHub(counters)
	svc := ingest.NewService(buf, hub, counters)
	logs := reader.New(store)
	detector := anomaly.NewDetector(alerts, anomaly.Config{Metrics: counters})
	aggregator := stats.New(logs, detector, alerts, buf, hub)

	engine, err := analytics.NewEngine(store, alerts, analytics.Config{
		Timeout: cfg.SQLTimeout,
		MaxRows: cfg.SQLMaxRows,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize SQL analytics: %w", err)
	}

	receiver := otlp.NewReceiver(svc, tenants)

	// Set up context and signal handling before errgroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := tenants.Watch(ctx); err != nil {
		log.Warn().Err(err).Str("path", cfg.KeysFile).Msg("keys file hot reload disabled")
	}

	apiServer := httpserver.NewServer(cfg.APIAddr, httpserver.Deps{
		Ingest:       svc,
		Logs:         logs,
		Stats:        aggregator,
		Streams:      hub,
		Tenants:      tenants,
		Remover:      store,
		Buffer:       buf,
		SQL:          engine,
		OTLP:         receiver,
		Gatherer:     registry,
		StreamBuffer: cfg.SubscriberBuffer,
	})
	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	defer func() {
		if err := apiServer.Stop(); err != nil {
			log.Warn().Err(err).Msg("API server shutdown")
		}
	}()

	var grpcServer *otlp.Server
	if cfg.GRPCEnabled {
		grpcServer = otlp.NewServer(cfg.GRPCAddr, receiver)
		if err := grpcServer.Start(); err != nil {
			return fmt.Errorf("failed to start OTLP gRPC receiver: %w", err)
		}
		defer grpcServer.Stop()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		// Shutdown deadline starts now, not at boot.
		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		os.Exit(1)
	}()

	intake := linein.NewIntake(ctx, buildLineRoutes(ctx, cfg), cfg.IntakeBuffer, counters)
	intake.Start()
	defer intake.Stop()

	printStartupBanner(cfg, intake.Describe())

	// Use errgroup for concurrent goroutine lifecycle management.
	g, gctx := errgroup.WithContext(ctx)

	if intake.Enabled() {
		pump := linein.NewPump(svc)
		g.Go(func() error {
			res := pump.Run(gctx, intake.Envelopes())
			log.Info().Int("accepted", res.Accepted).Int("rejected", res.Rejected).Msg("line intake finished")
			return nil
		})
	}

	if len(cfg.KafkaBrokers) > 0 {
		fwdCfg := forward.Config{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic, QueueSize: cfg.SubscriberBuffer}
		fwd := forward.New(hub, forward.NewWriter(fwdCfg), fwdCfg)
		g.Go(func() error {
			return fwd.Run(gctx)
		})
	}

	if grpcServer != nil {
		g.Go(func() error {
			select {
			case err, ok := <-grpcServer.Notify():
				if ok && err != nil {
					return fmt.Errorf("OTLP gRPC receiver: %w", err)
				}
			case <-gctx.Done():
			}
			return nil
		})
	}

	// Wait for context cancellation (from signal handler) in the errgroup
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	err = g.Wait()
	if err != nil {
		log.Error().Err(err).Msg("server: errgroup exited with error")
	}

	// If we reach here, graceful shutdown succeeded within the deadline.
	// The signal goroutine (if active) dies with the process.
	signal.Stop(sigCh)
	log.Info().Int64("dropped_events", buf.DroppedEvents()).Msg("flushing pending records")

	return err
}

func buildLineRoutes(ctx context.Context, cfg appConfig) []linein.Route {
	var routes []linein.Route
	if cfg.TCPEnabled {
		server := linein.NewTCPServer(cfg.TCPAddr)
		if err := server.Start(); err != nil {
			log.Error().Err(err).Str("addr", cfg.TCPAddr).Msg("failed to start TCP line intake")
		} else {
			routes = append(routes, linein.Route{Source: server, Tenant: cfg.TCPTenant})
		}
	}
	if linein.PipedStdin() {
		routes = append(routes, linein.Route{Source: linein.NewStdinSource(ctx), Tenant: cfg.StdinTenant})
	}
	return routes
}

func setupLogger(format string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "2006-01-02 15:04:05.000",
	})
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func printStartupBanner(cfg appConfig, lineRoutes []string) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	row := func(on bool, label, value string) string {
		if on {
			return fmt.Sprintf("    %s  %-14s %s", check, label, cyan.Render(value))
		}
		return fmt.Sprintf("    %s  %-14s %s", dot, label, dim.Render(value))
	}

	logo := cyan.Bold(true).Render(`
    ╦  ╔═╗╔═╗╦ ╦╔═╗╔╦╗╔═╗╦ ╦
    ║  ║ ║║ ╦║║║╠═╣ ║ ║  ╠═╣
    ╩═╝╚═╝╚═╝╚╩╝╩ ╩ ╩ ╚═╝╩ ╩`)

	var lines []string
	lines = append(lines, "", logo, "    "+dim.Render("v"+version), "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator, "")

	lines = append(lines, bold.Render("    Gateway"), "")
	lines = append(lines, row(true, "HTTP API", cfg.APIAddr))
	if cfg.GRPCEnabled {
		lines = append(lines, row(true, "OTLP gRPC", cfg.GRPCAddr))
	} else {
		lines = append(lines, row(false, "OTLP gRPC", "disabled"))
	}
	if len(lineRoutes) > 0 {
		lines = append(lines, row(true, "Line Intake", strings.Join(lineRoutes, ", ")))
	} else {
		lines = append(lines, row(false, "Line Intake", "disabled"))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Storage"), "")
	lines = append(lines, fmt.Sprintf("    %s  %-14s %s", check, "Data Dir", dim.Render(shortenPath(cfg.DataDir))))
	lines = append(lines, fmt.Sprintf("    %s  %-14s %s", check, "Flush", dim.Render(fmt.Sprintf("%d records / %s", cfg.FlushThreshold, cfg.FlushInterval))))
	if len(cfg.KafkaBrokers) > 0 {
		lines = append(lines, row(true, "Kafka", cfg.KafkaTopic+" @ "+strings.Join(cfg.KafkaBrokers, ",")))
	} else {
		lines = append(lines, row(false, "Kafka", "disabled"))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Config"), "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  %-14s %s", check, "Config File", dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  %-14s %s", dot, "Config File", dim.Render("default (no file)")))
	}
	if cfg.KeysFile != "" {
		lines = append(lines, fmt.Sprintf("    %s  %-14s %s", check, "API Keys", dim.Render(shortenPath(cfg.KeysFile))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  %-14s %s", dot, "API Keys", dim.Render("none")))
	}

	lines = append(lines, "", separator, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"), "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
