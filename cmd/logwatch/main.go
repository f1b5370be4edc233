package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/tinytelemetry/logwatch/internal/logstore"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	var configPath string
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/logwatch/config.yml)")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("Logwatch - Log Monitoring Service\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := runServer(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	defaultDataDir := filepath.Join(home, ".local", "share", "logwatch")

	v := viper.New()
	v.SetEnvPrefix("LOGWATCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("host", defaultBindHost)
	v.SetDefault("api-port", defaultAPIPort)
	v.SetDefault("api-addr", "")
	v.SetDefault("grpc-enabled", true)
	v.SetDefault("grpc-port", defaultGRPCPort)
	v.SetDefault("grpc-addr", "")
	v.SetDefault("tcp-enabled", false)
	v.SetDefault("tcp-port", defaultTCPPort)
	v.SetDefault("tcp-addr", "")
	v.SetDefault("line-tenant", "default")
	v.SetDefault("tcp-tenant", "")
	v.SetDefault("stdin-tenant", "")
	v.SetDefault("intake-buffer-size", defaultIntakeBuffer)
	v.SetDefault("data-dir", defaultDataDir)
	v.SetDefault("flush-threshold", defaultFlushThreshold)
	v.SetDefault("flush-interval", defaultFlushInterval)
	v.SetDefault("flush-queue-size", defaultFlushQueueSize)
	v.SetDefault("flush-retries", defaultFlushRetries)
	v.SetDefault("subscriber-buffer", defaultSubscriberBuffer)
	v.SetDefault("keys-file", "")
	v.SetDefault("kafka-brokers", []string{})
	v.SetDefault("kafka-topic", defaultKafkaTopic)
	v.SetDefault("log-level", defaultLogLevel)
	v.SetDefault("log-format", defaultLogFormat)
	v.SetDefault("sql-timeout", defaultSQLTimeout)
	v.SetDefault("sql-max-rows", defaultSQLMaxRows)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		defaultConfigPath := filepath.Join(home, ".config", "logwatch", "config.yml")
		v.SetConfigFile(defaultConfigPath)
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	if _, err := os.Stat(v.ConfigFileUsed()); err == nil {
		cfg.ConfigPath = v.ConfigFileUsed()
	}

	for _, p := range []struct {
		key  string
		port int
	}{
		{"api-port", cfg.APIPort},
		{"grpc-port", cfg.GRPCPort},
		{"tcp-port", cfg.TCPPort},
	} {
		if p.port <= 0 || p.port > 65535 {
			return cfg, fmt.Errorf("invalid %s: %d", p.key, p.port)
		}
	}
	if cfg.FlushThreshold <= 0 {
		return cfg, fmt.Errorf("invalid flush-threshold: %d", cfg.FlushThreshold)
	}
	if cfg.FlushInterval <= 0 {
		return cfg, fmt.Errorf("invalid flush-interval: %s", cfg.FlushInterval)
	}
	if cfg.FlushRetries < 0 {
		return cfg, fmt.Errorf("invalid flush-retries: %d", cfg.FlushRetries)
	}
	if cfg.SQLMaxRows <= 0 {
		return cfg, fmt.Errorf("invalid sql-max-rows: %d", cfg.SQLMaxRows)
	}
	if err := logstore.ValidateTenant(cfg.LineTenant); err != nil {
		return cfg, fmt.Errorf("invalid line-tenant: %w", err)
	}
	if cfg.TCPTenant == "" {
		cfg.TCPTenant = cfg.LineTenant
	}
	if cfg.StdinTenant == "" {
		cfg.StdinTenant = cfg.LineTenant
	}
	if err := logstore.ValidateTenant(cfg.TCPTenant); err != nil {
		return cfg, fmt.Errorf("invalid tcp-tenant: %w", err)
	}
	if err := logstore.ValidateTenant(cfg.StdinTenant); err != nil {
		return cfg, fmt.Errorf("invalid stdin-tenant: %w", err)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return cfg, fmt.Errorf("invalid log-level: %q", cfg.LogLevel)
	}
	switch cfg.LogFormat {
	case "console", "json":
	default:
		return cfg, fmt.Errorf("invalid log-format: %q", cfg.LogFormat)
	}

	// Expand ~ in paths
	cfg.DataDir = expandHome(home, cfg.DataDir)
	cfg.KeysFile = expandHome(home, cfg.KeysFile)

	if cfg.APIAddr == "" {
		cfg.APIAddr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.APIPort))
	}
	if cfg.GRPCAddr == "" {
		cfg.GRPCAddr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.GRPCPort))
	}
	if cfg.TCPAddr == "" {
		cfg.TCPAddr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.TCPPort))
	}

	return cfg, nil
}

func expandHome(home, path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
