package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"

	"github.com/tinytelemetry/logwatch/internal/analytics"
	"github.com/tinytelemetry/logwatch/internal/broadcast"
	"github.com/tinytelemetry/logwatch/internal/ingest"
	"github.com/tinytelemetry/logwatch/internal/model"
	"github.com/tinytelemetry/logwatch/internal/reader"
)

const requestIDHeader = "X-Request-ID"

// Ingester accepts raw record batches for a tenant.
type Ingester interface {
	Submit(tenant string, raw any) ingest.Result
}

// LogQuerier answers filtered log queries.
type LogQuerier interface {
	Query(tenant string, p reader.QueryParams) ([]model.LogRecord, error)
}

// StatsProvider builds dashboard snapshots.
type StatsProvider interface {
	GetStats(rangeKey, tenant string) model.StatsSnapshot
}

// StreamHub hands out live record subscriptions.
type StreamHub interface {
	Subscribe(tenant string, size int) *broadcast.Subscription
	Unsubscribe(sub *broadcast.Subscription)
	TotalStreams() int
}

// TenantResolver maps request headers to a tenant.
type TenantResolver interface {
	TenantFor(appID, apiKey string) (string, error)
}

// TenantRemover deletes everything stored for a tenant.
type TenantRemover interface {
	Remove(tenant string) error
}

// PendingBuffer is the ingestion buffer as seen by the API.
type PendingBuffer interface {
	DroppedEvents() int64
	Discard(tenant string) int
}

// SQLQuerier runs read-only SQL for a tenant.
type SQLQuerier interface {
	Query(ctx context.Context, tenant, query string) (*analytics.Result, error)
}

// OTLPIngester ingests decoded OTLP export requests.
type OTLPIngester interface {
	Ingest(tenant string, req *collogspb.ExportLogsServiceRequest) *collogspb.ExportLogsServiceResponse
}

// Deps are the components behind the API. SQL, OTLP and Gatherer are
// optional; their routes answer 404 when unset.
type Deps struct {
	Ingest   Ingester
	Logs     LogQuerier
	Stats    StatsProvider
	Streams  StreamHub
	Tenants  TenantResolver
	Remover  TenantRemover
	Buffer   PendingBuffer
	SQL      SQLQuerier
	OTLP     OTLPIngester
	Gatherer prometheus.Gatherer

	// StreamBuffer is the per-connection queue size for live streams.
	StreamBuffer int
}

// Server provides the HTTP API for ingestion, queries and stats.
type Server struct {
	addr      string
	deps      Deps
	server    *http.Server
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
	upgrader  websocket.Upgrader
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, deps Deps) *Server {
	if addr == "" {
		addr = "0.0.0.0:3000"
	}
	if deps.StreamBuffer <= 0 {
		deps.StreamBuffer = broadcast.DefaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      addr,
		deps:      deps,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler builds the gin engine with every route registered.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/stats", s.handleStats)
	api.POST("/logs", s.handleKeyedSubmit)

	apps := api.Group("/apps/:app")
	apps.POST("/logs", s.handleSubmit)
	apps.POST("/logs/query", s.handleQuery)
	apps.GET("/stream", s.handleStream)
	apps.POST("/sql", s.handleSQL)
	apps.DELETE("", s.handleDeleteTenant)

	r.POST("/v1/logs", s.handleOTLP)

	if s.deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
	}
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.startTime = time.Now()

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("httpserver: serve failed")
		}
	}()
	log.Info().Str("addr", listener.Addr().String()).Msg("httpserver: listening")
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the HTTP server. Open streams end when the
// base context is cancelled.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// requestLogger tags each request with an ID and logs its outcome.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("requestID", id)
		c.Header(requestIDHeader, id)

		c.Next()

		status := c.Writer.Status()
		ev := log.Debug()
		if status >= http.StatusInternalServerError {
			ev = log.Warn()
		}
		ev.Str("request_id", id).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("Request")
	}
}
