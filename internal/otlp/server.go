package otlp

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	"google.golang.org/grpc"
)

const defaultShutdownTimeout = 3 * time.Second

// Server serves the OTLP LogsService over gRPC.
type Server struct {
	addr     string
	server   *grpc.Server
	listener net.Listener
	notify   chan error
	stopOnce sync.Once
}

// NewServer registers receiver on a new gRPC server bound to addr.
func NewServer(addr string, receiver *Receiver) *Server {
	s := grpc.NewServer()
	collogspb.RegisterLogsServiceServer(s, receiver)
	return &Server{addr: addr, server: s, notify: make(chan error, 1)}
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("otlp: listen %s: %w", s.addr, err)
	}
	s.listener = ln
	go func() {
		err := s.server.Serve(ln)
		if err != nil && err != grpc.ErrServerStopped {
			log.Error().Err(err).Msg("otlp: grpc server error")
			s.notify <- err
		}
		close(s.notify)
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("otlp: grpc receiver listening")
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Notify reports a serve failure. It is closed when serving ends.
func (s *Server) Notify() <-chan error {
	return s.notify
}

// Stop drains in-flight exports, then forces the server down after a
// short grace period.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		done := make(chan struct{})
		go func() {
			s.server.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(defaultShutdownTimeout):
			s.server.Stop()
		}
	})
}
