package linein

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultTCPAddr is used when no listen address is configured.
	DefaultTCPAddr = "127.0.0.1:4000"

	// DefaultLineChannelSize is the default buffer size for received lines.
	DefaultLineChannelSize = 100_000

	// DefaultMaxLineSize is the default maximum size (in bytes) of a single line.
	DefaultMaxLineSize = 1024 * 1024 // 1MB
)

// TCPConfig holds tunable parameters for the TCP listener.
type TCPConfig struct {
	LineChannelSize int
	MaxLineSize     int
}

// TCPServer listens for newline-delimited JSON records over TCP.
type TCPServer struct {
	listener    net.Listener
	addr        string
	lineChan    chan Line
	maxLineSize int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	stopOnce    sync.Once
}

// NewTCPServer creates a TCP listener. It does not bind until Start.
func NewTCPServer(addr string, conf ...TCPConfig) *TCPServer {
	if addr == "" {
		addr = DefaultTCPAddr
	}
	lineChannelSize := DefaultLineChannelSize
	maxLineSize := DefaultMaxLineSize
	if len(conf) > 0 {
		if conf[0].LineChannelSize > 0 {
			lineChannelSize = conf[0].LineChannelSize
		}
		if conf[0].MaxLineSize > 0 {
			maxLineSize = conf[0].MaxLineSize
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TCPServer{
		addr:        addr,
		lineChan:    make(chan Line, lineChannelSize),
		maxLineSize: maxLineSize,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins accepting TCP connections.
func (s *TCPServer) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
					continue
				}
			}
			s.wg.Add(1)
			go s.handleConnection(conn)
		}
	}()

	log.Info().Str("addr", listener.Addr().String()).Msg("linein: tcp listening")
	return nil
}

func (s *TCPServer) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	// Unblock the scanner when the server stops.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-s.ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, min(64*1024, s.maxLineSize)), s.maxLineSize)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		select {
		case s.lineChan <- Line{Source: "tcp", Text: line}:
		case <-s.ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		select {
		case <-s.ctx.Done():
			return
		default:
		}
		if errors.Is(err, bufio.ErrTooLong) {
			log.Warn().Str("remote", conn.RemoteAddr().String()).Int("max_bytes", s.maxLineSize).
				Msg("linein: dropped connection, line exceeds max size")
			return
		}
		log.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("linein: tcp read error")
	}
}

// Stop closes the listener and every open connection, then closes Lines.
func (s *TCPServer) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		if s.listener != nil {
			_ = s.listener.Close()
		}
		s.wg.Wait()
		close(s.lineChan)
	})
}

// Lines returns the channel of received lines.
func (s *TCPServer) Lines() <-chan Line {
	return s.lineChan
}

func (s *TCPServer) Name() string { return "tcp" }

// Addr returns the active listen address.
// Before Start, it returns the configured address.
func (s *TCPServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}
