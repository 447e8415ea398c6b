package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/gonzalop/vftpd/internal/ratelimit"
)

// Version is reported in the connection banner.
const Version = "1.0.0"

// Server is the FTP server.
//
// It handles listening for incoming connections and dispatching them to
// client sessions. Each connection runs in its own goroutine with its own
// clone of the FileSystem and Authenticator.
//
// Lifecycle:
//  1. Create server with NewServer()
//  2. Start with ListenAndServe() or Serve()
//  3. Call Shutdown() to stop accepting and tear down every session
//
// Basic example:
//
//	r, _ := vfs.New(vfs.WithBase("/tmp/ftp"))
//	s, err := server.NewServer(":21", server.WithFileSystem(server.NewFileSystem(r)))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(s.ListenAndServe())
type Server struct {
	// addr is the TCP address to listen on (e.g., ":21").
	addr string

	fs     FileSystem
	auth   Authenticator
	events EventLogger
	logger *slog.Logger

	// maxIdleTime is the maximum time a control connection can be idle.
	maxIdleTime time.Duration

	// dataTimeout bounds data connection setup (accept or dial).
	dataTimeout time.Duration

	// maxConnections is the maximum number of simultaneous connections.
	// If 0, there is no limit.
	maxConnections int

	pasvMinPort     int
	pasvMaxPort     int
	nextPassivePort atomic.Int32
	publicHost      string

	bandwidthPerTransfer int64
	globalLimiter        *ratelimit.Limiter

	localEOL    []byte
	flavor      FlavorText
	now         func() time.Time
	transferLog io.Writer

	metrics      MetricsCollector
	pathRedactor PathRedactor

	// activeConns tracks the number of currently active sessions.
	activeConns atomic.Int32

	mu         sync.Mutex
	listener   net.Listener
	sessions   []*session
	inShutdown atomic.Bool
}

// ErrServerClosed is returned by the Server's Serve and ListenAndServe
// methods after a call to Shutdown.
var ErrServerClosed = errors.New("ftp: Server closed")

// NewServer creates a new FTP server with the given address and options.
// The address should be in the form ":port" or "host:port".
// The file system must be provided via the WithFileSystem option.
//
// Default values:
//   - Authenticator: AnonymousAuth
//   - Logger: slog.Default()
//   - EventLogger: non-verbose SlogEventLogger on the logger
//   - MaxIdleTime: 5 minutes
//   - DataTimeout: 10 seconds
//   - MaxConnections: 0 (unlimited)
//
// With connection limits:
//
//	s, _ := server.NewServer(":21",
//	    server.WithFileSystem(fs),
//	    server.WithMaxConnections(100),
//	    server.WithMaxIdleTime(10*time.Minute),
//	)
func NewServer(addr string, options ...Option) (*Server, error) {
	s := &Server{
		addr:        addr,
		auth:        AnonymousAuth{},
		logger:      slog.Default(),
		maxIdleTime: 5 * time.Minute,
		dataTimeout: 10 * time.Second,
		localEOL:    localEOL(),
		flavor:      randomFlavor,
		now:         time.Now,
	}

	for _, opt := range options {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.fs == nil {
		return nil, fmt.Errorf("file system is required (use WithFileSystem option)")
	}
	if s.events == nil {
		s.events = NewSlogEventLogger(s.logger, false)
	}

	return s, nil
}

// ListenAndServe starts the FTP server on the configured address.
// It blocks until the server stops or an error occurs.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.logger.Info("FTP server listening", "addr", ln.Addr().String())
	return s.Serve(ln)
}

// Serve accepts incoming connections on the listener l.
// It blocks until Shutdown is called, in which case it returns
// ErrServerClosed, or the listener fails.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.inShutdown.Load() {
		s.mu.Unlock()
		l.Close()
		return ErrServerClosed
	}
	s.listener = l
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.listener == l {
			s.listener = nil
		}
		s.mu.Unlock()
		l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if s.inShutdown.Load() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.logger.Error("accept error", "error", err)
			continue
		}

		s.handleConnection(conn)
		s.pruneSessions()
	}
}

// handleConnection enforces the connection limit and starts a session.
func (s *Server) handleConnection(conn net.Conn) {
	if s.maxConnections > 0 && s.activeConns.Load() >= int32(s.maxConnections) {
		ip, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
		s.logger.Warn("connection_rejected",
			"remote_ip", ip,
			"reason", "global_limit_reached",
			"limit", s.maxConnections,
		)
		if s.metrics != nil {
			s.metrics.RecordConnection(false, "global_limit_reached")
		}
		fmt.Fprintf(conn, "421 Too many users, sorry.\r\n")
		conn.Close()
		return
	}
	if s.metrics != nil {
		s.metrics.RecordConnection(true, "accepted")
	}

	sess := newSession(s, conn)

	s.mu.Lock()
	if s.inShutdown.Load() {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.sessions = append(s.sessions, sess)
	s.mu.Unlock()

	s.activeConns.Add(1)
	go func() {
		defer s.activeConns.Add(-1)
		sess.serve()
	}()
}

// pruneSessions forgets sessions that have ended.
func (s *Server) pruneSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := s.sessions[:0]
	for _, sess := range s.sessions {
		if !sess.finished() {
			live = append(live, sess)
		}
	}
	clear(s.sessions[len(live):])
	s.sessions = live
}

// Shutdown stops the server.
//
// It closes the listener, then stops every live session: each session's
// context is cancelled and its control socket, passive listener and data
// connection are closed. Errors from closing are collected and returned
// together.
func (s *Server) Shutdown() error {
	s.inShutdown.Store(true)

	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	sessions := s.sessions
	s.sessions = nil
	s.mu.Unlock()

	var result *multierror.Error
	if ln != nil {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			result = multierror.Append(result, fmt.Errorf("close listener: %w", err))
		}
	}

	for _, sess := range sessions {
		if err := sess.stop(); err != nil {
			result = multierror.Append(result, fmt.Errorf("session %s: %w", sess.id, err))
		}
	}

	return result.ErrorOrNil()
}
