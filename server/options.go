package server

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gonzalop/vftpd/internal/ratelimit"
)

// Option is a functional option for configuring an FTP server.
type Option func(*Server) error

// FlavorText picks one of several equivalent reply texts.
type FlavorText func(choices []string) string

// WithFileSystem sets the file system sessions operate on.
// This option is required and can only be set once.
//
// Example:
//
//	r, _ := vfs.New(vfs.WithBase("/tmp/ftp"))
//	s, _ := server.NewServer(":21", server.WithFileSystem(server.NewFileSystem(r)))
func WithFileSystem(fs FileSystem) Option {
	return func(s *Server) error {
		if s.fs != nil {
			return fmt.Errorf("file system already set")
		}
		s.fs = fs
		return nil
	}
}

// WithAuthenticator sets the login policy.
// If not specified, AnonymousAuth is used.
func WithAuthenticator(auth Authenticator) Option {
	return func(s *Server) error {
		if auth == nil {
			return fmt.Errorf("authenticator must not be nil")
		}
		s.auth = auth
		return nil
	}
}

// WithEventLogger sets the observer for connection and protocol events.
// If not specified, events go to the server logger through a non-verbose
// SlogEventLogger.
func WithEventLogger(events EventLogger) Option {
	return func(s *Server) error {
		s.events = events
		return nil
	}
}

// WithLogger sets a custom logger for the server.
// If not specified, slog.Default() is used.
//
// Example with debug logging:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	}))
//	s, _ := server.NewServer(":21",
//	    server.WithFileSystem(fs),
//	    server.WithLogger(logger),
//	)
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// WithMaxIdleTime sets the maximum time a control connection can be idle
// before being closed. Zero disables the timeout.
// If not specified, defaults to 5 minutes.
func WithMaxIdleTime(duration time.Duration) Option {
	return func(s *Server) error {
		s.maxIdleTime = duration
		return nil
	}
}

// WithDataTimeout bounds how long the server waits for a data connection
// to be established, in either direction.
// If not specified, defaults to 10 seconds.
func WithDataTimeout(duration time.Duration) Option {
	return func(s *Server) error {
		if duration <= 0 {
			return fmt.Errorf("data timeout must be positive")
		}
		s.dataTimeout = duration
		return nil
	}
}

// WithMaxConnections sets the maximum number of simultaneous connections.
// If 0, there is no limit. This is the default.
//
// When the limit is reached, new connections receive a "421 Too many users" response.
func WithMaxConnections(max int) Option {
	return func(s *Server) error {
		s.maxConnections = max
		return nil
	}
}

// WithPassivePortRange restricts passive listeners to ports in [min, max].
// Ports are tried round-robin. Without this option the OS picks a port.
func WithPassivePortRange(min, max int) Option {
	return func(s *Server) error {
		if min <= 0 || max < min || max > 65535 {
			return fmt.Errorf("invalid passive port range [%d, %d]", min, max)
		}
		s.pasvMinPort = min
		s.pasvMaxPort = max
		return nil
	}
}

// WithPublicHost sets the IPv4 address or host name advertised in PASV
// replies, for servers behind NAT. The listener itself still binds to the
// control connection's local address.
func WithPublicHost(host string) Option {
	return func(s *Server) error {
		s.publicHost = host
		return nil
	}
}

// WithBandwidthLimit limits each transfer to bytesPerSecond.
// Zero means unlimited.
func WithBandwidthLimit(bytesPerSecond int64) Option {
	return func(s *Server) error {
		s.bandwidthPerTransfer = bytesPerSecond
		return nil
	}
}

// WithGlobalBandwidthLimit limits the combined rate of all transfers.
// Zero means unlimited.
func WithGlobalBandwidthLimit(bytesPerSecond int64) Option {
	return func(s *Server) error {
		s.globalLimiter = ratelimit.New(bytesPerSecond)
		return nil
	}
}

// WithLineEnding sets the line terminator of stored text files used by
// ASCII transfers. The default is the platform's ("\r\n" on Windows, "\n"
// elsewhere).
func WithLineEnding(eol string) Option {
	return func(s *Server) error {
		if eol == "" {
			return fmt.Errorf("line ending must not be empty")
		}
		s.localEOL = []byte(eol)
		return nil
	}
}

// WithFlavorText sets how the server picks among equivalent reply texts
// for greetings and acknowledgements. The default picks at random.
func WithFlavorText(pick FlavorText) Option {
	return func(s *Server) error {
		s.flavor = pick
		return nil
	}
}

// WithClock sets the time source used to format directory listings.
func WithClock(now func() time.Time) Option {
	return func(s *Server) error {
		s.now = now
		return nil
	}
}

// WithMetricsCollector sets a collector for command, transfer, connection
// and authentication metrics.
func WithMetricsCollector(m MetricsCollector) Option {
	return func(s *Server) error {
		s.metrics = m
		return nil
	}
}

// WithPathRedactor rewrites file paths in operational logs and the
// transfer log.
func WithPathRedactor(r PathRedactor) Option {
	return func(s *Server) error {
		s.pathRedactor = r
		return nil
	}
}

// WithTransferLog enables xferlog-style logging of completed transfers
// to w.
func WithTransferLog(w io.Writer) Option {
	return func(s *Server) error {
		s.transferLog = w
		return nil
	}
}
