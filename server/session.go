package server

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/gonzalop/vftpd/internal/ratelimit"
)

// MaxCommandLength is the maximum length of a command line.
const MaxCommandLength = 4096

var (
	errCommandTooLong    = errors.New("command too long")
	errIncompleteCommand = errors.New("connection closed in the middle of a command")
)

var helloTexts = []string{
	"What can I do for you?",
	"Good day, sir or madam.",
	"Hey ho let's go!",
	"The poor man's FTP server.",
}

var okTexts = []string{
	"Sounds good.",
	"Barely acceptable.",
	"Alright, I'll do it...",
	"Consider it done.",
}

func randomFlavor(choices []string) string {
	return choices[rand.IntN(len(choices))]
}

type transferType int

const (
	typeASCII transferType = iota
	typeImage
)

// session represents an FTP client session.
//
// All protocol state is owned by the goroutine running serve. mu only
// guards the data-connection resources, which Server.Shutdown closes from
// another goroutine through stop.
type session struct {
	server *Server
	conn   net.Conn
	writer *bufio.Writer

	id       string
	peer     net.Addr
	remoteIP string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	fs   FileSystem
	auth Authenticator

	// State
	loggedIn       bool
	user           string
	pendingUser    string
	hasPendingUser bool
	renameFrom     string
	transferType   transferType
	activeAddr     *net.TCPAddr
	quit           bool
	lastCode       int

	// Command reader
	rbuf     []byte
	chunk    []byte
	readErr  error
	writeErr error

	mu           sync.Mutex
	pasvListener net.Listener
	dataConn     net.Conn
}

// newSession creates a new session with its own clones of the server's
// file system and authenticator.
func newSession(server *Server, conn net.Conn) *session {
	remoteIP, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		remoteIP = conn.RemoteAddr().String()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		server:       server,
		conn:         conn,
		writer:       bufio.NewWriter(conn),
		id:           uuid.NewString()[:8],
		peer:         conn.RemoteAddr(),
		remoteIP:     remoteIP,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
		fs:           server.fs.Clone(),
		auth:         server.auth.Clone(),
		transferType: typeASCII,
		chunk:        make([]byte, 1024),
	}
}

// serve runs the session until the client quits, the control connection
// fails or the server shuts down.
func (s *session) serve() {
	defer close(s.done)
	defer s.close()

	s.notify(func(e EventLogger) { e.ControlOpened(s.peer) })
	s.server.logger.Debug("session_started",
		"session_id", s.id,
		"remote_ip", s.remoteIP,
	)

	if s.auth.AllowLogin(Login{Stage: LoginAnonymous}) {
		s.loggedIn = true
	}
	s.reply(220, fmt.Sprintf("This is vftpd v%s. %s", Version, s.server.flavor(helloTexts)))

	for !s.quit && s.writeErr == nil {
		line, err := s.readCommand()
		if err != nil {
			s.handleReadError(err)
			return
		}
		s.handleCommand(line)
	}
}

// finished reports whether serve has returned.
func (s *session) finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *session) handleReadError(err error) {
	switch {
	case errors.Is(err, errCommandTooLong):
		s.reply(500, "Command line too long.")
	case errors.Is(err, errIncompleteCommand):
		s.reply(500, "Failed to read command, closing connection.")
	case errors.Is(err, io.EOF), s.ctx.Err() != nil:
	default:
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			s.reply(421, "Idle timeout, closing control connection.")
			return
		}
		s.server.logger.Warn("read error",
			"session_id", s.id,
			"remote_ip", s.remoteIP,
			"user", s.user,
			"error", err,
		)
	}
}

// readCommand returns the next CRLF-terminated line with Telnet sequences
// removed. A bare LF does not end a line.
func (s *session) readCommand() (string, error) {
	for {
		if i := bytes.Index(s.rbuf, crlf); i >= 0 {
			line := stripTelnet(s.rbuf[:i])
			n := copy(s.rbuf, s.rbuf[i+len(crlf):])
			s.rbuf = s.rbuf[:n]
			return string(line), nil
		}
		if s.readErr != nil {
			if len(s.rbuf) > 0 {
				return "", errIncompleteCommand
			}
			return "", s.readErr
		}
		if len(s.rbuf) >= MaxCommandLength {
			return "", errCommandTooLong
		}

		if s.server.maxIdleTime > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.server.maxIdleTime))
		}
		n, err := s.conn.Read(s.chunk)
		s.rbuf = append(s.rbuf, s.chunk[:n]...)
		if err != nil {
			s.readErr = err
		}
	}
}

// handleCommand parses and dispatches a command line.
func (s *session) handleCommand(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}

	verb, arg, _ := strings.Cut(line, " ")
	// Lines starting with a space carry no verb and are ignored.
	if strings.TrimSpace(verb) == "" {
		return
	}
	verb = strings.ToUpper(verb)

	logArg := arg
	if verb == "PASS" {
		logArg = "***"
	}
	s.notify(func(e EventLogger) { e.CommandReceived(s.peer, verb, logArg) })

	s.execute(verb, arg)
}

// execute runs one command. A panicking handler is answered with 500 and
// the session carries on.
func (s *session) execute(verb, arg string) {
	if s.server.metrics != nil {
		start := time.Now()
		defer func() {
			s.server.metrics.RecordCommand(verb, s.lastCode < 400, time.Since(start))
		}()
	}
	defer func() {
		if r := recover(); r != nil {
			s.server.logger.Error("command panic",
				"session_id", s.id,
				"remote_ip", s.remoteIP,
				"cmd", verb,
				"panic", r,
			)
			s.reply(500, fmt.Sprintf("Failed to process command: %v", r))
		}
	}()

	switch verb {
	case "USER":
		s.handleUSER(arg)
		return
	case "PASS":
		s.handlePASS(arg)
		return
	case "QUIT":
		s.handleQUIT(arg)
		return
	}

	if !s.loggedIn {
		s.reply(530, "Please login first.")
		return
	}

	handler, ok := commandHandlers[verb]
	if !ok {
		s.reply(500, "Unknown command.")
		return
	}
	handler(s, arg)
}

// notify delivers an event, shielding the session from a failing logger.
func (s *session) notify(fn func(EventLogger)) {
	defer func() {
		if r := recover(); r != nil {
			s.server.logger.Warn("event logger panic",
				"session_id", s.id,
				"panic", r,
			)
		}
	}()
	fn(s.server.events)
}

// reply sends a single-line response to the client.
func (s *session) reply(code int, message string) {
	s.lastCode = code
	s.write(fmt.Sprintf("%d %s\r\n", code, message))
	s.notify(func(e EventLogger) { e.ResponseSent(s.peer, code, message) })
}

// replyLines sends a multi-line response. Every line but the last is sent
// as "code-text", the last as "code text".
func (s *session) replyLines(code int, lines ...string) {
	var b strings.Builder
	for i, line := range lines {
		sep := '-'
		if i == len(lines)-1 {
			sep = ' '
		}
		fmt.Fprintf(&b, "%d%c%s\r\n", code, sep, line)
	}
	s.lastCode = code
	s.write(b.String())
	s.notify(func(e EventLogger) { e.ResponseSent(s.peer, code, strings.Join(lines, "\n")) })
}

// replyOK acknowledges a command with a random okay text.
func (s *session) replyOK(code int) {
	s.reply(code, s.server.flavor(okTexts))
}

// replyError reports a failed file system operation.
func (s *session) replyError(err error) {
	s.reply(550, err.Error())
}

func (s *session) write(text string) {
	if s.writeErr != nil {
		return
	}
	if _, err := s.writer.WriteString(text); err != nil {
		s.writeErr = err
		return
	}
	if err := s.writer.Flush(); err != nil {
		s.writeErr = err
	}
}

// close releases every resource of the session. It runs on the session
// goroutine when serve returns.
func (s *session) close() {
	s.cancel()

	s.mu.Lock()
	ln, dc := s.pasvListener, s.dataConn
	s.pasvListener, s.dataConn = nil, nil
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	if dc != nil {
		dc.Close()
	}
	s.conn.Close()

	s.notify(func(e EventLogger) { e.ControlClosed(s.peer) })
	s.server.logger.Debug("session closed",
		"session_id", s.id,
		"remote_ip", s.remoteIP,
		"user", s.user,
	)
}

// stop tears the session down from another goroutine: blocked reads,
// accepts and transfers return with an error and serve exits.
func (s *session) stop() error {
	s.cancel()

	s.mu.Lock()
	ln, dc := s.pasvListener, s.dataConn
	s.mu.Unlock()

	var result *multierror.Error
	closeIgnoringDone := func(what string, c io.Closer) {
		if err := c.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			result = multierror.Append(result, fmt.Errorf("close %s: %w", what, err))
		}
	}
	if ln != nil {
		closeIgnoringDone("passive listener", ln)
	}
	if dc != nil {
		closeIgnoringDone("data connection", dc)
	}
	closeIgnoringDone("control connection", s.conn)

	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		result = multierror.Append(result, errors.New("session did not stop"))
	}
	return result.ErrorOrNil()
}

// rateLimitReader wraps a reader with bandwidth limiting if configured.
// Applies both global and per-transfer limits (most restrictive wins).
func (s *session) rateLimitReader(r io.Reader) io.Reader {
	return ratelimit.NewReader(s.ctx, r, ratelimit.New(s.server.bandwidthPerTransfer), s.server.globalLimiter)
}

// rateLimitWriter wraps a writer with bandwidth limiting if configured.
// Applies both global and per-transfer limits (most restrictive wins).
func (s *session) rateLimitWriter(w io.Writer) io.Writer {
	return ratelimit.NewWriter(s.ctx, w, ratelimit.New(s.server.bandwidthPerTransfer), s.server.globalLimiter)
}

// logTransfer logs a file transfer in standard xferlog format.
// Format: current-time transfer-time remote-host file-size filename transfer-type special-action-flag direction access-mode username service-name authentication-method authenticated-user-id completion-status
func (s *session) logTransfer(cmd, filename string, bytes int64, duration time.Duration) {
	if s.server.transferLog == nil {
		return
	}

	transferTime := int64(duration.Seconds())
	if transferTime == 0 {
		transferTime = 1
	}

	tType := "b"
	if s.transferType == typeASCII {
		tType = "a"
	}

	direction := "o"
	if cmd == "STOR" {
		direction = "i"
	}

	accessMode := "r"
	user := s.user
	if user == "" || isAnonymousUser(user) {
		accessMode = "a"
	}
	if user == "" {
		user = "anonymous"
	}

	// Mon Dec 25 15:04:05 2025 1 127.0.0.1 1024 /file.txt b _ o a anonymous ftp 0 * c
	line := fmt.Sprintf("%s %d %s %d %s %s _ %s %s %s ftp 0 * c\n",
		s.server.now().Format("Mon Jan 02 15:04:05 2006"),
		transferTime,
		s.remoteIP,
		bytes,
		s.redactPath(filename),
		tType,
		direction,
		accessMode,
		user,
	)

	_, _ = io.WriteString(s.server.transferLog, line)
}
