package server

import (
	"log/slog"
	"net"
)

// EventLogger observes connection and protocol activity.
//
// All methods are called synchronously from the session goroutine and
// should return quickly. A panicking implementation is recovered and
// logged; it never takes the session down.
//
// peer is the client's control address; remote and local are the two ends
// of a data connection.
type EventLogger interface {
	ControlOpened(peer net.Addr)
	ControlClosed(peer net.Addr)
	CommandReceived(peer net.Addr, verb, arg string)
	ResponseSent(peer net.Addr, code int, text string)
	DataOpened(peer, remote, local net.Addr, passive bool)
	DataClosed(peer, remote, local net.Addr, passive bool)
}

// SlogEventLogger writes events to a structured logger. Connection open and
// close are always logged; commands, responses and data connections only in
// verbose mode, at debug level.
type SlogEventLogger struct {
	logger  *slog.Logger
	verbose bool
}

// NewSlogEventLogger returns an EventLogger writing to logger. A nil logger
// means slog.Default().
func NewSlogEventLogger(logger *slog.Logger, verbose bool) *SlogEventLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogEventLogger{logger: logger, verbose: verbose}
}

func (l *SlogEventLogger) ControlOpened(peer net.Addr) {
	l.logger.Info("control_opened", "peer", addrString(peer))
}

func (l *SlogEventLogger) ControlClosed(peer net.Addr) {
	l.logger.Info("control_closed", "peer", addrString(peer))
}

func (l *SlogEventLogger) CommandReceived(peer net.Addr, verb, arg string) {
	if !l.verbose {
		return
	}
	l.logger.Debug("command_received", "peer", addrString(peer), "cmd", verb, "arg", arg)
}

func (l *SlogEventLogger) ResponseSent(peer net.Addr, code int, text string) {
	if !l.verbose {
		return
	}
	l.logger.Debug("response_sent", "peer", addrString(peer), "code", code, "text", text)
}

func (l *SlogEventLogger) DataOpened(peer, remote, local net.Addr, passive bool) {
	if !l.verbose {
		return
	}
	l.logger.Debug("data_opened",
		"peer", addrString(peer),
		"remote", addrString(remote),
		"local", addrString(local),
		"passive", passive,
	)
}

func (l *SlogEventLogger) DataClosed(peer, remote, local net.Addr, passive bool) {
	if !l.verbose {
		return
	}
	l.logger.Debug("data_closed",
		"peer", addrString(peer),
		"remote", addrString(remote),
		"local", addrString(local),
		"passive", passive,
	)
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
