package server

import "time"

// PathRedactor rewrites paths before they are written to logs.
//
// Example:
//
//	// Hide everything below the first directory
//	func(path string) string {
//	    parts := strings.Split(path, "/")
//	    for i := 2; i < len(parts); i++ {
//	        parts[i] = "*"
//	    }
//	    return strings.Join(parts, "/")
//	}
type PathRedactor func(path string) string

// MetricsCollector is an optional interface for collecting server metrics.
// Implementations can forward them to Prometheus, StatsD and the like.
//
// Methods are called synchronously from the accept loop and session
// goroutines and must not block.
type MetricsCollector interface {
	// RecordCommand records one executed command. success is false when
	// the final reply carried a 4xx or 5xx code.
	RecordCommand(cmd string, success bool, duration time.Duration)

	// RecordTransfer records a completed RETR or STOR.
	RecordTransfer(operation string, bytes int64, duration time.Duration)

	// RecordConnection records a connection attempt. reason is "accepted"
	// or "global_limit_reached".
	RecordConnection(accepted bool, reason string)

	// RecordAuthentication records the outcome of a USER/PASS login.
	RecordAuthentication(success bool, user string)
}

func (s *session) redactPath(path string) string {
	if s.server.pathRedactor == nil {
		return path
	}
	return s.server.pathRedactor(path)
}
