// Package server implements a small FTP server over a virtual file system.
//
// # Overview
//
// The server speaks the core of RFC 959: login, directory navigation and
// manipulation, active (PORT) and passive (PASV) data connections, LIST,
// RETR and STOR in ASCII or binary (image) mode, plus the SIZE, MDTM,
// FEAT, OPTS UTF8, SYST, STAT <path> and HELP commands and the RFC 1123
// minimum of MODE S, STRU F and ACCT.
//
// Each accepted connection becomes a session running on its own goroutine.
// Commands of one session are processed strictly in order; a transfer
// blocks its session until it completes.
//
// # Getting Started
//
// Serve a local directory with anonymous access:
//
//	package main
//
//	import (
//	    "log"
//
//	    "github.com/gonzalop/vftpd/server"
//	    "github.com/gonzalop/vftpd/vfs"
//	)
//
//	func main() {
//	    r, err := vfs.New(vfs.WithBase("/tmp/ftp"))
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    s, err := server.NewServer(":21", server.WithFileSystem(server.NewFileSystem(r)))
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    log.Println("Starting FTP server on :21")
//	    if err := s.ListenAndServe(); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
// # Collaborators
//
// Three interfaces connect the protocol engine to the outside world, each
// with a default implementation:
//
//   - FileSystem: path resolution and file operations. NewFileSystem wraps a
//     vfs.Resolver, which maps the virtual tree onto a native directory or,
//     on Windows, onto all drive letters below a synthetic root.
//   - Authenticator: login policy. AnonymousAuth (default) admits the
//     "anonymous" user; PasswordAuth checks bcrypt hashes;
//     OpenAuth admits everybody without USER/PASS.
//   - EventLogger: connection and protocol events. SlogEventLogger writes
//     them to a log/slog logger.
//
// A MetricsCollector (WithMetricsCollector) can additionally count commands,
// transfers, connections and logins.
//
// FileSystem and Authenticator are cloned for every session, so
// implementations may keep per-session state such as the current
// directory.
//
// # Authentication
//
// Password authentication with bcrypt hashes:
//
//	hash, _ := server.HashPassword("secret")
//	auth, _ := server.NewPasswordAuth(map[string]string{"alice": hash}, true)
//	s, _ := server.NewServer(":21",
//	    server.WithFileSystem(fs),
//	    server.WithAuthenticator(auth),
//	)
//
// # Transfer Modes
//
// The default transfer type is ASCII, as RFC 959 requires. In ASCII mode
// the local line ending ("\n", or "\r\n" on Windows) is converted to CRLF
// on download and back on upload; WithLineEnding overrides the local
// ending. TYPE I switches to a byte-exact copy. Directory listings are
// always sent unconverted.
//
// # Passive Mode Behind NAT
//
//	s, _ := server.NewServer(":21",
//	    server.WithFileSystem(fs),
//	    server.WithPassivePortRange(30000, 30100),
//	    server.WithPublicHost("ftp.example.com"),
//	)
//
// # Shutdown
//
// Shutdown closes the listener and stops every session: its context is
// cancelled and its control connection, passive listener and data
// connection are closed, so blocked reads, accepts and copies return
// immediately.
//
// # Security Considerations
//
//   - PORT targets must match the client's control connection address,
//     which rules out FTP bounce attacks.
//   - Passive listeners accept a single connection and expire after the
//     data timeout (WithDataTimeout).
//   - Command lines are limited to MaxCommandLength bytes.
//   - PASS arguments never reach the event logger.
//   - Plain FTP sends credentials in clear text.
package server
