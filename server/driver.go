package server

import (
	"io"
	"time"

	"github.com/gonzalop/vftpd/vfs"
)

// UploadFile is the destination of an upload.
type UploadFile interface {
	io.WriteCloser
	Truncate(size int64) error
}

// FileSystem performs the file operations of one session.
//
// Paths are virtual: absolute or relative to the session's current
// directory, "/"-separated. Implementations keep the current directory as
// session state, so the server calls Clone once per accepted connection and
// never shares an instance between sessions.
//
// Errors are reported to the client verbatim in a 550 reply, so their
// messages should be short, human readable and free of native paths.
//
// NewFileSystem adapts a *vfs.Resolver to this interface.
type FileSystem interface {
	// Clone returns an independent instance for a new session.
	Clone() FileSystem

	// CurrentDir returns the current directory.
	CurrentDir() (string, error)

	// ChangeDir changes the current directory and returns the new one.
	ChangeDir(path string) (string, error)

	// ChangeToParentDir moves one level up and returns the new directory.
	ChangeToParentDir() (string, error)

	// MakeDir creates a directory and returns its path.
	MakeDir(path string) (string, error)

	// RemoveDir removes an empty directory.
	RemoveDir(path string) error

	// ReadFile opens a regular file for reading.
	ReadFile(path string) (io.ReadCloser, error)

	// WriteFile opens a file for writing, creating it if needed. Existing
	// content must be kept: the server truncates the file only once the
	// data connection is established.
	WriteFile(path string) (UploadFile, error)

	// RemoveFile deletes a regular file.
	RemoveFile(path string) error

	// Rename moves a file or directory. The target must not exist.
	Rename(from, to string) error

	// List returns the entries of a directory, or the entry of a single
	// file. An empty path lists the current directory.
	List(path string) ([]vfs.Entry, error)

	// FileSize returns the size of a regular file in bytes.
	FileSize(path string) (int64, error)

	// ModTime returns the modification time of a regular file.
	ModTime(path string) (time.Time, error)
}

// LoginStage identifies the point of the login sequence being authorized.
type LoginStage int

const (
	// LoginAnonymous is asked once when a connection opens. Allowing it
	// logs the client in without USER/PASS.
	LoginAnonymous LoginStage = iota
	// LoginUser is asked after USER. Allowing it logs the client in
	// without a password.
	LoginUser
	// LoginPassword is asked after PASS with the pending user name.
	LoginPassword
)

func (s LoginStage) String() string {
	switch s {
	case LoginAnonymous:
		return "anonymous"
	case LoginUser:
		return "user"
	case LoginPassword:
		return "password"
	}
	return "unknown"
}

// Login is an authorization request.
type Login struct {
	Stage    LoginStage
	User     string
	Password string
}

// Authenticator decides whether a login may proceed.
//
// Like FileSystem, the server clones the authenticator for every session so
// implementations may keep per-session state (e.g. failed attempts).
type Authenticator interface {
	AllowLogin(l Login) bool
	Clone() Authenticator
}
