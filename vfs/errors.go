package vfs

import (
	"errors"
	"io/fs"
)

// Sentinel errors returned (wrapped) by Resolver operations.
// Use errors.Is to test for them; Error() on the wrapper carries a
// human-readable message suitable for an FTP reply.
var (
	ErrNoPath      = errors.New("vfs: no path")
	ErrNotFound    = errors.New("vfs: not found")
	ErrExists      = errors.New("vfs: already exists")
	ErrNotEmpty    = errors.New("vfs: directory not empty")
	ErrNotDir      = errors.New("vfs: not a directory")
	ErrNotFile     = errors.New("vfs: not a file")
	ErrVirtualRoot = errors.New("vfs: not permitted on the virtual root")
	ErrInvalidName = errors.New("vfs: invalid name")
)

// Error is a resolver failure with a message meant for the client.
type Error struct {
	Msg string
	Err error
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Err }

func errorf(err error, msg string) error {
	return &Error{Msg: msg, Err: err}
}

// nativeError converts an error from the native filesystem into an *Error
// without leaking the native path.
func nativeError(err error, msg string) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		msg += " " + pe.Err.Error()
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &Error{Msg: msg, Err: errors.Join(ErrNotFound, err)}
	case errors.Is(err, fs.ErrExist):
		return &Error{Msg: msg, Err: errors.Join(ErrExists, err)}
	}
	return &Error{Msg: msg, Err: err}
}
