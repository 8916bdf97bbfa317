// Package lfserr provides the structured error taxonomy used throughout
// logfs: a small, closed set of error kinds, each with a fixed mapping to a
// POSIX errno for the FUSE bridge to report back to the kernel.
package lfserr

import (
	"errors"
	"fmt"
	"syscall"
)

// Kind is one of the closed set of error kinds a logfs operation can fail
// with. Unlike a general-purpose error taxonomy, this set is deliberately
// small: it mirrors exactly the failure modes the on-disk format and the
// log writer can produce.
type Kind string

const (
	NotFound      Kind = "NOT_FOUND"
	AlreadyExists Kind = "ALREADY_EXISTS"
	NotDir        Kind = "NOT_DIR"
	IsDir         Kind = "IS_DIR"
	InvalidPath   Kind = "INVALID_PATH"
	NameTooLong   Kind = "NAME_TOO_LONG"
	FileTooBig    Kind = "FILE_TOO_BIG"
	NoSpace       Kind = "NO_SPACE"
	NotPermitted  Kind = "NOT_PERMITTED"
	IoError       Kind = "IO_ERROR"
	BadMagic      Kind = "BAD_MAGIC"
	OutOfRange    Kind = "OUT_OF_RANGE"
	NotAllocated  Kind = "NOT_ALLOCATED"
	MapFull       Kind = "MAP_FULL"
)

// Errno maps a Kind to the negated-errno contract the kernel bridge reports
// back to the VFS, per the error handling design's Kind -> errno table.
func (k Kind) Errno() syscall.Errno {
	switch k {
	case NotFound:
		return syscall.ENOENT
	case AlreadyExists:
		return syscall.EEXIST
	case NotDir:
		return syscall.ENOTDIR
	case IsDir:
		return syscall.EISDIR
	case InvalidPath:
		return syscall.EPERM
	case NameTooLong:
		return syscall.ENAMETOOLONG
	case FileTooBig:
		return syscall.EFBIG
	case NoSpace, MapFull:
		return syscall.ENOSPC
	case NotPermitted:
		return syscall.EPERM
	case IoError:
		return syscall.EIO
	case OutOfRange:
		return syscall.EINVAL
	case NotAllocated:
		return syscall.ENOENT
	case BadMagic:
		return syscall.EINVAL
	default:
		return syscall.EIO
	}
}

// Error is a structured logfs error: a Kind, the operation and path it
// happened under, contextual key/value pairs, and an optional wrapped
// cause. Context is attached with WithContext, mirroring the
// context-carrying error style used across the rest of the pack.
type Error struct {
	Kind    Kind
	Op      string
	Path    string
	Context map[string]string
	Cause   error
}

// New creates a new Error of the given kind for the given operation.
func New(kind Kind, op string) *Error {
	return &Error{Kind: kind, Op: op}
}

// Wrap creates a new Error of the given kind for the given operation,
// wrapping an underlying cause (typically an I/O error from the block
// device).
func Wrap(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause}
}

// WithPath attaches the path an operation was acting on and returns the
// same *Error for chaining.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithContext attaches a contextual key/value pair (e.g. "block", "inode")
// and returns the same *Error for chaining.
func (e *Error) WithContext(key, value string) *Error {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Path != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Path)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same Kind, so callers can
// write errors.Is(err, lfserr.New(lfserr.NotFound, "")).
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error,
// returning IoError for anything else — every failure that reaches the
// FUSE bridge without a recognized Kind is, by construction, an I/O
// failure somewhere below the operations layer.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Kind
	}
	return IoError
}
