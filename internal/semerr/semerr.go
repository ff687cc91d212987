// Package semerr defines the error-kind taxonomy shared by every core
// package: IO, Format, Validation, ResourceExhausted and Fatal failures
// are each a distinct sentinel that callers can test with errors.Is.
package semerr

import (
	"errors"
	"fmt"
)

var (
	// IO marks a missing or unreadable file, a short read, or a write failure.
	IO = errors.New("io error")
	// Format marks an unknown version, bad magic, or a header-declared size
	// that exceeds the type width meant to hold it.
	Format = errors.New("format error")
	// Validation marks an invalid combination of construction/CLI arguments.
	Validation = errors.New("validation failure")
	// ResourceExhausted marks an allocation failure or a count overflow.
	ResourceExhausted = errors.New("resource exhausted")
	// Fatal marks conditions that make the process unable to run at all,
	// such as running on a big-endian host.
	Fatal = errors.New("fatal error")
)

// Wrap annotates err with kind so that errors.Is(wrapped, kind) succeeds
// while the original message is preserved.
func Wrap(kind error, msg string) error {
	return &wrapped{kind: kind, msg: msg}
}

type wrapped struct {
	kind error
	msg  string
}

func (w *wrapped) Error() string { return w.msg }

func (w *wrapped) Unwrap() error { return w.kind }

// Wrapf is Wrap with printf-style formatting.
func Wrapf(kind error, format string, args ...any) error {
	return Wrap(kind, fmt.Sprintf(format, args...))
}
