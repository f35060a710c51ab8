// Package sink implements the sink table: the passthrough output plus the
// ordered rotating output destinations of a run.
package sink

import (
	"fmt"
	"io"
	"os"
)

const (
	// AliasToken names a destination that writes to the passthrough
	// output instead of opening a file.
	AliasToken = "-"

	// PassthroughName is the display name of the passthrough sink.
	PassthroughName = "standard output"

	// PassthroughIndex is the table index of the passthrough sink. Rotating
	// sinks live at 1..Len().
	PassthroughIndex = 0
)

// Mode selects how destination files are opened.
type Mode int

const (
	// Truncate creates the file or empties an existing one.
	Truncate Mode = iota
	// Append creates the file or writes after its current end.
	Append
)

// String returns the string representation of a Mode.
func (m Mode) String() string {
	switch m {
	case Truncate:
		return "truncate"
	case Append:
		return "append"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

func (m Mode) flags() int {
	if m == Append {
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	return os.O_WRONLY | os.O_CREATE | os.O_TRUNC
}

// OpenFunc opens the named destination for writing in the given mode.
type OpenFunc func(name string, mode Mode) (io.WriteCloser, error)

// OpenFile is the default OpenFunc. It opens a regular file with
// permissions 0666 before umask.
func OpenFile(name string, mode Mode) (io.WriteCloser, error) {
	return os.OpenFile(name, mode.flags(), 0o666)
}

// Sink is one output destination.
type Sink struct {
	name        string
	w           io.Writer
	c           io.Closer // nil unless the table owns the handle
	passthrough bool
	alias       bool
	disabled    bool
}

// Name returns the display name used in diagnostics.
func (s *Sink) Name() string { return s.name }

// Passthrough reports whether s is the passthrough sink.
func (s *Sink) Passthrough() bool { return s.passthrough }

// Alias reports whether s shares the passthrough handle.
func (s *Sink) Alias() bool { return s.alias }

// Disabled reports whether writes to s are skipped. A sink is disabled when
// it failed to open, after its first failed write, and after Close.
func (s *Sink) Disabled() bool { return s.disabled }
