// Package source defines the Source interface for the input byte stream.
package source

import (
	"io"
)

// Source is the single input stream of a run. It is read sequentially,
// exactly once, and never seeked.
type Source interface {
	io.Reader

	// Close releases the stream after the last read.
	Close() error

	// Name returns a human-readable identifier used in diagnostics.
	Name() string
}
