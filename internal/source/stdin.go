package source

import (
	"io"
	"os"
)

// StdinSource reads from standard input (pipe mode).
type StdinSource struct {
	r io.Reader
}

// NewStdinSource creates a source reading r, which is standard input in
// production. If r is nil, os.Stdin is used.
func NewStdinSource(r io.Reader) *StdinSource {
	if r == nil {
		r = os.Stdin
	}
	return &StdinSource{r: r}
}

// Name returns the source identifier.
func (s *StdinSource) Name() string {
	return "standard input"
}

// Read reads from the underlying stream.
func (s *StdinSource) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

// Close closes the underlying stream if it can be closed.
func (s *StdinSource) Close() error {
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
