package source

import (
	"fmt"
	"os"
)

// FileSource reads the input from a file instead of standard input.
type FileSource struct {
	path string
	f    *os.File
}

// OpenFile opens path for reading.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input %s: %w", path, err)
	}
	return &FileSource{path: path, f: f}, nil
}

// Name returns the source identifier.
func (s *FileSource) Name() string {
	return s.path
}

// Read reads from the file.
func (s *FileSource) Read(p []byte) (int, error) {
	return s.f.Read(p)
}

// Close closes the file.
func (s *FileSource) Close() error {
	return s.f.Close()
}
