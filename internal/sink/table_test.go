package sink

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Geun-Oh/cycletee/internal/monitor"
)

var (
	errDiskFull = errors.New("disk full")
	errBadClose = errors.New("bad close")
)

// memFile is an in-memory destination that can be told to fail.
type memFile struct {
	bytes.Buffer
	closes    int
	failWrite bool
	short     bool
	failClose bool
}

func (m *memFile) Write(p []byte) (int, error) {
	if m.failWrite {
		return 0, errDiskFull
	}
	if m.short {
		return m.Buffer.Write(p[:len(p)/2])
	}
	return m.Buffer.Write(p)
}

func (m *memFile) Close() error {
	m.closes++
	if m.failClose {
		return errBadClose
	}
	return nil
}

// memFS hands out memFiles by name and fails to open names listed in missing.
type memFS struct {
	files   map[string]*memFile
	missing map[string]bool
	modes   map[string]Mode
}

func newMemFS(missing ...string) *memFS {
	fs := &memFS{
		files:   make(map[string]*memFile),
		missing: make(map[string]bool),
		modes:   make(map[string]Mode),
	}
	for _, name := range missing {
		fs.missing[name] = true
	}
	return fs
}

func (fs *memFS) open(name string, mode Mode) (io.WriteCloser, error) {
	if fs.missing[name] {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
	}
	f := &memFile{}
	fs.files[name] = f
	fs.modes[name] = mode
	return f, nil
}

func newObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func TestOpen(t *testing.T) {
	fs := newMemFS()
	var stdout bytes.Buffer

	tbl, err := Open(&stdout, []string{"a.txt", "-", "b.txt"}, Append, WithOpener(fs.open))
	require.NoError(t, err)
	require.Equal(t, 3, tbl.Len())

	pt := tbl.Sink(PassthroughIndex)
	assert.True(t, pt.Passthrough())
	assert.Equal(t, PassthroughName, pt.Name())

	assert.Equal(t, "a.txt", tbl.Sink(1).Name())
	assert.False(t, tbl.Sink(1).Alias())
	assert.True(t, tbl.Sink(2).Alias())
	assert.False(t, tbl.Sink(2).Passthrough())
	assert.Equal(t, "b.txt", tbl.Sink(3).Name())

	assert.Len(t, fs.files, 2)
	assert.Equal(t, Append, fs.modes["a.txt"])
	assert.Equal(t, Append, fs.modes["b.txt"])
}

func TestOpen_NoDestinations(t *testing.T) {
	tbl, err := Open(&bytes.Buffer{}, nil, Truncate)
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.Len())
	assert.NoError(t, tbl.Close())
}

func TestOpen_FailureKeepsGoing(t *testing.T) {
	fs := newMemFS("locked.txt")
	logger, logs := newObservedLogger()
	stats := monitor.NewStats()

	tbl, err := Open(&bytes.Buffer{}, []string{"locked.txt", "ok.txt"}, Truncate,
		WithOpener(fs.open), WithLogger(logger), WithStats(stats))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.ErrorContains(t, err, "locked.txt")

	require.Equal(t, 2, tbl.Len())
	assert.True(t, tbl.Sink(1).Disabled())
	assert.False(t, tbl.Sink(2).Disabled())
	assert.Contains(t, fs.files, "ok.txt")

	// Writing to the disabled sink is silently skipped.
	assert.NoError(t, tbl.Write(1, []byte("x\n")))

	entries := logs.FilterMessage("open failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "locked.txt", entries[0].ContextMap()["sink"])

	sinks := stats.Sinks()
	require.Len(t, sinks, 3)
	assert.Equal(t, uint64(1), sinks[1].Failures)
}

func TestWrite(t *testing.T) {
	fs := newMemFS()
	var stdout bytes.Buffer
	stats := monitor.NewStats()

	tbl, err := Open(&stdout, []string{"a.txt", "-"}, Truncate, WithOpener(fs.open), WithStats(stats))
	require.NoError(t, err)

	require.NoError(t, tbl.Write(PassthroughIndex, []byte("one\n")))
	require.NoError(t, tbl.Write(1, []byte("one\n")))
	require.NoError(t, tbl.Write(PassthroughIndex, []byte("two\n")))
	require.NoError(t, tbl.Write(2, []byte("two\n")))
	require.NoError(t, tbl.Write(1, nil))

	assert.Equal(t, "one\n", fs.files["a.txt"].String())
	// The alias writes onto the passthrough handle.
	assert.Equal(t, "one\ntwo\ntwo\n", stdout.String())

	sinks := stats.Sinks()
	require.Len(t, sinks, 3)
	assert.Equal(t, monitor.SinkStats{Name: PassthroughName, Bytes: 8, Lines: 2}, sinks[0])
	assert.Equal(t, monitor.SinkStats{Name: "a.txt", Bytes: 4, Lines: 1}, sinks[1])
	assert.Equal(t, monitor.SinkStats{Name: "-", Bytes: 4, Lines: 1}, sinks[2])
}

func TestWrite_FailureDisablesOnlyThatSink(t *testing.T) {
	fs := newMemFS()
	logger, logs := newObservedLogger()
	var stdout bytes.Buffer

	tbl, err := Open(&stdout, []string{"bad.txt", "good.txt"}, Truncate,
		WithOpener(fs.open), WithLogger(logger))
	require.NoError(t, err)
	fs.files["bad.txt"].failWrite = true

	err = tbl.Write(1, []byte("a\n"))
	assert.ErrorIs(t, err, errDiskFull)
	assert.True(t, tbl.Sink(1).Disabled())

	// Later writes are skipped without another report.
	fs.files["bad.txt"].failWrite = false
	assert.NoError(t, tbl.Write(1, []byte("c\n")))
	assert.Empty(t, fs.files["bad.txt"].String())

	assert.NoError(t, tbl.Write(2, []byte("b\n")))
	assert.NoError(t, tbl.Write(PassthroughIndex, []byte("b\n")))
	assert.Equal(t, "b\n", fs.files["good.txt"].String())
	assert.Equal(t, "b\n", stdout.String())

	assert.Equal(t, 1, logs.FilterMessage("write failed").Len())
}

func TestWrite_ShortWrite(t *testing.T) {
	fs := newMemFS()
	tbl, err := Open(&bytes.Buffer{}, []string{"short.txt"}, Truncate, WithOpener(fs.open))
	require.NoError(t, err)
	fs.files["short.txt"].short = true

	err = tbl.Write(1, []byte("abcd\n"))
	assert.ErrorIs(t, err, io.ErrShortWrite)
	assert.True(t, tbl.Sink(1).Disabled())
}

func TestWrite_AliasSurvivesPassthroughFailure(t *testing.T) {
	stdout := &memFile{failWrite: true}
	tbl, err := Open(stdout, []string{"-"}, Truncate)
	require.NoError(t, err)

	assert.Error(t, tbl.Write(PassthroughIndex, []byte("x\n")))
	assert.True(t, tbl.Sink(PassthroughIndex).Disabled())
	// The alias has its own status flag.
	assert.False(t, tbl.Sink(1).Disabled())
}

func TestClose(t *testing.T) {
	fs := newMemFS("missing.txt")
	stdout := &memFile{}

	tbl, err := Open(stdout, []string{"a.txt", "-", "missing.txt", "b.txt"}, Truncate, WithOpener(fs.open))
	require.Error(t, err)

	fs.files["a.txt"].failWrite = true
	require.Error(t, tbl.Write(1, []byte("x\n")))

	require.NoError(t, tbl.Close())
	require.NoError(t, tbl.Close())

	// Owned handles are closed exactly once, including the one disabled by
	// a failed write. Standard output is never closed.
	assert.Equal(t, 1, fs.files["a.txt"].closes)
	assert.Equal(t, 1, fs.files["b.txt"].closes)
	assert.Equal(t, 0, stdout.closes)

	for i := 0; i <= tbl.Len(); i++ {
		assert.True(t, tbl.Sink(i).Disabled())
	}
}

func TestClose_AggregatesFailures(t *testing.T) {
	fs := newMemFS()
	logger, logs := newObservedLogger()

	tbl, err := Open(&bytes.Buffer{}, []string{"a.txt", "b.txt", "c.txt"}, Truncate,
		WithOpener(fs.open), WithLogger(logger))
	require.NoError(t, err)
	fs.files["a.txt"].failClose = true
	fs.files["c.txt"].failClose = true

	err = tbl.Close()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.ErrorIs(t, err, errBadClose)

	assert.Equal(t, 1, fs.files["b.txt"].closes)
	assert.Equal(t, 2, logs.FilterMessage("close failed").Len())
}

func TestOpenFile_Modes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")

	write := func(mode Mode, content string) {
		t.Helper()
		tbl, err := Open(io.Discard, []string{path}, mode)
		require.NoError(t, err)
		require.NoError(t, tbl.Write(1, []byte(content)))
		require.NoError(t, tbl.Close())
	}

	write(Truncate, "first\n")
	write(Truncate, "second\n")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(data))

	write(Append, "third\n")
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second\nthird\n", string(data))
}

func TestOpenFile_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "no", "such", "dir.txt")
	tbl, err := Open(io.Discard, []string{path}, Truncate)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.True(t, tbl.Sink(1).Disabled())
	assert.NoError(t, tbl.Close())
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "truncate", Truncate.String())
	assert.Equal(t, "append", Append.String())
	assert.Equal(t, "Mode(7)", Mode(7).String())
}
