package sink

import (
	"fmt"
	"io"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Geun-Oh/cycletee/internal/monitor"
)

// Table is the ordered set of sinks of a run. Index 0 is the passthrough
// sink; indices 1..Len() are the rotating sinks in command-line order.
//
// A failing sink never stops the others: failures are logged, counted,
// returned to the caller and the sink is disabled.
type Table struct {
	sinks  []*Sink
	open   OpenFunc
	logger *zap.Logger
	stats  *monitor.Stats
	closed bool
}

// Option configures a Table.
type Option func(*Table)

// WithLogger sets the logger diagnostics are reported to.
func WithLogger(l *zap.Logger) Option {
	return func(t *Table) { t.logger = l }
}

// WithStats sets the collector writes and failures are recorded in.
func WithStats(s *monitor.Stats) Option {
	return func(t *Table) { t.stats = s }
}

// WithOpener replaces OpenFile.
func WithOpener(fn OpenFunc) Option {
	return func(t *Table) { t.open = fn }
}

// Open builds the table. Each destination equal to AliasToken shares the
// passthrough writer; every other one is opened with the table's OpenFunc
// in the given mode. A destination that fails to open is reported and
// starts disabled; the remaining ones are still opened.
//
// The returned table is always usable. The error aggregates every open
// failure.
func Open(passthrough io.Writer, destinations []string, mode Mode, opts ...Option) (*Table, error) {
	t := &Table{
		open:   OpenFile,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.stats == nil {
		t.stats = monitor.NewStats()
	}
	if passthrough == nil {
		passthrough = io.Discard
	}

	t.sinks = make([]*Sink, 0, len(destinations)+1)
	t.sinks = append(t.sinks, &Sink{
		name:        PassthroughName,
		w:           passthrough,
		passthrough: true,
	})
	t.stats.Track(PassthroughName)

	var errs error
	for _, name := range destinations {
		s := &Sink{name: name}
		t.sinks = append(t.sinks, s)
		t.stats.Track(name)

		if name == AliasToken {
			s.w = passthrough
			s.alias = true
			continue
		}

		wc, err := t.open(name, mode)
		if err != nil {
			s.disabled = true
			t.fail(s, "open failed", err)
			errs = multierr.Append(errs, fmt.Errorf("sink: open %s: %w", name, err))
			continue
		}
		s.w, s.c = wc, wc
		t.logger.Debug("sink opened", zap.String("sink", name), zap.Stringer("mode", mode))
	}
	return t, errs
}

// Len returns the number of rotating sinks.
func (t *Table) Len() int {
	return len(t.sinks) - 1
}

// Sink returns the sink at index i.
func (t *Table) Sink(i int) *Sink {
	return t.sinks[i]
}

// Write writes p to sink i as a single unit. Writes to a disabled sink are
// skipped and succeed. A failed or short write disables the sink and
// returns the cause.
func (t *Table) Write(i int, p []byte) error {
	s := t.sinks[i]
	if s.disabled || len(p) == 0 {
		return nil
	}

	n, err := s.w.Write(p)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	t.stats.RecordWrite(s.name, n, err == nil && p[len(p)-1] == '\n')
	if err != nil {
		s.disabled = true
		t.fail(s, "write failed", err)
		return fmt.Errorf("sink: write %s: %w", s.name, err)
	}
	return nil
}

// Close closes every sink the table owns, that is every destination that
// was opened successfully, including ones disabled by a write failure. The
// passthrough sink and its aliases are left open. All sinks are attempted;
// the error aggregates every failure. Subsequent calls do nothing.
func (t *Table) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true

	var errs error
	for _, s := range t.sinks {
		s.disabled = true
		if s.c == nil {
			continue
		}
		c := s.c
		s.c = nil
		if err := c.Close(); err != nil {
			t.fail(s, "close failed", err)
			errs = multierr.Append(errs, fmt.Errorf("sink: close %s: %w", s.name, err))
		}
	}
	return errs
}

func (t *Table) fail(s *Sink, msg string, err error) {
	t.stats.RecordFailure(s.name)
	t.logger.Error(msg, zap.String("sink", s.name), zap.Error(err))
}
