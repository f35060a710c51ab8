// Package pipeline runs the cycling demultiplexer: it reads the source in
// fixed-size chunks and sends each line to the passthrough sink and to one
// rotating sink, moving to the next rotating sink after every complete line.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Geun-Oh/cycletee/internal/buffer"
	"github.com/Geun-Oh/cycletee/internal/monitor"
	"github.com/Geun-Oh/cycletee/internal/sink"
	"github.com/Geun-Oh/cycletee/internal/source"
	"github.com/Geun-Oh/cycletee/internal/unit"
)

// Config holds pipeline configuration.
type Config struct {
	Source        source.Source
	Sinks         *sink.Table
	NoPassthrough bool // skip every write to the passthrough sink
	BufferSize    int  // read chunk capacity; buffer.DefaultSize if zero
	Stats         *monitor.Stats
	Logger        *zap.Logger
}

// cursor selects the rotating sink that receives the next unit.
type cursor struct {
	pos, n int
}

func (c *cursor) advance() {
	c.pos++
	if c.pos > c.n {
		c.pos = 1
	}
}

// Run copies the source to the sinks until end of input, a read error, or
// ctx is cancelled. Write failures disable the failing sink and do not stop
// the run.
//
// The returned error aggregates every write failure and the read error, if
// any. Data already written is left in place.
func Run(ctx context.Context, cfg *Config) error {
	if cfg.Source == nil {
		return fmt.Errorf("pipeline: source is required")
	}
	if cfg.Sinks == nil {
		return fmt.Errorf("pipeline: sink table is required")
	}
	if cfg.BufferSize < 0 {
		return fmt.Errorf("pipeline: invalid buffer size %d", cfg.BufferSize)
	}

	r := &runner{
		cfg:    cfg,
		stats:  cfg.Stats,
		logger: cfg.Logger,
		cur:    cursor{pos: 1, n: cfg.Sinks.Len()},
	}
	if r.stats == nil {
		r.stats = monitor.NewStats()
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}

	size := cfg.BufferSize
	if size == 0 {
		size = buffer.DefaultSize
	}
	chunk := buffer.Get(size)
	defer buffer.Put(chunk)

	dispatch := r.dispatchLines
	if r.cur.n == 0 {
		dispatch = r.dispatchChunk
	}

	for {
		if err := ctx.Err(); err != nil {
			return multierr.Append(r.errs, fmt.Errorf("pipeline: %w", err))
		}

		n, err := cfg.Source.Read(chunk)
		if n > 0 {
			r.stats.RecordRead(n)
			dispatch(chunk[:n])
		}

		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF):
			return r.errs
		case interrupted(err):
			r.logger.Debug("read interrupted, retrying", zap.String("source", cfg.Source.Name()))
			continue
		default:
			r.logger.Error("read error", zap.String("source", cfg.Source.Name()), zap.Error(err))
			return multierr.Append(r.errs, fmt.Errorf("pipeline: read %s: %w", cfg.Source.Name(), err))
		}
	}
}

type runner struct {
	cfg    *Config
	stats  *monitor.Stats
	logger *zap.Logger
	cur    cursor
	units  []unit.Unit
	errs   error
}

// dispatchChunk is the path for a table without rotating sinks: the chunk
// goes to the passthrough sink whole, without looking for lines.
func (r *runner) dispatchChunk(chunk []byte) {
	r.write(sink.PassthroughIndex, chunk)
}

// dispatchLines sends every unit of the chunk to the passthrough sink and
// then to the cursor sink. The cursor only moves after a complete line, so a
// fragment at the end of the chunk and the continuation in the next chunk
// reach the same sink.
func (r *runner) dispatchLines(chunk []byte) {
	r.units = unit.Split(r.units[:0], chunk)
	for _, u := range r.units {
		r.stats.RecordUnit(u.Complete)
		r.write(sink.PassthroughIndex, u.Bytes)
		r.write(r.cur.pos, u.Bytes)
		if u.Complete {
			r.cur.advance()
		}
	}
}

func (r *runner) write(i int, p []byte) {
	if i == sink.PassthroughIndex && r.cfg.NoPassthrough {
		return
	}
	if err := r.cfg.Sinks.Write(i, p); err != nil {
		r.errs = multierr.Append(r.errs, err)
	}
}
