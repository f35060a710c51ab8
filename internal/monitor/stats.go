// Package monitor provides transfer statistics for a cycletee run.
package monitor

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			PaddingLeft(1).
			PaddingRight(1)

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF4444")).
			Bold(true)
)

// SinkStats is a snapshot of the counters of one sink.
type SinkStats struct {
	Name     string
	Bytes    uint64
	Lines    uint64
	Failures uint64
}

type sinkCounters struct {
	name     string
	bytes    atomic.Uint64
	lines    atomic.Uint64
	failures atomic.Uint64
}

// Stats collects transfer counters. Every counter is mirrored into a
// private Prometheus registry so a run can be exported in text format.
// Counters are atomic, but per-sink entries are created without locking, so
// sinks must be recorded from one goroutine.
type Stats struct {
	bytesRead atomic.Uint64
	reads     atomic.Uint64
	lines     atomic.Uint64
	fragments atomic.Uint64
	startTime time.Time

	sinks []*sinkCounters
	index map[string]*sinkCounters

	registry      *prometheus.Registry
	readBytes     prometheus.Counter
	readCalls     prometheus.Counter
	unitsTotal    *prometheus.CounterVec
	sinkBytes     *prometheus.CounterVec
	sinkLines     *prometheus.CounterVec
	sinkFailures  *prometheus.CounterVec
	durationGauge prometheus.Gauge
}

// NewStats creates a new statistics collector.
func NewStats() *Stats {
	s := &Stats{
		startTime: time.Now(),
		index:     make(map[string]*sinkCounters),
		registry:  prometheus.NewRegistry(),

		readBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cycletee_read_bytes_total",
			Help: "Total number of bytes read from the input",
		}),
		readCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cycletee_reads_total",
			Help: "Total number of non-empty reads from the input",
		}),
		unitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cycletee_units_total",
			Help: "Dispatch units cut from the input, by kind",
		}, []string{"kind"}),
		sinkBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cycletee_sink_bytes_total",
			Help: "Bytes written to each sink",
		}, []string{"sink"}),
		sinkLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cycletee_sink_lines_total",
			Help: "Newline-terminated units written to each sink",
		}, []string{"sink"}),
		sinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cycletee_sink_failures_total",
			Help: "Open, write and close failures of each sink",
		}, []string{"sink"}),
		durationGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cycletee_duration_seconds",
			Help: "Wall time of the run",
		}),
	}
	s.registry.MustRegister(
		s.readBytes,
		s.readCalls,
		s.unitsTotal,
		s.sinkBytes,
		s.sinkLines,
		s.sinkFailures,
		s.durationGauge,
	)
	return s
}

// Registry returns the Prometheus registry holding the run's metrics.
func (s *Stats) Registry() *prometheus.Registry {
	return s.registry
}

// RecordRead accounts for one non-empty read of n bytes.
func (s *Stats) RecordRead(n int) {
	s.reads.Add(1)
	s.bytesRead.Add(uint64(n))
	s.readCalls.Inc()
	s.readBytes.Add(float64(n))
}

// RecordUnit accounts for one dispatch unit.
func (s *Stats) RecordUnit(complete bool) {
	if complete {
		s.lines.Add(1)
		s.unitsTotal.WithLabelValues("line").Inc()
		return
	}
	s.fragments.Add(1)
	s.unitsTotal.WithLabelValues("fragment").Inc()
}

// RecordWrite accounts for n bytes written to the named sink. line is true
// when the written unit ended with a newline.
func (s *Stats) RecordWrite(sink string, n int, line bool) {
	c := s.sink(sink)
	c.bytes.Add(uint64(n))
	s.sinkBytes.WithLabelValues(sink).Add(float64(n))
	if line {
		c.lines.Add(1)
		s.sinkLines.WithLabelValues(sink).Inc()
	}
}

// RecordFailure accounts for a failure of the named sink.
func (s *Stats) RecordFailure(sink string) {
	s.sink(sink).failures.Add(1)
	s.sinkFailures.WithLabelValues(sink).Inc()
}

// sink returns the counters for name, registering it on first use so the
// summary lists sinks in the order they were first seen.
func (s *Stats) sink(name string) *sinkCounters {
	if c, ok := s.index[name]; ok {
		return c
	}
	c := &sinkCounters{name: name}
	s.index[name] = c
	s.sinks = append(s.sinks, c)
	return c
}

// Track registers a sink without recording anything, so it shows up in the
// summary even if nothing is ever written to it.
func (s *Stats) Track(sink string) {
	s.sink(sink)
	s.sinkBytes.WithLabelValues(sink)
}

// BytesRead returns the total number of bytes read.
func (s *Stats) BytesRead() uint64 {
	return s.bytesRead.Load()
}

// Reads returns the number of non-empty reads.
func (s *Stats) Reads() uint64 {
	return s.reads.Load()
}

// Lines returns the number of complete lines dispatched.
func (s *Stats) Lines() uint64 {
	return s.lines.Load()
}

// Fragments returns the number of partial-line units dispatched.
func (s *Stats) Fragments() uint64 {
	return s.fragments.Load()
}

// Sinks returns a snapshot of every sink's counters in first-seen order.
func (s *Stats) Sinks() []SinkStats {
	out := make([]SinkStats, 0, len(s.sinks))
	for _, c := range s.sinks {
		out = append(out, SinkStats{
			Name:     c.name,
			Bytes:    c.bytes.Load(),
			Lines:    c.lines.Load(),
			Failures: c.failures.Load(),
		})
	}
	return out
}

// Elapsed returns the time since the collector was created.
func (s *Stats) Elapsed() time.Duration {
	return time.Since(s.startTime)
}

// Rate returns the throughput in bytes per second.
func (s *Stats) Rate() float64 {
	elapsed := s.Elapsed().Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(s.BytesRead()) / elapsed
}

// Summary returns a formatted summary of the run.
func (s *Stats) Summary() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Summary"))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "  Bytes read:  %d (%d reads)\n", s.BytesRead(), s.Reads())
	fmt.Fprintf(&sb, "  Lines:       %d\n", s.Lines())
	fmt.Fprintf(&sb, "  Fragments:   %d\n", s.Fragments())
	fmt.Fprintf(&sb, "  Duration:    %s\n", s.Elapsed().Round(time.Millisecond))
	fmt.Fprintf(&sb, "  Throughput:  %.0f bytes/s", s.Rate())

	if sinks := s.Sinks(); len(sinks) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(titleStyle.Render("Sinks"))
		for _, c := range sinks {
			line := fmt.Sprintf("\n  %-24s %10d bytes %8d lines", c.Name, c.Bytes, c.Lines)
			if c.Failures > 0 {
				line += " " + failStyle.Render(fmt.Sprintf("%d failed", c.Failures))
			}
			sb.WriteString(line)
		}
	}
	return boxStyle.Render(sb.String())
}

// WriteTextfile writes the run's metrics in Prometheus text format to path,
// suitable for the node exporter textfile collector.
func (s *Stats) WriteTextfile(path string) error {
	s.durationGauge.Set(s.Elapsed().Seconds())
	if err := prometheus.WriteToTextfile(path, s.registry); err != nil {
		return fmt.Errorf("monitor: write metrics %s: %w", path, err)
	}
	return nil
}
