package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Geun-Oh/cycletee/internal/config"
	"github.com/Geun-Oh/cycletee/internal/logging"
	"github.com/Geun-Oh/cycletee/internal/monitor"
	"github.com/Geun-Oh/cycletee/internal/pipeline"
	"github.com/Geun-Oh/cycletee/internal/sink"
	"github.com/Geun-Oh/cycletee/internal/source"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// errIncomplete is returned once every failure of a run has already been
// reported, so Execute only sets the exit status.
var errIncomplete = errors.New("cycletee: completed with errors")

type options struct {
	configPath  string
	input       string
	appendMode  bool
	ignoreInts  bool
	noStdout    bool
	bufferSize  int
	logLevel    string
	stats       bool
	metricsFile string
}

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "cycletee [OPTION]... [FILE]...",
		Short: "Copy standard input to standard output and to each FILE in turn, one line at a time",
		Long: `cycletee copies standard input to standard output, and writes each line
to one of the given FILEs in rotation: the first line to the first FILE, the
second line to the second FILE, and so on, starting over after the last FILE.

If a FILE is -, its lines are copied again to standard output.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args)
		},
	}

	f := cmd.Flags()
	f.BoolVarP(&opts.appendMode, "append", "a", false, "append to the given FILEs, do not overwrite")
	f.BoolVarP(&opts.ignoreInts, "ignore-interrupts", "i", false, "ignore interrupt signals")
	f.BoolVarP(&opts.noStdout, "no-stdout", "n", false, "no output to standard output")
	f.StringVar(&opts.input, "input", "", "read `FILE` instead of standard input")
	f.IntVar(&opts.bufferSize, "buffer-size", config.DefaultBufferSize, "read chunk size in bytes")
	f.StringVar(&opts.configPath, "config", "", "YAML configuration `FILE`")
	f.StringVar(&opts.logLevel, "log-level", "info", "diagnostic log level (debug, info, warn, error)")
	f.BoolVar(&opts.stats, "stats", false, "print a transfer summary to standard error")
	f.StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus text-format metrics to `FILE`")
	return cmd
}

// loadConfig merges the configuration sources with the flags that were set
// explicitly on the command line.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("append") {
		cfg.Append = opts.appendMode
	}
	if f.Changed("ignore-interrupts") {
		cfg.IgnoreInterrupts = opts.ignoreInts
	}
	if f.Changed("no-stdout") {
		cfg.NoStdout = opts.noStdout
	}
	if f.Changed("buffer-size") {
		cfg.BufferSize = opts.bufferSize
	}
	if f.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if f.Changed("stats") {
		cfg.Stats = opts.stats
	}
	if f.Changed("metrics-file") {
		cfg.MetricsFile = opts.metricsFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cmd *cobra.Command, opts *options, args []string) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.IgnoreInterrupts {
		signal.Ignore(os.Interrupt)
	}

	var src source.Source
	if opts.input != "" {
		fs, err := source.OpenFile(opts.input)
		if err != nil {
			return err
		}
		src = fs
	} else {
		src = source.NewStdinSource(cmd.InOrStdin())
	}

	mode := sink.Truncate
	if cfg.Append {
		mode = sink.Append
	}

	stats := monitor.NewStats()
	table, openErr := sink.Open(cmd.OutOrStdout(), args, mode,
		sink.WithLogger(logger),
		sink.WithStats(stats),
	)

	runErr := pipeline.Run(cmd.Context(), &pipeline.Config{
		Source:        src,
		Sinks:         table,
		NoPassthrough: cfg.NoStdout,
		BufferSize:    cfg.BufferSize,
		Stats:         stats,
		Logger:        logger,
	})

	closeErr := table.Close()

	srcErr := src.Close()
	if srcErr != nil {
		logger.Error("close failed", zap.String("source", src.Name()), zap.Error(srcErr))
	}

	if cfg.Stats {
		fmt.Fprintln(cmd.ErrOrStderr(), stats.Summary())
	}

	var metricsErr error
	if cfg.MetricsFile != "" {
		if metricsErr = stats.WriteTextfile(cfg.MetricsFile); metricsErr != nil {
			logger.Error("metrics export failed", zap.Error(metricsErr))
		}
	}

	if err := multierr.Combine(openErr, runErr, closeErr, srcErr, metricsErr); err != nil {
		logger.Debug("run finished with errors", zap.Int("errors", len(multierr.Errors(err))))
		return errIncomplete
	}
	return nil
}

// Execute runs the root command and exits with status 1 on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errIncomplete) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
