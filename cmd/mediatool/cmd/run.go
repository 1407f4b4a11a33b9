package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/mediatool/internal/media"
	"github.com/jmylchreest/mediatool/internal/observability"
	"github.com/jmylchreest/mediatool/internal/remux"
	"github.com/jmylchreest/mediatool/internal/report"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Trim, report on and copy the configured input",
	Long: `Run the configured sequence against run.input:

  1. trim the window [run.trim_start, run.trim_start + run.trim_duration]
     into run.trim_output
  2. print the codec and stream report of the input
  3. copy every stream of the input into run.copy_output

A failed trim stops the sequence and fails the command. Report and copy
failures are logged and do not change the exit status.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("input", "", "input file (default from run.input)")
	runCmd.Flags().String("trim-output", "", "trimmed output file (default from run.trim_output)")
	runCmd.Flags().String("copy-output", "", "copied output file (default from run.copy_output)")
	mustBindPFlag("run.input", runCmd.Flags().Lookup("input"))
	mustBindPFlag("run.trim_output", runCmd.Flags().Lookup("trim-output"))
	mustBindPFlag("run.copy_output", runCmd.Flags().Lookup("copy-output"))
}

func runRun(cmd *cobra.Command, _ []string) error {
	logger := slog.Default()
	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	opts, err := remux.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	w, err := remux.NewWindow(cfg.Run.TrimStart.Duration(), cfg.Run.TrimDuration.Duration())
	if err != nil {
		return err
	}

	seq := &sequence{
		pipeline:   remux.NewPipeline(registry, opts, logger),
		inspector:  registry,
		input:      cfg.Run.Input,
		trimOutput: cfg.Run.TrimOutput,
		copyOutput: cfg.Run.CopyOutput,
		window:     w,
		out:        cmd.OutOrStdout(),
		logger:     logger,
	}
	return seq.run(ctx)
}

// operations is the part of remux.Pipeline the run sequence uses.
type operations interface {
	Trim(ctx context.Context, in, out string, w remux.Window) (*remux.Result, error)
	Remux(ctx context.Context, in, out string) (*remux.Result, error)
}

// sequence is the trim, report, copy run. Only the trim is fatal.
type sequence struct {
	pipeline   operations
	inspector  media.Inspector
	input      string
	trimOutput string
	copyOutput string
	window     remux.Window
	out        io.Writer
	logger     *slog.Logger
}

func (s *sequence) run(ctx context.Context) error {
	res, err := s.pipeline.Trim(ctx, s.input, s.trimOutput, s.window)
	if err != nil {
		logPartialOutput(ctx, s.logger, res)
		return fmt.Errorf("trimming %s: %w", s.input, err)
	}
	logResult(ctx, s.logger, res)

	if err := writeReport(ctx, s.inspector, s.input, s.out, false); err != nil {
		observability.WithError(s.logger, err).ErrorContext(ctx, "report failed",
			slog.String("input", s.input),
		)
	}

	res, err = s.pipeline.Remux(ctx, s.input, s.copyOutput)
	if err != nil {
		logPartialOutput(ctx, s.logger, res)
		observability.WithError(s.logger, err).ErrorContext(ctx, "copy failed",
			slog.String("input", s.input),
			slog.String("output", s.copyOutput),
		)
	} else {
		logResult(ctx, s.logger, res)
	}

	// An interrupt is reported even though the steps it broke are not.
	return ctx.Err()
}

// writeReport inspects path and writes its report to w.
func writeReport(ctx context.Context, inspector media.Inspector, path string, w io.Writer, asJSON bool) error {
	done := observability.TimedOperation(ctx, observability.LoggerFromContext(ctx), "report")
	defer done()

	c, err := inspector.Inspect(ctx, path)
	if err != nil {
		return err
	}
	defer c.Close()

	r := report.Build(ctx, c, nil)
	if asJSON {
		return r.WriteJSON(w)
	}
	return r.WriteText(w)
}

// logPartialOutput warns about an output file left behind by a failed run.
func logPartialOutput(ctx context.Context, logger *slog.Logger, res *remux.Result) {
	if res == nil || res.State < remux.StateOutputCreated {
		return
	}
	logger.WarnContext(ctx, "partial output left on disk",
		slog.String("output", res.Output),
		slog.String("state", res.State.String()),
		slog.String("run_id", res.RunID),
	)
}

func logResult(ctx context.Context, logger *slog.Logger, res *remux.Result) {
	logger.InfoContext(ctx, "wrote output",
		slog.String("operation", res.Operation),
		slog.String("output", res.Output),
		slog.Int64("packets_written", res.PacketsWritten),
		slog.Int64("packets_dropped", res.PacketsDropped),
		slog.Bool("stopped_early", res.StoppedEarly),
	)
}
