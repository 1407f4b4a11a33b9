package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/mediatool/internal/remux"
)

var trimJSON bool

var trimCmd = &cobra.Command{
	Use:   "trim <input> <output>",
	Short: "Copy the packets within a time window into a new container",
	Long: `Copy the packets presented between --start and --start + --duration
(both inclusive) from input to output without decoding.

Positions accept plain seconds ("90"), Go durations ("1m30s") or clock
timecodes ("00:01:30.5"). Copying stops at the first packet presented after
the window, in any stream.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
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
		logger.Debug("trim window", slog.String("window", w.String()))

		res, err := remux.NewPipeline(registry, opts, logger).Trim(ctx, args[0], args[1], w)
		if err != nil {
			logPartialOutput(ctx, logger, res)
			return err
		}
		return printResult(cmd.OutOrStdout(), res, trimJSON)
	},
}

func init() {
	rootCmd.AddCommand(trimCmd)

	trimCmd.Flags().String("start", "", "window start (default from run.trim_start)")
	trimCmd.Flags().String("duration", "", "window duration (default from run.trim_duration)")
	trimCmd.Flags().String("unset-pts", "", "packets without a timestamp: zero, passthrough or drop (default from trim.unset_pts)")
	trimCmd.Flags().BoolVar(&trimJSON, "json", false, "output the result as JSON")
	mustBindPFlag("run.trim_start", trimCmd.Flags().Lookup("start"))
	mustBindPFlag("run.trim_duration", trimCmd.Flags().Lookup("duration"))
	mustBindPFlag("trim.unset_pts", trimCmd.Flags().Lookup("unset-pts"))
}
