package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/mediatool/internal/remux"
	"github.com/jmylchreest/mediatool/pkg/format"
)

var copyJSON bool

var copyCmd = &cobra.Command{
	Use:   "copy <input> <output>",
	Short: "Copy every stream of a media file into a new container",
	Long: `Copy every packet of every stream from input to output without decoding.

Output streams keep their input codec unless --codec-policy=fixed is given.
Timestamps are rescaled to the output stream time bases.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.Default()
		ctx, cancel := signalContext(cmd.Context(), logger)
		defer cancel()

		opts, err := remux.OptionsFromConfig(cfg)
		if err != nil {
			return err
		}
		res, err := remux.NewPipeline(registry, opts, logger).Remux(ctx, args[0], args[1])
		if err != nil {
			logPartialOutput(ctx, logger, res)
			return err
		}
		return printResult(cmd.OutOrStdout(), res, copyJSON)
	},
}

func init() {
	copyCmd.Flags().BoolVar(&copyJSON, "json", false, "output the result as JSON")
	rootCmd.AddCommand(copyCmd)
}

// printResult writes a one line summary of a finished run, or the full
// result as JSON.
func printResult(w io.Writer, res *remux.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	_, err := fmt.Fprintf(w, "%s %s -> %s: %s of %s packets written (%s), %s dropped%s\n",
		res.Operation, res.Input, res.Output,
		format.Number(res.PacketsWritten), format.Number(res.PacketsRead),
		format.Share(res.PacketsWritten, res.PacketsRead),
		format.Number(res.PacketsDropped),
		stoppedSuffix(res),
	)
	return err
}

func stoppedSuffix(res *remux.Result) string {
	if res.StoppedEarly {
		return ", stopped at window end"
	}
	return ""
}
