package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var inspectJSON bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Print the codec and stream report of a media file",
	Long: `Print the container metadata, the best stream of each kind, the duration
and a block per stream with its timing, disposition and decoded codec
parameters.

MPEG-TS files are read directly. Other containers are inspected with ffprobe
when it is available (ffmpeg.probe_path, MEDIATOOL_FFPROBE_BINARY or PATH).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context(), slog.Default())
		defer cancel()
		return writeReport(ctx, registry, args[0], cmd.OutOrStdout(), inspectJSON)
	},
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "output the report as JSON")
	rootCmd.AddCommand(inspectCmd)
}
