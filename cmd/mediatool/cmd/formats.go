package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/mediatool/internal/codec"
	"github.com/jmylchreest/mediatool/internal/media"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List the supported container formats and codecs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return printFormats(cmd.OutOrStdout(), registry.Providers())
	},
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}

// printFormats writes the registered providers and, for every known codec,
// the providers able to write it.
func printFormats(w io.Writer, providers []media.Provider) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "FORMAT\tEXTENSIONS")
	for _, p := range providers {
		fmt.Fprintf(tw, "%s\t%s\n", p.Name(), strings.Join(p.Extensions(), ", "))
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "CODEC\tKIND\tWRITABLE BY\tDESCRIPTION")
	for _, info := range codec.All() {
		var writers []string
		for _, p := range providers {
			if _, err := p.FindEncoder(info.ID); err == nil {
				writers = append(writers, p.Name())
			}
		}
		writable := "-"
		if len(writers) > 0 {
			writable = strings.Join(writers, ", ")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", info.ID, info.Kind, writable, info.LongName)
	}

	return tw.Flush()
}
