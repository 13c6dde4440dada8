package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"karolbroda.com/lyrisync/internal/lyrics"
)

var parseAt float64

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "parse an lrc file and print its timing",
	Long: `parse a simple or enhanced lrc file and print every timed line.
with --at, also show which line is active at that position.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read lyrics file: %w", err)
		}

		doc, err := lyrics.Parse(string(raw))
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", args[0], err)
		}

		out := cmd.OutOrStdout()
		printDocument(out, doc)

		if cmd.Flags().Changed("at") {
			pos := int64(parseAt * 1000)
			idx := doc.LineIndexAt(pos)
			if idx < 0 {
				fmt.Fprintf(out, "\nat %s: before the first line\n", formatTimestamp(pos))
				return nil
			}
			line := doc.Lines[idx]
			fmt.Fprintf(out, "\nat %s: line %d %q, %.0f%% through, %d runes sung\n",
				formatTimestamp(pos), idx+1, line.Text, line.Progress(pos)*100, line.RevealedRunes(pos))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().Float64Var(&parseAt, "at", 0, "position in seconds to evaluate")
}
