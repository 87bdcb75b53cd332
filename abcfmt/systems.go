package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/egonelbre/abctools/abcfmt/abc"
)

var systemsCmd = &cobra.Command{
	Use:   "systems [file]",
	Short: "Prints the systems of every tune with voices and bar ranges",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := setup(cmd); err != nil {
			return err
		}
		_, book, err := parseInput(cmd, args)
		if err != nil {
			return err
		}
		for _, tune := range book.Tunes {
			printSystems(cmd.OutOrStdout(), tune)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(systemsCmd)
}

// printSystems writes one block per system listing the music lines by
// voice with the bars they cover.
func printSystems(w io.Writer, tune *abc.Tune) {
	fmt.Fprintf(w, "X:%s %s\n", tune.ID, tune.Title)

	counters := map[string]int{}
	for i, sys := range tune.Body.Systems {
		fmt.Fprintf(w, "  system %d\n", i+1)

		voice := sys.Voice
		for _, line := range abc.SplitLines(sys.Elements) {
			if id, _, ok := abc.LineVoice(line); ok {
				voice = id
			}
			if !abc.HasMusic(line) {
				continue
			}
			r, next := abc.LineBars(line, counters[voice])
			counters[voice] = next

			name := voice
			if name == "" {
				name = "-"
			}
			fmt.Fprintf(w, "    %-8s bars %d-%d\n", name, r.First, r.Last)
		}
	}
}
