package main

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/egonelbre/abctools/abcfmt/align"
)

var formatWrite bool

var formatCmd = &cobra.Command{
	Use:   "format [file]",
	Short: "Aligns the voices of multi-voice systems",
	Long: `Aligns notes that sound together in multi-voice systems so that they
start in the same column. Reads stdin when no file is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup(cmd)
		if err != nil {
			return err
		}

		name, data, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		if formatWrite && name == stdinName {
			return errors.New("-w requires a file")
		}

		out, warnings := align.FormatString(string(data), align.Formatter{
			Align:     cfg.Align,
			Normalize: cfg.Normalize,
		})
		log := logrus.WithField("file", name)
		logWarnings(log, warnings)

		if !formatWrite {
			_, err := io.WriteString(cmd.OutOrStdout(), out)
			return err
		}
		if out == string(data) {
			log.Debug("unchanged")
			return nil
		}
		log.Info("formatted")
		return errors.Wrapf(os.WriteFile(name, []byte(out), 0o644), "failed to write %s", name)
	},
}

func init() {
	formatCmd.Flags().BoolVarP(&formatWrite, "write", "w", false, "write result to the file instead of stdout")
	formatCmd.Flags().Bool("normalize", false, "collapse whitespace in music lines")
	formatCmd.Flags().Bool("align", true, "align multi-voice systems")
	rootCmd.AddCommand(formatCmd)
}
