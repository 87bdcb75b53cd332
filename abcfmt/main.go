package main

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/egonelbre/abctools/abcfmt/abc"
)

var envfile string

var rootCmd = &cobra.Command{
	Use:   "abcfmt",
	Short: "Formats and converts ABC tunebooks",
	Long: `abcfmt aligns the voices of multi-voice ABC tunes and converts
tunebooks to LilyPond and MIDI.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envfile, "env", "", "environment file with ABCFMT_* defaults")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log debug output")
}

func main() {
	logrus.SetOutput(os.Stderr)
	cobra.CheckErr(rootCmd.Execute())
}

// setup resolves the configuration of cmd and configures logging.
func setup(cmd *cobra.Command) (Config, error) {
	cfg, err := LoadConfig(envfile)
	if err != nil {
		return cfg, err
	}
	cfg.Override(cmd.Flags())

	if cfg.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	return cfg, nil
}

const stdinName = "<stdin>"

// readInput reads the file named in args, or stdin when there is none.
func readInput(cmd *cobra.Command, args []string) (string, []byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		return stdinName, data, errors.Wrap(err, "failed to read stdin")
	}
	data, err := os.ReadFile(args[0])
	return args[0], data, errors.Wrapf(err, "failed to read %s", args[0])
}

// parseInput reads and parses the input, logging parse warnings.
func parseInput(cmd *cobra.Command, args []string) (string, *abc.TuneBook, error) {
	name, data, err := readInput(cmd, args)
	if err != nil {
		return name, nil, err
	}
	book, warnings := abc.Parse(string(data))
	logrus.WithField("file", name).Debugf("parsed %d tunes", len(book.Tunes))
	logWarnings(logrus.WithField("file", name), warnings)
	return name, book, nil
}

func logWarnings(log *logrus.Entry, warnings []abc.Warning) {
	for _, w := range warnings {
		log.WithFields(logrus.Fields{
			"line":   w.Line,
			"column": w.Column,
		}).Warn(w.Message)
	}
}
