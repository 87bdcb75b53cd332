package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/egonelbre/abctools/abcfmt/abc"
	"github.com/egonelbre/abctools/abcfmt/midi"
)

var midiFlags struct {
	output string
	tune   string
}

var midiCmd = &cobra.Command{
	Use:   "midi [file]",
	Short: "Exports a tune as a Standard MIDI File",
	Long: `Exports one tune, the first one unless --tune selects another by its
X: reference number. Every voice is written to its own track.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup(cmd)
		if err != nil {
			return err
		}

		name, book, err := parseInput(cmd, args)
		if err != nil {
			return err
		}

		tune, err := selectTune(book, midiFlags.tune)
		if err != nil {
			return err
		}

		output := midiFlags.output
		if output == "" {
			if name == stdinName {
				return errors.New("-o required when reading stdin")
			}
			output = strings.TrimSuffix(name, filepath.Ext(name)) + ".mid"
		}

		log := logrus.WithFields(logrus.Fields{"file": name, "tune": tune.ID})
		s, warnings := midi.Export(tune, midi.Options{Tempo: cfg.Tempo})
		logWarnings(log, warnings)

		f, err := os.Create(output)
		if err != nil {
			return errors.Wrapf(err, "failed to create %s", output)
		}
		defer f.Close()

		if err := midi.Write(f, s); err != nil {
			return err
		}
		log.WithField("output", output).Info("exported")
		return errors.Wrapf(f.Close(), "failed to close %s", output)
	},
}

func init() {
	midiCmd.Flags().StringVarP(&midiFlags.output, "output", "o", "", "output file, defaults to the input with .mid extension")
	midiCmd.Flags().StringVar(&midiFlags.tune, "tune", "", "reference number (X:) of the tune to export")
	midiCmd.Flags().Int("tempo", midi.DefaultTempo, "quarter notes per minute when the tune has no Q: field")
	rootCmd.AddCommand(midiCmd)
}

func selectTune(book *abc.TuneBook, id string) (*abc.Tune, error) {
	if len(book.Tunes) == 0 {
		return nil, errors.New("no tunes found")
	}
	if id == "" {
		return book.Tunes[0], nil
	}
	for _, tune := range book.Tunes {
		if tune.ID == id {
			return tune, nil
		}
	}
	return nil, errors.Errorf("tune X:%s not found", id)
}
