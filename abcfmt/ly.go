package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/egonelbre/abctools/abcfmt/abc"
	"github.com/egonelbre/abctools/abcfmt/lily"
)

var lyFlags struct {
	filePerTune bool
	outdir      string
}

var lyCmd = &cobra.Command{
	Use:   "ly [file]",
	Short: "Converts a tunebook to LilyPond",
	Long: `Converts the first voice of every tune to a LilyPond score. With
--file-per-tune every tune is written to its own file in --out together
with an _index.ly that includes them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := setup(cmd); err != nil {
			return err
		}
		if lyFlags.filePerTune && lyFlags.outdir == "" {
			return errors.New("--out required when using --file-per-tune")
		}

		name, book, err := parseInput(cmd, args)
		if err != nil {
			return err
		}
		log := logrus.WithField("file", name)

		if !lyFlags.filePerTune {
			c := lily.Convert{Output: cmd.OutOrStdout()}
			for _, tune := range book.Tunes {
				c.Tune(tune)
			}
			logWarnings(log, c.Warnings)
			return nil
		}
		return writeTunes(log, book, lyFlags.outdir)
	},
}

func init() {
	lyCmd.Flags().BoolVar(&lyFlags.filePerTune, "file-per-tune", false, "creates a single file per tune")
	lyCmd.Flags().StringVar(&lyFlags.outdir, "out", "", "output directory")
	rootCmd.AddCommand(lyCmd)
}

func writeTunes(log *logrus.Entry, book *abc.TuneBook, outdir string) error {
	if err := os.MkdirAll(outdir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", outdir)
	}

	paths := []string{}
	for _, tune := range book.Tunes {
		tlog := log.WithField("tune", tune.ID)
		if tune.ID == "" {
			tlog.Warn("skipping tune without reference number")
			continue
		}

		out := &bytes.Buffer{}
		c := lily.Convert{Output: out}
		c.Tune(tune)
		logWarnings(tlog, c.Warnings)

		p := filepath.Join(outdir, tune.ID+".ly")
		if err := os.WriteFile(p, out.Bytes(), 0o644); err != nil {
			tlog.WithError(err).Error("failed to write")
			continue
		}
		paths = append(paths, tune.ID+".ly")
	}

	index := &bytes.Buffer{}
	for _, p := range paths {
		fmt.Fprintf(index, "\\include %q\n", p)
	}
	err := os.WriteFile(filepath.Join(outdir, "_index.ly"), index.Bytes(), 0o644)
	return errors.Wrap(err, "failed to write index")
}
