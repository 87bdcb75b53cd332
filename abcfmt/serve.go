package main

import (
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the formatter over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup(cmd)
		if err != nil {
			return err
		}

		server := &http.Server{
			Addr:              cfg.Addr,
			Handler:           NewServer(cfg, logrus.StandardLogger()).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		logrus.WithField("addr", cfg.Addr).Info("listening")
		return errors.Wrap(server.ListenAndServe(), "server failed")
	},
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "listen address")
	serveCmd.Flags().Bool("normalize", false, "collapse whitespace by default")
	serveCmd.Flags().Bool("align", true, "align multi-voice systems")
	rootCmd.AddCommand(serveCmd)
}
