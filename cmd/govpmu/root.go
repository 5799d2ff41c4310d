// Package main is the govpmu CLI entrypoint: a root command plus
// `run` (boots a Stream against a config file and a synthetic
// reference feed, for local testing of the transport), `dump`
// (best-effort inspection of a running back-end's shared-memory
// region), and `version`, structured like the teacher's
// cmd/root.go + main.go split collapsed into one binary package.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "govpmu",
	Short: "Trace-driven VPMU transport and phase-detector harness",
}

// Execute runs the root command, exiting non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (debug, info, warn, error)")
	cobra.OnInitialize(func() {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	})

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(versionCmd)
}
