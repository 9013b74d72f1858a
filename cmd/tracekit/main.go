// Package main provides the tracekit command line interface.
//
// tracekit loads isotope tracer peak annotation files (Accucor, Isocorr)
// into the database, reconciling sample run metadata from mzXML files, the
// LCMS metadata file, and command line defaults.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tracekit-io/tracekit/internal/config"
)

const version = "1.0.0-dev"

var logger *slog.Logger

var rootCmd = &cobra.Command{
	Use:   "tracekit",
	Short: "tracekit - isotope tracer peak annotation loader",
	Long: `tracekit loads mass spectrometry peak annotation files produced by
isotope correction tools (Accucor, Isocorr) into the tracekit database.

Sample run metadata is reconciled from up to three sources, in precedence
order: mzXML scan attributes, the LCMS metadata file, and command line
defaults. Validation problems are buffered and reported together, so one
run surfaces every problem a file has.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelWarn),
		}))
		slog.SetDefault(logger)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the tracekit version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tracekit v%s\n", version)
	},
}

func main() {
	rootCmd.AddCommand(versionCmd, loadCmd, parseLabelCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
