package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/folio/internal/api"
	"github.com/jackzampolin/folio/version"
)

var (
	cfgFile      string
	outputFormat string
	debug        bool
)

var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "Follow remote OCR jobs page by page",
	Long: `Folio uploads a PDF to an OCR service and follows the job's
progress stream until it resolves, printing the aggregated document text.

The stream reports per-page status (pending, processing, success, error)
as pages complete, in whatever order the worker finishes them; folio keeps
the page table consistent and assembles the text in page order.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.folio/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().BoolVar(
		&debug, "debug", false, "enable debug logging",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}

// newLogger builds the CLI logger. Logs go to stderr so stdout stays
// clean for document output.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}
