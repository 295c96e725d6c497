package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "branchtrace",
	Short: "capture per-instruction branch traces for predictor research",
	Long: `branchtrace records every control-flow instruction a target program
executes, pairs it with its runtime outcome and appends it as a fixed-width
binary record to one trace file per thread. The traces feed offline
branch-predictor models.`,
	SilenceUsage: true,
}

var verbose bool

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable debug logging")
}

// newLogger builds the process logger honoring --verbose.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}
