package cmd

import (
	"github.com/kevin-valerio/phink/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"io"
)

const version = "0.1.1"

// rootCmd represents the root CLI command object which all other commands stem from.
var rootCmd = &cobra.Command{
	Use:     "phink",
	Version: version,
	Short:   "A property-based and coverage-guided fuzzer for ink! smart contracts",
	Long:    "phink is a property-based and coverage-guided fuzzer for ink! smart contracts",
}

// cmdLogger is the logger that will be used for the cmd package
var cmdLogger = logging.NewLogger(zerolog.InfoLevel, true, make([]io.Writer, 0)...)

// Execute provides an exportable function to invoke the CLI.
// Returns an error if one was encountered.
func Execute() error {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	return rootCmd.Execute()
}

// PrintError logs a top-level error through the cmd package's logger, for
// use by main after Execute returns a non-nil, non-exit-code-zero error.
func PrintError(err error) {
	cmdLogger.Error("", err)
}
