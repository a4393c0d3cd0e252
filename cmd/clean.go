package cmd

import (
	"github.com/kevin-valerio/phink/instrumenter"
	"github.com/spf13/cobra"
)

// cleanCmd removes every instrumented fork directory under the system temp
// root.
var cleanCmd = &cobra.Command{
	Use:           "clean",
	Short:         "Remove all the temporary files under the instrumented-fork temp root",
	Args:          cobra.NoArgs,
	RunE:          cmdRunClean,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cleanCmd.Flags().BoolP("yes", "y", false, "skip the interactive confirmation prompt")
	rootCmd.AddCommand(cleanCmd)
}

func cmdRunClean(cmd *cobra.Command, args []string) error {
	skipYes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return err
	}

	removed, err := instrumenter.Clean(skipYes)
	if err != nil {
		cmdLogger.Error("Failed to run the clean command", err)
		return err
	}

	if len(removed) == 0 {
		cmdLogger.Info("No instrumented fork found, nothing to clean")
	}
	return nil
}
