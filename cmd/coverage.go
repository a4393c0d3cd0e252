package cmd

import (
	"fmt"

	"github.com/kevin-valerio/phink/coverage"
	"github.com/spf13/cobra"
)

// coverageCmd generates a human-readable coverage report for the contract's
// bbolt-backed coverage store, the Go-native equivalent of the reference's
// `cover::report::CoverageTracker`.
var coverageCmd = &cobra.Command{
	Use:           "coverage [contract_path]",
	Short:         "Generate a coverage report for your smart-contract",
	Args:          cobra.ExactArgs(1),
	RunE:          cmdRunCoverage,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	coverageCmd.Flags().String("config", "", "path to the phink.toml configuration file")
	rootCmd.AddCommand(coverageCmd)
}

func cmdRunCoverage(cmd *cobra.Command, args []string) error {
	contractPath := args[0]

	cfg, err := loadConfigForContract(cmd, contractPath)
	if err != nil {
		cmdLogger.Error("Failed to run the coverage command", err)
		return err
	}

	report, err := coverage.GenerateReport(cfg.Fuzz.CoverageDBPath)
	if err != nil {
		cmdLogger.Error("Failed to generate the coverage report", err)
		return err
	}

	fmt.Print(report)
	return nil
}
