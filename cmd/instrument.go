package cmd

import (
	"github.com/kevin-valerio/phink/instrumenter"
	"github.com/spf13/cobra"
)

// instrumentCmd instruments an ink! contract's source tree with coverage
// beacons and compiles it with the phink feature flag enabled.
var instrumentCmd = &cobra.Command{
	Use:           "instrument [contract_path]",
	Short:         "Instrument the ink! contract, and compile it with Phink features",
	Args:          cobra.ExactArgs(1),
	RunE:          cmdRunInstrument,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(instrumentCmd)
}

func cmdRunInstrument(cmd *cobra.Command, args []string) error {
	contractPath := args[0]

	fork, err := instrumenter.Fork(contractPath)
	if err != nil {
		cmdLogger.Error("Failed to fork the contract source", err)
		return err
	}

	if err := instrumenter.Instrument(fork); err != nil {
		cmdLogger.Error("Failed to instrument the contract", err)
		return err
	}

	if err := instrumenter.Build(fork); err != nil {
		cmdLogger.Error("Failed to build the instrumented contract", err)
		return err
	}

	cmdLogger.Info("Contract ", contractPath, " has been instrumented and compiled at ", fork)
	return nil
}
