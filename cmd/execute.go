package cmd

import (
	"context"
	"os"

	"github.com/kevin-valerio/phink/cmd/exitcodes"
	"github.com/kevin-valerio/phink/fuzzer"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// executeCmd runs a single seed through the harness in-process, without
// going through the `go test` driver — useful for reproducing a minimized
// crash input directly.
var executeCmd = &cobra.Command{
	Use:           "execute [seed] [contract_path]",
	Short:         "Execute one seed",
	Args:          cobra.ExactArgs(2),
	RunE:          cmdRunExecute,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	executeCmd.Flags().String("config", "", "path to the phink.toml configuration file")
	rootCmd.AddCommand(executeCmd)
}

func cmdRunExecute(cmd *cobra.Command, args []string) error {
	seedPath := args[0]
	contractPath := args[1]

	cfg, err := loadConfigForContract(cmd, contractPath)
	if err != nil {
		cmdLogger.Error("Failed to run the execute command", err)
		return err
	}

	data, err := os.ReadFile(seedPath)
	if err != nil {
		cmdLogger.Error("Failed to read the seed", err)
		return err
	}

	ctx := context.Background()
	engine, err := fuzzer.NewEngine(ctx, cfg)
	if err != nil {
		cmdLogger.Error("Failed to build the fuzz engine", err)
		return err
	}
	defer engine.Close(ctx)

	finding := engine.Harness(ctx, data)
	if finding != nil {
		cmdLogger.Error("Seed reproduced a finding", finding.String())
		return exitcodes.NewErrorWithExitCode(errors.New(finding.String()), exitcodes.ExitCodeTestFailed)
	}

	cmdLogger.Info("Seed ", seedPath, " executed with no finding")
	return nil
}
