package cmd

import (
	"os"
	"os/exec"

	"github.com/kevin-valerio/phink/cmd/exitcodes"
	"github.com/kevin-valerio/phink/config"
	"github.com/spf13/cobra"
)

// runCmd runs every corpus seed once, without mutation. Go's fuzz driver
// does exactly this when invoked as a plain test (omitting -fuzz): each
// f.Add seed and each file under testdata/fuzz/ runs as a regular subtest.
var runCmd = &cobra.Command{
	Use:           "run [contract_path]",
	Short:         "Run all the seeds",
	Args:          cobra.ExactArgs(1),
	RunE:          cmdRunRun,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	runCmd.Flags().String("config", "", "path to the phink.toml configuration file")
	rootCmd.AddCommand(runCmd)
}

func cmdRunRun(cmd *cobra.Command, args []string) error {
	contractPath := args[0]

	cfg, err := loadConfigForContract(cmd, contractPath)
	if err != nil {
		cmdLogger.Error("Failed to run the run command", err)
		return err
	}

	run := config.FuzzRunConfig{Config: cfg, ContractPath: contractPath}
	encoded, err := run.Encode()
	if err != nil {
		cmdLogger.Error("Failed to run the run command", err)
		return err
	}

	child := exec.Command("go", "test", "-run=FuzzContract", "-v", "./fuzzer/...")
	child.Env = append(os.Environ(), config.EnvConfigVar+"="+encoded)
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr

	if err := child.Run(); err != nil {
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeFuzzerError)
	}
	return nil
}
