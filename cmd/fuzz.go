package cmd

import (
	"os"
	"os/exec"
	"os/signal"

	"github.com/kevin-valerio/phink/cmd/exitcodes"
	"github.com/kevin-valerio/phink/config"
	"github.com/spf13/cobra"
)

// fuzzCmd starts a fuzzing campaign against an already-instrumented
// contract. Instrumentation via `phink instrument` is required beforehand.
var fuzzCmd = &cobra.Command{
	Use:           "fuzz [contract_path]",
	Short:         "Starts the fuzzing process. Instrumentation required before!",
	Args:          cobra.ExactArgs(1),
	RunE:          cmdRunFuzz,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	fuzzCmd.Flags().String("config", "", "path to the phink.toml configuration file")
	rootCmd.AddCommand(fuzzCmd)
}

// cmdRunFuzz re-executes this same binary's test harness under `go test
// -fuzz`, the Go-native analogue of the reference's ziggy_fuzz: the parent
// process never fuzzes directly, it only prepares PHINK_START_FUZZING_WITH_CONFIG
// and supervises the child.
func cmdRunFuzz(cmd *cobra.Command, args []string) error {
	contractPath := args[0]

	cfg, err := loadConfigForContract(cmd, contractPath)
	if err != nil {
		cmdLogger.Error("Failed to run the fuzz command", err)
		return err
	}

	run := config.FuzzRunConfig{Config: cfg, ContractPath: contractPath}
	encoded, err := run.Encode()
	if err != nil {
		cmdLogger.Error("Failed to run the fuzz command", err)
		return err
	}

	child := exec.Command("go", "test", "-run=^$", "-fuzz=FuzzContract", "-fuzztime=0", "./fuzzer/...")
	child.Env = append(os.Environ(), config.EnvConfigVar+"="+encoded)
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr

	if err := child.Start(); err != nil {
		cmdLogger.Error("Failed to start the fuzzing process", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeFuzzerError)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		_ = child.Process.Signal(os.Interrupt)
	}()

	if err := child.Wait(); err != nil {
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeFuzzerError)
	}
	return nil
}
