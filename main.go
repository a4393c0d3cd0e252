package main

import (
	"os"

	"github.com/kevin-valerio/phink/cmd"
	"github.com/kevin-valerio/phink/cmd/exitcodes"
)

func main() {
	// Run our root CLI command, which contains all underlying command logic and will handle parsing/invocation.
	err := cmd.Execute()

	// Translate any wrapped exit code into the process' actual exit status.
	innerErr, exitCode := exitcodes.GetInnerErrorAndExitCode(err)
	if innerErr != nil {
		cmd.PrintError(innerErr)
	}
	os.Exit(exitCode)
}
