package instrumenter

import (
	"os/exec"

	"github.com/pkg/errors"
)

// Build shells out to the external contract toolchain with the feature flag
// that enables the invariant messages' visibility, mirroring the reference.
// Failure here is a setup error: it must never be reached from the hot
// fuzzing path.
func Build(path string) error {
	cmd := exec.Command("cargo", "contract", "build", "--features=phink")
	cmd.Dir = path

	output, err := cmd.CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "contract build failed: %s", string(output))
	}

	instrumenterLogger.Info("built instrumented contract at ", path)
	return nil
}
