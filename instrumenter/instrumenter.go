// Package instrumenter forks a contract source tree and injects a coverage
// beacon statement before every original statement of the main contract
// source file.
package instrumenter

import (
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"
	"github.com/kevin-valerio/phink/logging"
	"github.com/kevin-valerio/phink/utils"
	"github.com/pkg/errors"
)

var instrumenterLogger = logging.GlobalLogger.NewSubLogger("module", "instrumenter")

// TempRootPrefix is the distinguishable prefix every instrumented fork's
// directory name carries, so the clean collaborator can find them.
const TempRootPrefix = "contractfuzz_instrumented_"

// beaconLiteralPattern detects an already-instrumented source file: the
// exact external beacon call.
var beaconLiteralPattern = regexp.MustCompile(`\bink::env::debug_println!\("COV=\d+"\)`)

// MainSourceFile is the conventional entrypoint file the rewrite pass edits.
const MainSourceFile = "lib.rs"

// Fork copies srcDir into a freshly named temporary directory under the
// system temp root, preserving structure. The directory name carries an
// unpredictable suffix (the first 5 hex characters of a uuid, replacing the
// reference's hand-rolled 5-char alphanumeric sampler) so concurrent fuzzing
// runs are unlikely to collide; an existing directory of the same name is
// reused.
func Fork(srcDir string) (string, error) {
	suffix := uuid.New().String()[:5]
	dest := filepath.Join(os.TempDir(), TempRootPrefix+suffix)

	if err := utils.MakeDirectory(dest); err != nil {
		return "", errors.Wrapf(err, "unable to create instrumentation fork directory %q", dest)
	}

	if err := utils.CopyDirectory(srcDir, dest, true); err != nil {
		return "", errors.Wrapf(err, "unable to fork %q into %q", srcDir, dest)
	}

	instrumenterLogger.Info("forked contract source into ", dest)
	return dest, nil
}

// AlreadyInstrumented reports whether the main source file under src already
// contains a coverage-beacon statement.
func AlreadyInstrumented(src string) (bool, error) {
	path := filepath.Join(src, MainSourceFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return false, errors.Wrapf(err, "unable to read %q to check instrumentation state", path)
	}
	return beaconLiteralPattern.Match(data), nil
}

// Instrument rewrites the main source file under src, injecting one beacon
// statement before every original statement. Refuses (setup error) if the
// source is already instrumented.
func Instrument(src string) error {
	already, err := AlreadyInstrumented(src)
	if err != nil {
		return err
	}
	if already {
		return errors.Errorf("%q is already instrumented, refusing to double-instrument", src)
	}

	path := filepath.Join(src, MainSourceFile)
	source, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "unable to read %q", path)
	}

	instrumented := rewrite(string(source))

	if err := os.WriteFile(path, []byte(instrumented), 0o644); err != nil {
		return errors.Wrapf(err, "unable to write instrumented source to %q", path)
	}

	instrumenterLogger.Info("instrumented ", path)
	return nil
}
