package instrumenter

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/kevin-valerio/phink/utils"
	"github.com/pkg/errors"
)

// Clean removes every instrumented fork directory under the system temp
// root. Unless skipYes is set it asks for confirmation on stdin first,
// mirroring the reference's interactive "really remove these directories?
// (yes/no)" prompt; any answer other than "yes", including end of input,
// aborts without removing anything.
func Clean(skipYes bool) ([]string, error) {
	root := os.TempDir()
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to list temp root %q", root)
	}

	var matches []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), TempRootPrefix) {
			matches = append(matches, filepath.Join(root, e.Name()))
		}
	}

	if len(matches) == 0 {
		return nil, nil
	}

	if !skipYes && !confirm(matches) {
		instrumenterLogger.Info("clean aborted by user")
		return nil, nil
	}

	for _, dir := range matches {
		if err := utils.DeleteDirectory(dir); err != nil {
			return nil, errors.Wrapf(err, "unable to delete %q", dir)
		}
	}

	instrumenterLogger.Info("removed ", len(matches), " instrumented fork(s)")
	return matches, nil
}

func confirm(dirs []string) bool {
	instrumenterLogger.Info("about to remove the following instrumented forks:")
	for _, d := range dirs {
		instrumenterLogger.Info("  ", d)
	}
	instrumenterLogger.Info("really remove these directories? (yes/no)")

	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(strings.ToLower(answer)) == "yes"
}
