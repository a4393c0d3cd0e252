package coverage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// GenerateReport reads the bbolt coverage store at path and renders a
// human-readable summary: total lines covered and the sorted line list.
func GenerateReport(path string) (string, error) {
	tracker, err := Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "unable to open coverage store at %q for reporting", path)
	}
	defer tracker.Close()

	lines := tracker.Lines()
	sort.Ints(lines)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Coverage report for %s\n", path)
	fmt.Fprintf(&sb, "  Lines covered: %d\n", len(lines))
	if len(lines) > 0 {
		rendered := make([]string, len(lines))
		for i, n := range lines {
			rendered[i] = fmt.Sprintf("%d", n)
		}
		fmt.Fprintf(&sb, "  %s\n", strings.Join(rendered, ", "))
	}

	return sb.String(), nil
}
