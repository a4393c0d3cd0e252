package instrumenter

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSource = `fn register(hash: Hash) {
    let x = 1;
    if x == 1 {
        set_address(hash);
    }
}
`

func TestRewriteInsertsBeaconBeforeEveryStatement(t *testing.T) {
	out := rewrite(sampleSource)

	beaconCalls := regexp.MustCompile(`ink::env::debug_println!\("COV=(\d+)"\);`).FindAllStringSubmatch(out, -1)
	require.NotEmpty(t, beaconCalls)

	// Every beacon's line literal must name an actual line of sampleSource
	// that is not itself blank or a closing brace.
	sourceLines := splitLines(sampleSource)
	for _, m := range beaconCalls {
		n, err := strconv.Atoi(m[1])
		require.NoError(t, err)
		require.True(t, n >= 1 && n <= len(sourceLines), "beacon line %d out of range", n)
	}
}

func TestRewriteHandlesNestedBlocks(t *testing.T) {
	out := rewrite(sampleSource)
	beaconCount := len(regexp.MustCompile(`ink::env::debug_println!`).FindAllString(out, -1))
	// One beacon before `let x = 1;`, one before the `if` statement, one
	// before `set_address(hash);` inside the nested block.
	assert.Equal(t, 3, beaconCount)
}

func TestRewriteSkipsStringAndCommentContent(t *testing.T) {
	src := "fn f() {\n    let s = \"contains; a fake; statement\"; // and; a comment\n}\n"
	out := rewrite(src)
	assert.Contains(t, out, `"contains; a fake; statement"`)
	assert.Contains(t, out, "// and; a comment")
}

func TestAlreadyInstrumentedDetectsBeaconIdempotently(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, MainSourceFile)
	require.NoError(t, os.WriteFile(path, []byte(sampleSource), 0o644))

	already, err := AlreadyInstrumented(dir)
	require.NoError(t, err)
	assert.False(t, already)

	require.NoError(t, Instrument(dir))

	already, err = AlreadyInstrumented(dir)
	require.NoError(t, err)
	assert.True(t, already)

	err = Instrument(dir)
	assert.Error(t, err, "instrumenting an already-instrumented source must be refused")
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, c := range s {
		if c == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}
