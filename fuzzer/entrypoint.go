package fuzzer

import (
	"context"
	"testing"
)

// FuzzEntrypoint wires Engine.Harness to Go's native coverage-guided fuzzing
// driver: it seeds f with one input per fuzzable selector via f.Add, then
// runs Harness inside f.Fuzz. A non-nil Finding
// fails the closure so `go test -fuzz` records and minimizes a reproducer
// under testdata/fuzz/, the Go-native analogue of the reference's AFL crash
// directory.
func FuzzEntrypoint(f *testing.F, e *Engine) {
	for selector := range e.selectors {
		seed := make([]byte, 0, 5)
		seed = append(seed, 0x00) // origin byte
		seed = append(seed, selector[:]...)
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		finding := e.Harness(context.Background(), data)
		if finding != nil {
			t.Fatalf("%s", finding.String())
		}
	})
}
