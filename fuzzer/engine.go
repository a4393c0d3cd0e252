// Package fuzzer is the orchestrator: it performs the once-per-process
// initialization (corpus seeds, selector dictionary, transcoder), then glues
// the decoder, chain, coverage, and bugs packages into the single-input
// harness an external coverage-guided driver repeatedly calls.
package fuzzer

import (
	"context"
	"math/big"
	"os"

	"github.com/kevin-valerio/phink/bugs"
	"github.com/kevin-valerio/phink/chain"
	"github.com/kevin-valerio/phink/config"
	"github.com/kevin-valerio/phink/coverage"
	"github.com/kevin-valerio/phink/decoder"
	"github.com/kevin-valerio/phink/logging"
	"github.com/kevin-valerio/phink/metadata"
	"github.com/pkg/errors"
)

var engineLogger = logging.GlobalLogger.NewSubLogger("module", "fuzzer")

// slotDurationMillis is the fixed block slot duration the reference chain
// configuration uses.
const slotDurationMillis = 6_000

// InitialTimestampMillis fixes every fork's block timestamp at block 1 with
// a zero lapse. Fuzzing the block number was explicitly deferred in the
// reference; this harness does not model block-timestamp progression at
// all, so the constant is recorded here for a future extension rather than
// threaded through chain.Bridge.Call.
const InitialTimestampMillis = 1 * slotDurationMillis

// Engine holds everything a fuzzing iteration needs: the genesis bridge, the
// selector partition, the transcoder, the bug manager, and the run-wide
// coverage tracker. It is built once per process by NewEngine.
type Engine struct {
	Config     config.FuzzConfig
	Reader     *metadata.Reader
	Transcoder metadata.Transcoder

	bridge     *chain.Bridge
	selectors  decoder.SelectorSet
	invariants []metadata.Selector
	manager    *bugs.Manager
	tracker    *coverage.Tracker
}

// NewEngine performs the lazy, once-per-process initialization: loads the
// transcoder, partitions selectors, writes the corpus and dictionary,
// builds the genesis bridge, and wires the bug manager.
func NewEngine(ctx context.Context, cfg config.FuzzConfig) (*Engine, error) {
	reader, err := metadata.Load(cfg.Contract.MetadataPath)
	if err != nil {
		return nil, err
	}
	transcoder := metadata.NewTranscoder(reader)

	invariants, err := reader.ExtractInvariants()
	if err != nil {
		return nil, err
	}
	fuzzable, err := reader.Fuzzable()
	if err != nil {
		return nil, err
	}

	if err := BuildCorpusAndDict(fuzzable, cfg.Fuzz.CorpusDir, cfg.Fuzz.DictionaryPath); err != nil {
		return nil, err
	}

	wasm, err := os.ReadFile(cfg.Contract.WASMPath)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read contract WASM at %q", cfg.Contract.WASMPath)
	}

	bridge, err := chain.Genesis(ctx, wasm, reader, cfg.Contract)
	if err != nil {
		return nil, err
	}

	tracker, err := coverage.Open(cfg.Fuzz.CoverageDBPath)
	if err != nil {
		bridge.Close(ctx)
		return nil, err
	}

	selectors := make(decoder.SelectorSet, len(fuzzable))
	for _, sel := range fuzzable {
		spec, _ := reader.MessageBySelector(sel)
		var key [4]byte = sel
		selectors[key] = decoder.SelectorInfo{Payable: spec.Payable}
	}

	manager := bugs.NewManager(bridge, invariants, transcoder, cfg.Contract)

	engineLogger.Info("fuzz engine initialized: ", len(fuzzable), " fuzzable selector(s), ", len(invariants), " invariant(s)")

	return &Engine{
		Config:     cfg,
		Reader:     reader,
		Transcoder: transcoder,
		bridge:     bridge,
		selectors:  selectors,
		invariants: invariants,
		manager:    manager,
		tracker:    tracker,
	}, nil
}

// Close releases the engine's underlying runtime and coverage store.
func (e *Engine) Close(ctx context.Context) error {
	if err := e.tracker.Close(); err != nil {
		return err
	}
	return e.bridge.Close(ctx)
}

// Harness is the single-input entrypoint the external coverage-guided
// driver repeatedly calls: it decodes data, forks the genesis bridge, runs
// the call loop, checks for a trap or failed invariant, and merges
// coverage. It returns nil when the sequence produced no finding.
func (e *Engine) Harness(ctx context.Context, data []byte) *bugs.Finding {
	input := decoder.Decode(data, e.selectors, e.Transcoder)
	if input.Empty() {
		return nil
	}
	if containsInvariant(input, e.invariants) {
		// Invariants must never appear in the fuzzed stream: allowing them
		// would let the mutator trivially trip the oracle.
		return nil
	}

	clone := e.bridge.Clone()

	accumulated := make(map[int]struct{})
	for _, msg := range input.Messages {
		transferValue := msg.Value()
		if !msg.Payable() {
			transferValue = big.NewInt(0)
		}

		response := clone.Call(ctx, msg.Payload(), msg.Caller(), transferValue, e.Config.Contract)
		for line := range coverage.ExtractBeacons(response.Debug) {
			accumulated[line] = struct{}{}
		}

		if e.manager.IsTrapped(response) {
			finding := e.manager.DisplayTrap(response)
			e.mergeCoverage(accumulated)
			return finding
		}
	}

	finding, err := e.manager.CheckInvariants(ctx, clone, input.Origin)
	if err != nil {
		engineLogger.Error("unable to evaluate invariants: ", err)
	}

	e.mergeCoverage(accumulated)
	if finding != nil {
		return finding
	}

	coverage.Redirect(accumulated)
	return nil
}

func (e *Engine) mergeCoverage(lines map[int]struct{}) {
	if err := e.tracker.Merge(lines); err != nil {
		engineLogger.Error("unable to persist coverage: ", err)
	}
}

func containsInvariant(input decoder.OneInput, invariants []metadata.Selector) bool {
	for _, msg := range input.Messages {
		for _, inv := range invariants {
			var sel [4]byte = inv
			if msg.Selector() == sel {
				return true
			}
		}
	}
	return false
}
