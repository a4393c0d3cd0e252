// Package metadata parses ink!-style contract metadata JSON and exposes the
// operations the rest of the fuzzer needs: selector enumeration, invariant
// discovery, and a default constructor payload.
package metadata

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Selector is the 4-byte tag identifying a contract entry point.
type Selector [4]byte

// String renders the selector as a 0x-prefixed hex string.
func (s Selector) String() string {
	return "0x" + hex.EncodeToString(s[:])
}

// InvariantPrefix is the message-label prefix that marks an invariant
// (fuzzer-only, never-fuzzed) message.
const InvariantPrefix = "phink_"

// ArgSpec describes one declared argument of a message or constructor.
type ArgSpec struct {
	Label string `json:"label"`
}

// MessageSpec mirrors one entry of `spec.messages[]` or `spec.constructors[]`.
type MessageSpec struct {
	Label    string    `json:"label"`
	Selector string    `json:"selector"`
	Args     []ArgSpec `json:"args"`
	Payable  bool      `json:"payable"`
	Mutates  bool      `json:"mutates"`
}

type rawSpec struct {
	Spec struct {
		Messages     []MessageSpec `json:"messages"`
		Constructors []MessageSpec `json:"constructors"`
	} `json:"spec"`
}

// Reader loads and exposes a contract's metadata JSON.
type Reader struct {
	// Path is the filesystem path the metadata was loaded from.
	Path string
	// Raw is the metadata file's JSON text, copied into chain.Bridge's
	// MetadataJSON at genesis.
	Raw string

	messages     []MessageSpec
	constructors []MessageSpec
}

// Load reads and parses the contract metadata JSON at path.
func Load(path string) (*Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read contract metadata at %q", path)
	}

	var parsed rawSpec
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, errors.Wrapf(err, "unable to parse contract metadata at %q", path)
	}

	return &Reader{
		Path:         path,
		Raw:          string(data),
		messages:     parsed.Spec.Messages,
		constructors: parsed.Spec.Constructors,
	}, nil
}

// ExtractAll returns every message selector declared in the spec.
func (r *Reader) ExtractAll() []Selector {
	selectors := make([]Selector, 0, len(r.messages))
	for _, m := range r.messages {
		sel, err := parseSelector(m.Selector)
		if err != nil {
			continue
		}
		selectors = append(selectors, sel)
	}
	return selectors
}

// ExtractInvariants returns the subset of selectors whose message label
// carries InvariantPrefix. Fails (setup error) if none are declared.
func (r *Reader) ExtractInvariants() ([]Selector, error) {
	invariants := make([]Selector, 0)
	for _, m := range r.messages {
		if !strings.HasPrefix(m.Label, InvariantPrefix) {
			continue
		}
		sel, err := parseSelector(m.Selector)
		if err != nil {
			return nil, errors.Wrapf(err, "invariant %q declares a malformed selector", m.Label)
		}
		invariants = append(invariants, sel)
	}

	if len(invariants) == 0 {
		return nil, errors.Errorf("no invariant messages found (expected a %q-prefixed message)", InvariantPrefix)
	}

	return invariants, nil
}

// Fuzzable returns ExtractAll() minus ExtractInvariants(), i.e. the set of
// selectors that may legally appear in the fuzzed corpus.
func (r *Reader) Fuzzable() ([]Selector, error) {
	invariants, err := r.ExtractInvariants()
	if err != nil {
		return nil, err
	}

	invariantSet := make(map[Selector]struct{}, len(invariants))
	for _, sel := range invariants {
		invariantSet[sel] = struct{}{}
	}

	fuzzable := make([]Selector, 0, len(r.messages))
	for _, sel := range r.ExtractAll() {
		if _, isInvariant := invariantSet[sel]; !isInvariant {
			fuzzable = append(fuzzable, sel)
		}
	}

	return fuzzable, nil
}

// GetConstructorPayload returns the scale-encoded payload for the default
// constructor: the one named "new" if present, else the first declared
// constructor, with its declared arguments filled with deterministic
// all-zero bytes. ink! metadata's `args` entries carry a type registry
// reference rather than a byte width, and no SCALE type table is parsed
// here, so every argument is filled with a fixed 32-byte run of zeroes
// regardless of its declared type.
func (r *Reader) GetConstructorPayload() ([]byte, error) {
	if len(r.constructors) == 0 {
		return nil, errors.New("contract metadata declares no constructors")
	}

	chosen := r.constructors[0]
	for _, c := range r.constructors {
		if c.Label == "new" {
			chosen = c
			break
		}
	}

	sel, err := parseSelector(chosen.Selector)
	if err != nil {
		return nil, errors.Wrapf(err, "constructor %q declares a malformed selector", chosen.Label)
	}

	const defaultArgByteWidth = 32

	payload := make([]byte, 4, 4+len(chosen.Args)*defaultArgByteWidth)
	copy(payload, sel[:])
	for range chosen.Args {
		payload = append(payload, make([]byte, defaultArgByteWidth)...)
	}

	return payload, nil
}

// MessageByLabel looks up a declared message by its metadata label. The bug
// manager does not use it; it names invariants through Transcoder.Decode.
func (r *Reader) MessageByLabel(label string) (MessageSpec, bool) {
	for _, m := range r.messages {
		if m.Label == label {
			return m, true
		}
	}
	return MessageSpec{}, false
}

// MessageBySelector looks up a declared message by its selector, used by the
// fuzz orchestrator to determine whether a fuzzable selector is payable.
func (r *Reader) MessageBySelector(sel Selector) (MessageSpec, bool) {
	for _, m := range r.messages {
		parsed, err := parseSelector(m.Selector)
		if err != nil {
			continue
		}
		if parsed == sel {
			return m, true
		}
	}
	return MessageSpec{}, false
}

func parseSelector(hexStr string) (Selector, error) {
	var sel Selector
	trimmed := strings.TrimPrefix(hexStr, "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return sel, errors.Wrapf(err, "invalid selector hex %q", hexStr)
	}
	if len(decoded) != 4 {
		return sel, errors.Errorf("selector %q is not 4 bytes", hexStr)
	}
	copy(sel[:], decoded)
	return sel, nil
}
