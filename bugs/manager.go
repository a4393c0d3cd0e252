// Package bugs classifies fuzzing failures: trapped contracts and violated
// invariants, rendering a trace and returning a Finding for the caller to
// turn into a process-terminating outcome.
package bugs

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/kevin-valerio/phink/chain"
	"github.com/kevin-valerio/phink/config"
	"github.com/kevin-valerio/phink/coverage"
	"github.com/kevin-valerio/phink/events"
	"github.com/kevin-valerio/phink/logging"
	"github.com/kevin-valerio/phink/metadata"
)

var managerLogger = logging.GlobalLogger.NewSubLogger("module", "bugs")

// Kind classifies a Finding as either a contract trap or a failed invariant.
type Kind int

const (
	// KindTrap is a contract-trapped finding.
	KindTrap Kind = iota
	// KindInvariant is a failed post-condition invariant finding.
	KindInvariant
)

// Finding is a classified, rendered violation. It is returned up to the
// caller (CLI `execute`/`fuzz`, or the testing.F closure) rather than
// panicking from library code — only the process boundary turns a Finding
// into a terminating outcome.
type Finding struct {
	Kind    Kind
	Message string
	Trace   string
}

// FindingReported is published whenever a Finding is produced, independent
// of how the caller ultimately terminates the process.
type FindingReported struct {
	Finding Finding
}

var findingEmitter events.EventEmitter[FindingReported]

// SubscribeFindingReported registers a callback invoked whenever a Finding
// is produced.
func SubscribeFindingReported(cb events.EventHandler[FindingReported]) {
	findingEmitter.Subscribe(cb)
}

// Manager detects trapped contracts and checks invariants after a sequence.
type Manager struct {
	Bridge             *chain.Bridge
	InvariantSelectors []metadata.Selector
	Transcoder         metadata.Transcoder
	Config             config.Contract
}

// NewManager builds a Manager bound to bridge and the invariant selectors.
func NewManager(bridge *chain.Bridge, invariants []metadata.Selector, transcoder metadata.Transcoder, cfg config.Contract) *Manager {
	return &Manager{Bridge: bridge, InvariantSelectors: invariants, Transcoder: transcoder, Config: cfg}
}

// IsTrapped reports whether response is a module dispatch error whose
// message equals the literal "ContractTrapped".
func (m *Manager) IsTrapped(response chain.FullContractResponse) bool {
	return response.Err != nil && response.Err.Error() == chain.ErrContractTrapped.Error()
}

// CheckInvariants calls each invariant selector with value 0 from origin
// against clone. The first bridge-level error (not a contract-returned
// Ok(Err(..))) constitutes the failure.
func (m *Manager) CheckInvariants(ctx context.Context, clone *chain.Bridge, origin uint8) (*Finding, error) {
	for _, selector := range m.InvariantSelectors {
		payload := append([]byte(nil), selector[:]...)
		response := clone.Call(ctx, payload, origin, big.NewInt(0), m.Config)
		if response.Err != nil {
			finding := m.displayInvariant(selector, origin, response)
			return finding, nil
		}
	}
	return nil, nil
}

// displayTrap renders the trap trace (coverage stripped) and returns the
// resulting Finding.
func (m *Manager) displayTrap(response chain.FullContractResponse) *Finding {
	trace := string(coverage.StripBeacons(response.Debug))
	managerLogger.Error(fmt.Sprintf("contract trapped: %s", trace))

	finding := &Finding{
		Kind:    KindTrap,
		Message: "ContractTrapped",
		Trace:   trace,
	}
	findingEmitter.Publish(FindingReported{Finding: *finding})
	return finding
}

// displayInvariant decodes the offending invariant selector back to a
// human-readable name via the transcoder and returns the resulting Finding.
func (m *Manager) displayInvariant(selector metadata.Selector, origin uint8, response chain.FullContractResponse) *Finding {
	name, err := m.Transcoder.Decode(selector, nil)
	if err != nil {
		name = selector.String()
	}

	trace := string(coverage.StripBeacons(response.Debug))
	message := fmt.Sprintf("invariant %s failed for origin %d: %v", name, origin, response.Err)
	managerLogger.Error(message)

	finding := &Finding{
		Kind:    KindInvariant,
		Message: message,
		Trace:   trace,
	}
	findingEmitter.Publish(FindingReported{Finding: *finding})
	return finding
}

// DisplayTrap is the exported entrypoint the harness calls once a trap is
// detected via IsTrapped.
func (m *Manager) DisplayTrap(response chain.FullContractResponse) *Finding {
	return m.displayTrap(response)
}

// String renders k as its conventional name, used in log output.
func (k Kind) String() string {
	switch k {
	case KindTrap:
		return "trap"
	case KindInvariant:
		return "invariant"
	default:
		return "unknown"
	}
}

// String renders a Finding as a single-line summary.
func (f Finding) String() string {
	return strings.TrimSpace(fmt.Sprintf("[%s] %s", f.Kind, f.Message))
}
