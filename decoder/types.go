// Package decoder translates a raw fuzzer-provided byte string into an
// ordered sequence of contract call messages.
package decoder

import "math/big"

// MaxMessagesPerExec bounds the number of messages executed per fuzzing
// iteration.
const MaxMessagesPerExec = 4

// Delimiter is the 8-byte ASCII framing sequence separating message
// fragments in both the raw fuzzer input and the selector dictionary file.
const Delimiter = "********"

// Message is a single, immutable contract invocation record.
type Message struct {
	selector [4]byte
	args     []byte
	caller   uint8
	value    *big.Int
	payable  bool
}

// Selector returns the message's 4-byte entry-point tag.
func (m Message) Selector() [4]byte { return m.selector }

// Args returns the scale-encoded argument bytes.
func (m Message) Args() []byte { return m.args }

// Caller returns the origin byte the message was decoded under.
func (m Message) Caller() uint8 { return m.caller }

// Value returns the transferred value, or zero if the message is not payable.
func (m Message) Value() *big.Int { return m.value }

// Payable reports whether metadata declared this message as accepting value.
func (m Message) Payable() bool { return m.payable }

// Payload concatenates the selector and argument bytes, the wire format a
// chain.Bridge call expects.
func (m Message) Payload() []byte {
	payload := make([]byte, 0, 4+len(m.args))
	payload = append(payload, m.selector[:]...)
	payload = append(payload, m.args...)
	return payload
}

// OneInput is one fuzzing iteration's decoded, bounded message sequence,
// sharing a single origin.
type OneInput struct {
	Origin   uint8
	Messages []Message
}

// Empty reports whether the raw input failed to parse any message.
func (in OneInput) Empty() bool {
	return len(in.Messages) == 0
}
