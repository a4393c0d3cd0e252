package decoder

import (
	"bytes"
	"math/big"

	"github.com/kevin-valerio/phink/metadata"
)

// SelectorInfo is the decoder's view of one fuzzable selector: whether
// metadata declares it payable, consulted to decide whether a dedicated
// value slice is carved out of the fragment.
type SelectorInfo struct {
	Payable bool
}

// SelectorSet maps fuzzable selectors (invariants excluded, per invariant
// (ii)) to their metadata-declared payable flag.
type SelectorSet map[[4]byte]SelectorInfo

// valueSliceWidth is the number of trailing fragment bytes reserved for the
// transferred-value integer on a payable message.
const valueSliceWidth = 8

// Decode translates raw into a OneInput per the framing contract: byte 0 is
// the origin; inputs shorter than 4 bytes decode to an empty OneInput; the
// remainder is split on Delimiter; each fragment must start with a selector
// present in selectors, else it is dropped; failing transcoder validation
// drops the fragment too; the result is capped at MaxMessagesPerExec.
func Decode(raw []byte, selectors SelectorSet, transcoder metadata.Transcoder) OneInput {
	if len(raw) < 4 {
		return OneInput{}
	}

	origin := raw[0]
	messages := make([]Message, 0, MaxMessagesPerExec)

	for _, fragment := range bytes.Split(raw[1:], []byte(Delimiter)) {
		if len(messages) >= MaxMessagesPerExec {
			break
		}
		if len(fragment) < 4 {
			continue
		}

		var selector [4]byte
		copy(selector[:], fragment[:4])

		info, known := selectors[selector]
		if !known {
			continue
		}

		rest := fragment[4:]
		value := big.NewInt(0)
		args := rest

		if info.Payable && len(rest) >= valueSliceWidth {
			valueBytes := rest[len(rest)-valueSliceWidth:]
			value = new(big.Int).SetBytes(valueBytes)
			args = rest[:len(rest)-valueSliceWidth]
		}

		if _, err := transcoder.Decode(metadata.Selector(selector), args); err != nil {
			continue
		}

		messages = append(messages, Message{
			selector: selector,
			args:     args,
			caller:   origin,
			value:    value,
			payable:  info.Payable,
		})
	}

	if len(messages) == 0 {
		return OneInput{}
	}

	return OneInput{Origin: origin, Messages: messages}
}
