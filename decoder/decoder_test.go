package decoder

import (
	"testing"

	"github.com/kevin-valerio/phink/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTranscoder accepts every selector/args pair; used to isolate the
// framing/selector-matching contract under test from metadata decoding.
type fakeTranscoder struct{}

func (fakeTranscoder) Decode(metadata.Selector, []byte) (string, error) {
	return "", nil
}

// rejectingTranscoder always fails decode, used to verify fragments are
// dropped on transcoder failure.
type rejectingTranscoder struct{}

func (rejectingTranscoder) Decode(metadata.Selector, []byte) (string, error) {
	return "", assertErr
}

var assertErr = errDecodeFailed{}

type errDecodeFailed struct{}

func (errDecodeFailed) Error() string { return "decode failed" }

var registerSelector = [4]byte{0x22, 0x9b, 0x55, 0x3f}
var transferSelector = [4]byte{0xc4, 0xd2, 0x52, 0xf8}

func sampleSelectors() SelectorSet {
	return SelectorSet{
		registerSelector: {Payable: false},
		transferSelector: {Payable: true},
	}
}

func TestDecodeShortInputIsEmpty(t *testing.T) {
	for _, raw := range [][]byte{nil, {}, {0x00}, {0x00, 0x01}, {0x00, 0x01, 0x02}} {
		in := Decode(raw, sampleSelectors(), fakeTranscoder{})
		assert.True(t, in.Empty(), "input %v should decode to empty", raw)
	}
}

func TestDecodeTwoByteInputScenario(t *testing.T) {
	in := Decode([]byte{0x00, 0x01}, sampleSelectors(), fakeTranscoder{})
	assert.True(t, in.Empty())
}

func TestDecodeOnlyFuzzableSelectorsSurvive(t *testing.T) {
	raw := append([]byte{0x01}, registerSelector[:]...)
	raw = append(raw, []byte(Delimiter)...)
	raw = append(raw, 0xAA, 0xBB, 0xCC, 0xDD) // unknown selector, dropped

	in := Decode(raw, sampleSelectors(), fakeTranscoder{})
	require.False(t, in.Empty())
	for _, m := range in.Messages {
		_, known := sampleSelectors()[m.Selector()]
		assert.True(t, known)
	}
}

func TestDecodeCapsAtMaxMessagesPerExec(t *testing.T) {
	raw := []byte{0x07}
	for i := 0; i < MaxMessagesPerExec+3; i++ {
		if i > 0 {
			raw = append(raw, []byte(Delimiter)...)
		}
		raw = append(raw, registerSelector[:]...)
	}

	in := Decode(raw, sampleSelectors(), fakeTranscoder{})
	assert.LessOrEqual(t, len(in.Messages), MaxMessagesPerExec)
}

func TestDecodeIsDeterministic(t *testing.T) {
	raw := append([]byte{0x02}, registerSelector[:]...)
	raw = append(raw, []byte(Delimiter)...)
	raw = append(raw, transferSelector[:]...)
	raw = append(raw, make([]byte, 8)...)

	first := Decode(raw, sampleSelectors(), fakeTranscoder{})
	second := Decode(raw, sampleSelectors(), fakeTranscoder{})
	assert.Equal(t, first, second)
}

func TestDecodeDropsFragmentOnTranscoderFailure(t *testing.T) {
	raw := append([]byte{0x01}, registerSelector[:]...)
	in := Decode(raw, sampleSelectors(), rejectingTranscoder{})
	assert.True(t, in.Empty())
}

func TestDecodePayableCarvesValueSlice(t *testing.T) {
	raw := append([]byte{0x01}, transferSelector[:]...)
	value := make([]byte, 8)
	value[7] = 42
	raw = append(raw, value...)

	in := Decode(raw, sampleSelectors(), fakeTranscoder{})
	require.False(t, in.Empty())
	require.Len(t, in.Messages, 1)
	assert.Equal(t, int64(42), in.Messages[0].Value().Int64())
	assert.True(t, in.Messages[0].Payable())
}
