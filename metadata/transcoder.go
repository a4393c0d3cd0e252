package metadata

import (
	"fmt"

	"github.com/pkg/errors"
)

// Transcoder decodes a selector and its argument bytes into a human-readable
// call description, and rejects argument blobs the decoder should drop.
type Transcoder interface {
	Decode(selector Selector, args []byte) (string, error)
}

// reader is the Reader-backed Transcoder used throughout the fuzzer. It is
// kept as a thin wrapper (rather than exporting Reader as the Transcoder
// directly) so bug traces and the decoder depend on the narrow interface.
type reader struct {
	r *Reader
}

// NewTranscoder wraps a loaded Reader as a Transcoder.
func NewTranscoder(r *Reader) Transcoder {
	return &reader{r: r}
}

// Decode renders "label(arg-bytes-hex)" for the message owning selector, or
// an error if the selector is unknown or argument bytes are supplied to a
// message that declares no arguments. Arguments are not SCALE-decoded: for a
// message that declares arguments, any blob length is accepted.
func (t *reader) Decode(selector Selector, args []byte) (string, error) {
	for _, candidates := range [][]MessageSpec{t.r.messages, t.r.constructors} {
		for _, m := range candidates {
			sel, err := parseSelector(m.Selector)
			if err != nil || sel != selector {
				continue
			}
			if len(m.Args) == 0 && len(args) != 0 {
				return "", errors.Errorf("message %q takes no arguments but %d bytes were supplied", m.Label, len(args))
			}
			return fmt.Sprintf("%s(%x)", m.Label, args), nil
		}
	}
	return "", errors.Errorf("unknown selector %s", selector)
}
