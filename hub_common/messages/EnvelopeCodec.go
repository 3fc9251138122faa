package messages

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Frames travel one per line over stream transports; the codec itself is
// framing-agnostic and maps a single frame to a single envelope. A frame
// whose first byte is not the object marker is a plain-text log line, not
// an envelope.
const StructuredFrameMarker = '{'

type IEnvelopeCodec interface {
	Encode(envelope *Envelope) ([]byte, error)
	Decode(frame []byte) (*Envelope, error)
}

type JSONEnvelopeCodec struct{}

func NewJSONEnvelopeCodec() *JSONEnvelopeCodec {
	return &JSONEnvelopeCodec{}
}

func (c *JSONEnvelopeCodec) Encode(envelope *Envelope) ([]byte, error) {
	frame, err := json.Marshal(envelope)
	if err != nil {
		return nil, errors.Wrap(err, "unable to encode envelope")
	}
	return frame, nil
}

func (c *JSONEnvelopeCodec) Decode(frame []byte) (*Envelope, error) {
	if !IsStructuredFrame(frame) {
		return nil, errors.New("malformed envelope: frame is not a structured object")
	}
	envelope := &Envelope{}
	if err := json.Unmarshal(frame, envelope); err != nil {
		return nil, errors.Wrap(err, "malformed envelope")
	}
	return envelope, nil
}

func IsStructuredFrame(frame []byte) bool {
	for _, b := range frame {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case StructuredFrameMarker:
			return true
		default:
			return false
		}
	}
	return false
}
