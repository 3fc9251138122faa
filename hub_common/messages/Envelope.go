package messages

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope types
const (
	TypeRegister = "register"
	TypeWithdraw = "withdraw"
	TypeMessage  = "message"
	TypeStatus   = "status"
)

// Envelope modes
const (
	ModeProducer   = "producer"
	ModeSubscriber = "subscriber"
	ModeNone       = ""
)

// Envelope is the structured message unit exchanged between client and hub.
// Payload stays raw so the hub can fan it out without interpreting it.
type Envelope struct {
	Type      string          `json:"type"`
	Id        string          `json:"id"`
	Topic     string          `json:"topic"`
	Mode      string          `json:"mode"`
	Timestamp string          `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// StatusEntry is one element of a status reply payload.
type StatusEntry struct {
	Topic string `json:"topic"`
	Id    string `json:"id"`
}

func NewEnvelope(envelopeType string, id string, topic string, mode string, payload json.RawMessage) *Envelope {
	return &Envelope{
		Type:      envelopeType,
		Id:        id,
		Topic:     topic,
		Mode:      mode,
		Timestamp: Timestamp(),
		Payload:   payload,
	}
}

// Timestamp returns the current UTC time in ISO-8601 with a trailing Z.
func Timestamp() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000000") + "Z"
}

// ParseTimestamp accepts ISO-8601 date-times with or without a zone suffix.
func ParseTimestamp(ts string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, ts)
	if err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05", ts)
}

func (e *Envelope) Equals(o *Envelope) bool {
	return e.Type == o.Type &&
		e.Id == o.Id &&
		e.Topic == o.Topic &&
		e.Mode == o.Mode &&
		e.Timestamp == o.Timestamp &&
		(string)(e.Payload) == (string)(o.Payload)
}

func (e *Envelope) Copy() *Envelope {
	return &Envelope{e.Type, e.Id, e.Topic, e.Mode, e.Timestamp, e.Payload}
}

func (e *Envelope) String() string {
	return fmt.Sprintf("{type: \"%s\", id: \"%s\", topic: \"%s\", mode: \"%s\", timestamp: \"%s\", payload: %s}",
		e.Type, e.Id, e.Topic, e.Mode, e.Timestamp, e.Payload)
}
