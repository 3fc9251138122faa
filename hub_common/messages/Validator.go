package messages

// Validate checks an envelope against the protocol rules, in order:
// required fields, timestamp format, known type, mode. It reports a bare
// bool so callers can log and drop without unwinding; a failed check never
// leaves partial side effects.
func Validate(envelope *Envelope) bool {
	if envelope == nil {
		return false
	}
	if envelope.Type == "" || envelope.Id == "" || envelope.Topic == "" || envelope.Timestamp == "" {
		return false
	}
	if _, err := ParseTimestamp(envelope.Timestamp); err != nil {
		return false
	}
	switch envelope.Type {
	case TypeRegister, TypeWithdraw, TypeMessage, TypeStatus:
	default:
		return false
	}
	// mode is ignored for status envelopes
	if envelope.Type == TypeStatus {
		return true
	}
	return envelope.Mode == ModeProducer || envelope.Mode == ModeSubscriber
}
