package models

import (
	"encoding/json"
	"fmt"

	"order-system/internal/status"
)

// Messages travel as a single-key JSON object keyed by the subject, e.g.
// {"tickets.created": {"id":1,"title":"Concert","price":20,"version":0}}.
// The key doubles as a type tag: a payload whose key does not match the
// subject it arrived on is malformed, not retryable.

func Encode(subj Subject, entity any) ([]byte, error) {
	data, err := json.Marshal(map[Subject]any{subj: entity})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", subj, err)
	}
	return data, nil
}

func decodeEnvelope(subj Subject, data []byte, entity any) error {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: %s", status.ErrMalformedMessage, err)
	}
	raw, ok := env[string(subj)]
	if !ok || len(env) != 1 {
		return fmt.Errorf("%w: envelope key does not match subject %s", status.ErrMalformedMessage, subj)
	}
	if err := json.Unmarshal(raw, entity); err != nil {
		return fmt.Errorf("%w: %s", status.ErrMalformedMessage, err)
	}
	return nil
}

func DecodeTicket(subj Subject, data []byte) (*Ticket, error) {
	var t Ticket
	if err := decodeEnvelope(subj, data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func DecodeOrder(subj Subject, data []byte) (*Order, error) {
	var o Order
	if err := decodeEnvelope(subj, data, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func DecodePayment(subj Subject, data []byte) (*Payment, error) {
	var p Payment
	if err := decodeEnvelope(subj, data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
