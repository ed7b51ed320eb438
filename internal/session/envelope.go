package session

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Envelope is the JSON frame exchanged with clients in both directions.
// Each websocket text frame carries exactly one envelope.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Transport delivers an encoded frame to a single connection.
// Send is fire-and-forget and must never block the caller.
type Transport interface {
	Send(connID string, frame []byte)
}

// EncodeFrame builds the wire frame for an outbound event. A nil data value
// produces an envelope without a data field.
func EncodeFrame(event string, data any) ([]byte, error) {
	env := Envelope{Event: event}
	switch v := data.(type) {
	case nil:
	case json.RawMessage:
		env.Data = v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s data: %w", event, err)
		}
		env.Data = raw
	}
	frame, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", event, err)
	}
	return frame, nil
}

// roomRef is a room identifier taken from a client payload. Strings are used
// as-is and numbers by their decimal text; null, zero, booleans and objects
// leave it empty, which every caller treats as "no room".
type roomRef string

func (r *roomRef) UnmarshalJSON(b []byte) error {
	var v any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return err
	}

	*r = ""
	switch x := v.(type) {
	case string:
		*r = roomRef(x)
	case json.Number:
		if f, err := x.Float64(); err == nil && f != 0 {
			*r = roomRef(x.String())
		}
	}
	return nil
}
