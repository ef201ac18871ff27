// Package events fans out task updates to server-sent-event subscribers.
package events

import (
	"encoding/json"
	"time"
)

const (
	TypeTaskUpdate = "task_update"
	TypeHello      = "hello"
	TypePing       = "ping"

	version = 1
)

type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// MakeEvent encodes one event as a single JSON line.
func MakeEvent(reqID, typ string, data any) string {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	b, _ := json.Marshal(Event{
		Type:      typ,
		Version:   version,
		At:        time.Now().UTC(),
		RequestID: reqID,
		Data:      raw,
	})
	return string(b)
}
