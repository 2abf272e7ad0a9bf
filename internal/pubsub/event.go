// Package pubsub carries row-change events from the store to live viewers.
// Topics are session ids; delivery is at-least-once with no ordering promise
// across rows.
package pubsub

import (
	"context"
	"encoding/json"
)

const (
	TypeInserted = "inserted"
	TypeUpdated  = "updated"

	EntitySession    = "session"
	EntityQuestion   = "question"
	EntitySubmission = "submission"
)

// Event is one row change on a session topic.
type Event struct {
	Type      string          `json:"type"`
	Entity    string          `json:"entity"`
	SessionID string          `json:"session_id"`
	Row       json.RawMessage `json:"row"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NewEvent marshals row into an Event for the given session topic.
func NewEvent(typ, entity, sessionID string, row interface{}) (Event, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: typ, Entity: entity, SessionID: sessionID, Row: data}, nil
}
