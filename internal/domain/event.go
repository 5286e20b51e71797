package domain

import (
	"encoding/json"
	"time"
)

// Event types pushed over the realtime stream.
const (
	EventShipUpdated       = "ship.updated"
	EventDeploymentUpdated = "deployment.updated"
	EventSessionPrompted   = "session.prompted"
)

// Event is the envelope broadcast to stream subscribers.
type Event struct {
	Type       string          `json:"type"`
	ShipID     string          `json:"ship_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// EventRecord is a persisted copy of a broadcast event.
type EventRecord struct {
	ID         int64
	Type       string
	ShipID     string
	Payload    json.RawMessage
	OccurredAt time.Time
}
