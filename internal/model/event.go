// internal/model/event.go
package model

import "time"

// EventKind is the type of change-feed event emitted by the monitor loop
type EventKind string

const (
	EventConnected    EventKind = "connected"
	EventDisconnected EventKind = "disconnected"
)

// ChangeEvent is delivered to change-feed consumers whenever the set of
// attached devices changes between two scans.
type ChangeEvent struct {
	Kind      EventKind `json:"kind"`
	UniqueID  string    `json:"unique_id"`
	Device    *Device   `json:"device"`
	Timestamp time.Time `json:"timestamp"`
}
