// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/pillbox/internal/logic"
)

// Topic is the MQTT topic for dispenser events.
const Topic = "pillbox/dispenser/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "pillbox/dispenser/system"

// System event names.
const (
	SystemStartup       = "STARTUP"
	SystemShutdown      = "SHUTDOWN"
	SystemHeartbeat     = "HEARTBEAT"
	SystemClockLost     = "CLOCK_LOST"
	SystemClockRestored = "CLOCK_RESTORED"
	SystemReconnected   = "RECONNECTED"
	SystemOffline       = "OFFLINE"
)

// newID generates message identifiers. Replaced in tests.
var newID = uuid.NewString

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a dispenser event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "CLOCK_LOST"
	Reason     string // e.g., "SIGTERM", or the clock error
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Dispenser DispenserPayload `json:"dispenser"`
}

// DispenserPayload contains the dispenser event details.
type DispenserPayload struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	// Channel is 1-based as printed on the box; omitted for whole-box events.
	Channel int `json:"channel,omitempty"`
}

// FormatPayload creates the JSON payload for a dispenser event.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		Dispenser: DispenserPayload{
			ID:        newID(),
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
		},
	}
	if event.Channel != logic.AllChannels {
		payload.Dispenser.Channel = event.Channel + 1
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED, clock health) that don't carry
// a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			ID:        newID(),
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// NewID returns a fresh message identifier for payloads built elsewhere.
func NewID() string {
	return newID()
}
