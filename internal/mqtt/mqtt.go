// Package mqtt publishes crossing events to an MQTT broker, with an
// abstraction for testing.
package mqtt

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sweeney/pelican/internal/logic"
)

// DefaultTopicPrefix is the topic root used when none is configured.
const DefaultTopicPrefix = "traffic/pelican"

// Topics holds the resolved topic names for one controller.
type Topics struct {
	Events string
	System string
}

// TopicsFor derives the event and system topics from prefix.
func TopicsFor(prefix string) Topics {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{
		Events: prefix + "/events",
		System: prefix + "/system",
	}
}

// EventType names a controller event.
type EventType string

const (
	EventPhase          EventType = "PHASE"
	EventCountdown      EventType = "COUNTDOWN"
	EventRequest        EventType = "REQUEST"
	EventCycleStart     EventType = "CYCLE_START"
	EventCycleEnd       EventType = "CYCLE_END"
	EventRequestDropped EventType = "REQUEST_DROPPED"
)

// Event is one controller event destined for the events topic.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Phase     logic.Phase
	Countdown int           // COUNTDOWN only
	Side      logic.Side    // REQUEST, CYCLE_*, REQUEST_DROPPED
	Outcome   logic.Outcome // REQUEST only
	CycleID   string
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a controller event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event Event) error

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
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// Payload is the MQTT message payload for controller events.
type Payload struct {
	Pelican EventPayload `json:"pelican"`
}

// EventPayload contains the event details.
type EventPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Phase     string `json:"phase"`
	Countdown int    `json:"countdown,omitempty"`
	Side      string `json:"side,omitempty"`
	Outcome   string `json:"outcome,omitempty"`
	CycleID   string `json:"cycle_id,omitempty"`
}

// FormatPayload creates the JSON payload for a controller event.
func FormatPayload(event Event) ([]byte, error) {
	p := EventPayload{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Event:     string(event.Type),
		Phase:     event.Phase.String(),
		Countdown: event.Countdown,
		CycleID:   event.CycleID,
	}
	if event.Side != logic.SideNone {
		p.Side = event.Side.String()
	}
	if event.Type == EventRequest {
		p.Outcome = string(event.Outcome)
	}
	return json.Marshal(Payload{Pelican: p})
}

// SystemPayload is the MQTT message payload for system events that don't
// carry a full status snapshot (LWT, RECONNECTED).
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
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
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
