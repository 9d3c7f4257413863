// Package mqtt bridges tracked mattresses onto an MQTT broker, with
// abstraction for testing. State is published retained per mattress, entities
// are announced via Home Assistant MQTT discovery, and service and button
// commands arrive on subscribed topics.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/mattress-tracker/internal/dispatch"
	"github.com/sweeney/mattress-tracker/internal/mattress"
)

// Default topic roots.
const (
	DefaultTopicPrefix     = "mattress_tracker"
	DefaultDiscoveryPrefix = "homeassistant"
)

// Availability payloads.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// PayloadPress is the payload of a button command.
const PayloadPress = "PRESS"

// Publisher publishes mattress entities to MQTT.
type Publisher interface {
	// PublishState sends the retained state of one mattress.
	// Returns error if publishing fails (should not crash the process).
	PublishState(entryID string, st mattress.State, today mattress.Date) error

	// PublishDiscovery announces the entities of one mattress.
	PublishDiscovery(entryID string, st mattress.State) error

	// ClearDiscovery removes the entities and retained state of one mattress.
	ClearDiscovery(entryID string) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// Subscriber delivers payloads received on a topic.
type Subscriber interface {
	Subscribe(topic string, handler func(payload []byte)) error
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
	Retained   bool   // Whether the message should be retained by the broker
}

// StatePayload is the retained JSON state of one mattress. Null dates and
// day counts are encoded as JSON null.
type StatePayload struct {
	Mattress        string  `json:"mattress"`
	Side            string  `json:"side"`
	SideID          string  `json:"side_id"`
	Flipped         *string `json:"flipped"`
	DaysSinceFlip   *int    `json:"days_since_flip"`
	Rotation        string  `json:"rotation"`
	RotationID      string  `json:"rotation_id"`
	Rotated         *string `json:"rotated"`
	DaysSinceRotate *int    `json:"days_since_rotate"`
}

// NewStatePayload builds the payload for st as of today.
func NewStatePayload(st mattress.State, today mattress.Date) StatePayload {
	p := StatePayload{
		Mattress:   st.Names.Mattress,
		Side:       st.SideName(),
		SideID:     string(st.Side),
		Rotation:   st.RotationName(),
		RotationID: string(st.Rotation),
	}
	if st.LastFlip.Valid {
		s := st.LastFlip.String()
		p.Flipped = &s
		days, _ := st.DaysSinceFlip(today)
		p.DaysSinceFlip = &days
	}
	if st.LastRotate.Valid {
		s := st.LastRotate.String()
		p.Rotated = &s
		days, _ := st.DaysSinceRotate(today)
		p.DaysSinceRotate = &days
	}
	return p
}

// FormatStatePayload creates the JSON state payload for one mattress.
func FormatStatePayload(st mattress.State, today mattress.Date) ([]byte, error) {
	return json.Marshal(NewStatePayload(st, today))
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
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

// Topics builds every topic used by the bridge.
type Topics struct {
	Prefix          string
	DiscoveryPrefix string
}

// NewTopics returns Topics, falling back to the defaults for empty values.
func NewTopics(prefix, discoveryPrefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	if discoveryPrefix == "" {
		discoveryPrefix = DefaultDiscoveryPrefix
	}
	return Topics{Prefix: prefix, DiscoveryPrefix: discoveryPrefix}
}

// State is the retained state topic of one mattress.
func (t Topics) State(entryID string) string {
	return t.Prefix + "/" + entryID + "/state"
}

// Availability is the online/offline topic, also used as the LWT.
func (t Topics) Availability() string {
	return t.Prefix + "/status"
}

// System is the topic for lifecycle events.
func (t Topics) System() string {
	return t.Prefix + "/system"
}

// Service is the command topic of a service.
func (t Topics) Service(cmd dispatch.Command) string {
	return t.Prefix + "/service/" + string(cmd)
}

// ButtonPress is the command topic of one button entity.
func (t Topics) ButtonPress(entryID, key string) string {
	return t.Prefix + "/" + entryID + "/" + key + "/press"
}
