package mqtt

import (
	"encoding/json"
	"fmt"

	"github.com/sweeney/mattress-tracker/internal/mattress"
	"github.com/sweeney/mattress-tracker/internal/registry"
)

// Device information for Home Assistant discovery.
const (
	discoveryNode = "mattress_tracker"
	manufacturer  = "sweeney"
	model         = "Mattress Tracker"
)

// Device groups the entities of one mattress in Home Assistant.
type Device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

// DiscoveryPayload is a Home Assistant MQTT discovery config.
type DiscoveryPayload struct {
	Name                string `json:"name"`
	UniqueID            string `json:"unique_id"`
	ObjectID            string `json:"object_id"`
	AvailabilityTopic   string `json:"availability_topic"`
	StateTopic          string `json:"state_topic,omitempty"`
	ValueTemplate       string `json:"value_template,omitempty"`
	JSONAttributesTopic string `json:"json_attributes_topic,omitempty"`
	CommandTopic        string `json:"command_topic,omitempty"`
	PayloadPress        string `json:"payload_press,omitempty"`
	DeviceClass         string `json:"device_class,omitempty"`
	Icon                string `json:"icon,omitempty"`
	Device              Device `json:"device"`
}

// DiscoveryMessage is one retained discovery publish.
type DiscoveryMessage struct {
	Topic   string
	Payload []byte
}

// DiscoveryTopic is the config topic of one entity.
func (t Topics) DiscoveryTopic(e registry.Entity) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", t.DiscoveryPrefix, e.Platform, discoveryNode, e.ObjectID)
}

// NewDiscoveryPayload builds the discovery config of one entity.
func NewDiscoveryPayload(t Topics, entryID string, e registry.Entity, st mattress.State) DiscoveryPayload {
	p := DiscoveryPayload{
		UniqueID:          discoveryNode + "_" + e.ObjectID,
		ObjectID:          e.ObjectID,
		AvailabilityTopic: t.Availability(),
		Device: Device{
			Identifiers:  []string{discoveryNode + "_" + entryID},
			Name:         st.Names.Mattress,
			Manufacturer: manufacturer,
			Model:        model,
		},
	}

	state := t.State(entryID)
	switch e.Key {
	case registry.KeySide:
		p.Name = "Side"
		p.StateTopic = state
		p.ValueTemplate = "{{ value_json.side }}"
		p.Icon = "mdi:swap-vertical"
	case registry.KeyFlipped:
		p.Name = "Flipped"
		p.StateTopic = state
		p.ValueTemplate = "{{ value_json.flipped }}"
		p.JSONAttributesTopic = state
		p.DeviceClass = "date"
		p.Icon = "mdi:calendar-refresh"
	case registry.KeyRotation:
		p.Name = "Rotation"
		p.StateTopic = state
		p.ValueTemplate = "{{ value_json.rotation }}"
		p.Icon = "mdi:rotate-3d-variant"
	case registry.KeyRotated:
		p.Name = "Rotated"
		p.StateTopic = state
		p.ValueTemplate = "{{ value_json.rotated }}"
		p.JSONAttributesTopic = state
		p.DeviceClass = "date"
		p.Icon = "mdi:calendar-refresh"
	case registry.KeyFlipNow:
		p.Name = "Flip now"
		p.CommandTopic = t.ButtonPress(entryID, e.Key)
		p.PayloadPress = PayloadPress
		p.Icon = "mdi:swap-vertical"
	case registry.KeyRotateNow:
		p.Name = "Rotate now"
		p.CommandTopic = t.ButtonPress(entryID, e.Key)
		p.PayloadPress = PayloadPress
		p.Icon = "mdi:rotate-3d-variant"
	}
	return p
}

// DiscoveryMessages builds the discovery publishes for every entity of one mattress.
func DiscoveryMessages(t Topics, entryID string, st mattress.State) ([]DiscoveryMessage, error) {
	entities := registry.Entities(entryID)
	msgs := make([]DiscoveryMessage, 0, len(entities))
	for _, e := range entities {
		payload, err := json.Marshal(NewDiscoveryPayload(t, entryID, e, st))
		if err != nil {
			return nil, fmt.Errorf("marshal discovery payload for %s: %w", e.ID(), err)
		}
		msgs = append(msgs, DiscoveryMessage{Topic: t.DiscoveryTopic(e), Payload: payload})
	}
	return msgs, nil
}

// ClearTopics lists the retained topics to blank when a mattress is removed.
func ClearTopics(t Topics, entryID string) []string {
	topics := []string{t.State(entryID)}
	for _, e := range registry.Entities(entryID) {
		topics = append(topics, t.DiscoveryTopic(e))
	}
	return topics
}
