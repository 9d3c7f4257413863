package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string         `json:"event,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Mattresses    []MattressJSON `json:"mattresses"`
	Network       *NetworkJSON   `json:"network,omitempty"`
	Config        ConfigJSON     `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// MattressJSON is the JSON representation of one tracked mattress.
type MattressJSON struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Side            string  `json:"side"`
	SideID          string  `json:"side_id"`
	Flipped         *string `json:"flipped"`
	DaysSinceFlip   *int    `json:"days_since_flip"`
	Rotation        string  `json:"rotation"`
	RotationID      string  `json:"rotation_id"`
	Rotated         *string `json:"rotated"`
	DaysSinceRotate *int    `json:"days_since_rotate"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	RefreshMs   int64  `json:"refresh_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	DebounceMs  int64  `json:"debounce_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	DBPath      string `json:"db_path"`
	ConfigPath  string `json:"config_path"`
}

// NewMattressJSON converts a view to its JSON form.
func NewMattressJSON(v MattressView) MattressJSON {
	st := v.State
	m := MattressJSON{
		ID:         v.ID,
		Name:       st.Names.Mattress,
		Side:       st.SideName(),
		SideID:     string(st.Side),
		Rotation:   st.RotationName(),
		RotationID: string(st.Rotation),
	}
	if days, ok := st.DaysSinceFlip(v.Today); ok {
		s := st.LastFlip.String()
		m.Flipped = &s
		m.DaysSinceFlip = &days
	}
	if days, ok := st.DaysSinceRotate(v.Today); ok {
		s := st.LastRotate.String()
		m.Rotated = &s
		m.DaysSinceRotate = &days
	}
	return m
}

func buildInner(snap Snapshot) StatusInner {
	mattresses := make([]MattressJSON, 0, len(snap.Mattresses))
	for _, v := range snap.Mattresses {
		mattresses = append(mattresses, NewMattressJSON(v))
	}

	inner := StatusInner{
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Mattresses:    mattresses,
		Config: ConfigJSON{
			RefreshMs:   snap.Config.RefreshMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			DebounceMs:  snap.Config.DebounceMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			DBPath:      snap.Config.DBPath,
			ConfigPath:  snap.Config.ConfigPath,
		},
	}

	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
