// Package status provides a thread-safe status tracker for the
// mattress-tracker daemon. It is read by the HTTP handlers and by the
// MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sweeney/mattress-tracker/internal/mattress"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	RefreshMs   int64
	HeartbeatMs int64
	DebounceMs  int64
	Broker      string
	HTTPAddr    string
	DBPath      string
	ConfigPath  string
}

// MattressView is the state of one tracked mattress as of Today.
type MattressView struct {
	ID    string
	State mattress.State
	Today mattress.Date
}

// Source lists the tracked mattresses.
type Source interface {
	Mattresses() []MattressView
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
	Mattresses    []MattressView
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	clock  clockwork.Clock
	source Source

	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker started at the clock's current time.
// source may be nil.
func NewTracker(clock clockwork.Clock, cfg Config, source Source) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Tracker{
		clock:  clock,
		source: source,
		snap: Snapshot{
			StartTime: clock.Now(),
			Config:    cfg,
		},
	}
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// Now is the clock's time at the moment of the call and Mattresses is
// read from the source.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.clock.Now()
	if t.source != nil {
		s.Mattresses = t.source.Mattresses()
	}
	return s
}
