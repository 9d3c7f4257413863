// Package app owns every configured mattress: it sets entries up and tears
// them down, persists and publishes state on every change, and routes
// service calls and button presses to the dispatcher.
package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/sweeney/mattress-tracker/internal/config"
	"github.com/sweeney/mattress-tracker/internal/dispatch"
	"github.com/sweeney/mattress-tracker/internal/gpio"
	"github.com/sweeney/mattress-tracker/internal/mattress"
	"github.com/sweeney/mattress-tracker/internal/mqtt"
	"github.com/sweeney/mattress-tracker/internal/registry"
	"github.com/sweeney/mattress-tracker/internal/status"
)

// persistTimeout bounds a store write triggered by a state change.
const persistTimeout = 5 * time.Second

// Store persists mattress state between restarts.
type Store interface {
	Load(ctx context.Context, entryID string) (mattress.State, bool, error)
	Save(ctx context.Context, entryID string, st mattress.State) error
	Delete(ctx context.Context, entryID string) error
	EntryIDs(ctx context.Context) ([]string, error)
}

// Options configures an App.
type Options struct {
	Publisher  mqtt.Publisher  // required
	Subscriber mqtt.Subscriber // optional; nil disables MQTT commands
	Topics     mqtt.Topics
	Store      Store // optional; nil disables persistence
	Clock      clockwork.Clock
}

// App is the top-level application state.
type App struct {
	registry   *registry.Registry
	dispatcher *dispatch.Dispatcher
	pub        mqtt.Publisher
	sub        mqtt.Subscriber
	topics     mqtt.Topics
	store      Store
	clock      clockwork.Clock

	mu      sync.Mutex
	configs map[string]config.Mattress

	// persistMu orders observer writes against UnloadEntry so a removed
	// entry is never written back.
	persistMu sync.Mutex
}

// New creates an App with an empty registry.
func New(opts Options) *App {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	reg := registry.New()
	return &App{
		registry:   reg,
		dispatcher: dispatch.New(reg, clock),
		pub:        opts.Publisher,
		sub:        opts.Subscriber,
		topics:     opts.Topics,
		store:      opts.Store,
		clock:      clock,
		configs:    make(map[string]config.Mattress),
	}
}

// Registry returns the entity registry.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Dispatcher returns the command dispatcher.
func (a *App) Dispatcher() *dispatch.Dispatcher {
	return a.dispatcher
}

// Today returns the current local date.
func (a *App) Today() mattress.Date {
	return mattress.DateOf(a.clock.Now())
}

// SubscribeServices subscribes the flip and rotate service topics.
func (a *App) SubscribeServices() error {
	if a.sub == nil {
		return nil
	}
	for _, cmd := range dispatch.Commands {
		cmd := cmd
		if err := a.sub.Subscribe(a.topics.Service(cmd), func(payload []byte) {
			if err := a.HandleService(cmd, payload); err != nil {
				log.Printf("mqtt: %s service: %v", cmd, err)
			}
		}); err != nil {
			return fmt.Errorf("subscribe %s service: %w", cmd, err)
		}
	}
	return nil
}

// SetupEntry creates the tracker of one mattress, restoring persisted state,
// and publishes its entities.
func (a *App) SetupEntry(ctx context.Context, m config.Mattress) error {
	a.registry.Add(m.ID)

	tr := mattress.NewTracker(m.Names(), a.clock)
	if a.store != nil {
		st, ok, err := a.store.Load(ctx, m.ID)
		if err != nil {
			a.registry.Remove(m.ID)
			return fmt.Errorf("setup %s: %w", m.ID, err)
		}
		if ok {
			tr.Restore(st)
		}
	}
	tr.OnChange(a.observer(m.ID, tr))
	a.registry.Attach(m.ID, tr)

	a.mu.Lock()
	a.configs[m.ID] = m
	a.mu.Unlock()

	if a.sub != nil {
		for _, key := range []string{registry.KeyFlipNow, registry.KeyRotateNow} {
			entityID := registry.EntityID(m.ID, key)
			if err := a.sub.Subscribe(a.topics.ButtonPress(m.ID, key), func(payload []byte) {
				if string(payload) != mqtt.PayloadPress {
					log.Printf("mqtt: %s: unexpected payload %q", entityID, payload)
					return
				}
				a.PressButton(entityID)
			}); err != nil {
				log.Printf("setup %s: subscribe %s: %v", m.ID, key, err)
			}
		}
	}

	st := tr.Snapshot()
	if err := a.pub.PublishDiscovery(m.ID, st); err != nil {
		log.Printf("setup %s: publish discovery: %v", m.ID, err)
	}
	if err := a.pub.PublishState(m.ID, st, a.Today()); err != nil {
		log.Printf("setup %s: publish state: %v", m.ID, err)
	}
	log.Printf("setup %s: %q side=%s rotation=%s flipped=%q rotated=%q",
		m.ID, st.Names.Mattress, st.Side, st.Rotation, st.LastFlip, st.LastRotate)
	return nil
}

// observer persists and publishes every change of tr while tr is still the
// entry's tracker.
func (a *App) observer(entryID string, tr *mattress.Tracker) func(mattress.State) {
	return func(st mattress.State) {
		a.persistMu.Lock()
		defer a.persistMu.Unlock()

		if e, ok := a.registry.Get(entryID); !ok || e.Tracker != tr {
			return
		}
		if a.store != nil {
			ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			err := a.store.Save(ctx, entryID, st)
			cancel()
			if err != nil {
				log.Printf("persist %s: %v", entryID, err)
			}
		}
		if err := a.pub.PublishState(entryID, st, a.Today()); err != nil {
			log.Printf("publish %s: %v", entryID, err)
		}
	}
}

// UnloadEntry removes a mattress, its persisted state and its entities.
func (a *App) UnloadEntry(ctx context.Context, entryID string) error {
	a.persistMu.Lock()
	defer a.persistMu.Unlock()

	if !a.registry.Remove(entryID) {
		return fmt.Errorf("unload %s: not configured", entryID)
	}
	a.mu.Lock()
	delete(a.configs, entryID)
	a.mu.Unlock()

	if err := a.pub.ClearDiscovery(entryID); err != nil {
		log.Printf("unload %s: clear discovery: %v", entryID, err)
	}
	if a.store != nil {
		if err := a.store.Delete(ctx, entryID); err != nil {
			return fmt.Errorf("unload %s: %w", entryID, err)
		}
	}
	log.Printf("unload %s: removed", entryID)
	return nil
}

// Reconcile brings the configured entries in line with cfg: removed entries
// are unloaded, new ones set up, and renamed ones relabelled.
func (a *App) Reconcile(ctx context.Context, cfg config.Config) error {
	a.mu.Lock()
	current := make(map[string]config.Mattress, len(a.configs))
	for id, m := range a.configs {
		current[id] = m
	}
	a.mu.Unlock()

	var errs []error
	for id := range current {
		if _, ok := cfg.Find(id); !ok {
			if err := a.UnloadEntry(ctx, id); err != nil {
				errs = append(errs, err)
			}
		}
	}

	for _, m := range cfg.Mattresses {
		old, ok := current[m.ID]
		if !ok {
			if err := a.SetupEntry(ctx, m); err != nil {
				errs = append(errs, err)
			}
			continue
		}

		a.mu.Lock()
		a.configs[m.ID] = m
		a.mu.Unlock()
		if old.Names() == m.Names() {
			continue
		}
		e, ok := a.registry.Get(m.ID)
		if !ok || e.Tracker == nil {
			continue
		}
		e.Tracker.SetNames(m.Names())
		if err := a.pub.PublishDiscovery(m.ID, e.Tracker.Snapshot()); err != nil {
			log.Printf("reconcile %s: publish discovery: %v", m.ID, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("reconcile: %v", errs)
	}
	return nil
}

// PruneStore deletes persisted state of entries absent from cfg, such as
// mattresses removed from the config file while the daemon was stopped.
func (a *App) PruneStore(ctx context.Context, cfg config.Config) error {
	if a.store == nil {
		return nil
	}
	ids, err := a.store.EntryIDs(ctx)
	if err != nil {
		return fmt.Errorf("prune: %w", err)
	}

	a.persistMu.Lock()
	defer a.persistMu.Unlock()
	for _, id := range ids {
		if _, ok := cfg.Find(id); ok {
			continue
		}
		if err := a.store.Delete(ctx, id); err != nil {
			return fmt.Errorf("prune: %w", err)
		}
		log.Printf("prune %s: removed stale state", id)
	}
	return nil
}

// HandleService validates a service call body and dispatches it.
// Only malformed input is reported; unknown targets are ignored.
func (a *App) HandleService(cmd dispatch.Command, payload []byte) error {
	call, err := dispatch.DecodeCall(payload)
	if err != nil {
		return err
	}
	a.dispatcher.Dispatch(cmd, call.Target, call.Date)
	return nil
}

// PressButton applies the command of a button entity with today's date.
// Presses of unknown or non-button entities are ignored.
func (a *App) PressButton(entityID string) {
	entryID, ok := a.registry.Owner(entityID)
	if !ok {
		log.Printf("button: %s ignored, unknown entity", entityID)
		return
	}
	switch entityID {
	case registry.EntityID(entryID, registry.KeyFlipNow):
		a.dispatcher.Dispatch(dispatch.CommandFlip, entityID, mattress.NullDate{})
	case registry.EntityID(entryID, registry.KeyRotateNow):
		a.dispatcher.Dispatch(dispatch.CommandRotate, entityID, mattress.NullDate{})
	default:
		log.Printf("button: %s ignored, not a button", entityID)
	}
}

// Refresh republishes the state of every mattress so day counts stay
// current across midnight.
func (a *App) Refresh() {
	today := a.Today()
	for _, e := range a.registry.Entries() {
		if e.Tracker == nil {
			continue
		}
		if err := a.pub.PublishState(e.ID, e.Tracker.Snapshot(), today); err != nil {
			log.Printf("refresh %s: %v", e.ID, err)
		}
	}
}

// Mattresses implements status.Source.
func (a *App) Mattresses() []status.MattressView {
	today := a.Today()
	entries := a.registry.Entries()
	views := make([]status.MattressView, 0, len(entries))
	for _, e := range entries {
		if e.Tracker == nil {
			continue
		}
		views = append(views, status.MattressView{ID: e.ID, State: e.Tracker.Snapshot(), Today: today})
	}
	return views
}

// Buttons returns the GPIO buttons declared by the configured entries.
func (a *App) Buttons() []gpio.Button {
	a.mu.Lock()
	defer a.mu.Unlock()

	var buttons []gpio.Button
	for _, e := range a.registry.Entries() {
		m, ok := a.configs[e.ID]
		if !ok {
			continue
		}
		if m.FlipPin != 0 {
			buttons = append(buttons, gpio.Button{Name: registry.EntityID(m.ID, registry.KeyFlipNow), Pin: m.FlipPin})
		}
		if m.RotatePin != 0 {
			buttons = append(buttons, gpio.Button{Name: registry.EntityID(m.ID, registry.KeyRotateNow), Pin: m.RotatePin})
		}
	}
	return buttons
}
