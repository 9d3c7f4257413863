// Package registry maps configuration entries to their mattress trackers and
// entity identifiers to the entries that own them.
package registry

import (
	"sort"
	"sync"

	"github.com/sweeney/mattress-tracker/internal/mattress"
)

// Entity keys within an entry.
const (
	KeySide      = "side"
	KeyFlipped   = "flipped"
	KeyRotation  = "rotation"
	KeyRotated   = "rotated"
	KeyFlipNow   = "flip_now"
	KeyRotateNow = "rotate_now"
)

// Entity describes one published entity of an entry.
type Entity struct {
	Key      string
	Platform string // "sensor" or "button"
	ObjectID string
}

// ID returns the entity identifier, e.g. "sensor.master_side".
func (e Entity) ID() string {
	return e.Platform + "." + e.ObjectID
}

// Entities returns the six entities of an entry, sensors first.
func Entities(entryID string) []Entity {
	return []Entity{
		{Key: KeySide, Platform: "sensor", ObjectID: entryID + "_" + KeySide},
		{Key: KeyFlipped, Platform: "sensor", ObjectID: entryID + "_" + KeyFlipped},
		{Key: KeyRotation, Platform: "sensor", ObjectID: entryID + "_" + KeyRotation},
		{Key: KeyRotated, Platform: "sensor", ObjectID: entryID + "_" + KeyRotated},
		{Key: KeyFlipNow, Platform: "button", ObjectID: entryID + "_" + KeyFlipNow},
		{Key: KeyRotateNow, Platform: "button", ObjectID: entryID + "_" + KeyRotateNow},
	}
}

// EntityID returns the identifier of the entity with the given key.
func EntityID(entryID, key string) string {
	for _, e := range Entities(entryID) {
		if e.Key == key {
			return e.ID()
		}
	}
	return ""
}

// Entry is one configured mattress.
type Entry struct {
	ID      string
	Tracker *mattress.Tracker // nil until attached
}

// Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*Entry
	entities map[string]string // entity ID -> entry ID
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		entries:  make(map[string]*Entry),
		entities: make(map[string]string),
	}
}

// Add registers an entry with no tracker. Adding an existing entry is a no-op.
func (r *Registry) Add(entryID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[entryID]; ok {
		return
	}
	r.entries[entryID] = &Entry{ID: entryID}
}

// Attach sets the entry's tracker and indexes its entities.
// Returns false if the entry was never added.
func (r *Registry) Attach(entryID string, tr *mattress.Tracker) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[entryID]
	if !ok {
		return false
	}
	e.Tracker = tr
	for _, ent := range Entities(entryID) {
		r.entities[ent.ID()] = entryID
	}
	return true
}

// Remove drops an entry and its entity index. Returns false if absent.
func (r *Registry) Remove(entryID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[entryID]; !ok {
		return false
	}
	delete(r.entries, entryID)
	for id, owner := range r.entities {
		if owner == entryID {
			delete(r.entities, id)
		}
	}
	return true
}

// Owner returns the entry ID owning an entity.
func (r *Registry) Owner(entityID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.entities[entityID]
	return id, ok
}

// Get returns a copy of an entry.
func (r *Registry) Get(entryID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[entryID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Resolve implements dispatch.Resolver.
func (r *Registry) Resolve(entityID string) (*mattress.Tracker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entryID, ok := r.entities[entityID]
	if !ok {
		return nil, false
	}
	e, ok := r.entries[entryID]
	if !ok || e.Tracker == nil {
		return nil, false
	}
	return e.Tracker, true
}

// Entries returns copies of all entries sorted by ID.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
