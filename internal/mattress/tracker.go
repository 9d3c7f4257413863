package mattress

import (
	"sync"

	"github.com/jonboulle/clockwork"
)

// Tracker owns the mutable state of one mattress behind a mutex.
// Observers registered with OnChange are called after every mutation,
// outside the state lock, with the new state. Notifications are delivered
// one mutation at a time, in mutation order. An observer may call Snapshot
// but must not mutate the tracker.
type Tracker struct {
	notifyMu sync.Mutex // held across a mutation and its notifications

	mu        sync.Mutex
	state     State
	clock     clockwork.Clock
	observers []func(State)
}

// NewTracker creates a tracker in the initial state.
func NewTracker(names Names, clock clockwork.Clock) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Tracker{
		state: NewState(names),
		clock: clock,
	}
}

// OnChange registers an observer.
func (t *Tracker) OnChange(fn func(State)) {
	t.mu.Lock()
	t.observers = append(t.observers, fn)
	t.mu.Unlock()
}

// Restore replaces the orientation flags and dates with persisted values.
// Names are kept. Observers are not notified.
func (t *Tracker) Restore(s State) {
	t.mu.Lock()
	if s.Side == Side1 || s.Side == Side2 {
		t.state.Side = s.Side
	}
	if s.Rotation == RotationNormal || s.Rotation == RotationRotated {
		t.state.Rotation = s.Rotation
	}
	t.state.LastFlip = s.LastFlip
	t.state.LastRotate = s.LastRotate
	t.mu.Unlock()
}

// SetNames replaces the display labels and notifies observers.
func (t *Tracker) SetNames(n Names) {
	t.mutate(func(s *State) { s.Names = n.WithDefaults() })
}

// ToggleSide swaps the face-up side.
func (t *Tracker) ToggleSide() {
	t.mutate(func(s *State) { s.Side = s.Side.Other() })
}

// SetFlipDate overwrites the last flip date. Any date is accepted.
func (t *Tracker) SetFlipDate(d Date) {
	t.mutate(func(s *State) { s.LastFlip = Some(d) })
}

// ToggleRotation swaps the head/foot orientation.
func (t *Tracker) ToggleRotation() {
	t.mutate(func(s *State) { s.Rotation = s.Rotation.Other() })
}

// SetRotateDate overwrites the last rotation date. Any date is accepted.
func (t *Tracker) SetRotateDate(d Date) {
	t.mutate(func(s *State) { s.LastRotate = Some(d) })
}

// Flip toggles the side and then records d as the flip date, as one
// mutation with a single notification.
func (t *Tracker) Flip(d Date) {
	t.mutate(func(s *State) {
		s.Side = s.Side.Other()
		s.LastFlip = Some(d)
	})
}

// Rotate toggles the orientation and then records d as the rotation date,
// as one mutation with a single notification.
func (t *Tracker) Rotate(d Date) {
	t.mutate(func(s *State) {
		s.Rotation = s.Rotation.Other()
		s.LastRotate = Some(d)
	})
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Today returns the current local calendar date from the tracker's clock.
func (t *Tracker) Today() Date {
	return DateOf(t.clock.Now())
}

// DaysSinceFlip returns whole days since the last flip, or false if none.
func (t *Tracker) DaysSinceFlip() (int, bool) {
	return t.Snapshot().DaysSinceFlip(t.Today())
}

// DaysSinceRotate returns whole days since the last rotation, or false if none.
func (t *Tracker) DaysSinceRotate() (int, bool) {
	return t.Snapshot().DaysSinceRotate(t.Today())
}

func (t *Tracker) mutate(fn func(*State)) {
	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()

	t.mu.Lock()
	fn(&t.state)
	s := t.state
	observers := append([]func(State){}, t.observers...)
	t.mu.Unlock()

	for _, o := range observers {
		o(s)
	}
}
