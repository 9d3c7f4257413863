// Package mattress holds the tracked state of a single mattress: which side
// is up, which way round it lies, and when each was last changed.
// This package has NO external dependencies beyond an injectable clock.
package mattress

// Side identifies which side of the mattress is face-up.
type Side string

const (
	Side1 Side = "side_1"
	Side2 Side = "side_2"
)

// Other returns the opposite side.
func (s Side) Other() Side {
	if s == Side2 {
		return Side1
	}
	return Side2
}

// Rotation identifies the head/foot orientation of the mattress.
type Rotation string

const (
	RotationNormal  Rotation = "normal"
	RotationRotated Rotation = "rotated"
)

// Other returns the opposite orientation.
func (r Rotation) Other() Rotation {
	if r == RotationRotated {
		return RotationNormal
	}
	return RotationRotated
}

// Name returns the display label for the orientation.
func (r Rotation) Name() string {
	if r == RotationRotated {
		return "Rotated"
	}
	return "Normal"
}

// Default display labels.
const (
	DefaultMattressName = "Mattress"
	DefaultSide1Name    = "Side 1"
	DefaultSide2Name    = "Side 2"
)

// Names holds the display labels of a mattress and its sides.
type Names struct {
	Mattress string
	Side1    string
	Side2    string
}

// WithDefaults fills empty labels with the defaults.
func (n Names) WithDefaults() Names {
	if n.Mattress == "" {
		n.Mattress = DefaultMattressName
	}
	if n.Side1 == "" {
		n.Side1 = DefaultSide1Name
	}
	if n.Side2 == "" {
		n.Side2 = DefaultSide2Name
	}
	return n
}

// State is a point-in-time view of a tracked mattress.
// It is a value type, safe to use after the tracker lock is released.
type State struct {
	Names      Names
	Side       Side
	Rotation   Rotation
	LastFlip   NullDate
	LastRotate NullDate
}

// NewState returns the initial state: side 1 up, not rotated, no dates.
func NewState(names Names) State {
	return State{
		Names:    names.WithDefaults(),
		Side:     Side1,
		Rotation: RotationNormal,
	}
}

// SideName returns the display label of the current side.
func (s State) SideName() string {
	if s.Side == Side2 {
		return s.Names.Side2
	}
	return s.Names.Side1
}

// RotationName returns the display label of the current orientation.
func (s State) RotationName() string {
	return s.Rotation.Name()
}

// DaysSinceFlip returns whole days from the last flip to today.
// Returns false if no flip has been recorded.
func (s State) DaysSinceFlip(today Date) (int, bool) {
	return daysSince(s.LastFlip, today)
}

// DaysSinceRotate returns whole days from the last rotation to today.
// Returns false if no rotation has been recorded.
func (s State) DaysSinceRotate(today Date) (int, bool) {
	return daysSince(s.LastRotate, today)
}

func daysSince(last NullDate, today Date) (int, bool) {
	if !last.Valid {
		return 0, false
	}
	return last.Date.DaysUntil(today), true
}
