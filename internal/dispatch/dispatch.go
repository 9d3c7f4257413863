// Package dispatch routes flip and rotate commands to the mattress that owns
// the target entity.
package dispatch

import (
	"fmt"
	"log"

	"github.com/jonboulle/clockwork"

	"github.com/sweeney/mattress-tracker/internal/mattress"
)

// Command names a mutation.
type Command string

const (
	CommandFlip   Command = "flip"
	CommandRotate Command = "rotate"
)

// Commands lists every supported command in registration order.
var Commands = []Command{CommandFlip, CommandRotate}

// ParseCommand validates a command name.
func ParseCommand(name string) (Command, error) {
	switch Command(name) {
	case CommandFlip, CommandRotate:
		return Command(name), nil
	}
	return "", fmt.Errorf("unknown command %q", name)
}

// Resolver finds the tracker owning a target entity identifier.
type Resolver interface {
	// Resolve returns false if the target is unknown or its entry has no
	// tracker attached.
	Resolve(target string) (*mattress.Tracker, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(target string) (*mattress.Tracker, bool)

// Resolve calls f.
func (f ResolverFunc) Resolve(target string) (*mattress.Tracker, bool) {
	return f(target)
}

// Dispatcher applies commands to resolved trackers.
type Dispatcher struct {
	resolver Resolver
	clock    clockwork.Clock
}

// New creates a Dispatcher. The clock supplies the default date.
func New(resolver Resolver, clock clockwork.Clock) *Dispatcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Dispatcher{resolver: resolver, clock: clock}
}

// Dispatch applies cmd to the mattress owning target. An absent date means
// today. Unknown targets and unknown commands are ignored.
func (d *Dispatcher) Dispatch(cmd Command, target string, date mattress.NullDate) {
	tr, ok := d.resolver.Resolve(target)
	if !ok {
		log.Printf("dispatch: %s ignored, no mattress for %q", cmd, target)
		return
	}

	day := date.Date
	if !date.Valid {
		day = mattress.DateOf(d.clock.Now())
	}

	switch cmd {
	case CommandFlip:
		tr.Flip(day)
	case CommandRotate:
		tr.Rotate(day)
	default:
		log.Printf("dispatch: unknown command %q for %q", cmd, target)
		return
	}
	log.Printf("dispatch: %s %s on %s", cmd, target, day)
}

// Flip toggles the side of the target's mattress and records the date.
func (d *Dispatcher) Flip(target string, date mattress.NullDate) {
	d.Dispatch(CommandFlip, target, date)
}

// Rotate toggles the orientation of the target's mattress and records the date.
func (d *Dispatcher) Rotate(target string, date mattress.NullDate) {
	d.Dispatch(CommandRotate, target, date)
}
