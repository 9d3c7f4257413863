// Package gpio provides push-button input with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"sync"
	"time"
)

// DefaultChip is the GPIO chip of the Raspberry Pi header.
const DefaultChip = "gpiochip0"

// DefaultDebounce is the minimum spacing between accepted presses of one button.
const DefaultDebounce = 250 * time.Millisecond

// Button is one push button, wired between a BCM pin and ground.
type Button struct {
	Name string // entity ID the press is delivered as
	Pin  int
}

// PressHandler receives the name of a pressed button.
type PressHandler func(name string)

// Buttons is a set of watched push buttons.
type Buttons interface {
	// Close releases GPIO resources.
	Close() error
}

// Debouncer drops presses that follow an accepted press of the same button
// within the window. Timestamps are monotonic offsets, as reported by the
// kernel for line events. Safe for concurrent use.
type Debouncer struct {
	window time.Duration

	mu   sync.Mutex
	last map[string]time.Duration
}

// NewDebouncer creates a Debouncer. A window <= 0 accepts every press.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window, last: make(map[string]time.Duration)}
}

// Accept reports whether a press of name at ts should be delivered.
func (d *Debouncer) Accept(name string, ts time.Duration) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if last, ok := d.last[name]; ok && d.window > 0 && ts-last < d.window {
		return false
	}
	d.last[name] = ts
	return true
}
