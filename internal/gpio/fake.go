package gpio

import (
	"fmt"
	"time"
)

// FakeButtons is a test double that delivers scripted presses through the
// same debounce path as the real implementation.
type FakeButtons struct {
	buttons  map[string]Button
	debounce *Debouncer
	handler  PressHandler

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeButtons creates FakeButtons for the given buttons.
func NewFakeButtons(buttons []Button, debounce *Debouncer, handler PressHandler) *FakeButtons {
	m := make(map[string]Button, len(buttons))
	for _, b := range buttons {
		m[b.Name] = b
	}
	return &FakeButtons{buttons: m, debounce: debounce, handler: handler}
}

// Press simulates a falling edge on the named button at ts.
// Returns whether the press got past the debouncer.
func (f *FakeButtons) Press(name string, ts time.Duration) (bool, error) {
	if _, ok := f.buttons[name]; !ok {
		return false, fmt.Errorf("no button %q", name)
	}
	if f.Closed {
		return false, fmt.Errorf("buttons closed")
	}
	if !f.debounce.Accept(name, ts) {
		return false, nil
	}
	f.handler(name)
	return true, nil
}

// Close marks the buttons as closed.
func (f *FakeButtons) Close() error {
	f.Closed = true
	return nil
}
