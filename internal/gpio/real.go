//go:build linux

package gpio

import (
	"fmt"
	"log"

	"github.com/warthog618/go-gpiocdev"
)

// RealButtons watches push buttons on actual hardware using the Linux GPIO
// character device.
type RealButtons struct {
	chip  *gpiocdev.Chip
	lines []*gpiocdev.Line
}

// NewRealButtons requests each button pin as an input with pull-up and
// falling-edge detection. handler is called from the gpiocdev event
// goroutine for every debounced press.
func NewRealButtons(chipName string, buttons []Button, debounce *Debouncer, handler PressHandler) (*RealButtons, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer("mattress-tracker"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	rb := &RealButtons{chip: chip}
	for _, b := range buttons {
		b := b
		// Buttons short the pin to ground: a press is a falling edge.
		line, err := chip.RequestLine(b.Pin,
			gpiocdev.AsInput,
			gpiocdev.WithPullUp,
			gpiocdev.WithFallingEdge,
			gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
				if evt.Type != gpiocdev.LineEventFallingEdge {
					return
				}
				if !debounce.Accept(b.Name, evt.Timestamp) {
					return
				}
				log.Printf("gpio: %s pressed (pin %d)", b.Name, b.Pin)
				handler(b.Name)
			}),
		)
		if err != nil {
			rb.Close()
			return nil, fmt.Errorf("request pin %d for %s: %w", b.Pin, b.Name, err)
		}
		rb.lines = append(rb.lines, line)
	}
	return rb, nil
}

// Close releases GPIO resources.
func (r *RealButtons) Close() error {
	var errs []error

	for _, l := range r.lines {
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line: %w", err))
		}
	}
	r.lines = nil
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		r.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
