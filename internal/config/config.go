// Package config loads the list of tracked mattresses from a JSON file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/sweeney/mattress-tracker/internal/mattress"
)

var idPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Config is the root of the config file.
type Config struct {
	Mattresses []Mattress `json:"mattresses"`
}

// Mattress is one configured mattress.
type Mattress struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Side1Name string `json:"side_1_name"`
	Side2Name string `json:"side_2_name"`
	FlipPin   int    `json:"flip_pin,omitempty"`   // BCM pin of a "flip now" button, 0 = none
	RotatePin int    `json:"rotate_pin,omitempty"` // BCM pin of a "rotate now" button, 0 = none
}

// Names returns the display labels with defaults applied.
func (m Mattress) Names() mattress.Names {
	return mattress.Names{
		Mattress: m.Name,
		Side1:    m.Side1Name,
		Side2:    m.Side2Name,
	}.WithDefaults()
}

// Load reads and validates the config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates config JSON.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks IDs are present, unique and slug-shaped and that no GPIO
// pin is claimed twice.
func (c Config) Validate() error {
	ids := make(map[string]bool)
	pins := make(map[int]string)
	for i, m := range c.Mattresses {
		if m.ID == "" {
			return fmt.Errorf("mattress %d: id is required", i)
		}
		if !idPattern.MatchString(m.ID) {
			return fmt.Errorf("mattress %q: id must match %s", m.ID, idPattern)
		}
		if ids[m.ID] {
			return fmt.Errorf("mattress %q: duplicate id", m.ID)
		}
		ids[m.ID] = true

		for _, pin := range []int{m.FlipPin, m.RotatePin} {
			if pin == 0 {
				continue
			}
			if pin < 0 {
				return fmt.Errorf("mattress %q: invalid pin %d", m.ID, pin)
			}
			if owner, ok := pins[pin]; ok {
				return fmt.Errorf("mattress %q: pin %d already used by %q", m.ID, pin, owner)
			}
			pins[pin] = m.ID
		}
	}
	return nil
}

// Find returns the mattress with the given ID.
func (c Config) Find(id string) (Mattress, bool) {
	for _, m := range c.Mattresses {
		if m.ID == id {
			return m, true
		}
	}
	return Mattress{}, false
}
