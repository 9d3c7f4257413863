package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/sweeney/mattress-tracker/internal/mattress"
)

// ErrInvalidCall is wrapped by every DecodeCall validation failure.
var ErrInvalidCall = errors.New("invalid service call")

var entityIDPattern = regexp.MustCompile(`^[a-z0-9_]+\.[a-z0-9_]+$`)

// CallPayload is the JSON body of a service call.
type CallPayload struct {
	EntityID string `json:"entity_id"`
	Date     string `json:"date,omitempty"`
}

// Call is a validated service call.
type Call struct {
	Target string
	Date   mattress.NullDate
}

// DecodeCall parses and validates a service call body.
func DecodeCall(payload []byte) (Call, error) {
	var p CallPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return Call{}, fmt.Errorf("%w: %v", ErrInvalidCall, err)
	}
	return p.Validate()
}

// Validate checks the entity ID form and parses the optional date.
func (p CallPayload) Validate() (Call, error) {
	target := strings.TrimSpace(p.EntityID)
	if target == "" {
		return Call{}, fmt.Errorf("%w: entity_id is required", ErrInvalidCall)
	}
	if !entityIDPattern.MatchString(target) {
		return Call{}, fmt.Errorf("%w: malformed entity_id %q", ErrInvalidCall, target)
	}

	call := Call{Target: target}
	if p.Date != "" {
		d, err := mattress.ParseDate(p.Date)
		if err != nil {
			return Call{}, fmt.Errorf("%w: %v", ErrInvalidCall, err)
		}
		call.Date = mattress.Some(d)
	}
	return call, nil
}
