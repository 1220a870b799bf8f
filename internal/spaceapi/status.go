// Package spaceapi models the subset of the SpaceAPI status document the
// bridge cares about and fetches it over HTTP.
package spaceapi

import (
	"encoding/json"
	"fmt"
)

// Status is one SpaceAPI document, either pushed over the feed or fetched.
type Status struct {
	Space string `json:"space"`
	State *State `json:"state,omitempty"`
}

// State is the open/closed record. A nil Open means "unknown".
type State struct {
	Open    *bool   `json:"open"`
	Message *string `json:"message,omitempty"`
}

// Equal compares by value, following pointers.
func (s State) Equal(o State) bool {
	return eqPtr(s.Open, o.Open) && eqPtr(s.Message, o.Message)
}

// Clone returns a deep copy so callers never share pointers with a cached value.
func (s State) Clone() State {
	return State{Open: clonePtr(s.Open), Message: clonePtr(s.Message)}
}

func (s State) String() string {
	open := "unknown"
	if s.Open != nil {
		open = fmt.Sprint(*s.Open)
	}
	if s.Message == nil {
		return "open=" + open
	}
	return fmt.Sprintf("open=%s message=%q", open, *s.Message)
}

// Decode parses a SpaceAPI JSON payload.
func Decode(b []byte) (Status, error) {
	var st Status
	if err := json.Unmarshal(b, &st); err != nil {
		return Status{}, fmt.Errorf("decode spaceapi payload: %w", err)
	}
	return st, nil
}

func eqPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
