// Package domain contains entities without logic, just meta-data
package domain

import "errors"

const MaxDisplayNameLen = 64

var (
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrDisplayNameEmpty   = errors.New("display name empty")
)

// Identity is the display identity a caller supplies on join.
// Meta is opaque to the relay; it is stored and fanned out as-is
// (role, avatar, whatever the UI needs).
type Identity struct {
	Name string         `json:"name"`
	Meta map[string]any `json:"meta,omitempty"`
}

// NewIdentity validates the display name and keeps construction obvious
// for adapters.
func NewIdentity(name string, meta map[string]any) (Identity, error) {
	if len(name) == 0 {
		return Identity{}, ErrDisplayNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return Identity{}, ErrDisplayNameTooLong
	}
	return Identity{Name: name, Meta: meta}, nil
}
