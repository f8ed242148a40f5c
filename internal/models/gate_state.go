package models

import "time"

// StateScope separates the two persistence lifetimes of the gate.
type StateScope string

const (
	// ScopeDurable entries belong to a browser and survive reloads.
	ScopeDurable StateScope = "durable"
	// ScopeSession entries belong to one browsing session.
	ScopeSession StateScope = "session"
)

// Valid reports whether the scope is one the store accepts.
func (s StateScope) Valid() bool {
	return s == ScopeDurable || s == ScopeSession
}

// GateStateEntry is one persisted key/value pair of gate state.
type GateStateEntry struct {
	Scope     StateScope `db:"scope"`
	OwnerID   string     `db:"owner_id"` // client id for durable, session id for session
	Key       string     `db:"key"`
	Value     string     `db:"value"`
	UpdatedAt time.Time  `db:"updated_at"`
}
