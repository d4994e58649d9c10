// Package audit records master key lifecycle events in a tamper-evident log.
//
// Audit events are kept apart from operator output and are designed for:
//   - Tracing every generation, export and import of a master key
//   - Tamper evidence via SHA-256 hash chaining
//
// Key principles:
//   - Audit failure = Operation failure
//   - Never log secrets: seeds, passphrases and recovery phrases stay out
//   - Keys are identified by fingerprint and path only
//   - All timestamps in UTC
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// EventType represents the category of audit event.
type EventType string

const (
	// Key lifecycle events
	EventKeyGenerated        EventType = "KEY_GENERATED"
	EventKeyExported         EventType = "KEY_EXPORTED"
	EventPublicKeyExported   EventType = "PUBLIC_KEY_EXPORTED"
	EventKeyImported         EventType = "KEY_IMPORTED"
	EventKeyRecovered        EventType = "KEY_RECOVERED"
	EventPassphraseChanged   EventType = "PASSPHRASE_CHANGED"
	EventRecoveryPhraseShown EventType = "RECOVERY_PHRASE_SHOWN"

	// Security events
	EventAuthFailed EventType = "AUTH_FAILED"
)

// Result represents the outcome of an audited operation.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
)

// Actor represents who performed the action.
type Actor struct {
	Type string `json:"type"`           // "user", "system"
	ID   string `json:"id"`             // username
	Host string `json:"host,omitempty"` // hostname where action occurred
}

// Object represents the key that was acted upon.
type Object struct {
	Type        string `json:"type"`                  // "master_key", "public_key"
	Fingerprint string `json:"fingerprint,omitempty"` // public bundle fingerprint
	Path        string `json:"path,omitempty"`        // file path
}

// Context provides additional details about the operation.
type Context struct {
	Algorithms string `json:"algorithms,omitempty"` // "<ec>+<pq>/<dh>+<kem>"
	Encoding   string `json:"encoding,omitempty"`   // pem or binary
	Encrypted  bool   `json:"encrypted,omitempty"`  // record carries a sealed seed
	Reason     string `json:"reason,omitempty"`     // failure reason
}

// Event represents a single audit log entry.
type Event struct {
	EventType EventType `json:"event_type"`
	Timestamp string    `json:"timestamp"` // RFC3339 UTC
	Actor     Actor     `json:"actor"`
	Object    Object    `json:"object"`
	Context   Context   `json:"context,omitempty"`
	Result    Result    `json:"result"`
	HashPrev  string    `json:"hash_prev"` // hash of previous event
	Hash      string    `json:"hash"`      // hash of this event
}

// NewEvent creates a new audit event with current timestamp and actor info.
func NewEvent(eventType EventType, result Result) *Event {
	hostname, _ := os.Hostname()
	username := os.Getenv("USER")
	if username == "" {
		username = os.Getenv("USERNAME")
	}
	if username == "" {
		username = "unknown"
	}

	return &Event{
		EventType: eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Actor: Actor{
			Type: "user",
			ID:   username,
			Host: hostname,
		},
		Result: result,
	}
}

// WithObject sets the object field.
func (e *Event) WithObject(obj Object) *Event {
	e.Object = obj
	return e
}

// WithContext sets the context field.
func (e *Event) WithContext(ctx Context) *Event {
	e.Context = ctx
	return e
}

// WithActor overrides the default actor.
func (e *Event) WithActor(actor Actor) *Event {
	e.Actor = actor
	return e
}

// Validate checks that required fields are present.
func (e *Event) Validate() error {
	if e.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if e.Timestamp == "" {
		return fmt.Errorf("timestamp is required")
	}
	if e.Actor.Type == "" || e.Actor.ID == "" {
		return fmt.Errorf("actor type and id are required")
	}
	if e.Result == "" {
		return fmt.Errorf("result is required")
	}
	return nil
}

// CanonicalJSON returns the event without its own hash, as hashed by the chain.
func (e *Event) CanonicalJSON() ([]byte, error) {
	type eventForHash struct {
		EventType EventType `json:"event_type"`
		Timestamp string    `json:"timestamp"`
		Actor     Actor     `json:"actor"`
		Object    Object    `json:"object"`
		Context   Context   `json:"context,omitempty"`
		Result    Result    `json:"result"`
		HashPrev  string    `json:"hash_prev"`
	}
	return json.Marshal(eventForHash{
		EventType: e.EventType,
		Timestamp: e.Timestamp,
		Actor:     e.Actor,
		Object:    e.Object,
		Context:   e.Context,
		Result:    e.Result,
		HashPrev:  e.HashPrev,
	})
}

// JSON returns the full event as JSON.
func (e *Event) JSON() ([]byte, error) {
	return json.Marshal(e)
}
