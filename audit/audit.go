// Package audit records authorization decisions and administrative changes.
//
// The external payload for a denied call is deliberately uniform with "not
// found", so the audit trail is where the true reason for every refusal is
// retained.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event represents one recorded decision or administrative change.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"` // e.g. "access.denied"
	ActorID    string         `json:"actor_id"`
	ResourceID string         `json:"resource_id"`
	Branch     string         `json:"branch,omitempty"`
	Action     string         `json:"action,omitempty"`
	Status     string         `json:"status"` // "success", "failure", "denied"
	Message    string         `json:"message,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Event types recorded by the dispatcher.
const (
	EventAccessGranted   = "access.granted"
	EventAccessDenied    = "access.denied"
	EventActionFailed    = "access.action_failed"
	EventResourceCreated = "resource.created"
	EventMaskGranted     = "mask.granted"
	EventMaskRevoked     = "mask.revoked"
)

// Filter narrows event queries.
type Filter struct {
	ActorID    string
	ResourceID string
	Types      []string
	StartTime  time.Time
	EndTime    time.Time
	Limit      int
}

// Store defines the interface for persisting and querying audit events.
type Store interface {
	SaveEvent(ctx context.Context, event *Event) error
	Query(ctx context.Context, filter Filter) ([]Event, error)
}

// Logger persists events, stamping ids and timestamps.
type Logger struct {
	store Store
	idgen func() string
}

// LoggerOption configures a Logger.
type LoggerOption func(*Logger)

// WithIDGenerator overrides event id generation.
func WithIDGenerator(gen func() string) LoggerOption {
	return func(l *Logger) {
		l.idgen = gen
	}
}

// NewLogger creates an audit logger over the given store.
func NewLogger(store Store, opts ...LoggerOption) *Logger {
	l := &Logger{
		store: store,
		idgen: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log persists the event, filling in id and timestamp when absent.
func (l *Logger) Log(ctx context.Context, event *Event) error {
	if l == nil || l.store == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = l.idgen()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	return l.store.SaveEvent(ctx, event)
}

// Query delegates to the store.
func (l *Logger) Query(ctx context.Context, filter Filter) ([]Event, error) {
	return l.store.Query(ctx, filter)
}
