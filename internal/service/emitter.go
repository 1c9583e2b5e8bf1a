package service

import (
	"context"
	"sync"
)

// Events emitted by the services.
const (
	EventBlocksSaved     = "page:blocks-saved"
	EventOrphansRemoved  = "page:orphans-removed"
	EventOrphanCleanFail = "page:orphan-cleanup-failed"
	EventPageCreated     = "page:created"
	EventPageDeleted     = "page:deleted"
	EventPageMoved       = "page:moved"
	EventPageImported    = "page:imported"
	EventBlockChanged    = "block:changed"
	EventAssistantFailed = "assistant:failed"
	EventSweepCompleted  = "maintenance:sweep-completed"
	EventSweepFailed     = "maintenance:sweep-failed"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter — decouples services from the transport
// ─────────────────────────────────────────────────────────────

// EventEmitter receives notable service events. The app implements it with
// its structured logger; services receive the interface so they stay
// testable with a mock emitter.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// NopEmitter discards every event.
type NopEmitter struct{}

func (NopEmitter) Emit(context.Context, string, any) {}

// MockEmitter is a test-friendly EventEmitter that records all calls.
type MockEmitter struct {
	mu     sync.Mutex
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}

// Named returns the recorded events called event.
func (m *MockEmitter) Named(event string) []EmittedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []EmittedEvent
	for _, e := range m.Events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}
