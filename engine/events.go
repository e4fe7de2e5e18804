package engine

import (
	"sync"
	"time"
)

// EventKind identifies the type of run event.
type EventKind string

const (
	EventRunStarted         EventKind = "run_started"
	EventSectionStarted     EventKind = "section_started"
	EventIterationCompleted EventKind = "iteration_completed"
	EventSectionConverged   EventKind = "section_converged"
	EventSectionFailed      EventKind = "section_failed"
	EventConsistencyStarted EventKind = "consistency_started"
	EventRunCompleted       EventKind = "run_completed"
	EventWarning            EventKind = "warning"
)

// Event is a typed progress notification emitted during a run.
type Event struct {
	Kind      EventKind              `json:"kind"`
	Timestamp time.Time              `json:"timestamp"`
	RunID     string                 `json:"run_id"`
	SectionID string                 `json:"section_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Emitter delivers events to observers over a buffered channel. Emission
// never blocks the engine: if no consumer keeps up, events are dropped, so
// an unsubscribed or slow observer cannot affect run correctness.
type Emitter struct {
	runID  string
	ch     chan Event
	closed bool
	mu     sync.Mutex
}

// NewEmitter creates an Emitter with the given channel capacity.
func NewEmitter(runID string, bufferSize int) *Emitter {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Emitter{
		runID: runID,
		ch:    make(chan Event, bufferSize),
	}
}

// Emit sends an event. Dropped silently if the emitter is closed or the
// channel is full.
func (e *Emitter) Emit(kind EventKind, sectionID string, data map[string]interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	event := Event{
		Kind:      kind,
		Timestamp: time.Now(),
		RunID:     e.runID,
		SectionID: sectionID,
		Data:      data,
	}
	select {
	case e.ch <- event:
	default:
		// Channel full; drop rather than stall a section worker.
	}
}

// Events returns the read-only event channel.
func (e *Emitter) Events() <-chan Event {
	return e.ch
}

// Close closes the event channel. Safe to call multiple times.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}
