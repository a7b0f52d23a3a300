package pipeline

import "fmt"

// EventStatus is the state of a stage within a run, as reported to observers.
type EventStatus string

const (
	EventPending   EventStatus = "pending"
	EventWorking   EventStatus = "working"
	EventCompleted EventStatus = "completed"
	EventFailed    EventStatus = "failed"
)

// Event is emitted to observers while a project builds.
type Event struct {
	ProjectID string
	Stage     Stage
	Status    EventStatus
	Message   string
}

// Reporter emits progress events through a buffered channel.
type Reporter struct {
	ch chan Event
}

// NewReporter creates a Reporter with a buffered channel of size 64.
func NewReporter() *Reporter {
	return &Reporter{
		ch: make(chan Event, 64),
	}
}

// Emit sends a progress event in a non-blocking fashion.
// If the channel is full, the event is silently dropped.
func (r *Reporter) Emit(event Event) {
	select {
	case r.ch <- event:
	default:
		// Drop the event if the channel is full.
	}
}

// Subscribe returns a read-only channel for consuming progress events.
func (r *Reporter) Subscribe() <-chan Event {
	return r.ch
}

// Close closes the progress event channel.
func (r *Reporter) Close() {
	close(r.ch)
}

// FormatEvent formats an Event as a human-readable status line.
func FormatEvent(event Event) string {
	switch event.Status {
	case EventPending:
		return fmt.Sprintf("  ○ %s (pending)", event.Stage)
	case EventWorking:
		return fmt.Sprintf("  ● %s...", event.Stage)
	case EventCompleted:
		return fmt.Sprintf("  ✓ %s complete", event.Stage)
	case EventFailed:
		return fmt.Sprintf("  ✗ %s failed: %s", event.Stage, event.Message)
	default:
		return fmt.Sprintf("  ? %s (unknown status)", event.Stage)
	}
}
