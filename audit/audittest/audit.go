// Package audittest provides an in-memory Auditor for tests that need
// to verify which audit events a code path raised.
package audittest

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Event is one captured audit event
type Event struct {
	Source    string
	EventType string
	Identity  string
	ContextID string
	Entries   uint64
	Message   string
}

// Recorder is an audit.Auditor implementation that tracks raised
// events in memory. Safe for concurrent use.
type Recorder struct {
	sync.Mutex
	events []*Event
	closed bool
}

// Audit records a new audit event
func (a *Recorder) Audit(source, eventType, identity, contextID string, entries uint64, message string) {
	a.Lock()
	defer a.Unlock()
	if !a.closed {
		a.events = append(a.events, &Event{
			Source:    source,
			EventType: eventType,
			Identity:  identity,
			ContextID: contextID,
			Entries:   entries,
			Message:   message,
		})
	}
}

// Close stops tracking new events; captured events remain queryable
func (a *Recorder) Close() error {
	a.Lock()
	defer a.Unlock()
	a.closed = true
	return nil
}

// Len returns the number of captured audit events
func (a *Recorder) Len() int {
	a.Lock()
	defer a.Unlock()
	return len(a.events)
}

// Get returns the event at idx
func (a *Recorder) Get(idx int) *Event {
	a.Lock()
	defer a.Unlock()
	return a.events[idx]
}

// GetAll returns a cloned copy of all the events
func (a *Recorder) GetAll() []*Event {
	a.Lock()
	defer a.Unlock()
	result := make([]*Event, len(a.events))
	copy(result, a.events)
	return result
}

// Last returns the most recently recorded event, flagging a test
// error when nothing was recorded
func (a *Recorder) Last(t *testing.T) *Event {
	a.Lock()
	defer a.Unlock()
	length := len(a.events)
	if assert.NotEqual(t, 0, length, "no audit items recorded") {
		return a.events[length-1]
	}
	return nil
}

// MostRecent returns the newest event of the indicated event type, or
// flags a test error if there is none
func (a *Recorder) MostRecent(t *testing.T, eventType string) *Event {
	a.Lock()
	defer a.Unlock()
	for i := len(a.events) - 1; i >= 0; i-- {
		if a.events[i].EventType == eventType {
			return a.events[i]
		}
	}
	assert.Failf(t, "missing audit event", "unable to find an audit event of type '%s' in captured items", eventType)
	return nil
}

// LastEvents returns all events of the event type, newest first
func (a *Recorder) LastEvents(eventType string) []*Event {
	a.Lock()
	defer a.Unlock()
	var matches []*Event
	for i := len(a.events) - 1; i >= 0; i-- {
		if a.events[i].EventType == eventType {
			matches = append(matches, a.events[i])
		}
	}
	return matches
}

// Reset clears captured events and reopens a closed recorder
func (a *Recorder) Reset() {
	a.Lock()
	defer a.Unlock()
	a.events = nil
	a.closed = false
}
