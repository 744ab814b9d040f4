// Package audit records every write a command makes to the backend.
package audit

import (
	"fmt"
	"time"
)

// Operation is the kind of backend write.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Event represents one audited backend write
type Event struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	User      string                 `json:"user"`
	Mode      string                 `json:"mode"`
	Command   string                 `json:"command"`
	ObjType   string                 `json:"obj_type"`
	Operation Operation              `json:"operation"`
	Key       string                 `json:"key,omitempty"`
	Changes   map[string]interface{} `json:"changes,omitempty"`
	Success   bool                   `json:"success"`
	Error     string                 `json:"error,omitempty"`
	Duration  time.Duration          `json:"duration"`
}

// Filter defines criteria for querying audit events
type Filter struct {
	User        string
	ObjType     string
	Operation   Operation
	StartTime   time.Time
	EndTime     time.Time
	SuccessOnly bool
	FailureOnly bool
	Limit       int
	Offset      int
}

// NewEvent creates a new audit event
func NewEvent(user, objType string, op Operation) *Event {
	return &Event{
		ID:        generateID(),
		Timestamp: time.Now(),
		User:      user,
		ObjType:   objType,
		Operation: op,
	}
}

// WithCommand records the command line and the mode it ran in
func (e *Event) WithCommand(mode, line string) *Event {
	e.Mode = mode
	e.Command = line
	return e
}

// WithKey sets the primary key of the written row
func (e *Event) WithKey(key string) *Event {
	e.Key = key
	return e
}

// WithChanges sets the written fields
func (e *Event) WithChanges(changes map[string]interface{}) *Event {
	e.Changes = changes
	return e
}

// WithResult marks the event successful when err is nil, failed otherwise
func (e *Event) WithResult(err error) *Event {
	e.Success = err == nil
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithDuration sets the operation duration
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}

// Matches reports whether e satisfies every criterion set in f.
func (f Filter) Matches(e *Event) bool {
	if f.User != "" && e.User != f.User {
		return false
	}
	if f.ObjType != "" && e.ObjType != f.ObjType {
		return false
	}
	if f.Operation != "" && e.Operation != f.Operation {
		return false
	}
	if !f.StartTime.IsZero() && e.Timestamp.Before(f.StartTime) {
		return false
	}
	if !f.EndTime.IsZero() && e.Timestamp.After(f.EndTime) {
		return false
	}
	if f.SuccessOnly && !e.Success {
		return false
	}
	if f.FailureOnly && e.Success {
		return false
	}
	return true
}

// page applies the filter's offset and limit.
func (f Filter) page(events []*Event) []*Event {
	if f.Offset > 0 {
		if f.Offset >= len(events) {
			return nil
		}
		events = events[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(events) {
		events = events[:f.Limit]
	}
	return events
}

func generateID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
