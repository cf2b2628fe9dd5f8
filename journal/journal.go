// Package journal records task lifecycle transitions so that a run can be
// inspected afterwards. Backends are interchangeable behind Store; only the
// wiring layer decides which one to instantiate.
package journal

import (
	"context"
	"time"
)

// Entry is one recorded task transition.
type Entry struct {
	Seq       int64
	RunID     string
	TaskID    string
	Kind      string
	From      string
	To        string
	InReplyTo string
	State     string
	Content   string
	Result    string
	Error     string
	At        time.Time
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	RunID  string
	TaskID string
	Agent  string // matches From or To
	Limit  int    // most recent entries when > 0
}

func (f Filter) match(e Entry) bool {
	if f.RunID != "" && e.RunID != f.RunID {
		return false
	}
	if f.TaskID != "" && e.TaskID != f.TaskID {
		return false
	}
	if f.Agent != "" && e.From != f.Agent && e.To != f.Agent {
		return false
	}
	return true
}

// Store persists journal entries.
type Store interface {
	Record(ctx context.Context, e Entry) error
	// List returns matching entries ordered by Seq ascending.
	List(ctx context.Context, f Filter) ([]Entry, error)
	Close() error
}
