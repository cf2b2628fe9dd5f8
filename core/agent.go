package core

import "context"

// Agent is anything addressable by name that can process a task into text.
//
// Implementations must respect ctx cancellation and must be safe to call from
// a single dedicated goroutine; the workforce never runs two tasks on the same
// agent concurrently.
type Agent interface {
	Name() string
	Description() string
	Process(ctx context.Context, task *Task) (string, error)
}
