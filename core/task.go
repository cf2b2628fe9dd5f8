package core

import (
	"sync"
	"time"
)

// TaskKind classifies why a task exists.
type TaskKind string

const (
	// TaskKindChangeRequest is a top-level request submitted by a user.
	TaskKindChangeRequest TaskKind = "change_request"
	// TaskKindMessage is an inter-agent message (agent A tells agent B X).
	TaskKindMessage TaskKind = "inter_agent_message"
	// TaskKindReply carries a recipient's answer back to the original sender.
	TaskKindReply TaskKind = "inter_agent_reply"
)

// TaskState is the lifecycle position of a task.
type TaskState string

const (
	TaskCreated  TaskState = "created"
	TaskEnqueued TaskState = "enqueued"
	TaskRunning  TaskState = "running"
	TaskDone     TaskState = "done"
	TaskFailed   TaskState = "failed"
)

// Terminal reports whether no further transitions can happen.
func (s TaskState) Terminal() bool { return s == TaskDone || s == TaskFailed }

// Task is a unit of instructed work addressed to an agent. Identity fields are
// immutable after construction; lifecycle fields are guarded and observed via
// accessor methods so that submitters can await completion from another
// goroutine.
type Task struct {
	ID        string
	Kind      TaskKind
	Content   string
	From      string // empty for user submitted tasks
	To        string
	InReplyTo string // correlation id of the message this task answers
	CreatedAt time.Time

	mu          sync.Mutex
	state       TaskState
	result      string
	err         error
	completedAt time.Time
	done        chan struct{}
}

// NewTask creates a task with a fresh unique id in the created state.
func NewTask(kind TaskKind, content, from, to string) *Task {
	return &Task{
		ID:        NewID(),
		Kind:      kind,
		Content:   content,
		From:      from,
		To:        to,
		CreatedAt: time.Now().UTC(),
		state:     TaskCreated,
		done:      make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (t *Task) State() TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetState moves a non-terminal task to a non-terminal state. Use Complete
// for terminal transitions.
func (t *Task) SetState(s TaskState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Terminal() || s.Terminal() {
		return
	}
	t.state = s
}

// Complete records the outcome and releases all waiters. Only the first call
// has an effect.
func (t *Task) Complete(result string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Terminal() {
		return
	}
	t.result = result
	t.err = err
	t.completedAt = time.Now().UTC()
	if err != nil {
		t.state = TaskFailed
	} else {
		t.state = TaskDone
	}
	close(t.done)
}

// Done is closed once the task reaches a terminal state.
func (t *Task) Done() <-chan struct{} { return t.done }

// Result returns the recorded outcome; meaningful after Done is closed.
func (t *Task) Result() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.err
}

// CompletedAt returns the completion timestamp (zero while in flight).
func (t *Task) CompletedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completedAt
}
