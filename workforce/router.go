package workforce

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/encapt/core"
	"github.com/hupe1980/encapt/logging"
	"github.com/hupe1980/encapt/prompt"
)

var (
	// ErrTaskBudget is returned when a run tries to create more tasks than allowed.
	ErrTaskBudget = errors.New("task budget exhausted")
	// ErrReplyTimeout is returned by Ask when the recipient did not answer in
	// time. The answer is then delivered to the sender as a reply task.
	ErrReplyTimeout = errors.New("no reply in time")
	// ErrRecipientFailed is returned by Ask when the recipient's task failed.
	ErrRecipientFailed = errors.New("recipient failed")
)

// Router submits tasks to the channel, enforces the task budget and routes
// answers of inter-agent messages back to their senders.
type Router struct {
	channel      *Channel
	maxTasks     int
	replyTimeout time.Duration
	observe      func(ctx context.Context, task *core.Task, state core.TaskState)
	logger       logging.Logger

	mu      sync.Mutex
	count   int
	tasks   []*core.Task
	pending map[string]*outstanding // by message id
}

// outstanding tracks a message until it completes. While a sender is
// blocked in Ask the answer goes to it directly instead of a reply task.
type outstanding struct {
	awaited bool
}

// NewRouter creates a router over channel. maxTasks <= 0 disables the budget.
func NewRouter(channel *Channel, maxTasks int, logger logging.Logger) *Router {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Router{
		channel:  channel,
		maxTasks: maxTasks,
		logger:   logger,
		pending:  map[string]*outstanding{},
	}
}

// Submit posts task, counting it against the budget.
func (r *Router) Submit(ctx context.Context, task *core.Task) error {
	r.mu.Lock()
	if r.maxTasks > 0 && r.count >= r.maxTasks {
		r.mu.Unlock()
		r.logger.Warn("workforce.budget.exhausted", "task", task.ID, "to", task.To, "max_tasks", r.maxTasks)
		return fmt.Errorf("%w (%d)", ErrTaskBudget, r.maxTasks)
	}
	r.count++
	r.tasks = append(r.tasks, task)
	r.mu.Unlock()

	if err := r.channel.Post(ctx, task); err != nil {
		r.mu.Lock()
		r.count--
		for i := len(r.tasks) - 1; i >= 0; i-- {
			if r.tasks[i] == task {
				r.tasks = append(r.tasks[:i], r.tasks[i+1:]...)
				break
			}
		}
		r.mu.Unlock()
		return err
	}

	r.logger.Debug("workforce.task.enqueued", "task", task.ID, "kind", task.Kind, "from", task.From, "to", task.To)
	if r.observe != nil {
		r.observe(ctx, task, core.TaskEnqueued)
	}
	return nil
}

// Send delivers body from one agent to another without waiting for it to be
// processed. It returns the message id; the recipient's answer reaches the
// sender as a reply task whose InReplyTo carries that id.
func (r *Router) Send(ctx context.Context, from, to, body string) (string, error) {
	task, err := r.send(ctx, from, to, body, false)
	if err != nil {
		return "", err
	}
	return task.ID, nil
}

// Post is Send without the message id.
func (r *Router) Post(ctx context.Context, from, to, body string) error {
	_, err := r.send(ctx, from, to, body, false)
	return err
}

// Ask sends body and blocks until the recipient finished it, ctx ends or the
// reply timeout passes, returning the recipient's <response> payload. When
// Ask gives up the answer is routed back as a reply task like for Send.
func (r *Router) Ask(ctx context.Context, from, to, body string) (string, error) {
	task, err := r.send(ctx, from, to, body, true)
	if err != nil {
		return "", err
	}

	var timeout <-chan time.Time
	if r.replyTimeout > 0 {
		timer := time.NewTimer(r.replyTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	var waitErr error
	select {
	case <-task.Done():
	case <-ctx.Done():
		waitErr = fmt.Errorf("%w: %v", ErrReplyTimeout, ctx.Err())
	case <-timeout:
		waitErr = fmt.Errorf("%w: %s did not answer within %s", ErrReplyTimeout, to, r.replyTimeout)
	}

	if waitErr != nil {
		r.mu.Lock()
		// Completed only runs after the task is terminal, so a task still
		// running here is guaranteed to be answered with a reply task.
		if !task.State().Terminal() {
			if o, ok := r.pending[task.ID]; ok {
				o.awaited = false
			}
			r.mu.Unlock()
			r.logger.Info("workforce.ask.gave_up", "task", task.ID, "from", from, "to", to, "error", waitErr.Error())
			return "", waitErr
		}
		r.mu.Unlock()
	}

	result, err := task.Result()
	if err != nil {
		return "", fmt.Errorf("%w: %s could not process your message: %v", ErrRecipientFailed, to, err)
	}
	return prompt.ExtractOr(result, prompt.ResponseTag), nil
}

func (r *Router) send(ctx context.Context, from, to, body string, awaited bool) (*core.Task, error) {
	if !r.channel.Has(to) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, to)
	}

	task := core.NewTask(core.TaskKindMessage, prompt.Message(from, body), from, to)

	r.mu.Lock()
	r.pending[task.ID] = &outstanding{awaited: awaited}
	r.mu.Unlock()

	if err := r.Submit(ctx, task); err != nil {
		r.mu.Lock()
		delete(r.pending, task.ID)
		r.mu.Unlock()
		return nil, err
	}
	return task, nil
}

// Completed is called after a task reached a terminal state. Answers to
// messages are posted back to the sender unless it is still waiting in Ask;
// replies are never answered.
func (r *Router) Completed(ctx context.Context, task *core.Task) {
	if task.Kind != core.TaskKindMessage {
		return
	}

	r.mu.Lock()
	o, tracked := r.pending[task.ID]
	delete(r.pending, task.ID)
	r.mu.Unlock()

	if !tracked || o.awaited || task.From == "" || !r.channel.Has(task.From) {
		return
	}

	result, err := task.Result()
	body := prompt.ExtractOr(result, prompt.ResponseTag)
	if err != nil {
		body = fmt.Sprintf("%s could not process your message: %v", task.To, err)
	}

	reply := core.NewTask(core.TaskKindReply, prompt.Reply(task.To, body), task.To, task.From)
	reply.InReplyTo = task.ID

	if err := r.Submit(ctx, reply); err != nil {
		r.logger.Warn("workforce.reply.dropped", "in_reply_to", task.ID, "to", task.From, "error", err.Error())
	}
}

// ResetBudget starts a new budget window.
func (r *Router) ResetBudget() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count = 0
}

// Tasks returns every submitted task in submission order.
func (r *Router) Tasks() []*core.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*core.Task(nil), r.tasks...)
}
