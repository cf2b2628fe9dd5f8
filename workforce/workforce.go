// Package workforce runs a set of agents concurrently, each working through
// its own inbox of tasks, and routes messages between them.
//
// A Workforce is an explicit lifetime object:
//
//	wf := workforce.New(opts...)
//	wf.AddWorker(a) // for every agent
//	wf.Start(ctx)
//	defer wf.Close()
//	err := wf.ProcessTask(ctx, task)
//
// Each agent handles one task at a time; different agents run in parallel.
package workforce

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/encapt/core"
	"github.com/hupe1980/encapt/journal"
	"github.com/hupe1980/encapt/logging"
)

var (
	// ErrStarted is returned when workers are added or Start is called twice.
	ErrStarted = errors.New("workforce already started")
	// ErrNotStarted is returned when tasks are processed before Start.
	ErrNotStarted = errors.New("workforce not started")
	// ErrDuplicateWorker is returned when two agents share a name.
	ErrDuplicateWorker = errors.New("duplicate worker")
	// ErrBusy is returned when a new task is processed while tasks of an
	// abandoned earlier run are still in flight.
	ErrBusy = errors.New("workforce busy with an earlier run")
)

// Options configure a Workforce.
type Options struct {
	// MaxTasks bounds the tasks created per ProcessTask call, the root task
	// included. Zero disables the limit.
	MaxTasks int
	// ReplyTimeout bounds how long Router.Ask waits. Zero waits until the
	// caller's context ends.
	ReplyTimeout time.Duration
	Journal      journal.Store
	Logger       logging.Logger
}

// Workforce owns the channel, the router and one goroutine per agent.
type Workforce struct {
	channel *Channel
	router  *Router
	journal journal.Store
	logger  logging.Logger

	mu      sync.Mutex
	agents  map[string]core.Agent
	order   []string
	started bool
	runID   string
	cancel  context.CancelFunc
	group   *errgroup.Group

	runMu sync.Mutex // serializes ProcessTask

	closeOnce sync.Once
	closeErr  error
}

// New creates a workforce without workers.
func New(optFns ...func(o *Options)) *Workforce {
	opts := Options{
		MaxTasks:     100,
		ReplyTimeout: 5 * time.Minute,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	channel := NewChannel()
	w := &Workforce{
		channel: channel,
		router:  NewRouter(channel, opts.MaxTasks, opts.Logger),
		journal: opts.Journal,
		logger:  opts.Logger,
		agents:  map[string]core.Agent{},
	}
	w.router.observe = w.record
	w.router.replyTimeout = opts.ReplyTimeout
	return w
}

// AddWorker registers an agent. Workers must be added before Start.
func (w *Workforce) AddWorker(a core.Agent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrStarted
	}
	if _, dup := w.agents[a.Name()]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateWorker, a.Name())
	}
	w.agents[a.Name()] = a
	w.order = append(w.order, a.Name())
	w.channel.Register(a.Name())
	return nil
}

// Workers returns the registered agent names in registration order.
func (w *Workforce) Workers() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.order...)
}

// Router returns the message router.
func (w *Workforce) Router() *Router { return w.router }

// Channel returns the task channel.
func (w *Workforce) Channel() *Channel { return w.channel }

// Start launches one goroutine per worker. The goroutines stop when ctx is
// cancelled or Close is called.
func (w *Workforce) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrStarted
	}
	w.started = true

	ctx, w.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	w.group = g

	for _, name := range w.order {
		a := w.agents[name]
		g.Go(func() error { return w.loop(gctx, a) })
	}

	w.logger.Info("workforce.started", "workers", len(w.order))
	return nil
}

func (w *Workforce) loop(ctx context.Context, a core.Agent) error {
	for {
		task, err := w.channel.Next(ctx, a.Name())
		if err != nil {
			if errors.Is(err, ErrChannelClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		w.run(ctx, a, task)
	}
}

func (w *Workforce) run(ctx context.Context, a core.Agent, task *core.Task) {
	defer w.channel.Finish(task)

	task.SetState(core.TaskRunning)
	w.record(ctx, task, core.TaskRunning)
	w.logger.Info("workforce.task.start", "agent", a.Name(), "task", task.ID, "kind", task.Kind, "from", task.From)

	result, err := w.process(ctx, a, task)
	task.Complete(result, err)
	w.record(ctx, task, task.State())

	if err != nil {
		w.logger.Error("workforce.task.failed", "agent", a.Name(), "task", task.ID, "error", err.Error())
	} else {
		w.logger.Info("workforce.task.done", "agent", a.Name(), "task", task.ID)
	}

	// Replies must be posted before Finish so the channel never looks idle
	// between a message and its answer.
	w.router.Completed(ctx, task)
}

func (w *Workforce) process(ctx context.Context, a core.Agent, task *core.Task) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("workforce.agent.panic", "agent", a.Name(), "task", task.ID, "recover", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("agent %s panicked: %v", a.Name(), r)
		}
	}()
	return a.Process(ctx, task)
}

// ProcessTask submits task to task.To, waits until it completed and the
// channel is idle, and returns the task's error. Calls are serialized. When
// ctx ends early the tasks already queued keep running, and later calls fail
// with ErrBusy until they are finished.
func (w *Workforce) ProcessTask(ctx context.Context, task *core.Task) error {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return ErrNotStarted
	}
	if n := w.channel.InFlight(); n > 0 {
		w.mu.Unlock()
		return fmt.Errorf("%w: %d tasks in flight", ErrBusy, n)
	}
	w.runID = task.ID
	w.mu.Unlock()

	w.router.ResetBudget()
	if err := w.router.Submit(ctx, task); err != nil {
		return fmt.Errorf("submit task %s: %w", task.ID, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-task.Done():
	}
	if err := w.channel.WaitIdle(ctx); err != nil {
		return err
	}

	_, err := task.Result()
	return err
}

// History returns every task submitted so far in submission order.
func (w *Workforce) History() []*core.Task { return w.router.Tasks() }

// Close stops all workers and waits for them to exit. Queued tasks fail with
// ErrChannelClosed. Close is idempotent.
func (w *Workforce) Close() error {
	w.closeOnce.Do(func() {
		w.channel.Close()

		w.mu.Lock()
		cancel, group := w.cancel, w.group
		w.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if group != nil {
			w.closeErr = group.Wait()
		}
		w.logger.Info("workforce.closed")
	})
	return w.closeErr
}

func (w *Workforce) record(ctx context.Context, task *core.Task, state core.TaskState) {
	if w.journal == nil {
		return
	}

	w.mu.Lock()
	runID := w.runID
	w.mu.Unlock()

	e := journal.Entry{
		RunID:     runID,
		TaskID:    task.ID,
		Kind:      string(task.Kind),
		From:      task.From,
		To:        task.To,
		InReplyTo: task.InReplyTo,
		State:     string(state),
	}
	switch state {
	case core.TaskEnqueued:
		e.Content = task.Content
	case core.TaskDone, core.TaskFailed:
		result, err := task.Result()
		e.Result = result
		if err != nil {
			e.Error = err.Error()
		}
	}

	if err := w.journal.Record(context.WithoutCancel(ctx), e); err != nil {
		w.logger.Warn("workforce.journal.error", "task", task.ID, "error", err.Error())
	}
}
