package workforce

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/encapt/core"
)

var (
	// ErrChannelClosed is returned once the channel has been torn down.
	ErrChannelClosed = errors.New("task channel closed")
	// ErrUnknownAgent is returned when a task is addressed to an unregistered agent.
	ErrUnknownAgent = errors.New("unknown agent")
)

// Channel holds one unbounded FIFO inbox per agent and tracks how many
// posted tasks have not finished yet.
type Channel struct {
	mu       sync.Mutex
	inboxes  map[string]*inbox
	inFlight int
	idle     chan struct{}
	closed   bool
	closedCh chan struct{}
}

type inbox struct {
	queue  []*core.Task
	notify chan struct{}
}

// NewChannel creates an empty channel.
func NewChannel() *Channel {
	idle := make(chan struct{})
	close(idle)
	return &Channel{
		inboxes:  map[string]*inbox{},
		idle:     idle,
		closedCh: make(chan struct{}),
	}
}

// Register creates the inbox of agent. Registering twice is a no-op.
func (c *Channel) Register(agent string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.inboxes[agent]; !ok {
		c.inboxes[agent] = &inbox{notify: make(chan struct{}, 1)}
	}
}

// Has reports whether agent has an inbox.
func (c *Channel) Has(agent string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inboxes[agent]
	return ok
}

// Post appends task to the inbox of task.To.
func (c *Channel) Post(ctx context.Context, task *core.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrChannelClosed
	}
	box, ok := c.inboxes[task.To]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, task.To)
	}

	if c.inFlight == 0 {
		c.idle = make(chan struct{})
	}
	c.inFlight++
	box.queue = append(box.queue, task)
	task.SetState(core.TaskEnqueued)

	select {
	case box.notify <- struct{}{}:
	default:
	}
	return nil
}

// Next blocks until a task is available for agent, ctx is done or the
// channel closes.
func (c *Channel) Next(ctx context.Context, agent string) (*core.Task, error) {
	for {
		c.mu.Lock()
		box, ok := c.inboxes[agent]
		if !ok {
			c.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, agent)
		}
		if c.closed {
			c.mu.Unlock()
			return nil, ErrChannelClosed
		}
		if len(box.queue) > 0 {
			task := box.queue[0]
			box.queue[0] = nil
			box.queue = box.queue[1:]
			c.mu.Unlock()
			return task, nil
		}
		notify := box.notify
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.closedCh:
		case <-notify:
		}
	}
}

// Finish marks a task obtained from Next as no longer in flight.
func (c *Channel) Finish(*core.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.release(1)
}

// release must be called with mu held.
func (c *Channel) release(n int) {
	if n <= 0 || c.inFlight == 0 {
		return
	}
	c.inFlight -= n
	if c.inFlight <= 0 {
		c.inFlight = 0
		close(c.idle)
	}
}

// InFlight returns the number of posted but unfinished tasks.
func (c *Channel) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// WaitIdle blocks until no task is in flight.
func (c *Channel) WaitIdle(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-idle:
		return nil
	}
}

// Close tears the channel down. Queued tasks fail with ErrChannelClosed and
// blocked receivers return. Close is idempotent.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.closedCh)

	dropped := 0
	for _, box := range c.inboxes {
		for _, task := range box.queue {
			task.Complete("", ErrChannelClosed)
			dropped++
		}
		box.queue = nil
	}
	c.release(dropped)
}
