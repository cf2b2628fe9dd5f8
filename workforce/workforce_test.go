package workforce

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/encapt/core"
	"github.com/hupe1980/encapt/journal"
)

type funcAgent struct {
	name string
	fn   func(ctx context.Context, task *core.Task) (string, error)
}

func (a *funcAgent) Name() string        { return a.name }
func (a *funcAgent) Description() string { return "test agent " + a.name }
func (a *funcAgent) Process(ctx context.Context, task *core.Task) (string, error) {
	return a.fn(ctx, task)
}

func reply(text string) func(context.Context, *core.Task) (string, error) {
	return func(context.Context, *core.Task) (string, error) { return text, nil }
}

func startWorkforce(t *testing.T, wf *Workforce, agents ...core.Agent) {
	t.Helper()
	for _, a := range agents {
		require.NoError(t, wf.AddWorker(a))
	}
	require.NoError(t, wf.Start(context.Background()))
	t.Cleanup(func() { _ = wf.Close() })
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestWorkforce_ProcessTask(t *testing.T) {
	wf := New()
	startWorkforce(t, wf, &funcAgent{name: "Manager", fn: reply("<result>done</result>")})

	task := core.NewTask(core.TaskKindChangeRequest, "do it", "", "Manager")
	require.NoError(t, wf.ProcessTask(testCtx(t), task))

	assert.Equal(t, core.TaskDone, task.State())
	result, err := task.Result()
	require.NoError(t, err)
	assert.Equal(t, "<result>done</result>", result)
	assert.Equal(t, []*core.Task{task}, wf.History())
}

func TestWorkforce_MessageAndReplyRouting(t *testing.T) {
	wf := New()

	var (
		mu       sync.Mutex
		received = map[string][]*core.Task{}
		msgID    string
	)
	track := func(name string, task *core.Task) {
		mu.Lock()
		defer mu.Unlock()
		received[name] = append(received[name], task)
	}

	manager := &funcAgent{name: "Manager", fn: func(ctx context.Context, task *core.Task) (string, error) {
		track("Manager", task)
		if task.Kind == core.TaskKindChangeRequest {
			id, err := wf.Router().Send(ctx, "Manager", "UserService", "add getOrders")
			if err != nil {
				return "", err
			}
			mu.Lock()
			msgID = id
			mu.Unlock()
		}
		return "<result>ok</result>", nil
	}}
	user := &funcAgent{name: "UserService", fn: func(_ context.Context, task *core.Task) (string, error) {
		track("UserService", task)
		return "<response>added</response>", nil
	}}
	other := &funcAgent{name: "OrderService", fn: func(_ context.Context, task *core.Task) (string, error) {
		track("OrderService", task)
		return "", nil
	}}
	startWorkforce(t, wf, manager, user, other)

	root := core.NewTask(core.TaskKindChangeRequest, "request", "", "Manager")
	require.NoError(t, wf.ProcessTask(testCtx(t), root))

	mu.Lock()
	defer mu.Unlock()

	assert.Empty(t, received["OrderService"])
	require.Len(t, received["UserService"], 1)
	msg := received["UserService"][0]
	assert.Equal(t, core.TaskKindMessage, msg.Kind)
	assert.Equal(t, "Manager", msg.From)
	assert.Contains(t, msg.Content, "You have received a message from Manager:\n\nadd getOrders")

	require.Len(t, received["Manager"], 2)
	rep := received["Manager"][1]
	assert.Equal(t, core.TaskKindReply, rep.Kind)
	assert.Equal(t, msg.ID, rep.InReplyTo)
	assert.Equal(t, msgID, rep.InReplyTo)
	assert.Contains(t, rep.Content, "added")
	assert.NotContains(t, rep.Content, "<response>added</response>")

	assert.Len(t, wf.History(), 3)
	ids := map[string]bool{}
	for _, task := range wf.History() {
		ids[task.ID] = true
	}
	assert.Len(t, ids, 3)
}

func TestWorkforce_FailedMessageRepliesWithError(t *testing.T) {
	wf := New()
	var replyContent atomic.Value

	manager := &funcAgent{name: "Manager", fn: func(ctx context.Context, task *core.Task) (string, error) {
		switch task.Kind {
		case core.TaskKindChangeRequest:
			_, err := wf.Router().Send(ctx, "Manager", "UserService", "please")
			return "", err
		case core.TaskKindReply:
			replyContent.Store(task.Content)
		}
		return "", nil
	}}
	user := &funcAgent{name: "UserService", fn: func(context.Context, *core.Task) (string, error) {
		return "", errors.New("compile error")
	}}
	startWorkforce(t, wf, manager, user)

	require.NoError(t, wf.ProcessTask(testCtx(t), core.NewTask(core.TaskKindChangeRequest, "go", "", "Manager")))
	assert.Contains(t, replyContent.Load(), "UserService could not process your message: compile error")
}

func TestWorkforce_TaskBudgetStopsStorm(t *testing.T) {
	wf := New(func(o *Options) { o.MaxTasks = 5 })

	var budgetErrs atomic.Int32
	pingPong := func(self, peer string) *funcAgent {
		return &funcAgent{name: self, fn: func(ctx context.Context, task *core.Task) (string, error) {
			if _, err := wf.Router().Send(ctx, self, peer, "ping"); err != nil {
				if errors.Is(err, ErrTaskBudget) {
					budgetErrs.Add(1)
				}
			}
			return "<response>pong</response>", nil
		}}
	}
	startWorkforce(t, wf, pingPong("A", "B"), pingPong("B", "A"))

	require.NoError(t, wf.ProcessTask(testCtx(t), core.NewTask(core.TaskKindChangeRequest, "start", "", "A")))

	assert.Len(t, wf.History(), 5)
	assert.Positive(t, budgetErrs.Load())
}

func TestWorkforce_AgentProcessesSequentially(t *testing.T) {
	wf := New()

	var active, maxActive atomic.Int32
	worker := &funcAgent{name: "UserService", fn: func(context.Context, *core.Task) (string, error) {
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		active.Add(-1)
		return "", nil
	}}
	manager := &funcAgent{name: "Manager", fn: func(ctx context.Context, task *core.Task) (string, error) {
		if task.Kind != core.TaskKindChangeRequest {
			return "", nil
		}
		for i := 0; i < 3; i++ {
			if _, err := wf.Router().Send(ctx, "Manager", "UserService", "work"); err != nil {
				return "", err
			}
		}
		return "", nil
	}}
	startWorkforce(t, wf, manager, worker)

	require.NoError(t, wf.ProcessTask(testCtx(t), core.NewTask(core.TaskKindChangeRequest, "go", "", "Manager")))
	assert.Equal(t, int32(1), maxActive.Load())
	assert.Len(t, wf.History(), 7)
}

func TestWorkforce_ErrorsPropagate(t *testing.T) {
	wf := New()
	startWorkforce(t, wf,
		&funcAgent{name: "Fail", fn: func(context.Context, *core.Task) (string, error) { return "", errors.New("model down") }},
		&funcAgent{name: "Panic", fn: func(context.Context, *core.Task) (string, error) { panic("boom") }},
	)

	task := core.NewTask(core.TaskKindChangeRequest, "x", "", "Fail")
	err := wf.ProcessTask(testCtx(t), task)
	require.EqualError(t, err, "model down")
	assert.Equal(t, core.TaskFailed, task.State())

	err = wf.ProcessTask(testCtx(t), core.NewTask(core.TaskKindChangeRequest, "x", "", "Panic"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestWorkforce_Lifecycle(t *testing.T) {
	wf := New()
	a := &funcAgent{name: "A", fn: reply("")}

	assert.ErrorIs(t, wf.ProcessTask(context.Background(), core.NewTask(core.TaskKindChangeRequest, "x", "", "A")), ErrNotStarted)

	require.NoError(t, wf.AddWorker(a))
	assert.ErrorIs(t, wf.AddWorker(a), ErrDuplicateWorker)
	require.NoError(t, wf.Start(context.Background()))
	assert.ErrorIs(t, wf.Start(context.Background()), ErrStarted)
	assert.ErrorIs(t, wf.AddWorker(&funcAgent{name: "B", fn: reply("")}), ErrStarted)
	assert.Equal(t, []string{"A"}, wf.Workers())

	err := wf.ProcessTask(context.Background(), core.NewTask(core.TaskKindChangeRequest, "x", "", "Ghost"))
	assert.ErrorIs(t, err, ErrUnknownAgent)

	_, err = wf.Router().Send(context.Background(), "A", "Ghost", "hi")
	assert.ErrorIs(t, err, ErrUnknownAgent)

	require.NoError(t, wf.Close())
	require.NoError(t, wf.Close())

	err = wf.ProcessTask(context.Background(), core.NewTask(core.TaskKindChangeRequest, "x", "", "A"))
	assert.ErrorIs(t, err, ErrChannelClosed)
}

func TestWorkforce_CloseCancelsRunningTask(t *testing.T) {
	wf := New()
	started := make(chan struct{})
	startWorkforce(t, wf, &funcAgent{name: "Slow", fn: func(ctx context.Context, _ *core.Task) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	}})

	task := core.NewTask(core.TaskKindChangeRequest, "x", "", "Slow")
	errCh := make(chan error, 1)
	go func() { errCh <- wf.ProcessTask(context.Background(), task) }()

	<-started
	require.NoError(t, wf.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("ProcessTask did not return after Close")
	}
}

func TestWorkforce_Journal(t *testing.T) {
	store := journal.NewInMemoryStore()
	wf := New(func(o *Options) { o.Journal = store })
	startWorkforce(t, wf, &funcAgent{name: "Manager", fn: reply("<result>ok</result>")})

	task := core.NewTask(core.TaskKindChangeRequest, "req", "", "Manager")
	require.NoError(t, wf.ProcessTask(testCtx(t), task))

	entries, err := store.List(context.Background(), journal.Filter{TaskID: task.ID})
	require.NoError(t, err)

	states := make([]string, 0, len(entries))
	for _, e := range entries {
		states = append(states, e.State)
		assert.Equal(t, task.ID, e.RunID)
	}
	assert.ElementsMatch(t, []string{"enqueued", "running", "done"}, states)
	for _, e := range entries {
		if e.State == "done" {
			assert.Equal(t, "<result>ok</result>", e.Result)
		}
		if e.State == "enqueued" {
			assert.Equal(t, "req", e.Content)
		}
	}
}

func TestRouter_AskReturnsResponseInline(t *testing.T) {
	wf := New()

	var (
		mu      sync.Mutex
		got     string
		askErr  error
		manager []*core.Task
	)
	startWorkforce(t, wf,
		&funcAgent{name: "Manager", fn: func(ctx context.Context, task *core.Task) (string, error) {
			mu.Lock()
			manager = append(manager, task)
			mu.Unlock()
			if task.Kind == core.TaskKindChangeRequest {
				resp, err := wf.Router().Ask(ctx, "Manager", "UserService", "how many users?")
				mu.Lock()
				got, askErr = resp, err
				mu.Unlock()
			}
			return "<result>ok</result>", nil
		}},
		&funcAgent{name: "UserService", fn: reply("<response>42</response>")},
	)

	require.NoError(t, wf.ProcessTask(testCtx(t), core.NewTask(core.TaskKindChangeRequest, "go", "", "Manager")))

	mu.Lock()
	defer mu.Unlock()
	require.NoError(t, askErr)
	assert.Equal(t, "42", got)
	assert.Len(t, manager, 1, "an answered ask produces no reply task")
	assert.Len(t, wf.History(), 2)
}

func TestRouter_AskRecipientFailed(t *testing.T) {
	wf := New()

	var askErr atomic.Value
	startWorkforce(t, wf,
		&funcAgent{name: "Manager", fn: func(ctx context.Context, task *core.Task) (string, error) {
			if task.Kind == core.TaskKindChangeRequest {
				_, err := wf.Router().Ask(ctx, "Manager", "UserService", "build it")
				askErr.Store(err)
			}
			return "", nil
		}},
		&funcAgent{name: "UserService", fn: func(context.Context, *core.Task) (string, error) {
			return "", errors.New("compile error")
		}},
	)

	require.NoError(t, wf.ProcessTask(testCtx(t), core.NewTask(core.TaskKindChangeRequest, "go", "", "Manager")))

	err, _ := askErr.Load().(error)
	require.ErrorIs(t, err, ErrRecipientFailed)
	assert.Contains(t, err.Error(), "compile error")
	assert.Len(t, wf.History(), 2)
}

func TestRouter_AskTimeoutFallsBackToReplyTask(t *testing.T) {
	wf := New(func(o *Options) { o.ReplyTimeout = 20 * time.Millisecond })

	release := make(chan struct{})
	var (
		mu      sync.Mutex
		askErr  error
		replies []string
	)
	startWorkforce(t, wf,
		&funcAgent{name: "Manager", fn: func(ctx context.Context, task *core.Task) (string, error) {
			switch task.Kind {
			case core.TaskKindChangeRequest:
				_, err := wf.Router().Ask(ctx, "Manager", "UserService", "slow question")
				mu.Lock()
				askErr = err
				mu.Unlock()
				close(release)
			case core.TaskKindReply:
				mu.Lock()
				replies = append(replies, task.Content)
				mu.Unlock()
			}
			return "", nil
		}},
		&funcAgent{name: "UserService", fn: func(context.Context, *core.Task) (string, error) {
			<-release
			return "<response>late answer</response>", nil
		}},
	)

	require.NoError(t, wf.ProcessTask(testCtx(t), core.NewTask(core.TaskKindChangeRequest, "go", "", "Manager")))

	mu.Lock()
	defer mu.Unlock()
	assert.ErrorIs(t, askErr, ErrReplyTimeout)
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "late answer")
}

func TestWorkforce_ProcessTaskRefusesWhileEarlierRunInFlight(t *testing.T) {
	wf := New()

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	startWorkforce(t, wf, &funcAgent{name: "Slow", fn: func(ctx context.Context, task *core.Task) (string, error) {
		if task.Content == "block" {
			started <- struct{}{}
			<-release
		}
		return "", nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	first := core.NewTask(core.TaskKindChangeRequest, "block", "", "Slow")
	go func() { errCh <- wf.ProcessTask(ctx, first) }()

	<-started
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	err := wf.ProcessTask(testCtx(t), core.NewTask(core.TaskKindChangeRequest, "next", "", "Slow"))
	require.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, wf.Channel().WaitIdle(testCtx(t)))

	second := core.NewTask(core.TaskKindChangeRequest, "next", "", "Slow")
	require.NoError(t, wf.ProcessTask(testCtx(t), second))
	assert.Equal(t, second.ID, wf.History()[len(wf.History())-1].ID)
}

func TestWorkforce_ConcurrentProcessTaskSerialized(t *testing.T) {
	wf := New()

	var active, maxActive atomic.Int32
	startWorkforce(t, wf,
		&funcAgent{name: "A", fn: func(context.Context, *core.Task) (string, error) {
			n := active.Add(1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			active.Add(-1)
			return "", nil
		}},
		&funcAgent{name: "B", fn: func(context.Context, *core.Task) (string, error) {
			n := active.Add(1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			active.Add(-1)
			return "", nil
		}},
	)

	var wg sync.WaitGroup
	for _, to := range []string{"A", "B", "A", "B"} {
		wg.Add(1)
		go func(to string) {
			defer wg.Done()
			assert.NoError(t, wf.ProcessTask(testCtx(t), core.NewTask(core.TaskKindChangeRequest, "x", "", to)))
		}(to)
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive.Load())
	assert.Len(t, wf.History(), 4)
}
