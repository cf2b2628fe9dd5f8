// Package encapt coordinates one coordinator agent and one agent per bean of
// a Kotlin/Quarkus project so that together they implement change requests:
// editing bean files, running tests and messaging each other.
//
// Most applications use this package by:
//  1. Loading a config.Config (config.Load)
//  2. Creating an Encapt via New, which loads beans, builds the team and
//     starts the workforce
//  3. Calling ProcessChangeRequest for each request and Result to read it
//  4. Calling Close when done
package encapt

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/encapt/bean"
	"github.com/hupe1980/encapt/config"
	"github.com/hupe1980/encapt/core"
	"github.com/hupe1980/encapt/journal"
	"github.com/hupe1980/encapt/logging"
	"github.com/hupe1980/encapt/model"
	"github.com/hupe1980/encapt/model/anthropic"
	"github.com/hupe1980/encapt/model/openai"
	"github.com/hupe1980/encapt/prompt"
	"github.com/hupe1980/encapt/team"
	"github.com/hupe1980/encapt/tool"
	"github.com/hupe1980/encapt/toolkit"
	"github.com/hupe1980/encapt/workforce"
	"github.com/hupe1980/encapt/workspace"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
)

// ExampleChangeRequest is the sample request used by `encapt run --example`.
const ExampleChangeRequest = `Implement a new feature: Add a method in UserService to retrieve the user's order history,
and create a new OrderHistoryService to handle the retrieval of order history.
Ensure proper error handling and update the documentation accordingly.
Then, run tests to verify the changes.`

// Options overrides collaborators built from the config.
type Options struct {
	Model      model.Model
	TestRunner workspace.TestRunner
	Journal    journal.Store
	Logger     logging.Logger
}

// Encapt is a running team of agents over one project.
type Encapt struct {
	cfg       config.Config
	beans     []bean.Bean
	team      *team.Team
	workforce *workforce.Workforce
	journal   journal.Store
	logger    logging.Logger
}

// New loads the beans, builds the team and starts the workforce.
func New(ctx context.Context, cfg config.Config, optFns ...func(o *Options)) (*Encapt, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewLogger(&logging.Config{
			Level:  logging.ParseLevel(cfg.Logging.Level),
			Format: cfg.Logging.Format,
		})
	}
	logger := opts.Logger

	if err := config.Check(&cfg); err != nil {
		return nil, err
	}

	beans, err := LoadBeans(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("encapt.beans.loaded", "count", len(beans), "dir", cfg.Project.BeansPath())

	if opts.Model == nil {
		if opts.Model, err = NewModel(cfg.Model); err != nil {
			return nil, err
		}
	}

	ws, err := workspace.New(cfg.Project.BeansPath(), func(o *workspace.Options) {
		o.Extension = cfg.Project.Extension
		o.Logger = logger
	})
	if err != nil {
		return nil, err
	}

	if opts.TestRunner == nil {
		opts.TestRunner = workspace.NewCommandRunner(cfg.Project.Root, func(o *workspace.CommandRunnerOptions) {
			o.Command = cfg.Tests.Command
			o.Package = cfg.Project.Package
			o.Timeout = time.Duration(cfg.Tests.TimeoutSeconds) * time.Second
			o.MaxOutputBytes = cfg.Tests.MaxOutputBytes
			o.Logger = logger
		})
	}

	ownJournal := false
	if opts.Journal == nil {
		if opts.Journal, err = OpenJournal(cfg.Journal, logger); err != nil {
			return nil, err
		}
		ownJournal = true
	}

	wf := workforce.New(func(o *workforce.Options) {
		o.MaxTasks = cfg.Workforce.MaxTasks
		o.ReplyTimeout = time.Duration(cfg.Workforce.ReplyTimeoutSeconds) * time.Second
		o.Journal = opts.Journal
		o.Logger = logger
	})

	deps := toolkit.Deps{
		Workspace: ws,
		Tests:     opts.TestRunner,
		Messenger: wf.Router(),
		Logger: logger,
	}

	tm, err := team.Build(beans, opts.Model, func(scope toolkit.Scope) []tool.Tool {
		return toolkit.New(deps, scope)
	}, teamOptions(cfg, logger))
	if err != nil {
		return nil, closeOnError(ownJournal, opts.Journal, err)
	}

	for _, a := range tm.Agents() {
		if err := wf.AddWorker(a); err != nil {
			return nil, closeOnError(ownJournal, opts.Journal, err)
		}
	}
	if err := wf.Start(ctx); err != nil {
		return nil, closeOnError(ownJournal, opts.Journal, err)
	}

	e := &Encapt{
		cfg:       cfg,
		beans:     beans,
		team:      tm,
		workforce: wf,
		logger:    logger,
	}
	if ownJournal {
		e.journal = opts.Journal
	}
	return e, nil
}

// Beans returns the loaded beans.
func (e *Encapt) Beans() []bean.Bean { return e.beans }

// Team returns the agents.
func (e *Encapt) Team() *team.Team { return e.team }

// Workforce returns the running workforce.
func (e *Encapt) Workforce() *workforce.Workforce { return e.workforce }

// ProcessChangeRequest submits request to the coordinator and blocks until
// it and every task it caused have finished.
func (e *Encapt) ProcessChangeRequest(ctx context.Context, request string) (*core.Task, error) {
	task := core.NewTask(core.TaskKindChangeRequest, prompt.ChangeRequest(request), "", e.team.Coordinator.Name())

	start := time.Now()
	e.logger.Info("encapt.request.start", "task", task.ID)

	if err := e.workforce.ProcessTask(ctx, task); err != nil {
		e.logger.Error("encapt.request.failed", "task", task.ID, "error", err.Error())
		return task, err
	}

	e.logger.Info("encapt.request.done", "task", task.ID, "tasks", len(e.workforce.History()), "duration", time.Since(start))
	return task, nil
}

// Result returns the <result> payload of a finished task, or its whole text
// when the model forgot the tags.
func Result(task *core.Task) string {
	result, _ := task.Result()
	return prompt.ExtractOr(result, prompt.ResultTag)
}

// Close stops the workforce and closes the journal it opened.
func (e *Encapt) Close() error {
	err := e.workforce.Close()
	if e.journal != nil {
		if jerr := e.journal.Close(); err == nil {
			err = jerr
		}
	}
	return err
}

// LoadBeans loads the beans of the configured project.
func LoadBeans(ctx context.Context, cfg config.Config) ([]bean.Bean, error) {
	return bean.Load(ctx, cfg.Project.BeansPath(), func(o *bean.Options) {
		o.Extension = cfg.Project.Extension
		o.DocOpen = cfg.Project.DocOpen
		o.DocClose = cfg.Project.DocClose
	})
}

// BuildTeam builds the agents for beans without starting anything. Tools are
// bound to scopes but must not be called.
func BuildTeam(cfg config.Config, beans []bean.Bean, llm model.Model) (*team.Team, error) {
	return team.Build(beans, llm, func(toolkit.Scope) []tool.Tool { return nil }, teamOptions(cfg, logging.NoOpLogger{}))
}

func teamOptions(cfg config.Config, logger logging.Logger) func(o *team.Options) {
	return func(o *team.Options) {
		o.Coordinator = cfg.Agents.Coordinator
		o.Extension = cfg.Project.Extension
		o.EnforceOwnership = cfg.Tools.EnforceOwnership
		o.MaxTurns = cfg.Agents.MaxTurns
		o.MaxHistoryMessages = cfg.Agents.MaxHistory
		o.ToolTimeout = time.Duration(cfg.Agents.ToolTimeoutSeconds) * time.Second
		o.Logger = logger
	}
}

// NewModel creates the configured model provider.
func NewModel(cfg config.ModelConfig) (model.Model, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			o.Temperature = cfg.Temperature
			if cfg.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(cfg.MaxTokens)
			}
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Name != "" {
				o.Model = sdkanthropic.Model(cfg.Name)
			}
			o.Temperature = cfg.Temperature
			if cfg.MaxTokens > 0 {
				o.MaxTokens = int64(cfg.MaxTokens)
			}
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		}), nil
	case "mock":
		return model.NewMockModel(cfg.Name), nil
	default:
		return nil, &config.ConfigError{Message: fmt.Sprintf("unknown model provider %q", cfg.Provider)}
	}
}

// OpenJournal opens the configured journal backend.
func OpenJournal(cfg config.JournalConfig, logger logging.Logger) (journal.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return journal.NewInMemoryStore(), nil
	case "sqlite":
		store, err := journal.OpenSQLite(cfg.Path, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, &config.ConfigError{Message: fmt.Sprintf("unknown journal driver %q", cfg.Driver)}
	}
}

func closeOnError(own bool, store journal.Store, err error) error {
	if own {
		_ = store.Close()
	}
	return err
}
