// Package team builds the coordinator and one bean agent per loaded bean.
package team

import (
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/encapt/agent"
	"github.com/hupe1980/encapt/bean"
	"github.com/hupe1980/encapt/logging"
	"github.com/hupe1980/encapt/model"
	"github.com/hupe1980/encapt/prompt"
	"github.com/hupe1980/encapt/tool"
	"github.com/hupe1980/encapt/toolkit"
)

// DefaultCoordinator is the coordinator's agent name.
const DefaultCoordinator = "Manager"

// ErrNameConflict is returned when a bean is named like the coordinator.
var ErrNameConflict = errors.New("bean name conflicts with coordinator")

// ToolsFunc produces the tool set bound to an agent's scope.
type ToolsFunc func(scope toolkit.Scope) []tool.Tool

// Options configure Build.
type Options struct {
	Coordinator        string
	Extension          string
	EnforceOwnership   bool
	MaxTurns           int
	MaxHistoryMessages int
	ToolTimeout        time.Duration
	Logger             logging.Logger
}

// Team is the built set of agents.
type Team struct {
	Coordinator *agent.ModelAgent
	Workers     []*agent.ModelAgent
	Ownership   *toolkit.Ownership
}

// Agents returns the coordinator followed by the workers.
func (t *Team) Agents() []*agent.ModelAgent {
	return append([]*agent.ModelAgent{t.Coordinator}, t.Workers...)
}

// Find returns the agent with the given name.
func (t *Team) Find(name string) (*agent.ModelAgent, bool) {
	for _, a := range t.Agents() {
		if a.Name() == name {
			return a, true
		}
	}
	return nil, false
}

// Build creates one coordinator and one worker per bean, in bean order. All
// agents share llm; each receives the tools produced for its own scope.
func Build(beans []bean.Bean, llm model.Model, tools ToolsFunc, optFns ...func(o *Options)) (*Team, error) {
	opts := Options{
		Coordinator:      DefaultCoordinator,
		Extension:        bean.DefaultExtension,
		EnforceOwnership: true,
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	owners := toolkit.NewOwnership()
	owners.AddAgent(opts.Coordinator)
	for _, b := range beans {
		if b.Name == opts.Coordinator {
			return nil, fmt.Errorf("%w: %s", ErrNameConflict, b.Name)
		}
		file := b.Name + opts.Extension
		if b.Path != "" {
			file = b.Location()
		}
		owners.Assign(file, b.Name)
	}

	agentOpts := func(description, instruction string, scope toolkit.Scope) func(o *agent.ModelAgentOptions) {
		return func(o *agent.ModelAgentOptions) {
			o.Description = description
			o.Instruction = agent.NewInstructionFromText(instruction)
			o.Tools = tools(scope)
			o.Logger = opts.Logger
			if opts.MaxTurns > 0 {
				o.MaxTurns = opts.MaxTurns
			}
			if opts.MaxHistoryMessages > 0 {
				o.MaxHistoryMessages = opts.MaxHistoryMessages
			}
			if opts.ToolTimeout > 0 {
				o.ToolTimeout = opts.ToolTimeout
			}
		}
	}

	t := &Team{
		Ownership: owners,
		Coordinator: agent.NewModelAgent(opts.Coordinator, llm, agentOpts(
			"Coordinates changes across the beans",
			prompt.Coordinator(beans),
			owners.Coordinator(opts.Coordinator, opts.EnforceOwnership),
		)),
		Workers: make([]*agent.ModelAgent, 0, len(beans)),
	}

	for _, b := range beans {
		t.Workers = append(t.Workers, agent.NewModelAgent(b.Name, llm, agentOpts(
			b.Doc,
			prompt.Bean(b, beans, opts.Coordinator),
			owners.Worker(b.Name, opts.EnforceOwnership),
		)))
	}

	opts.Logger.Info("team.built", "coordinator", opts.Coordinator, "workers", len(t.Workers))
	return t, nil
}
