package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/encapt/core"
	"github.com/hupe1980/encapt/logging"
	"github.com/hupe1980/encapt/model"
	"github.com/hupe1980/encapt/tool"
)

// ErrMaxTurns is returned when the model keeps calling tools past the turn limit.
var ErrMaxTurns = errors.New("agent exceeded max tool turns")

// ModelAgentOptions configures a ModelAgent.
type ModelAgentOptions struct {
	Description        string
	Instruction        Instruction
	Tools              []tool.Tool
	MaxTurns           int
	MaxHistoryMessages int
	ToolTimeout        time.Duration
	Logger             logging.Logger
}

// ModelAgent drives a language model with a fixed tool set.
type ModelAgent struct {
	name               string
	description        string
	llm                model.Model
	instruction        Instruction
	tools              tool.Registry
	maxTurns           int
	maxHistoryMessages int
	toolTimeout        time.Duration
	logger             logging.Logger

	mu      sync.Mutex
	history []core.Content
}

var _ core.Agent = (*ModelAgent)(nil)

// NewModelAgent creates a model agent with sensible defaults: 25 tool turns
// per task, 50 history entries and a 15 minute tool timeout.
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Description:        fmt.Sprintf("Agent %s", name),
		Instruction:        NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		MaxTurns:           25,
		MaxHistoryMessages: 50,
		ToolTimeout:        15 * time.Minute,
		Logger:             logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &ModelAgent{
		name:               name,
		description:        opts.Description,
		llm:                llm,
		instruction:        opts.Instruction,
		tools:              tool.NewRegistry(opts.Tools...),
		maxTurns:           opts.MaxTurns,
		maxHistoryMessages: opts.MaxHistoryMessages,
		toolTimeout:        opts.ToolTimeout,
		logger:             logging.With(opts.Logger, "agent", name),
	}
}

// Name returns the agent name.
func (a *ModelAgent) Name() string { return a.name }

// Description returns the agent description.
func (a *ModelAgent) Description() string { return a.description }

// Instruction resolves the current system instruction.
func (a *ModelAgent) Instruction(ctx context.Context) (string, error) {
	return a.instruction.Resolve(ctx)
}

// ListTools returns the registered tool names in order.
func (a *ModelAgent) ListTools() []string {
	names := a.tools.Names()
	sort.Strings(names)
	return names
}

// History returns a copy of the conversation history.
func (a *ModelAgent) History() []core.Content {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]core.Content(nil), a.history...)
}

// Process runs task to completion and returns the model's final text.
func (a *ModelAgent) Process(ctx context.Context, task *core.Task) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	instruction, err := a.instruction.Resolve(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve instruction: %w", err)
	}

	a.history = append(a.history, core.NewTextContent("user", task.Content))
	defs := a.toolDefinitions()

	for turn := 0; a.maxTurns <= 0 || turn < a.maxTurns; turn++ {
		req := model.Request{
			Instructions: instruction,
			Contents:     append([]core.Content(nil), a.history...),
			Tools:        defs,
		}

		start := time.Now()
		resp, err := model.Collect(ctx, a.llm, req)
		if err != nil {
			a.logger.Error("agent.model.error", "task", task.ID, "turn", turn, "error", err.Error())
			return "", fmt.Errorf("agent %s: generate: %w", a.name, err)
		}
		a.logger.Debug("agent.model.turn", "task", task.ID, "turn", turn, "duration_ms", time.Since(start).Milliseconds(), "finish_reason", resp.FinishReason)

		content := resp.Content
		content.Role = "assistant"
		a.history = append(a.history, content)

		calls := content.FunctionCalls()
		if len(calls) == 0 {
			a.trim()
			return content.Text(), nil
		}

		parts := make([]core.Part, 0, len(calls))
		for _, fc := range calls {
			parts = append(parts, core.FunctionResponsePart{FunctionResponse: a.execute(ctx, task, fc)})
		}
		a.history = append(a.history, core.Content{Role: "tool", Parts: parts})
	}

	a.trim()
	a.logger.Warn("agent.max_turns", "task", task.ID, "max_turns", a.maxTurns)
	return "", fmt.Errorf("agent %s: %w (%d)", a.name, ErrMaxTurns, a.maxTurns)
}

func (a *ModelAgent) execute(ctx context.Context, task *core.Task, fc core.FunctionCall) (fr core.FunctionResponse) {
	fr = core.FunctionResponse{ID: fc.ID, Name: fc.Name}

	if a.toolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.toolTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("agent.tool.panic", "tool", fc.Name, "recover", r, "stack", string(debug.Stack()))
			fr.Response, fr.Error = nil, fmt.Sprintf("tool %s panicked", fc.Name)
		}
	}()

	start := time.Now()
	result, err := a.executeTool(core.NewToolContext(ctx, a.name, task.ID, fc.ID, a.logger), fc)
	a.logger.Info("agent.tool.executed", "task", task.ID, "tool", fc.Name, "duration_ms", time.Since(start).Milliseconds(), "error", err != nil)

	if err != nil {
		fr.Error = err.Error()
		return fr
	}
	fr.Response = result
	return fr
}

func (a *ModelAgent) executeTool(toolCtx *core.ToolContext, fc core.FunctionCall) (any, error) {
	impl, ok := a.tools[fc.Name]
	if !ok {
		return nil, tool.NewToolError(fc.Name, fmt.Sprintf("tool %s not found", fc.Name), tool.CodeNotFound)
	}

	args := map[string]any{}
	if fc.Arguments != "" {
		if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
			return nil, tool.NewToolError(fc.Name, fmt.Sprintf("failed to unmarshal args: %v", err), tool.CodeValidation)
		}
	}

	return impl.Call(toolCtx, args)
}

func (a *ModelAgent) toolDefinitions() []model.ToolDefinition {
	if len(a.tools) == 0 {
		return nil
	}
	defs := make([]model.ToolDefinition, 0, len(a.tools))
	for _, name := range a.ListTools() {
		t := a.tools[name]
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

// trim keeps at most maxHistoryMessages entries. The kept window always
// starts at a user turn so tool responses never lose their calls.
func (a *ModelAgent) trim() {
	if a.maxHistoryMessages <= 0 || len(a.history) <= a.maxHistoryMessages {
		return
	}
	start := len(a.history) - a.maxHistoryMessages
	for start < len(a.history) && a.history[start].Role != "user" {
		start++
	}
	a.history = append([]core.Content(nil), a.history[start:]...)
}
