package core

import (
	"context"

	"github.com/hupe1980/encapt/logging"
)

// ToolContext provides the scoped surface handed to tool implementations
// invoked by an agent: cancellation, the calling agent, the task being
// processed and the function call id assigned by the model.
type ToolContext struct {
	ctx            context.Context
	agentName      string
	taskID         string
	functionCallID string
	logger         logging.Logger
}

// NewToolContext constructs a tool context for one function call.
func NewToolContext(ctx context.Context, agentName, taskID, functionCallID string, logger logging.Logger) *ToolContext {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &ToolContext{
		ctx:            ctx,
		agentName:      agentName,
		taskID:         taskID,
		functionCallID: functionCallID,
		logger:         logger,
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// AgentName returns the name of the agent calling the tool.
func (tc *ToolContext) AgentName() string { return tc.agentName }

// TaskID returns the id of the task being processed when the tool was called.
func (tc *ToolContext) TaskID() string { return tc.taskID }

// FunctionCallID returns the function call identifier.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.logger }
