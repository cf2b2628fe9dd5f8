package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/encapt/core"
	"github.com/hupe1980/encapt/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newToolContext(fcID string) *core.ToolContext {
	return core.NewToolContext(context.Background(), "TestAgent", "task-1", fcID, logging.NoOpLogger{})
}

func TestFunctionTool_Success(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}

	sumTool := NewFunctionTool("sum", "Add numbers", params, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})

	result, err := sumTool.Call(newToolContext("fc1"), map[string]any{"a": 2.0, "b": 3.0})
	require.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	params := map[string]any{
		"type":       "object",
		"properties": map[string]any{"a": map[string]any{"type": "number"}},
		"required":   []string{"a"},
	}
	called := false
	tTool := NewFunctionTool("test", "Test", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		called = true
		return 0, nil
	})

	_, err := tTool.Call(newToolContext("fc2"), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
	assert.False(t, called)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	execTool := NewFunctionTool("fail", "Fails", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, errors.New("boom")
	})

	_, err := execTool.Call(newToolContext("fc3"), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.Contains(t, toolErr.Error(), "boom")
}

func TestFunctionTool_PreservesToolError(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	custom := NewToolError("custom", "nope", "DENIED")
	ft := NewFunctionTool("custom", "Custom", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, custom
	})

	_, err := ft.Call(newToolContext("fc4"), map[string]any{})
	assert.Same(t, custom, err)
}

type echoArgs struct {
	Text string `json:"text" description:"Text to echo"`
}

func TestNewFunctionToolFromStruct(t *testing.T) {
	echo := NewFunctionToolFromStruct("echo", "Echo text", echoArgs{}, func(_ *core.ToolContext, args map[string]any) (any, error) {
		s, _ := StringArg(args, "text")
		return s, nil
	})

	assert.Equal(t, "echo", echo.Name())
	assert.Equal(t, "Echo text", echo.Description())
	assert.Contains(t, echo.Parameters()["properties"], "text")

	out, err := echo.Call(newToolContext("fc5"), map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
}

func TestRegistry(t *testing.T) {
	a := NewFunctionTool("a", "", nil, nil)
	b := NewFunctionTool("b", "", nil, nil)
	r := NewRegistry(a, b)

	assert.ElementsMatch(t, []string{"a", "b"}, r.Names())
	assert.Same(t, b, r["b"])
}

func TestStringArg(t *testing.T) {
	s, ok := StringArg(map[string]any{"k": "v"}, "k")
	assert.True(t, ok)
	assert.Equal(t, "v", s)

	_, ok = StringArg(map[string]any{"k": 1}, "k")
	assert.False(t, ok)

	_, ok = StringArg(map[string]any{}, "k")
	assert.False(t, ok)
}
