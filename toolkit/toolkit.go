// Package toolkit provides the tools every encapt agent is equipped with:
// writing bean files, creating directories, running tests and messaging
// other agents. Domain failures are reported to the model as strings.
package toolkit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/encapt/core"
	"github.com/hupe1980/encapt/logging"
	"github.com/hupe1980/encapt/tool"
	"github.com/hupe1980/encapt/workforce"
	"github.com/hupe1980/encapt/workspace"
)

// Tool names.
const (
	WriteFileTool       = "write_file"
	CreateDirectoryTool = "create_directory"
	RunAllBeanTestsTool = "run_all_bean_tests"
	RunSpecificTestTool = "run_specific_bean_test"
	SendMessageTool     = "send_message"
)

// Messenger delivers inter-agent messages. Post returns once the message is
// queued; Ask waits for the recipient's response.
type Messenger interface {
	Post(ctx context.Context, from, to, body string) error
	Ask(ctx context.Context, from, to, body string) (string, error)
}

// Deps are the collaborators shared by all tool sets.
type Deps struct {
	Workspace *workspace.Workspace
	Tests     workspace.TestRunner
	Messenger Messenger
	Logger    logging.Logger
}

type writeFileArgs struct {
	FileName string `json:"file_name" description:"The name of the file to write. Must end with '.kt'."`
	Content  string `json:"content" description:"The content to write to the file."`
}

type createDirectoryArgs struct {
	DirName string `json:"dir_name" description:"The name of the directory to create."`
}

type runSpecificArgs struct {
	BeanName string `json:"bean_name" description:"The name of the bean to test (without 'Test' suffix)."`
}

type sendMessageArgs struct {
	ToAgent   string `json:"to_agent" description:"The name of the agent to send the message to."`
	FromAgent string `json:"from_agent" description:"The name of the agent sending the message."`
	Message   string `json:"message" description:"The content of the message to send."`
	Wait      bool   `json:"wait_for_reply,omitempty" description:"Wait for the recipient's response and return it instead of receiving it later as a new task."`
}

type noArgs struct{}

// New returns the five tools bound to scope.
func New(deps Deps, scope Scope) []tool.Tool {
	if deps.Logger == nil {
		deps.Logger = logging.NoOpLogger{}
	}
	ts := &toolset{deps: deps, scope: scope}

	return []tool.Tool{
		tool.NewFunctionToolFromStruct(
			WriteFileTool,
			"Writes content to a Kotlin file in the beans directory. Returns a message indicating success or describing an error if one occurred.",
			writeFileArgs{},
			ts.writeFile,
		),
		tool.NewFunctionToolFromStruct(
			CreateDirectoryTool,
			"Creates a new directory within the beans directory. Returns a message indicating success or describing an error if one occurred.",
			createDirectoryArgs{},
			ts.createDirectory,
		),
		tool.NewFunctionToolFromStruct(
			RunAllBeanTestsTool,
			"Runs all tests for beans in the Quarkus project. Returns the output of the test execution or an error message if the tests fail.",
			noArgs{},
			ts.runAllBeanTests,
		),
		tool.NewFunctionToolFromStruct(
			RunSpecificTestTool,
			"Runs tests for a specific bean in the Quarkus project. Returns the output of the test execution or an error message if the test fails.",
			runSpecificArgs{},
			ts.runSpecificBeanTest,
		),
		tool.NewFunctionToolFromStruct(
			SendMessageTool,
			"Sends a message to another agent by creating a task for them. Their response is delivered back to you as a new task.",
			sendMessageArgs{},
			ts.sendMessage,
		),
	}
}

type toolset struct {
	deps  Deps
	scope Scope
}

func (ts *toolset) writeFile(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	name, _ := tool.StringArg(args, "file_name")
	content, _ := tool.StringArg(args, "content")

	if ext := ts.deps.Workspace.Extension(); ext != "" && !strings.HasSuffix(name, ext) {
		return "Error: Only .kt files are allowed.", nil
	}
	name = ts.scope.Resolve(name)
	if !ts.scope.CanWrite(name) {
		toolCtx.Logger().Warn("toolkit.write.denied", "agent", ts.scope.Agent, "file", name)
		if owner, ok := ts.scope.Owner(name); ok {
			return fmt.Sprintf("Error: %s is owned by %s. Use send_message to ask %s for the change.", name, owner, owner), nil
		}
		return fmt.Sprintf("Error: %s may only write its own bean file.", ts.scope.Agent), nil
	}

	if err := ts.deps.Workspace.WriteFile(name, content); err != nil {
		return "Error writing to file: " + err.Error(), nil
	}
	return "Successfully wrote content to " + name, nil
}

func (ts *toolset) createDirectory(_ *core.ToolContext, args map[string]any) (any, error) {
	name, _ := tool.StringArg(args, "dir_name")
	if err := ts.deps.Workspace.CreateDir(name); err != nil {
		return "Error creating directory: " + err.Error(), nil
	}
	return "Successfully created directory " + name, nil
}

func (ts *toolset) runAllBeanTests(toolCtx *core.ToolContext, _ map[string]any) (any, error) {
	out, err := ts.deps.Tests.RunAll(toolCtx.Context())
	if err != nil {
		return "Error running bean tests: " + failureOutput(out, err), nil
	}
	return out, nil
}

func (ts *toolset) runSpecificBeanTest(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	name, _ := tool.StringArg(args, "bean_name")
	out, err := ts.deps.Tests.RunUnit(toolCtx.Context(), name)
	if err != nil {
		return fmt.Sprintf("Error running test for %s: %s", name, failureOutput(out, err)), nil
	}
	return out, nil
}

func (ts *toolset) sendMessage(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	to, _ := tool.StringArg(args, "to_agent")
	from, _ := tool.StringArg(args, "from_agent")
	message, _ := tool.StringArg(args, "message")

	if from != ts.scope.Agent {
		return fmt.Sprintf("Error: from_agent must be %s.", ts.scope.Agent), nil
	}
	if to == from {
		return "Error: cannot send a message to yourself.", nil
	}
	if !ts.scope.KnowsAgent(to) {
		return fmt.Sprintf("Error: unknown agent %s.", to), nil
	}

	if tool.BoolArg(args, "wait_for_reply") {
		response, err := ts.deps.Messenger.Ask(toolCtx.Context(), from, to, message)
		switch {
		case errors.Is(err, workforce.ErrReplyTimeout):
			toolCtx.Logger().Warn("toolkit.message.no_reply", "from", from, "to", to, "error", err.Error())
			return fmt.Sprintf("No response from %s yet. Their answer will be delivered to you as a new task.", to), nil
		case errors.Is(err, workforce.ErrRecipientFailed):
			return "Error: " + err.Error(), nil
		case err != nil:
			toolCtx.Logger().Error("toolkit.message.error", "from", from, "to", to, "error", err.Error())
			return "Error sending message: " + err.Error(), nil
		}
		return fmt.Sprintf("%s responded: %s", to, response), nil
	}

	if err := ts.deps.Messenger.Post(toolCtx.Context(), from, to, message); err != nil {
		toolCtx.Logger().Error("toolkit.message.error", "from", from, "to", to, "error", err.Error())
		return "Error sending message: " + err.Error(), nil
	}
	return fmt.Sprintf("Message sent to %s. A task has been created for them to respond.", to), nil
}

func failureOutput(out string, err error) string {
	var exitErr *workspace.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Output
	}
	if out != "" {
		return out
	}
	return err.Error()
}

