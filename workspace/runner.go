package workspace

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hupe1980/encapt/logging"
)

// Defaults for the gradle wrapper based test command.
const (
	DefaultTestPackage    = "org.camelai.beans"
	DefaultTestTimeout    = 10 * time.Minute
	DefaultMaxOutputBytes = 100_000
)

// DefaultTestCommand is the command prefix used to run tests.
var DefaultTestCommand = []string{"./gradlew", "test"}

// ExitError reports a test command that ran but did not succeed.
type ExitError struct {
	Code     int
	Output   string
	TimedOut bool
}

func (e *ExitError) Error() string {
	if e.TimedOut {
		return "test command timed out"
	}
	return fmt.Sprintf("test command exited with code %d", e.Code)
}

// TestRunner executes unit tests for beans.
type TestRunner interface {
	RunAll(ctx context.Context) (string, error)
	RunUnit(ctx context.Context, unit string) (string, error)
}

// CommandRunnerOptions configure a CommandRunner.
type CommandRunnerOptions struct {
	Command        []string
	Package        string
	Timeout        time.Duration
	MaxOutputBytes int
	Logger         logging.Logger
}

// CommandRunner runs the configured command in the project directory and
// appends a --tests filter.
type CommandRunner struct {
	dir  string
	opts CommandRunnerOptions
}

// NewCommandRunner creates a runner executing in dir.
func NewCommandRunner(dir string, optFns ...func(o *CommandRunnerOptions)) *CommandRunner {
	opts := CommandRunnerOptions{
		Command:        DefaultTestCommand,
		Package:        DefaultTestPackage,
		Timeout:        DefaultTestTimeout,
		MaxOutputBytes: DefaultMaxOutputBytes,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if len(opts.Command) == 0 {
		opts.Command = DefaultTestCommand
	}
	if opts.MaxOutputBytes <= 0 {
		opts.MaxOutputBytes = DefaultMaxOutputBytes
	}
	return &CommandRunner{dir: dir, opts: opts}
}

// Args returns the full argv for a filter, for logging and tests.
func (r *CommandRunner) Args(filter string) []string {
	args := append([]string{}, r.opts.Command...)
	return append(args, "--tests="+filter)
}

// RunAll runs every bean test in the package.
func (r *CommandRunner) RunAll(ctx context.Context) (string, error) {
	return r.run(ctx, r.opts.Package+".*")
}

// RunUnit runs the test class of a single bean.
func (r *CommandRunner) RunUnit(ctx context.Context, unit string) (string, error) {
	if unit == "" || strings.ContainsAny(unit, " \t/\\*") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, unit)
	}
	return r.run(ctx, r.opts.Package+"."+unit+"Test")
}

func (r *CommandRunner) run(ctx context.Context, filter string) (string, error) {
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	args := r.Args(filter)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = r.dir
	cmd.WaitDelay = time.Second

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	r.opts.Logger.Debug("tests.run", "filter", filter, "duration", time.Since(start), "error", err)

	if err == nil {
		return r.truncate(stdout.String()), nil
	}

	output := r.truncate(combine(stdout.String(), stderr.String()))

	var exitErr *exec.ExitError
	switch {
	case ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded):
		return output, &ExitError{Code: -1, Output: output, TimedOut: true}
	case errors.As(err, &exitErr):
		return output, &ExitError{Code: exitErr.ExitCode(), Output: output}
	default:
		return output, fmt.Errorf("run %s: %w", args[0], err)
	}
}

func combine(stdout, stderr string) string {
	switch {
	case stderr == "":
		return stdout
	case stdout == "":
		return stderr
	default:
		return strings.TrimRight(stdout, "\n") + "\n" + stderr
	}
}

func (r *CommandRunner) truncate(s string) string {
	if len(s) <= r.opts.MaxOutputBytes {
		return s
	}
	cut := r.opts.MaxOutputBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + fmt.Sprintf("\n\n... output truncated at %d bytes", r.opts.MaxOutputBytes)
}
