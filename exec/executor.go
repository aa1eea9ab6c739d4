// Package exec abstracts running the statistical runtime as a child process.
// Production code uses RealExecutor, while tests inject a MockExecutor that
// returns pre-recorded results.
package exec

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"sync"
)

// Command describes one child process invocation.
type Command struct {
	Dir  string
	Name string
	Args []string
	// Env entries are appended to the parent's environment.
	Env []string
}

// Result holds what a finished command produced.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// CommandExecutor abstracts command execution for testability.
type CommandExecutor interface {
	// Run executes a command to completion. A non-zero exit status is
	// reported in Result.ExitCode with a nil error; err is only set when the
	// process could not be run at all.
	Run(ctx context.Context, cmd Command) (Result, error)
}

// RealExecutor executes commands using os/exec.
type RealExecutor struct{}

// NewRealExecutor returns a new RealExecutor.
func NewRealExecutor() *RealExecutor {
	return &RealExecutor{}
}

// Run executes a command and returns its output and exit status.
func (e *RealExecutor) Run(ctx context.Context, c Command) (Result, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	res := Result{Stdout: stdoutBuf.Bytes(), Stderr: stderrBuf.Bytes()}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return res, err
}

// CommandMatcher is a function that determines if a command matches.
type CommandMatcher func(cmd Command) bool

// MockRule defines a matching rule and its response.
type MockRule struct {
	Match  CommandMatcher
	Result Result
	Err    error
	// Hook, when set, runs before the result is returned. Tests use it to
	// create the files a real runtime would have written.
	Hook func(cmd Command)
}

// MockExecutor returns pre-recorded results for commands.
// Commands are matched in order of rule registration.
type MockExecutor struct {
	mu    sync.RWMutex
	rules []MockRule
	calls []Command
}

// NewMockExecutor creates a new MockExecutor.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{}
}

// AddRule adds a matching rule.
func (e *MockExecutor) AddRule(rule MockRule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, rule)
}

// AddPrefixMatch adds a rule that matches commands starting with specific args.
func (e *MockExecutor) AddPrefixMatch(name string, prefixArgs []string, result Result) {
	e.AddRule(MockRule{
		Match: func(c Command) bool {
			if c.Name != name || len(c.Args) < len(prefixArgs) {
				return false
			}
			for i, arg := range prefixArgs {
				if c.Args[i] != arg {
					return false
				}
			}
			return true
		},
		Result: result,
	})
}

// GetCalls returns all recorded command invocations.
func (e *MockExecutor) GetCalls() []Command {
	e.mu.RLock()
	defer e.mu.RUnlock()
	calls := make([]Command, len(e.calls))
	copy(calls, e.calls)
	return calls
}

func (e *MockExecutor) findMatch(c Command) *MockRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for i := range e.rules {
		if e.rules[i].Match(c) {
			return &e.rules[i]
		}
	}
	return nil
}

// Run executes a mocked command. Unmatched commands succeed with no output.
func (e *MockExecutor) Run(ctx context.Context, c Command) (Result, error) {
	e.mu.Lock()
	e.calls = append(e.calls, c)
	e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	rule := e.findMatch(c)
	if rule == nil {
		return Result{}, nil
	}
	if rule.Hook != nil {
		rule.Hook(c)
	}
	return rule.Result, rule.Err
}

// Ensure implementations satisfy the interface.
var _ CommandExecutor = (*RealExecutor)(nil)
var _ CommandExecutor = (*MockExecutor)(nil)
