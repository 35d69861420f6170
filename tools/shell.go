// Shell command execution tool.
//
// Information Hiding:
// - Shell execution details hidden
// - Command screening hidden
// - Output parsing abstracted

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// RunShellCommandTool executes shell commands via sh -c.
// Every command is screened for dangerous content before execution.
type RunShellCommandTool struct {
	BaseTool
	guard           *Guard
	timeoutSecs     uint64
	allowedCommands []string
}

// NewRunShellCommandTool creates a new shell tool with the given timeout.
func NewRunShellCommandTool(guard *Guard, timeoutSecs uint64) *RunShellCommandTool {
	return &RunShellCommandTool{
		guard:       guard,
		timeoutSecs: timeoutSecs,
	}
}

// WithAllowedCommands restricts execution to commands whose first word
// is in the list. An empty list allows any command that passes screening.
func (t *RunShellCommandTool) WithAllowedCommands(commands []string) *RunShellCommandTool {
	t.allowedCommands = commands
	return t
}

// Metadata returns the tool metadata.
func (t *RunShellCommandTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "run_shell_command",
		Description: "Execute a shell command and return its combined stdout/stderr output. Commands are screened and dangerous patterns are refused.",
		Parameters: []ToolParameter{
			{
				Name:        "command",
				ParamType:   "string",
				Description: "The shell command to execute",
				Required:    true,
			},
		},
	}
}

type shellArgs struct {
	Command string `json:"command"`
}

// Validate validates the tool arguments.
func (t *RunShellCommandTool) Validate(args json.RawMessage) error {
	var a shellArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Command == "" {
		return fmt.Errorf("command cannot be empty")
	}
	return nil
}

// Execute runs the shell command.
func (t *RunShellCommandTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a shellArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}

	if a.Command == "" {
		return FailureResultf("command cannot be empty"), nil
	}

	// Screen before any execution. A refused command never reaches sh.
	if err := t.guard.Screen(ctx, "run_shell_command", a.Command); err != nil {
		return FailureResult(err), nil
	}

	if !t.isCommandAllowed(a.Command) {
		return FailureResultf("command '%s' is not in the allowed list", a.Command), nil
	}

	timeout := time.Duration(t.timeoutSecs) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", a.Command)
	output, err := cmd.CombinedOutput()

	if ctx.Err() == context.DeadlineExceeded {
		return FailureResultf("command timed out after %d seconds", t.timeoutSecs), nil
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return FailureResultf("command failed with exit code %d\noutput: %s",
				exitErr.ExitCode(), string(output)), nil
		}
		return FailureResult(fmt.Errorf("failed to execute command: %w", err)), nil
	}

	return SuccessResult(string(output)), nil
}

// isCommandAllowed checks if the command is in the allowlist.
func (t *RunShellCommandTool) isCommandAllowed(command string) bool {
	if len(t.allowedCommands) == 0 {
		return true
	}

	// Extract base command (first word)
	baseCmd := strings.Fields(command)
	if len(baseCmd) == 0 {
		return false
	}

	for _, allowed := range t.allowedCommands {
		if allowed == baseCmd[0] {
			return true
		}
	}
	return false
}
