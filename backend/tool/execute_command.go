package tool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"al.essio.dev/pkg/shellescape"

	"github.com/emberhq/ember/backend/tool/safety"
)

const DefaultCommandTimeout = 120 * time.Second

// Shell runs the bash tool. Every command is vetted by the safety validator
// before a process is spawned; a denied command never reaches the shell.
type Shell struct {
	validator *safety.Validator
	root      string
	timeout   time.Duration
	logger    *slog.Logger
}

func NewShell(validator *safety.Validator, root string, timeout time.Duration, logger *slog.Logger) *Shell {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Shell{validator: validator, root: root, timeout: timeout, logger: logger}
}

type BashInput struct {
	Command string `json:"command" jsonschema:"required" jsonschema_description:"Shell command to execute"`
}

func (s *Shell) Tool() Tool {
	return NewTool("bash", "Execute a shell command in the project directory", s.run)
}

func (s *Shell) run(ctx context.Context, input BashInput) string {
	if decision := s.validator.Check(input.Command); !decision.Allow {
		s.logger.Warn("command blocked", "command", shellescape.Quote(input.Command), "reason", decision.Reason)
		return fmt.Sprintf("Error: Command blocked for safety: %s", input.Command)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "bash", "-c", input.Command)
	cmd.Dir = s.root

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	s.logger.Debug("executing command", "command", shellescape.Quote(input.Command))
	err := cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Sprintf("Error: Command timed out after %d seconds", int(s.timeout.Seconds()))
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return fmt.Sprintf("Error executing command: %v", err)
		}
	}

	var out strings.Builder
	if stdout.Len() > 0 {
		fmt.Fprintf(&out, "stdout:\n%s\n", strings.TrimRight(stdout.String(), "\n"))
	}
	if stderr.Len() > 0 {
		fmt.Fprintf(&out, "stderr:\n%s\n", strings.TrimRight(stderr.String(), "\n"))
	}
	if exitCode != 0 {
		fmt.Fprintf(&out, "Exit code: %d", exitCode)
	}
	if out.Len() == 0 {
		return "Command completed successfully (no output)"
	}
	return strings.TrimRight(out.String(), "\n")
}
