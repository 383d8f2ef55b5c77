// Package backup invokes the dump/upload backup pipeline before automatic
// upgrades. The pipeline itself is an external collaborator; this package
// only runs the configured command synchronously and reports its outcome.
package backup

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/nodewarden/nodewarden/internal/logger"
)

// Runner executes the pre-upgrade backup. A failure aborts the automatic
// upgrade attempt before any live process is touched.
type Runner interface {
	Run(ctx context.Context) error
}

// errNoCommand is returned when the exec runner has nothing to execute.
var errNoCommand = errors.New("no backup command configured")

// ExecRunner shells out to a configured backup command.
type ExecRunner struct {
	// command is the argv of the backup pipeline entry point.
	command []string
	// timeout bounds the whole backup run.
	timeout time.Duration
}

// NewExecRunner creates a runner for the provided argv.
func NewExecRunner(command []string, timeout time.Duration) *ExecRunner {
	return &ExecRunner{
		command: command,
		timeout: timeout,
	}
}

// Run executes the backup command synchronously.
func (r *ExecRunner) Run(ctx context.Context) error {
	if len(r.command) == 0 {
		return errNoCommand
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	logger.InfoKV(ctx, "Running pre-upgrade backup", "command", strings.Join(r.command, " "))

	cmd := exec.CommandContext(runCtx, r.command[0], r.command[1:]...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("backup command: %w: %s", err, strings.TrimSpace(string(output)))
	}

	return nil
}

// Nop is a Runner that does nothing. Used on the manual path and when no
// backup command is configured.
type Nop struct{}

// Run implements Runner.
func (Nop) Run(_ context.Context) error {
	return nil
}
