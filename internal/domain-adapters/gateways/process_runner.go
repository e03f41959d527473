// Package gateways implements adapters between the domain and the host:
// external processes, the filesystem and the report backend.
package gateways

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/ochairo/virsorter-runner/internal/domain/entities"
	"github.com/ochairo/virsorter-runner/internal/domain/interfaces"
)

const (
	// DefaultToolTimeout bounds a VirSorter run when no timeout is configured
	DefaultToolTimeout = 12 * time.Hour
	// DefaultMaxOutputBytes is the amount of combined output kept for diagnostics
	DefaultMaxOutputBytes = 8 << 20

	killGracePeriod = 5 * time.Second
)

// ProcessRunner executes external programs synchronously
type ProcessRunner struct {
	defaultTimeout time.Duration
	maxOutputBytes int
	logger         interfaces.Logger
}

// NewProcessRunner creates a process runner; zero values select the defaults
func NewProcessRunner(defaultTimeout time.Duration, maxOutputBytes int, logger interfaces.Logger) *ProcessRunner {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultToolTimeout
	}
	if maxOutputBytes <= 0 {
		maxOutputBytes = DefaultMaxOutputBytes
	}
	return &ProcessRunner{
		defaultTimeout: defaultTimeout,
		maxOutputBytes: maxOutputBytes,
		logger:         interfaces.OrNoOp(logger),
	}
}

// Run executes cmd and waits for it to exit.
// A non-zero exit, a timeout or a cancellation is returned as *entities.ExternalToolError;
// the partial result is returned alongside for diagnostics.
func (r *ProcessRunner) Run(ctx context.Context, cmd *entities.CommandLine, opts entities.RunOptions) (*entities.ProcessResult, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = r.defaultTimeout
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	//nolint:gosec // G204: Arguments are passed as a vector, never through a shell
	c := exec.CommandContext(execCtx, cmd.Binary, cmd.Args...)
	c.Dir = opts.WorkingDir

	env := os.Environ()
	for key, value := range opts.Env {
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}
	c.Env = env

	// Stdout and Stderr share one writer so output stays interleaved
	output := newTailBuffer(r.maxOutputBytes)
	c.Stdout = output
	c.Stderr = output

	// The tool forks helpers; cancellation must take the whole group down
	setupProcessGroup(c)
	c.Cancel = func() error { return killProcessGroup(c) }
	c.WaitDelay = killGracePeriod

	description := opts.Description
	if description == "" {
		description = cmd.Binary
	}
	r.logger.Info("Executing command",
		interfaces.F("description", description),
		interfaces.F("command", cmd.String()),
		interfaces.F("dir", opts.WorkingDir),
		interfaces.F("timeout", timeout.String()))

	startTime := time.Now()
	err := c.Run()

	result := &entities.ProcessResult{
		Duration:  time.Since(startTime),
		Output:    output.Bytes(),
		Truncated: output.Truncated(),
	}

	if err == nil {
		r.logger.Info("Command finished",
			interfaces.F("description", description),
			interfaces.F("exit_code", 0),
			interfaces.F("duration", result.Duration.String()))
		return result, nil
	}

	toolErr := &entities.ExternalToolError{
		Command:  cmd.String(),
		ExitCode: -1,
		Output:   result.Output,
	}

	var exitErr *exec.ExitError
	//nolint:gocritic // ifElseChain: checking different error types, not suitable for switch
	if ctx.Err() != nil {
		toolErr.Err = ctx.Err()
	} else if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		toolErr.Err = fmt.Errorf("timeout after %v: %w", timeout, context.DeadlineExceeded)
	} else if errors.As(err, &exitErr) {
		toolErr.ExitCode = exitErr.ExitCode()
	} else {
		toolErr.Err = err
	}

	result.ExitCode = toolErr.ExitCode
	r.logger.Error("Command failed",
		interfaces.F("description", description),
		interfaces.F("exit_code", toolErr.ExitCode),
		interfaces.F("duration", result.Duration.String()),
		interfaces.Err(err))

	return result, toolErr
}

// tailBuffer keeps the last max bytes written to it
type tailBuffer struct {
	buf       []byte
	max       int
	truncated bool
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) >= b.max {
		b.truncated = b.truncated || len(b.buf) > 0 || len(p) > b.max
		b.buf = append(b.buf[:0], p[len(p)-b.max:]...)
		return n, nil
	}

	b.buf = append(b.buf, p...)
	if len(b.buf) > b.max {
		drop := len(b.buf) - b.max
		copy(b.buf, b.buf[drop:])
		b.buf = b.buf[:b.max]
		b.truncated = true
	}
	return n, nil
}

func (b *tailBuffer) Bytes() []byte {
	return append([]byte(nil), b.buf...)
}

func (b *tailBuffer) Truncated() bool {
	return b.truncated
}
