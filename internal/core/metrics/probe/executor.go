// Package probe runs the external commands that produce raw vitals text.
package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"rpimon/internal/domain"
)

const (
	maxStderrExcerpt = 256
	waitDelay        = time.Second
)

// Result is the captured output of one probe invocation.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Runner executes a shell command line to completion.
type Runner interface {
	Run(ctx context.Context, commandLine string) (Result, error)
}

type Executor struct {
	shell   string
	timeout time.Duration
}

type Option func(*Executor)

// WithTimeout bounds every run. Zero means the command runs to its natural end.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

func WithShell(path string) Option {
	return func(e *Executor) { e.shell = path }
}

func NewExecutor(opts ...Option) *Executor {
	e := &Executor{shell: "sh"}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes `sh -c commandLine`. A launch failure or non-zero exit is
// returned as *domain.LaunchError alongside whatever output was captured.
func (e *Executor) Run(ctx context.Context, commandLine string) (Result, error) {
	if strings.TrimSpace(commandLine) == "" {
		return Result{}, &domain.LaunchError{Command: commandLine, Err: errors.New("empty command")}
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.shell, "-c", commandLine)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	start := time.Now()
	err := cmd.Run()

	res := Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err != nil {
		lerr := &domain.LaunchError{
			Command:  commandLine,
			ExitCode: res.ExitCode,
			Stderr:   excerpt(res.Stderr),
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			lerr.Err = fmt.Errorf("command failed: %w", err)
		} else {
			lerr.Err = fmt.Errorf("failed to start command: %w", err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			lerr.Err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return res, lerr
	}

	return res, nil
}

func excerpt(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxStderrExcerpt {
		s = s[:maxStderrExcerpt] + "..."
	}
	return s
}
