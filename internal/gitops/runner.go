package gitops

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a git command when no timeout is configured
const DefaultTimeout = 30 * time.Second

const (
	initialBackoff = 50 * time.Millisecond
	maxBackoff     = time.Second
)

// Runner invokes the git binary as a subprocess. The zero value is usable.
type Runner struct {
	// Bin is the git executable, "git" when empty
	Bin string
	// ExtraEnv entries are appended to the inherited environment
	ExtraEnv []string
}

// ExecOptions controls one command invocation
type ExecOptions struct {
	Timeout     time.Duration
	RetryOnLock bool
}

// Outcome is the raw result of a git invocation
type Outcome struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Run executes git with the given args in dir. The timeout bounds the whole
// call including lock retries; when RetryOnLock is set, lock failures are
// retried with exponential backoff until the window closes. The surfaced
// error is the lock error when the window closes between attempts, or a
// timeout error when the subprocess itself hits the deadline.
func (r *Runner) Run(ctx context.Context, dir string, opts ExecOptions, args ...string) (Outcome, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadline := time.Now().Add(timeout)

	attempt := 0
	for {
		attempt++
		out, err := r.runOnce(ctx, dir, deadline, args)
		if err == nil {
			return out, nil
		}

		var gerr *GitError
		if !errors.As(err, &gerr) || gerr.Kind != KindLock || !opts.RetryOnLock {
			return out, err
		}

		delay := backoffDelay(attempt)
		if time.Until(deadline) <= delay {
			return out, err
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return out, ctx.Err()
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, dir string, deadline time.Time, args []string) (Outcome, error) {
	cctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	bin := r.Bin
	if bin == "" {
		bin = "git"
	}

	cmd := exec.CommandContext(cctx, bin, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	cmd.Env = append(cmd.Env, r.ExtraEnv...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	out := Outcome{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if err == nil {
		return out, nil
	}

	out.ExitCode = -1
	if cctx.Err() == context.DeadlineExceeded {
		return out, &GitError{Kind: KindTimeout, Args: args, ExitCode: -1, Stderr: out.Stderr}
	}
	if ctx.Err() != nil {
		return out, ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		return out, classify(args, out)
	}
	return out, fmt.Errorf("running git %s: %w", strings.Join(args, " "), err)
}

func backoffDelay(attempt int) time.Duration {
	d := initialBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
