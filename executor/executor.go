// Package executor runs external programs on behalf of the automation engine
// adapters. Each Run spawns one process, captures its output, and classifies
// failures so callers can tell timeouts from non-zero exits.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	mserrors "github.com/input-output-hk/macrosync/errors"
)

// maxStderrInError bounds how much stderr is embedded in error messages.
const maxStderrInError = 2048

// waitDelay bounds how long Run waits for output pipes to close after the
// process group has been killed.
const waitDelay = 2 * time.Second

// Command describes a single process invocation.
type Command struct {
	Program string
	Args    []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env is appended to the current environment.
	Env map[string]string

	// Input is written to stdin when non-empty.
	Input string

	// Timeout bounds each attempt. Zero means no limit beyond ctx.
	Timeout time.Duration
}

func (c Command) String() string {
	return strings.TrimSpace(c.Program + " " + strings.Join(c.Args, " "))
}

// Result holds the captured output of the last attempt.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Attempts int
	Duration time.Duration
}

// Runner runs commands. It exists so adapters can be tested without
// spawning processes.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// Error reports a failed invocation.
type Error struct {
	Command  string
	ExitCode int
	Stderr   string
	TimedOut bool
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("executor: %s", e.Command)
	switch {
	case e.TimedOut:
		msg += ": timed out"
	case e.ExitCode > 0:
		msg += fmt.Sprintf(": exit code %d", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		if len(s) > maxStderrInError {
			s = "..." + s[len(s)-maxStderrInError:]
		}
		msg += ": " + s
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode classifies the failure for the orchestrator.
func (e *Error) ErrorCode() mserrors.ErrorCode {
	switch {
	case e.TimedOut:
		return mserrors.CodeTimeout
	case errors.Is(e.Err, context.Canceled):
		return mserrors.CodeCanceled
	}
	return mserrors.CodeExecutionFailed
}

// Options configures an Exec.
type Options struct {
	MaxRetries int
	RetryDelay time.Duration

	// RetryOn decides whether a failed attempt is retried. Nil retries every
	// failure except cancellation of the parent context.
	RetryOn func(error) bool

	// StdoutWriter and StderrWriter receive a copy of the process output.
	StdoutWriter io.Writer
	StderrWriter io.Writer

	Logger *slog.Logger
}

// Option is a function that modifies Options.
type Option func(*Options)

// WithRetry configures retry behavior.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(o *Options) {
		o.MaxRetries = maxRetries
		o.RetryDelay = delay
	}
}

// WithRetryCondition sets a custom retry condition.
func WithRetryCondition(fn func(error) bool) Option {
	return func(o *Options) {
		o.RetryOn = fn
	}
}

// WithStdoutWriter tees process stdout to w.
func WithStdoutWriter(w io.Writer) Option {
	return func(o *Options) {
		o.StdoutWriter = w
	}
}

// WithStderrWriter tees process stderr to w.
func WithStderrWriter(w io.Writer) Option {
	return func(o *Options) {
		o.StderrWriter = w
	}
}

// WithLogger sets the logger used for attempt diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// Exec is the process-spawning Runner.
type Exec struct {
	opts Options
}

var _ Runner = (*Exec)(nil)

// New creates an Exec.
func New(opts ...Option) *Exec {
	o := Options{RetryDelay: time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Exec{opts: o}
}

// Run executes cmd, retrying according to the configured policy.
func (e *Exec) Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Program == "" {
		return nil, mserrors.New(mserrors.CodeInvalidInput, "executor.Run", "program is required")
	}

	maxAttempts := e.opts.MaxRetries + 1
	var (
		result *Result
		err    error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err = e.runOnce(ctx, cmd)
		result.Attempts = attempt
		if err == nil || attempt == maxAttempts || !e.shouldRetry(ctx, err) {
			return result, err
		}

		e.opts.Logger.Debug("retrying command",
			"command", cmd.Program,
			"attempt", attempt,
			"error", err)

		select {
		case <-ctx.Done():
			return result, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-time.After(e.opts.RetryDelay):
		}
	}
	return result, err
}

func (e *Exec) shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if e.opts.RetryOn != nil {
		return e.opts.RetryOn(err)
	}
	return true
}

func (e *Exec) runOnce(ctx context.Context, cmd Command) (*Result, error) {
	runCtx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	c := exec.CommandContext(runCtx, cmd.Program, cmd.Args...)
	c.WaitDelay = waitDelay
	killGroupOnCancel(c)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), envList(cmd.Env)...)
	}
	if cmd.Input != "" {
		c.Stdin = strings.NewReader(cmd.Input)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = teeTo(&stdout, e.opts.StdoutWriter)
	c.Stderr = teeTo(&stderr, e.opts.StderrWriter)

	start := time.Now()
	runErr := c.Run()
	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if runErr == nil {
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
	} else {
		result.ExitCode = -1
	}

	execErr := &Error{
		Command:  cmd.String(),
		ExitCode: result.ExitCode,
		Stderr:   result.Stderr,
		Err:      runErr,
	}
	if ctx.Err() != nil {
		execErr.Err = ctx.Err()
	} else if runCtx.Err() == context.DeadlineExceeded {
		execErr.TimedOut = true
		execErr.Err = runCtx.Err()
	}
	return result, execErr
}

func teeTo(buf *bytes.Buffer, w io.Writer) io.Writer {
	if w == nil {
		return buf
	}
	return io.MultiWriter(buf, w)
}

func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
