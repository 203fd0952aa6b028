package automation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	mserrors "github.com/input-output-hk/macrosync/errors"
	"github.com/input-output-hk/macrosync/executor"
	"github.com/input-output-hk/macrosync/workspace"
)

// DefaultArgs is the argument template used when none is configured.
var DefaultArgs = []string{"{document}", "{macro}", "{output}", "{param}"}

// Placeholders expanded in argument templates.
const (
	PlaceholderDocument  = "{document}"
	PlaceholderMacro     = "{macro}"
	PlaceholderMacroName = "{macro_name}"
	PlaceholderOutput    = "{output}"
	PlaceholderParam     = "{param}"
)

// Environment variables set for every engine session.
const (
	EnvDocument = "MACROSYNC_DOCUMENT"
	EnvMacro    = "MACROSYNC_MACRO"
	EnvOutput   = "MACROSYNC_OUTPUT"
	EnvParam    = "MACROSYNC_PARAM"
)

// CommandRunner runs macros by spawning an engine program.
type CommandRunner struct {
	program string
	args    []string
	timeout time.Duration
	env     map[string]string

	exec   executor.Runner
	fs     billy.Filesystem
	logger *slog.Logger
}

var _ Runner = (*CommandRunner)(nil)

// Option configures a CommandRunner.
type Option func(*CommandRunner)

// WithArgs sets the argument template.
func WithArgs(args ...string) Option {
	return func(r *CommandRunner) {
		r.args = args
	}
}

// WithTimeout bounds each engine session.
func WithTimeout(d time.Duration) Option {
	return func(r *CommandRunner) {
		r.timeout = d
	}
}

// WithEnv adds environment variables to every session.
func WithEnv(env map[string]string) Option {
	return func(r *CommandRunner) {
		if r.env == nil {
			r.env = make(map[string]string)
		}
		for k, v := range env {
			r.env[k] = v
		}
	}
}

// WithExecutor sets the process runner.
func WithExecutor(e executor.Runner) Option {
	return func(r *CommandRunner) {
		r.exec = e
	}
}

// WithFilesystem sets the filesystem used to promote output files.
func WithFilesystem(fsys billy.Filesystem) Option {
	return func(r *CommandRunner) {
		r.fs = fsys
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *CommandRunner) {
		r.logger = logger
	}
}

// NewCommandRunner creates a runner for the given engine program.
func NewCommandRunner(program string, opts ...Option) *CommandRunner {
	r := &CommandRunner{
		program: program,
		args:    DefaultArgs,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if r.exec == nil {
		r.exec = executor.New(executor.WithLogger(r.logger))
	}
	if r.fs == nil {
		r.fs = osfs.New("/")
	}
	return r
}

// Execute implements Runner. The engine writes to a temporary file next to
// OutputPath which is renamed over OutputPath on success. On failure the
// temporary file is removed and OutputPath is left untouched.
func (r *CommandRunner) Execute(ctx context.Context, inv Invocation) (*Result, error) {
	const op = "automation.Execute"
	item := inv.Macro.Document

	if err := validate(inv); err != nil {
		return nil, (&mserrors.Error{Code: mserrors.CodeInvalidInput, Op: op, Err: err}).WithItem(item)
	}

	tmp := filepath.Join(filepath.Dir(inv.OutputPath), workspace.TempPrefix+filepath.Base(inv.OutputPath))
	r.removeQuietly(tmp)

	log := r.logger.With("document", item, "macro", inv.Macro.Name)
	log.Debug("running macro", "output", inv.OutputPath)

	res, err := r.exec.Run(ctx, executor.Command{
		Program: r.program,
		Args:    expand(r.args, inv, tmp),
		Env:     r.sessionEnv(inv, tmp),
		Timeout: r.timeout,
	})
	if err != nil {
		r.removeQuietly(tmp)
		code := mserrors.CodeExecutionFailed
		if ctx.Err() != nil {
			code = mserrors.CodeCanceled
		}
		log.Error("macro failed", "error", err)
		return nil, (&mserrors.Error{Code: code, Op: op, Err: fmt.Errorf("macro %s: %w", inv.Macro.Ref(), err)}).WithItem(item)
	}

	if _, err := r.fs.Stat(tmp); err != nil {
		log.Error("engine reported success without saving a document")
		return nil, (&mserrors.Error{
			Code: mserrors.CodeExecutionFailed,
			Op:   op,
			Err:  fmt.Errorf("macro %s: engine produced no output", inv.Macro.Ref()),
		}).WithItem(item)
	}

	if err := r.fs.Rename(tmp, inv.OutputPath); err != nil {
		r.removeQuietly(tmp)
		return nil, (&mserrors.Error{
			Code: mserrors.CodeFilesystem,
			Op:   op,
			Err:  fmt.Errorf("billy: rename %q: %w", tmp, err),
		}).WithItem(item)
	}

	log.Info("macro succeeded", "attempts", res.Attempts, "duration", res.Duration)
	return &Result{OutputPath: inv.OutputPath, Attempts: res.Attempts, Duration: res.Duration}, nil
}

func (r *CommandRunner) sessionEnv(inv Invocation, tmp string) map[string]string {
	env := make(map[string]string, len(r.env)+4)
	for k, v := range r.env {
		env[k] = v
	}
	env[EnvDocument] = inv.DocumentPath
	env[EnvMacro] = inv.Macro.Ref()
	env[EnvOutput] = tmp
	env[EnvParam] = inv.Parameter
	return env
}

func (r *CommandRunner) removeQuietly(p string) {
	if err := r.fs.Remove(p); err != nil && !os.IsNotExist(err) {
		r.logger.Warn("failed to remove temporary output", "path", p, "error", err)
	}
}

func expand(tmpl []string, inv Invocation, output string) []string {
	replacer := strings.NewReplacer(
		PlaceholderDocument, inv.DocumentPath,
		PlaceholderMacroName, inv.Macro.Name,
		PlaceholderMacro, inv.Macro.Ref(),
		PlaceholderOutput, output,
		PlaceholderParam, inv.Parameter,
	)
	out := make([]string, len(tmpl))
	for i, a := range tmpl {
		out[i] = replacer.Replace(a)
	}
	return out
}

func validate(inv Invocation) error {
	switch {
	case inv.DocumentPath == "":
		return fmt.Errorf("document path is required")
	case inv.OutputPath == "":
		return fmt.Errorf("output path is required")
	case inv.Macro.Name == "":
		return fmt.Errorf("macro name is required")
	case filepath.Clean(inv.DocumentPath) == filepath.Clean(inv.OutputPath):
		return fmt.Errorf("output path must differ from the input document")
	}
	return nil
}
