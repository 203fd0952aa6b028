// Package orchestrator runs the synchronization loop. Each poll cycle lists
// the input and output containers, computes the work items, downloads them
// into scratch space, runs every discovered macro through the automation
// engine, uploads the results that are not yet present, and cleans up.
//
// The output container is the only completion record: an item is done once an
// object with its name exists there.
package orchestrator

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/input-output-hk/macrosync/automation"
	"github.com/input-output-hk/macrosync/discovery"
	mserrors "github.com/input-output-hk/macrosync/errors"
	"github.com/input-output-hk/macrosync/store"
	"github.com/input-output-hk/macrosync/workspace"
)

// Defaults.
const (
	DefaultInputContainer  = "input"
	DefaultOutputContainer = "output"
	DefaultInterval        = 5 * time.Second
	DefaultMaxAttempts     = 3
	DefaultInputDir        = "input"
	DefaultOutputDir       = "output"
)

// Config controls an Orchestrator.
type Config struct {
	InputContainer  string
	OutputContainer string

	// InputDir and OutputDir are scratch directory names inside the workspace.
	InputDir  string
	OutputDir string

	// Parameter is passed to every macro.
	Parameter string

	// Interval is the pause between cycles.
	Interval time.Duration

	// MaxAttempts is the number of unproductive attempts after which an item
	// is quarantined. Zero disables quarantine.
	MaxAttempts int

	Backoff BackoffConfig

	// DryRun stops each cycle after planning.
	DryRun bool
}

// BackoffConfig stretches the pause after failed cycles.
type BackoffConfig struct {
	Enabled     bool
	Multiplier  float64
	MaxInterval time.Duration
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		InputContainer:  DefaultInputContainer,
		OutputContainer: DefaultOutputContainer,
		InputDir:        DefaultInputDir,
		OutputDir:       DefaultOutputDir,
		Interval:        DefaultInterval,
		MaxAttempts:     DefaultMaxAttempts,
		Backoff: BackoffConfig{
			Multiplier:  2,
			MaxInterval: 5 * time.Minute,
		},
	}
}

// Validate checks c for values that can never work.
func (c Config) Validate() error {
	const op = "orchestrator.Config"
	switch {
	case c.InputContainer == "" || c.OutputContainer == "":
		return mserrors.New(mserrors.CodeInvalidConfig, op, "input and output containers are required")
	case c.InputContainer == c.OutputContainer:
		return mserrors.New(mserrors.CodeInvalidConfig, op, "input and output containers must differ")
	case c.InputDir == "" || c.OutputDir == "":
		return mserrors.New(mserrors.CodeInvalidConfig, op, "scratch directories are required")
	case c.InputDir == c.OutputDir:
		return mserrors.New(mserrors.CodeInvalidConfig, op, "scratch directories must differ")
	case c.Interval <= 0:
		return mserrors.New(mserrors.CodeInvalidConfig, op, "interval must be positive")
	case c.MaxAttempts < 0:
		return mserrors.New(mserrors.CodeInvalidConfig, op, "max attempts cannot be negative")
	case c.Backoff.Enabled && c.Backoff.Multiplier < 1:
		return mserrors.New(mserrors.CodeInvalidConfig, op, "backoff multiplier must be at least 1")
	case c.Backoff.Enabled && c.Backoff.MaxInterval < c.Interval:
		return mserrors.New(mserrors.CodeInvalidConfig, op,
			fmt.Sprintf("backoff max interval %s is below interval %s", c.Backoff.MaxInterval, c.Interval))
	}
	return nil
}

// Orchestrator drives poll cycles. It is not safe to run two cycles of the
// same Orchestrator concurrently; status accessors may be called at any time.
type Orchestrator struct {
	store      store.Store
	discoverer discovery.Discoverer
	runner     automation.Runner
	workspace  *workspace.Workspace

	cfg        Config
	quarantine *Quarantine
	logger     *slog.Logger

	now   func() time.Time
	newID func() string
	after func(time.Duration) <-chan time.Time

	mu   sync.RWMutex
	last *CycleResult
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) {
		o.cfg = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// New creates an Orchestrator.
func New(
	st store.Store,
	disc discovery.Discoverer,
	runner automation.Runner,
	ws *workspace.Workspace,
	opts ...Option,
) (*Orchestrator, error) {
	o := &Orchestrator{
		store:      st,
		discoverer: disc,
		runner:     runner,
		workspace:  ws,
		cfg:        DefaultConfig(),
		now:        time.Now,
		newID:      uuid.NewString,
		after:      time.After,
	}
	for _, opt := range opts {
		opt(o)
	}

	if st == nil || disc == nil || runner == nil || ws == nil {
		return nil, mserrors.New(mserrors.CodeInvalidConfig, "orchestrator.New",
			"store, discoverer, runner and workspace are required")
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	o.quarantine = NewQuarantine(o.cfg.MaxAttempts)
	return o, nil
}

// Config returns the active configuration.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// Quarantine returns the attempt tracker.
func (o *Orchestrator) Quarantine() *Quarantine {
	return o.quarantine
}

// LastResult returns the most recent cycle result, or nil before the first
// cycle completes.
func (o *Orchestrator) LastResult() *CycleResult {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.last
}

func (o *Orchestrator) setLast(r *CycleResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.last = r
}
