// Package config loads the process configuration.
//
// A configuration file may be written in CUE or YAML. Its contents are
// overlaid with MACROSYNC_* environment variables and unified with an
// embedded CUE schema that supplies defaults and rejects unknown or
// malformed fields. The result is decoded into a Config.
//
// Loading with no file yields the defaults: containers "input" and "output",
// a five second interval and a connection descriptor read from the
// MACROSYNC_CONNECTION environment variable.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	mserrors "github.com/input-output-hk/macrosync/errors"
)

// AppName names the per-user state directory.
const AppName = "macrosync"

// LogFileDisabled turns off the diagnostic log file when used as Log.File.
const LogFileDisabled = "off"

// Config is the decoded process configuration.
type Config struct {
	Version     string
	Containers  Containers
	Interval    time.Duration
	Parameter   string
	MaxAttempts int
	DryRun      bool
	Backoff     Backoff
	Workspace   Workspace
	Engine      Engine
	Discovery   Discovery
	Store       Store
	Log         Log
	Status      Status
}

// Containers names the object store containers.
type Containers struct {
	Input  string
	Output string
}

// Backoff stretches the pause after failed cycles.
type Backoff struct {
	Enabled     bool
	Multiplier  float64
	MaxInterval time.Duration
}

// Workspace locates scratch space.
type Workspace struct {
	// Dir holds the scratch directories. Defaults to a directory under the
	// XDG state home.
	Dir string

	// Policy is "reset" or "strict".
	Policy string
}

// Engine describes the automation engine command.
type Engine struct {
	Program string
	Args    []string
	Timeout time.Duration
	Retries int
	Env     map[string]string
}

// Discovery configures macro discovery.
type Discovery struct {
	Keywords []string

	// Command, when set, is consulted for documents the built-in readers
	// cannot open.
	Command *CommandSource
}

// CommandSource is an external program that prints a document's code units.
type CommandSource struct {
	Program string
	Args    []string
	Timeout time.Duration
}

// Store selects the object store. Connection is a secret reference whose
// value is the connection descriptor.
type Store struct {
	Backend    string
	Connection string
}

// Log configures diagnostics.
type Log struct {
	Level  string
	Format string

	// File is the append-only diagnostic log. Empty selects the default
	// location; LogFileDisabled turns it off.
	File string
}

// Status configures the HTTP status surface. An empty Listen disables it.
type Status struct {
	Listen string
}

// LogFileEnabled reports whether a diagnostic log file should be written.
func (c *Config) LogFileEnabled() bool {
	return c.Log.File != LogFileDisabled
}

// fileConfig mirrors the CUE schema for decoding.
type fileConfig struct {
	Version    string `json:"version"`
	Containers struct {
		Input  string `json:"input"`
		Output string `json:"output"`
	} `json:"containers"`
	Interval    string `json:"interval"`
	Parameter   string `json:"parameter"`
	MaxAttempts int    `json:"max_attempts"`
	DryRun      bool   `json:"dry_run"`
	Backoff     struct {
		Enabled     bool    `json:"enabled"`
		Multiplier  float64 `json:"multiplier"`
		MaxInterval string  `json:"max_interval"`
	} `json:"backoff"`
	Workspace struct {
		Dir    string `json:"dir"`
		Policy string `json:"policy"`
	} `json:"workspace"`
	Engine struct {
		Program string            `json:"program"`
		Args    []string          `json:"args"`
		Timeout string            `json:"timeout"`
		Retries int               `json:"retries"`
		Env     map[string]string `json:"env"`
	} `json:"engine"`
	Discovery struct {
		Keywords []string `json:"keywords"`
		Command  *struct {
			Program string   `json:"program"`
			Args    []string `json:"args"`
			Timeout string   `json:"timeout"`
		} `json:"command"`
	} `json:"discovery"`
	Store struct {
		Backend    string `json:"backend"`
		Connection string `json:"connection"`
	} `json:"store"`
	Log struct {
		Level  string `json:"level"`
		Format string `json:"format"`
		File   string `json:"file"`
	} `json:"log"`
	Status struct {
		Listen string `json:"listen"`
	} `json:"status"`
}

func (f *fileConfig) resolve() (*Config, error) {
	var err error
	duration := func(field, s string) time.Duration {
		if err != nil {
			return 0
		}
		var d time.Duration
		d, err = time.ParseDuration(s)
		if err != nil {
			err = fmt.Errorf("%s: %w", field, err)
		}
		return d
	}

	c := &Config{
		Version:     f.Version,
		Containers:  Containers{Input: f.Containers.Input, Output: f.Containers.Output},
		Interval:    duration("interval", f.Interval),
		Parameter:   f.Parameter,
		MaxAttempts: f.MaxAttempts,
		DryRun:      f.DryRun,
		Backoff: Backoff{
			Enabled:     f.Backoff.Enabled,
			Multiplier:  f.Backoff.Multiplier,
			MaxInterval: duration("backoff.max_interval", f.Backoff.MaxInterval),
		},
		Workspace: Workspace{Dir: f.Workspace.Dir, Policy: f.Workspace.Policy},
		Engine: Engine{
			Program: f.Engine.Program,
			Args:    f.Engine.Args,
			Timeout: duration("engine.timeout", f.Engine.Timeout),
			Retries: f.Engine.Retries,
			Env:     f.Engine.Env,
		},
		Discovery: Discovery{Keywords: f.Discovery.Keywords},
		Store:     Store{Backend: f.Store.Backend, Connection: f.Store.Connection},
		Log:       Log{Level: f.Log.Level, Format: f.Log.Format, File: f.Log.File},
		Status:    Status{Listen: f.Status.Listen},
	}
	if cmd := f.Discovery.Command; cmd != nil {
		c.Discovery.Command = &CommandSource{
			Program: cmd.Program,
			Args:    cmd.Args,
			Timeout: duration("discovery.command.timeout", cmd.Timeout),
		}
	}
	if err != nil {
		return nil, err
	}

	if c.Workspace.Dir == "" {
		c.Workspace.Dir = filepath.Join(xdg.StateHome, AppName, "work")
	}
	if c.Log.File == "" {
		c.Log.File = filepath.Join(xdg.StateHome, AppName, AppName+".log")
	}
	return c, nil
}

// Validate checks constraints that span several fields.
func (c *Config) Validate() error {
	const op = "config.Validate"
	switch {
	case c.Containers.Input == c.Containers.Output:
		return mserrors.New(mserrors.CodeInvalidConfig, op, "input and output containers must differ")
	case c.Interval <= 0:
		return mserrors.New(mserrors.CodeInvalidConfig, op, "interval must be positive")
	case c.Backoff.Enabled && c.Backoff.MaxInterval < c.Interval:
		return mserrors.New(mserrors.CodeInvalidConfig, op, "backoff.max_interval must not be below interval")
	case !c.DryRun && c.Engine.Program == "":
		return mserrors.New(mserrors.CodeInvalidConfig, op, "engine.program is required")
	case c.Engine.Timeout <= 0:
		return mserrors.New(mserrors.CodeInvalidConfig, op, "engine.timeout must be positive")
	}
	return nil
}
