package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mserrors "github.com/input-output-hk/macrosync/errors"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", WithLookupEnv(noEnv))
	require.NoError(t, err)

	assert.Equal(t, SchemaVersion, cfg.Version)
	assert.Equal(t, Containers{Input: "input", Output: "output"}, cfg.Containers)
	assert.Equal(t, 5*time.Second, cfg.Interval)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.False(t, cfg.DryRun)
	assert.Equal(t, Backoff{Multiplier: 2, MaxInterval: 5 * time.Minute}, cfg.Backoff)
	assert.Equal(t, "reset", cfg.Workspace.Policy)
	assert.Equal(t, filepath.Join(xdg.StateHome, AppName, "work"), cfg.Workspace.Dir)
	assert.Equal(t, "macrosync-engine", cfg.Engine.Program)
	assert.Equal(t, []string{"{document}", "{macro}", "{output}", "{param}"}, cfg.Engine.Args)
	assert.Equal(t, 10*time.Minute, cfg.Engine.Timeout)
	assert.Equal(t, []string{"Sub", "Function"}, cfg.Discovery.Keywords)
	assert.Nil(t, cfg.Discovery.Command)
	assert.Equal(t, Store{Connection: "env:MACROSYNC_CONNECTION"}, cfg.Store)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, filepath.Join(xdg.StateHome, AppName, AppName+".log"), cfg.Log.File)
	assert.True(t, cfg.LogFileEnabled())
	assert.Empty(t, cfg.Status.Listen)
}

func TestLoad_YAML(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "full.yaml"), WithLookupEnv(noEnv))
	require.NoError(t, err)

	assert.Equal(t, Containers{Input: "incoming", Output: "processed"}, cfg.Containers)
	assert.Equal(t, 30*time.Second, cfg.Interval)
	assert.Equal(t, "2024-Q1", cfg.Parameter)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, Backoff{Enabled: true, Multiplier: 1.5, MaxInterval: 10 * time.Minute}, cfg.Backoff)
	assert.Equal(t, Workspace{Dir: "/var/lib/macrosync", Policy: "strict"}, cfg.Workspace)
	assert.Equal(t, Engine{
		Program: "/opt/engine/run",
		Args:    []string{"--doc", "{document}", "--macro", "{macro}", "--out", "{output}"},
		Timeout: 2 * time.Minute,
		Retries: 1,
		Env:     map[string]string{"ENGINE_HOME": "/opt/engine"},
	}, cfg.Engine)
	assert.Equal(t, []string{"Sub"}, cfg.Discovery.Keywords)
	require.NotNil(t, cfg.Discovery.Command)
	assert.Equal(t, CommandSource{
		Program: "/opt/engine/list-units",
		Args:    []string{"{document}"},
		Timeout: time.Minute,
	}, *cfg.Discovery.Command)
	assert.Equal(t, Store{Backend: "s3", Connection: "aws:macrosync/connection"}, cfg.Store)
	assert.Equal(t, Log{Level: "debug", Format: "json", File: LogFileDisabled}, cfg.Log)
	assert.False(t, cfg.LogFileEnabled())
	assert.Equal(t, ":8080", cfg.Status.Listen)
}

func TestLoad_CUE(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "full.cue"), WithLookupEnv(noEnv))
	require.NoError(t, err)

	assert.Equal(t, Containers{Input: "incoming", Output: "processed"}, cfg.Containers)
	assert.Equal(t, time.Minute, cfg.Interval)
	assert.Equal(t, "monthly", cfg.Parameter)
	assert.Equal(t, 90*time.Second, cfg.Engine.Timeout)
	assert.Equal(t, Store{Backend: "azblob", Connection: "env:AZURE_STORAGE_CONNECTION_STRING"}, cfg.Store)
	assert.Equal(t, 3, cfg.MaxAttempts)
}

func TestLoad_Filesystem(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/etc/macrosync/config.yml", []byte("parameter: x\n"), 0o644))

	cfg, err := Load("/etc/macrosync/config.yml", WithFilesystem(fs), WithLookupEnv(noEnv))
	require.NoError(t, err)
	assert.Equal(t, "x", cfg.Parameter)

	_, err = Load("/etc/macrosync/missing.yml", WithFilesystem(fs), WithLookupEnv(noEnv))
	require.Error(t, err)
	assert.True(t, mserrors.HasCode(err, mserrors.CodeInvalidConfig))
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	env := envMap(map[string]string{
		"MACROSYNC_INPUT_CONTAINER": "from-env",
		"MACROSYNC_INTERVAL":        "45s",
		"MACROSYNC_MAX_ATTEMPTS":    "0",
		"MACROSYNC_DRY_RUN":         "true",
		"MACROSYNC_SCRATCH_POLICY":  "reset",
		"MACROSYNC_LOG_LEVEL":       "warn",
		"MACROSYNC_STATUS_LISTEN":   "127.0.0.1:9000",
	})

	cfg, err := Load(filepath.Join("testdata", "full.yaml"), WithLookupEnv(env))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Containers.Input)
	assert.Equal(t, "processed", cfg.Containers.Output)
	assert.Equal(t, 45*time.Second, cfg.Interval)
	assert.Equal(t, 0, cfg.MaxAttempts)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, "reset", cfg.Workspace.Policy)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1:9000", cfg.Status.Listen)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		env    map[string]string
		errMsg string
	}{
		{name: "unknown field", data: "containers:\n  outptu: x\n", errMsg: "outptu"},
		{name: "bad duration", data: "interval: soon\n", errMsg: "interval"},
		{name: "numeric duration", data: "interval: 5\n", errMsg: "interval"},
		{name: "negative attempts", data: "max_attempts: -1\n", errMsg: "max_attempts"},
		{name: "unknown policy", data: "workspace:\n  policy: merge\n", errMsg: "policy"},
		{name: "unknown backend", data: "store:\n  backend: gcs\n", errMsg: "backend"},
		{name: "same containers", data: "containers:\n  input: a\n  output: a\n", errMsg: "must differ"},
		{name: "zero interval", data: "interval: 0s\n", errMsg: "interval"},
		{name: "backoff below interval", data: "interval: 1m\nbackoff:\n  enabled: true\n  max_interval: 10s\n", errMsg: "max_interval"},
		{name: "incompatible version", data: "version: \"0.2.0\"\n", errMsg: "not compatible"},
		{name: "malformed version", data: "version: latest\n", errMsg: "latest"},
		{name: "malformed yaml", data: "containers: [\n", errMsg: "config.yaml"},
		{name: "bad env int", env: map[string]string{"MACROSYNC_MAX_ATTEMPTS": "many"}, errMsg: "MACROSYNC_MAX_ATTEMPTS"},
		{name: "bad env bool", env: map[string]string{"MACROSYNC_DRY_RUN": "sometimes"}, errMsg: "MACROSYNC_DRY_RUN"},
		{name: "bad env enum", env: map[string]string{"MACROSYNC_LOG_FORMAT": "xml"}, errMsg: "format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), FormatYAML, WithLookupEnv(envMap(tt.env)))
			require.Error(t, err)
			assert.True(t, mserrors.HasCode(err, mserrors.CodeInvalidConfig), "got %v", err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoad_UnknownFieldFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "unknown-field.yaml"), WithLookupEnv(noEnv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outptu")
}

func TestParse_CUESyntaxError(t *testing.T) {
	_, err := Parse([]byte("containers: {"), FormatCUE, WithLookupEnv(noEnv))
	require.Error(t, err)
	assert.True(t, mserrors.HasCode(err, mserrors.CodeInvalidConfig))
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{path: "macrosync.cue", want: FormatCUE},
		{path: "macrosync.yaml", want: FormatYAML},
		{path: "macrosync.YML", want: FormatYAML},
		{path: "macrosync.json", want: FormatYAML},
		{path: "macrosync.toml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatOf(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsCompatible(t *testing.T) {
	tests := []struct {
		version string
		want    bool
		wantErr bool
	}{
		{version: "0.1.0", want: true},
		{version: "0.1.9", want: true},
		{version: "0.2.0", want: false},
		{version: "1.0.0", want: false},
		{version: "0.0.9", want: false},
		{version: "nope", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			got, err := IsCompatible(tt.version)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEnvVars(t *testing.T) {
	vars := EnvVars()
	assert.Contains(t, vars, "MACROSYNC_INTERVAL")
	assert.NotContains(t, vars, "MACROSYNC_CONNECTION")
	for _, v := range vars {
		assert.Regexp(t, `^MACROSYNC_[A-Z_]+$`, v)
	}
}
