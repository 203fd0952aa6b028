package config

import (
	"fmt"
	"strconv"
	"strings"
)

// EnvPrefix starts every environment override.
const EnvPrefix = "MACROSYNC_"

type envKind int

const (
	envString envKind = iota
	envInt
	envBool
)

type envOverride struct {
	name string
	path string
	kind envKind
}

// envOverrides lists the supported variables. MACROSYNC_CONNECTION is not
// here: it holds the connection descriptor and is read through the secret
// reference in store.connection.
var envOverrides = []envOverride{
	{"INPUT_CONTAINER", "containers.input", envString},
	{"OUTPUT_CONTAINER", "containers.output", envString},
	{"INTERVAL", "interval", envString},
	{"PARAMETER", "parameter", envString},
	{"MAX_ATTEMPTS", "max_attempts", envInt},
	{"DRY_RUN", "dry_run", envBool},
	{"WORK_DIR", "workspace.dir", envString},
	{"SCRATCH_POLICY", "workspace.policy", envString},
	{"ENGINE", "engine.program", envString},
	{"ENGINE_TIMEOUT", "engine.timeout", envString},
	{"ENGINE_RETRIES", "engine.retries", envInt},
	{"STORE_BACKEND", "store.backend", envString},
	{"CONNECTION_SECRET", "store.connection", envString},
	{"LOG_LEVEL", "log.level", envString},
	{"LOG_FORMAT", "log.format", envString},
	{"LOG_FILE", "log.file", envString},
	{"STATUS_LISTEN", "status.listen", envString},
}

// EnvVars returns the names of the supported override variables.
func EnvVars() []string {
	names := make([]string, len(envOverrides))
	for i, o := range envOverrides {
		names[i] = EnvPrefix + o.name
	}
	return names
}

func applyEnv(doc map[string]any, lookup func(string) (string, bool)) error {
	for _, o := range envOverrides {
		raw, ok := lookup(EnvPrefix + o.name)
		if !ok {
			continue
		}

		var value any = raw
		switch o.kind {
		case envInt:
			n, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, o.name, err)
			}
			value = n
		case envBool:
			b, err := strconv.ParseBool(strings.TrimSpace(raw))
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, o.name, err)
			}
			value = b
		}
		setPath(doc, strings.Split(o.path, "."), value)
	}
	return nil
}

func setPath(doc map[string]any, path []string, value any) {
	for _, key := range path[:len(path)-1] {
		next, ok := doc[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			doc[key] = next
		}
		doc = next
	}
	doc[path[len(path)-1]] = value
}
