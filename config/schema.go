package config

import (
	_ "embed"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// SchemaVersion is the configuration format version understood by this build.
// Files declare the version they were written for in their version field.
const SchemaVersion = "0.1.0"

// schemaSource holds the CUE definition every configuration is unified with.
// It supplies defaults and rejects unknown fields.
//
//go:embed schema.cue
var schemaSource string

// IsCompatible reports whether a file written for version can be read by this
// build. Compatibility follows a caret constraint on SchemaVersion, so while
// the major version is zero only patch releases are compatible.
func IsCompatible(version string) (bool, error) {
	constraint, err := semver.NewConstraint("^" + SchemaVersion)
	if err != nil {
		return false, fmt.Errorf("invalid schema version: %w", err)
	}

	v, err := semver.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("invalid config version %q: %w", version, err)
	}
	return constraint.Check(v), nil
}
