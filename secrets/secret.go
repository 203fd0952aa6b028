// Package secrets resolves secret references such as the object store
// connection descriptor. A reference names a provider and a path:
//
//	env:MACROSYNC_CONNECTION
//	aws:prod/macrosync/connection
//	aws:prod/macrosync/connection@AWSPREVIOUS
//	memory:test/connection
//
// Secret values are never logged.
package secrets

import (
	"fmt"
	"strings"
)

// Secret is a resolved secret value.
type Secret struct {
	// Value holds the secret bytes. It must never be logged.
	Value []byte

	// Version is the provider version identifier, if any.
	Version string
}

// String returns the value as a string.
func (s *Secret) String() string {
	if s == nil || s.Value == nil {
		return ""
	}
	return string(s.Value)
}

// Bytes returns a copy of the value.
func (s *Secret) Bytes() []byte {
	if s == nil || s.Value == nil {
		return nil
	}
	out := make([]byte, len(s.Value))
	copy(out, s.Value)
	return out
}

// Clear zeroes the value.
func (s *Secret) Clear() {
	if s == nil {
		return
	}
	for i := range s.Value {
		s.Value[i] = 0
	}
	s.Value = nil
}

// Ref identifies a secret without holding its value.
type Ref struct {
	Provider string
	Path     string
	Version  string
}

// String formats r in the form accepted by ParseRef.
func (r Ref) String() string {
	s := r.Provider + ":" + r.Path
	if r.Version != "" {
		s += "@" + r.Version
	}
	return s
}

// ParseRef parses "provider:path[@version]".
func ParseRef(raw string) (Ref, error) {
	provider, rest, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok || provider == "" || rest == "" {
		return Ref{}, fmt.Errorf("%w: %q is not of the form provider:path", ErrInvalidRef, raw)
	}

	ref := Ref{Provider: provider, Path: rest}
	if i := strings.LastIndex(rest, "@"); i > 0 {
		ref.Path, ref.Version = rest[:i], rest[i+1:]
		if ref.Version == "" {
			return Ref{}, fmt.Errorf("%w: %q has an empty version", ErrInvalidRef, raw)
		}
	}
	return ref, nil
}
