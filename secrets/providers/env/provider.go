// Package env resolves secrets from environment variables.
package env

import (
	"context"
	"fmt"
	"os"

	"github.com/input-output-hk/macrosync/secrets"
)

// Name is the reference prefix served by this provider.
const Name = "env"

// Provider reads the variable named by a reference path. Versions are not
// supported.
type Provider struct {
	lookup func(string) (string, bool)
}

// Option configures a Provider.
type Option func(*Provider)

// WithLookup replaces os.LookupEnv.
func WithLookup(fn func(string) (string, bool)) Option {
	return func(p *Provider) {
		p.lookup = fn
	}
}

// New creates a Provider.
func New(opts ...Option) *Provider {
	p := &Provider{lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string {
	return Name
}

// Resolve returns the variable's value. An unset or empty variable is not
// found.
func (p *Provider) Resolve(ctx context.Context, ref secrets.Ref) (*secrets.Secret, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ref.Path == "" {
		return nil, secrets.NewProviderError(Name, ref, secrets.ErrInvalidRef)
	}
	if ref.Version != "" {
		return nil, secrets.NewProviderError(Name, ref,
			fmt.Errorf("%w: environment variables are not versioned", secrets.ErrInvalidRef))
	}

	v, ok := p.lookup(ref.Path)
	if !ok || v == "" {
		return nil, secrets.NewProviderError(Name, ref, secrets.ErrSecretNotFound)
	}
	return &secrets.Secret{Value: []byte(v)}, nil
}
