// Package memory provides an in-memory secret provider for tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/input-output-hk/macrosync/secrets"
)

// Name is the reference prefix served by this provider.
const Name = "memory"

const latestVersion = "latest"

// Provider keeps secrets in memory, keyed by path and version.
type Provider struct {
	mu    sync.RWMutex
	store map[string]map[string][]byte
}

// New creates an empty Provider.
func New() *Provider {
	return &Provider{store: make(map[string]map[string][]byte)}
}

func (p *Provider) Name() string {
	return Name
}

// Store saves value at path. An empty version stores the latest value.
func (p *Provider) Store(path, version string, value []byte) {
	if version == "" {
		version = latestVersion
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	versions, ok := p.store[path]
	if !ok {
		versions = make(map[string][]byte)
		p.store[path] = versions
	}
	versions[version] = append([]byte(nil), value...)
}

// Delete removes every version at path.
func (p *Provider) Delete(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, v := range p.store[path] {
		clear(v)
	}
	delete(p.store, path)
}

// Resolve returns a copy of the stored value.
func (p *Provider) Resolve(ctx context.Context, ref secrets.Ref) (*secrets.Secret, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("resolve operation cancelled: %w", err)
	}

	version := ref.Version
	if version == "" {
		version = latestVersion
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	value, ok := p.store[ref.Path][version]
	if !ok {
		return nil, secrets.NewProviderError(Name, ref, secrets.ErrSecretNotFound)
	}
	return &secrets.Secret{Value: append([]byte(nil), value...), Version: ref.Version}, nil
}

// Close zeroes and drops every stored value.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for path, versions := range p.store {
		for _, v := range versions {
			clear(v)
		}
		delete(p.store, path)
	}
	return nil
}
