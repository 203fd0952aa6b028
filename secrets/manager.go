package secrets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Provider resolves secrets from one backend.
type Provider interface {
	// Name is the reference prefix the provider serves, such as "env".
	Name() string

	Resolve(ctx context.Context, ref Ref) (*Secret, error)
}

// Manager routes references to registered providers.
type Manager struct {
	mu        sync.RWMutex
	providers map[string]Provider
	logger    *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger. Only references are logged, never values.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithProviders registers providers under their own names.
func WithProviders(providers ...Provider) ManagerOption {
	return func(m *Manager) {
		for _, p := range providers {
			m.providers[p.Name()] = p
		}
	}
}

// NewManager creates a Manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		providers: make(map[string]Provider),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds a provider. It fails if the name is taken.
func (m *Manager) Register(p Provider) error {
	if p == nil {
		return errors.New("provider cannot be nil")
	}
	if p.Name() == "" {
		return errors.New("provider name cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.providers[p.Name()]; exists {
		return fmt.Errorf("provider with name %q already registered", p.Name())
	}
	m.providers[p.Name()] = p
	return nil
}

// Resolve fetches the secret ref points to.
func (m *Manager) Resolve(ctx context.Context, ref Ref) (*Secret, error) {
	m.mu.RLock()
	p, ok := m.providers[ref.Provider]
	m.mu.RUnlock()

	if !ok {
		return nil, NewProviderError(ref.Provider, ref, ErrProviderNotFound)
	}

	secret, err := p.Resolve(ctx, ref)
	if err != nil {
		m.logger.Error("failed to resolve secret", "ref", ref.String(), "error", err)
		var pe *ProviderError
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, NewProviderError(p.Name(), ref, err)
	}

	m.logger.Debug("resolved secret", "ref", ref.String(), "version", secret.Version)
	return secret, nil
}

// ResolveString parses raw as a reference and returns the secret as a string.
func (m *Manager) ResolveString(ctx context.Context, raw string) (string, error) {
	ref, err := ParseRef(raw)
	if err != nil {
		return "", NewProviderError("", Ref{Path: raw}, err)
	}

	secret, err := m.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	defer secret.Clear()
	return secret.String(), nil
}

// Close closes every provider that holds resources.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for name, p := range m.providers {
		c, ok := p.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close provider %q: %w", name, err))
		}
	}
	m.providers = make(map[string]Provider)
	return errors.Join(errs...)
}
