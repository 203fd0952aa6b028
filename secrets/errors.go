package secrets

import (
	"errors"
	"fmt"

	mserrors "github.com/input-output-hk/macrosync/errors"
)

var (
	// ErrSecretNotFound indicates the provider has no secret at the path.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrInvalidRef indicates a malformed reference.
	ErrInvalidRef = errors.New("invalid secret reference")

	// ErrAccessDenied indicates the caller may not read the secret.
	ErrAccessDenied = errors.New("access denied")

	// ErrProviderNotFound indicates no provider is registered under the
	// reference's provider name.
	ErrProviderNotFound = errors.New("provider not registered")
)

// ProviderError wraps a failure inside a provider.
type ProviderError struct {
	Provider string
	Ref      Ref
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %q error for secret %q: %v", e.Provider, e.Ref.Path, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ErrorCode classifies the failure. A secret that cannot be found or parsed
// is a configuration problem; a refused read is a credential problem.
func (e *ProviderError) ErrorCode() mserrors.ErrorCode {
	switch {
	case errors.Is(e.Err, ErrAccessDenied):
		return mserrors.CodeUnauthorized
	case errors.Is(e.Err, ErrSecretNotFound),
		errors.Is(e.Err, ErrInvalidRef),
		errors.Is(e.Err, ErrProviderNotFound):
		return mserrors.CodeInvalidConfig
	}
	return mserrors.CodeUnknown
}

// NewProviderError creates a ProviderError.
func NewProviderError(provider string, ref Ref, err error) *ProviderError {
	return &ProviderError{Provider: provider, Ref: ref, Err: err}
}

// IsNotFound reports whether err indicates a missing secret.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSecretNotFound)
}
