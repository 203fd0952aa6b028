package store

import (
	"errors"
	"fmt"

	mserrors "github.com/input-output-hk/macrosync/errors"
)

// Sentinel errors shared by every backend. Use errors.Is to check them.
var (
	// ErrNotFound indicates that the requested object does not exist.
	ErrNotFound = errors.New("store: object not found")

	// ErrContainerNotFound indicates that the container does not exist.
	ErrContainerNotFound = errors.New("store: container not found")

	// ErrAccessDenied indicates the credentials lack permission.
	ErrAccessDenied = errors.New("store: access denied")

	// ErrInvalidCredentials indicates the credentials were rejected.
	ErrInvalidCredentials = errors.New("store: invalid credentials")

	// ErrInvalidInput indicates that the provided input is invalid.
	ErrInvalidInput = errors.New("store: invalid input")
)

// Error is a store operation failure with the container and object involved.
type Error struct {
	// Op is the operation that failed ("list", "get", "put").
	Op string

	// Backend names the implementation ("s3", "minio", "azblob", "memory").
	Backend string

	Container string
	Name      string
	Err       error
}

func (e *Error) Error() string {
	prefix := e.Op
	if e.Backend != "" {
		prefix = e.Backend + "." + e.Op
	}
	switch {
	case e.Container != "" && e.Name != "":
		return fmt.Sprintf("%s %s/%s: %v", prefix, e.Container, e.Name, e.Err)
	case e.Container != "":
		return fmt.Sprintf("%s container %s: %v", prefix, e.Container, e.Err)
	}
	return fmt.Sprintf("%s: %v", prefix, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode classifies the failure. Credential problems are reported as
// unauthorized so that startup can fail fast; everything else is a plain
// store error retried on the next cycle.
func (e *Error) ErrorCode() mserrors.ErrorCode {
	switch {
	case errors.Is(e.Err, ErrAccessDenied), errors.Is(e.Err, ErrInvalidCredentials):
		return mserrors.CodeUnauthorized
	case errors.Is(e.Err, ErrNotFound):
		return mserrors.CodeNotFound
	case errors.Is(e.Err, ErrInvalidInput):
		return mserrors.CodeInvalidInput
	}
	return mserrors.CodeStoreError
}

// NewError creates an Error for a container-level operation.
func NewError(backend, op, container string, err error) *Error {
	return &Error{Op: op, Backend: backend, Container: container, Err: err}
}

// NewObjectError creates an Error for an object-level operation.
func NewObjectError(backend, op, container, name string, err error) *Error {
	return &Error{Op: op, Backend: backend, Container: container, Name: name, Err: err}
}

// IsNotFound reports whether err indicates a missing object.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsCredentialError reports whether err indicates rejected or insufficient
// credentials.
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrAccessDenied) || errors.Is(err, ErrInvalidCredentials)
}

// ValidateContainer checks a container name.
func ValidateContainer(container string) error {
	if container == "" {
		return fmt.Errorf("%w: container name cannot be empty", ErrInvalidInput)
	}
	return nil
}

// ValidateName checks an object name.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: object name cannot be empty", ErrInvalidInput)
	}
	return nil
}
