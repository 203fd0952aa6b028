// Package errors provides the error classification shared by every macrosync
// component. Errors carry a string-based code so that the orchestrator can
// decide between skipping an item, aborting a cycle, or stopping the process.
package errors

// ErrorCode identifies a class of failure.
// Codes are string-based for debuggability and natural JSON serialization.
type ErrorCode string

const (
	// Store errors.

	// CodeStoreError indicates an object store operation (list, get, put) failed.
	CodeStoreError ErrorCode = "STORE_ERROR"

	// CodeNotFound indicates a requested object or container does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeUnauthorized indicates the store rejected the configured credentials.
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// Document errors.

	// CodeOpenFailure indicates a document could not be opened or its code units read.
	CodeOpenFailure ErrorCode = "OPEN_FAILURE"

	// CodeExecutionFailed indicates the automation engine failed to run a macro.
	CodeExecutionFailed ErrorCode = "EXECUTION_FAILED"

	// Local state errors.

	// CodeFilesystemConflict indicates a scratch directory already existed
	// where a fresh one was required.
	CodeFilesystemConflict ErrorCode = "FILESYSTEM_CONFLICT"

	// CodeFilesystem indicates a local filesystem operation failed.
	CodeFilesystem ErrorCode = "FILESYSTEM_ERROR"

	// Validation errors.

	// CodeInvalidInput indicates the provided input is invalid or malformed.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeInvalidConfig indicates a configuration error prevents startup.
	CodeInvalidConfig ErrorCode = "INVALID_CONFIGURATION"

	// System errors.

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeCanceled indicates the operation was stopped by its context.
	CodeCanceled ErrorCode = "CANCELED"

	// CodeUnknown indicates an unknown or unclassified error occurred.
	CodeUnknown ErrorCode = "UNKNOWN"
)

// Fatal reports whether errors with this code should stop the process.
// Only configuration and credential problems are fatal; everything else is
// retried on a later cycle.
func (c ErrorCode) Fatal() bool {
	return c == CodeInvalidConfig || c == CodeUnauthorized
}
