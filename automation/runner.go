// Package automation runs macros through an external document-automation
// engine. One engine session is started per macro; the engine reads the input
// document and saves the transformed document, which then atomically replaces
// the output file.
package automation

import (
	"context"
	"time"

	"github.com/input-output-hk/macrosync/discovery"
)

// Invocation asks the engine to run one macro against one document.
type Invocation struct {
	// DocumentPath is the local input document. It is never modified.
	DocumentPath string

	Macro discovery.Macro

	// OutputPath receives the transformed document. An existing file is
	// replaced only when the engine succeeds.
	OutputPath string

	// Parameter is passed to the macro as its single argument.
	Parameter string
}

// Result describes a successful invocation.
type Result struct {
	OutputPath string
	Attempts   int
	Duration   time.Duration
}

// Runner executes macros.
type Runner interface {
	Execute(ctx context.Context, inv Invocation) (*Result, error)
}
