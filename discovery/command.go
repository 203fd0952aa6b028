package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/input-output-hk/macrosync/executor"
)

// UnitMarker starts a new code unit in CommandSource output:
//
//	'--- unit: Module1
const UnitMarker = "'--- unit:"

// CommandSource asks the automation engine to dump a document's code units
// to stdout. Args may contain the {document} placeholder. Units are separated
// by UnitMarker lines; text before the first marker forms a unit named
// "main". An exit status of 2 marks the document as unsupported.
type CommandSource struct {
	Runner  executor.Runner
	Program string
	Args    []string
	Timeout time.Duration
}

// ExitUnsupported is the engine exit status for documents it cannot handle.
const ExitUnsupported = 2

// Name implements Source.
func (c CommandSource) Name() string { return "command" }

// Units implements Source.
func (c CommandSource) Units(ctx context.Context, p string) ([]Unit, error) {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = strings.ReplaceAll(a, "{document}", p)
	}

	res, err := c.Runner.Run(ctx, executor.Command{
		Program: c.Program,
		Args:    args,
		Timeout: c.Timeout,
	})
	if err != nil {
		if res != nil && res.ExitCode == ExitUnsupported {
			return nil, fmt.Errorf("%w: %s", ErrUnsupported, strings.TrimSpace(res.Stderr))
		}
		return nil, err
	}
	return ParseUnits(res.Stdout), nil
}

// ParseUnits splits engine dump output into code units.
func ParseUnits(out string) []Unit {
	var (
		units   []Unit
		current *Unit
		body    strings.Builder
	)
	flush := func() {
		if current != nil {
			current.Code = body.String()
			units = append(units, *current)
		}
		body.Reset()
	}

	for _, line := range strings.SplitAfter(out, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, UnitMarker) {
			flush()
			current = &Unit{Name: strings.TrimSpace(strings.TrimPrefix(trimmed, UnitMarker))}
			continue
		}
		if current == nil {
			if trimmed == "" {
				continue
			}
			current = &Unit{Name: "main"}
		}
		body.WriteString(line)
	}
	flush()
	return units
}
