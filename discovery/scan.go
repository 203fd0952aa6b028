package discovery

import (
	"strings"
)

// ScanDeclarations returns the procedure names declared in code, in order.
//
// A declaration is a physical line that, once trimmed, starts with one of
// keywords followed by a space. The name is the next token with any
// parameter list removed. Line continuations are not joined, so a keyword
// split from its name by " _" is not recognized. Lines of any length are
// scanned.
func ScanDeclarations(code string, keywords []string) []string {
	var names []string

	for raw := range strings.Lines(code) {
		line := strings.TrimSpace(raw)
		if !declares(line, keywords) {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name, _, _ := strings.Cut(fields[1], "(")
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	return names
}

func declares(line string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.HasPrefix(line, kw+" ") {
			return true
		}
	}
	return false
}
