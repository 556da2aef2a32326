package veil

import (
	"fmt"
	"strings"
)

// Warning describes a non-fatal issue encountered during analysis or
// redaction. Processing continues; the affected element or page may be
// incomplete. Page is 1-indexed; zero means the warning is not tied to
// a page.
type Warning struct {
	Page    int
	Message string
}

// String returns a human-readable form of the warning.
func (w Warning) String() string {
	if w.Page > 0 {
		return fmt.Sprintf("page %d: %s", w.Page, w.Message)
	}
	return w.Message
}

// FormatWarnings formats a slice of warnings for display, one per line.
// Returns an empty string if there are no warnings.
func FormatWarnings(warnings []Warning) string {
	if len(warnings) == 0 {
		return ""
	}
	lines := make([]string, len(warnings))
	for i, w := range warnings {
		lines[i] = w.String()
	}
	return strings.Join(lines, "\n")
}
