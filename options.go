package veil

import (
	"github.com/tsawler/veil/imageredact"
	"github.com/tsawler/veil/severity"
)

// redactOptions holds configuration for detection and redaction.
type redactOptions struct {
	// Detection
	language string
	minScore float64
	entities []string

	// PDF geometry
	wholeElement bool

	// Output decoration
	drawLabels     bool
	labelPrefix    string
	attachOriginal bool
	severities     map[string]severity.Severity
	colors         map[string]severity.Color

	// Image styling
	style *imageredact.RedactionStyle

	// CSV handling
	skipHeader      bool
	delimiter       rune
	useEntityLabels bool
}

// defaultRedactOptions returns the default redaction options.
func defaultRedactOptions() redactOptions {
	return redactOptions{
		language:   "en",
		skipHeader: true, // CSV header rows are labels, not data
	}
}

// clone creates a deep copy of redactOptions.
func (o redactOptions) clone() redactOptions {
	newOpts := redactOptions{
		language:        o.language,
		minScore:        o.minScore,
		wholeElement:    o.wholeElement,
		drawLabels:      o.drawLabels,
		labelPrefix:     o.labelPrefix,
		attachOriginal:  o.attachOriginal,
		skipHeader:      o.skipHeader,
		delimiter:       o.delimiter,
		useEntityLabels: o.useEntityLabels,
	}

	if o.entities != nil {
		newOpts.entities = make([]string, len(o.entities))
		copy(newOpts.entities, o.entities)
	}
	if o.severities != nil {
		newOpts.severities = make(map[string]severity.Severity, len(o.severities))
		for k, v := range o.severities {
			newOpts.severities[k] = v
		}
	}
	if o.colors != nil {
		newOpts.colors = make(map[string]severity.Color, len(o.colors))
		for k, v := range o.colors {
			newOpts.colors[k] = v
		}
	}
	if o.style != nil {
		s := *o.style
		newOpts.style = &s
	}

	return newOpts
}
