// Package detect finds spans of personally identifiable information (PII)
// in text. The core abstraction is the Provider interface; the built-in
// Scanner implements it with regex recognizers loaded from
// Presidio-compatible YAML definitions, with an embedded Australian
// default pack.
//
// Basic usage:
//
//	scanner, err := detect.NewScanner()
//	if err != nil {
//	    // handle error
//	}
//	spans, err := scanner.Analyze("TFN: 123 456 782", "en")
//
// For NER-based detection, see the detect/ner subpackage (requires the
// "ner" build tag).
package detect

import "sort"

// Span is a single detected entity: a half-open [Start, End) byte range
// into the analyzed text, the entity type it was recognized as, and a
// confidence score in [0, 1].
type Span struct {
	EntityType string
	Start      int
	End        int
	Score      float64
}

// Provider analyzes text and reports detected PII spans.
// Implementations must return spans with offsets into the given text.
type Provider interface {
	Analyze(text, language string) ([]Span, error)
}

// SortSpans orders spans ascending by (Start, End, EntityType).
// This is the canonical ordering used throughout the library.
func SortSpans(spans []Span) {
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		if spans[i].End != spans[j].End {
			return spans[i].End < spans[j].End
		}
		return spans[i].EntityType < spans[j].EntityType
	})
}

// FilterEntities returns only the spans whose entity type appears in
// entities. An empty entities list returns the input unchanged.
func FilterEntities(spans []Span, entities []string) []Span {
	if len(entities) == 0 {
		return spans
	}
	allowed := make(map[string]bool, len(entities))
	for _, e := range entities {
		allowed[e] = true
	}
	var out []Span
	for _, s := range spans {
		if allowed[s.EntityType] {
			out = append(out, s)
		}
	}
	return out
}
