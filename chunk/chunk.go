// Package chunk scans long text for PII by breaking it into overlapping
// windows, analyzing each window independently, and merging the per-window
// results back into document-global spans.
//
// Windowing keeps peak memory and regex scan cost bounded on large
// documents; the overlap region gives entities that straddle a window
// boundary a second chance to be seen whole in the following window.
package chunk

import (
	"errors"
	"fmt"

	"github.com/tsawler/veil/detect"
)

const (
	// DefaultSize is the default window size in bytes.
	DefaultSize = 5000
	// DefaultOverlap is the default number of bytes a window reaches back
	// into its predecessor.
	DefaultOverlap = 300
)

// ErrInvalidChunkSize is returned when the window size is not positive.
var ErrInvalidChunkSize = errors.New("chunk size must be > 0")

// ErrInvalidOverlap is returned when the overlap is negative.
var ErrInvalidOverlap = errors.New("chunk overlap must be >= 0")

// Options configures chunked analysis.
type Options struct {
	// Size is the window size in bytes. Zero means DefaultSize.
	Size int
	// Overlap is how far each window (after the first) reaches back into
	// the previous one. Zero is valid; negative is an error. When Size is
	// zero, a zero Overlap also defaults to DefaultOverlap.
	Overlap int
	// MinScore drops spans scoring below the threshold before merging.
	MinScore float64
}

// Window is one chunk of the text: the half-open global byte range
// [Start, End).
type Window struct {
	Start int
	End   int
}

// Windows computes the chunk windows for a text of the given length.
// Window 0 is [0, min(len, size)); window i starts at max(0, i*size -
// overlap) and ends at min(len, i*size + size). The cursor advances by
// size regardless of overlap, so consecutive windows share exactly
// overlap bytes except where clamped at the text boundaries. An empty
// text yields no windows.
func Windows(textLen, size, overlap int) ([]Window, error) {
	if size <= 0 {
		return nil, ErrInvalidChunkSize
	}
	if overlap < 0 {
		return nil, ErrInvalidOverlap
	}

	var windows []Window
	for i := 0; i < textLen; i += size {
		start := i
		if i > 0 {
			start = i - overlap
			if start < 0 {
				start = 0
			}
		}
		end := i + size
		if end > textLen {
			end = textLen
		}
		windows = append(windows, Window{Start: start, End: end})
	}
	return windows, nil
}

// Analyze runs the provider over each window of text and merges results.
//
// Span offsets from each window are rebased to document-global offsets.
// Spans below opts.MinScore are dropped before merging. Merging is by
// exact key (Start, End, EntityType): the highest-scoring occurrence
// wins, with the first-seen kept on ties. The merge is intentionally
// exact-key only; a partial span truncated at a window boundary and the
// full span seen in the next window are distinct results.
//
// The returned spans are sorted ascending by (Start, End, EntityType).
func Analyze(p detect.Provider, text, language string, opts Options) ([]detect.Span, error) {
	size := opts.Size
	overlap := opts.Overlap
	if size == 0 {
		size = DefaultSize
		if overlap == 0 {
			overlap = DefaultOverlap
		}
	}

	windows, err := Windows(len(text), size, overlap)
	if err != nil {
		return nil, err
	}

	type key struct {
		start, end int
		entity     string
	}
	merged := make(map[key]detect.Span)

	for _, w := range windows {
		results, err := p.Analyze(text[w.Start:w.End], language)
		if err != nil {
			return nil, fmt.Errorf("analyze chunk [%d,%d): %w", w.Start, w.End, err)
		}

		for _, r := range results {
			if r.Score < opts.MinScore {
				continue
			}
			globalStart := w.Start + r.Start
			globalEnd := w.Start + r.End
			k := key{globalStart, globalEnd, r.EntityType}

			if existing, ok := merged[k]; !ok || r.Score > existing.Score {
				merged[k] = detect.Span{
					EntityType: r.EntityType,
					Start:      globalStart,
					End:        globalEnd,
					Score:      r.Score,
				}
			}
		}
	}

	spans := make([]detect.Span, 0, len(merged))
	for _, s := range merged {
		spans = append(spans, s)
	}
	detect.SortSpans(spans)
	return spans, nil
}
