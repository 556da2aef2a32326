// Package pdfredact locates PII on PDF pages and writes spatially
// redacted copies. Analysis maps detected text spans to page coordinates
// through tabula's per-fragment glyph geometry; writing appends an
// incremental update to the source PDF that composites filled boxes (and
// optional labels) over the affected regions.
//
// Redaction is visual: the original text objects remain in the page
// content underneath the boxes, and the original bytes are preserved as
// the prefix of the output file.
package pdfredact

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tsawler/tabula/reader"
	"github.com/tsawler/tabula/text"

	"github.com/tsawler/veil/detect"
)

// EntityBox is one detected entity located on a page, in PDF user-space
// coordinates (origin bottom-left).
type EntityBox struct {
	X0, Y0, X1, Y1 float64
	EntityType     string
	Score          float64
	Text           string
}

// Warning records a non-fatal condition encountered while analyzing a
// page. Page indexes are 0-based.
type Warning struct {
	Page    int
	Message string
}

// Options configures page analysis.
type Options struct {
	// Language passed through to the detection provider.
	Language string
	// MinScore drops detections scoring below the threshold.
	MinScore float64
	// Entities restricts detection to the given entity types when
	// non-empty.
	Entities []string
	// WholeElement draws one box covering the entire text element for
	// each detection, instead of the tight union of the matched glyph
	// boxes. Coarser, but robust to imprecise glyph metrics.
	WholeElement bool
}

// charBox is the box of a single glyph. Elements carry one box per BYTE
// of their text so detection offsets index directly into the table; all
// bytes of a multi-byte rune share the rune's box.
type charBox struct {
	x0, y0, x1, y1 float64
}

// element is one analyzable text run on a page: a visual line of
// fragments with its concatenated text and per-byte geometry.
type element struct {
	text  string
	boxes []charBox
}

// lineYTolerance is the baseline distance within which fragments are
// considered part of the same visual line.
const lineYTolerance = 2.0

// gapSpaceThreshold is the horizontal gap, in points, above which a
// synthetic space is inserted between adjacent fragments on a line.
const gapSpaceThreshold = 0.5

// Analyze runs the detection provider over every page of the PDF and
// returns the located entity boxes, one slice per page (every page is
// represented, possibly empty).
//
// Per-element geometry problems are reported as warnings and skip only
// the affected detections; provider failures abort with an error.
func Analyze(r *reader.Reader, p detect.Provider, opts Options) ([][]EntityBox, []Warning, error) {
	if opts.Language == "" {
		opts.Language = "en"
	}

	pageCount, err := r.PageCount()
	if err != nil {
		return nil, nil, fmt.Errorf("page count: %w", err)
	}

	perPage := make([][]EntityBox, pageCount)
	var warnings []Warning

	for i := 0; i < pageCount; i++ {
		page, err := r.GetPage(i)
		if err != nil {
			warnings = append(warnings, Warning{Page: i, Message: fmt.Sprintf("load page: %v", err)})
			continue
		}

		fragments, err := r.ExtractTextFragments(page)
		if err != nil {
			warnings = append(warnings, Warning{Page: i, Message: fmt.Sprintf("extract text: %v", err)})
			continue
		}
		if len(fragments) == 0 {
			continue
		}

		elements := buildElements(fragments)

		// The dedup set spans the whole page: a value repeated in several
		// elements (letterheads, footers) is boxed once.
		seen := make(map[string]struct{})

		var boxes []EntityBox
		for _, el := range elements {
			found, ws, err := analyzeElement(el, p, opts, seen)
			if err != nil {
				return nil, warnings, fmt.Errorf("analyze page %d: %w", i, err)
			}
			for _, w := range ws {
				warnings = append(warnings, Warning{Page: i, Message: w})
			}
			boxes = append(boxes, found...)
		}
		perPage[i] = boxes
	}

	return perPage, warnings, nil
}

// analyzeElement runs detection over one element's text and maps each
// surviving span to a box.
func analyzeElement(el element, p detect.Provider, opts Options, seen map[string]struct{}) ([]EntityBox, []string, error) {
	if strings.TrimSpace(el.text) == "" {
		return nil, nil, nil
	}

	results, err := p.Analyze(el.text, opts.Language)
	if err != nil {
		return nil, nil, err
	}
	results = detect.FilterEntities(results, opts.Entities)

	var boxes []EntityBox
	var warnings []string

	for _, res := range results {
		if res.Score < opts.MinScore {
			continue
		}

		start, end := res.Start, res.End
		if end <= start {
			continue
		}

		// When a name-like match directly follows a field label ("Name:"),
		// drop the leading whitespace so the box hugs the value. Colons
		// inside the match itself are part of the entity and stay covered.
		if res.EntityType == "PERSON" || res.EntityType == "ORGANIZATION" {
			if strings.HasSuffix(strings.TrimRight(el.text[:start], " \t"), ":") {
				for start < end && isSpaceByte(el.text[start]) {
					start++
				}
			}
		}

		// Trim trailing sentence punctuation.
		for end > start && strings.IndexByte(".,;:", el.text[end-1]) >= 0 {
			end--
		}
		if end <= start {
			continue
		}

		matched := el.text[start:end]
		key := res.EntityType + ":" + matched
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		var eb EntityBox
		var ok bool
		if opts.WholeElement {
			eb, ok = unionBox(el.boxes)
		} else {
			eb, ok = unionBox(el.boxes[start:end])
		}
		if !ok {
			warnings = append(warnings, fmt.Sprintf("no geometry for %s %q", res.EntityType, matched))
			continue
		}

		eb.EntityType = res.EntityType
		eb.Score = res.Score
		eb.Text = matched
		boxes = append(boxes, eb)
	}

	return boxes, warnings, nil
}

// unionBox folds char boxes into their bounding union.
func unionBox(boxes []charBox) (EntityBox, bool) {
	if len(boxes) == 0 {
		return EntityBox{}, false
	}
	eb := EntityBox{
		X0: boxes[0].x0, Y0: boxes[0].y0,
		X1: boxes[0].x1, Y1: boxes[0].y1,
	}
	for _, b := range boxes[1:] {
		if b.x0 < eb.X0 {
			eb.X0 = b.x0
		}
		if b.y0 < eb.Y0 {
			eb.Y0 = b.y0
		}
		if b.x1 > eb.X1 {
			eb.X1 = b.x1
		}
		if b.y1 > eb.Y1 {
			eb.Y1 = b.y1
		}
	}
	return eb, true
}

// buildElements groups fragments into visual lines and concatenates each
// line into one element with per-byte geometry. Glyph boxes inside a
// fragment are interpolated by uniform subdivision of the fragment width.
func buildElements(fragments []text.TextFragment) []element {
	// Sort top-to-bottom, then left-to-right.
	sorted := make([]text.TextFragment, len(fragments))
	copy(sorted, fragments)
	sort.SliceStable(sorted, func(i, j int) bool {
		if diff := sorted[i].Y - sorted[j].Y; diff > lineYTolerance || diff < -lineYTolerance {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var elements []element
	var current []text.TextFragment
	currentY := 0.0

	flush := func() {
		if len(current) > 0 {
			elements = append(elements, joinFragments(current))
			current = nil
		}
	}

	for _, f := range sorted {
		if f.Text == "" {
			continue
		}
		if len(current) > 0 {
			diff := f.Y - currentY
			if diff > lineYTolerance || diff < -lineYTolerance {
				flush()
			}
		}
		if len(current) == 0 {
			currentY = f.Y
		}
		current = append(current, f)
	}
	flush()

	return elements
}

// joinFragments concatenates a line of fragments into one element,
// inserting a synthetic space over any visible horizontal gap.
func joinFragments(frags []text.TextFragment) element {
	var sb strings.Builder
	var boxes []charBox

	prevEnd := 0.0
	for i, f := range frags {
		if i > 0 && f.X-prevEnd > gapSpaceThreshold {
			// Synthetic space covering the gap.
			gap := charBox{x0: prevEnd, y0: f.Y, x1: f.X, y1: f.Y + f.Height}
			sb.WriteByte(' ')
			boxes = append(boxes, gap)
		}

		runes := []rune(f.Text)
		if len(runes) == 0 {
			continue
		}
		advance := f.Width / float64(len(runes))
		for ri, r := range runes {
			box := charBox{
				x0: f.X + float64(ri)*advance,
				y0: f.Y,
				x1: f.X + float64(ri+1)*advance,
				y1: f.Y + f.Height,
			}
			n := sb.Len()
			sb.WriteRune(r)
			// One box entry per byte of the rune.
			for b := n; b < sb.Len(); b++ {
				boxes = append(boxes, box)
			}
		}
		prevEnd = f.X + f.Width
	}

	return element{text: sb.String(), boxes: boxes}
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
