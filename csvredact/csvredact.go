// Package csvredact detects and redacts PII in CSV files, cell by cell.
// Each non-empty cell is analyzed independently; detections carry their
// 0-based row and column so results map directly back to the file
// (header row included in the numbering).
package csvredact

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tsawler/veil/detect"
	"github.com/tsawler/veil/relation"
)

// Options configures CSV analysis and redaction.
type Options struct {
	// Language passed through to the detection provider.
	Language string
	// MinScore drops detections scoring below the threshold.
	MinScore float64
	// SkipHeader skips the first row during analysis. NewOptions
	// defaults it to true; the zero value analyzes every row.
	SkipHeader bool
	// Delimiter is the field separator; zero means ','.
	Delimiter rune
	// Entities restricts detection to the given entity types.
	Entities []string
	// RedactionChar is the masking character; zero means '*'.
	RedactionChar rune
	// UseEntityLabels replaces detected values with <TYPE> placeholders
	// instead of masking characters.
	UseEntityLabels bool
}

// NewOptions returns the default options: skip the header row, comma
// delimiter, asterisk masking.
func NewOptions() Options {
	return Options{SkipHeader: true}
}

// Detection is one PII hit inside a cell.
type Detection struct {
	Row        int
	Column     int
	EntityType string
	Start      int
	End        int
	Score      float64
	Value      string
	CellValue  string
}

// Summary aggregates detections for reporting.
type Summary struct {
	TotalDetections int
	AffectedCells   int
	ByEntityType    map[string]int
}

// Analyze reads a CSV file and detects PII in every analyzed cell.
// It returns the parsed rows and the detections.
func Analyze(path string, p detect.Provider, opts Options) ([][]string, []Detection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening CSV: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	if opts.Delimiter != 0 {
		r.Comma = opts.Delimiter
	}
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parsing CSV: %w", err)
	}

	detections, err := analyzeRows(rows, p, opts)
	if err != nil {
		return nil, nil, err
	}
	return rows, detections, nil
}

// analyzeRows runs detection over each non-empty cell.
func analyzeRows(rows [][]string, p detect.Provider, opts Options) ([]Detection, error) {
	language := opts.Language
	if language == "" {
		language = "en"
	}

	startRow := 0
	if opts.SkipHeader && len(rows) > 0 {
		startRow = 1
	}

	var detections []Detection
	for rowIdx := startRow; rowIdx < len(rows); rowIdx++ {
		for colIdx, cell := range rows[rowIdx] {
			if strings.TrimSpace(cell) == "" {
				continue
			}

			spans, err := p.Analyze(cell, language)
			if err != nil {
				return nil, fmt.Errorf("analyzing cell (%d,%d): %w", rowIdx, colIdx, err)
			}
			spans = detect.FilterEntities(spans, opts.Entities)

			for _, s := range spans {
				if s.Score < opts.MinScore {
					continue
				}
				detections = append(detections, Detection{
					Row:        rowIdx,
					Column:     colIdx,
					EntityType: s.EntityType,
					Start:      s.Start,
					End:        s.End,
					Score:      s.Score,
					Value:      cell[s.Start:s.End],
					CellValue:  cell,
				})
			}
		}
	}
	return detections, nil
}

// Redact analyzes inPath and writes a redacted copy to outPath. Each
// affected cell has its detected ranges replaced by masking characters
// (or <TYPE> labels when UseEntityLabels is set). It returns the
// detections and the number of cells changed.
//
// Output is staged in a temp file beside outPath and renamed into place.
func Redact(inPath, outPath string, p detect.Provider, opts Options) ([]Detection, int, error) {
	rows, detections, err := Analyze(inPath, p, opts)
	if err != nil {
		return nil, 0, err
	}

	maskChar := opts.RedactionChar
	if maskChar == 0 {
		maskChar = '*'
	}

	// Group detections per cell so overlapping spans splice together.
	type cellKey struct{ row, col int }
	perCell := make(map[cellKey][]detect.Span)
	for _, d := range detections {
		k := cellKey{d.Row, d.Column}
		perCell[k] = append(perCell[k], detect.Span{
			EntityType: d.EntityType,
			Start:      d.Start,
			End:        d.End,
			Score:      d.Score,
		})
	}

	for k, spans := range perCell {
		original := rows[k.row][k.col]

		var redacted string
		if opts.UseEntityLabels {
			redacted, err = relation.Anonymize(original, spans, nil)
		} else {
			redacted, err = maskSpans(original, spans, maskChar)
		}
		if err != nil {
			return nil, 0, fmt.Errorf("redacting cell (%d,%d): %w", k.row, k.col, err)
		}
		rows[k.row][k.col] = redacted
	}

	if err := writeCSV(outPath, rows, opts.Delimiter); err != nil {
		return nil, 0, err
	}
	return detections, len(perCell), nil
}

// maskSpans replaces each detected range with one mask character per
// byte, splicing from the end so offsets stay valid.
func maskSpans(text string, spans []detect.Span, maskChar rune) (string, error) {
	ordered := make([]detect.Span, len(spans))
	copy(ordered, spans)
	detect.SortSpans(ordered)

	out := text
	for i := len(ordered) - 1; i >= 0; i-- {
		s := ordered[i]
		if s.End <= s.Start || s.Start < 0 || s.End > len(text) {
			return "", fmt.Errorf("%w: %s [%d,%d)", relation.ErrInvalidSpan, s.EntityType, s.Start, s.End)
		}
		mask := strings.Repeat(string(maskChar), s.End-s.Start)
		out = out[:s.Start] + mask + out[s.End:]
	}
	return out, nil
}

// writeCSV writes rows atomically.
func writeCSV(path string, rows [][]string, delimiter rune) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".veil-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	w := csv.NewWriter(tmp)
	if delimiter != 0 {
		w.Comma = delimiter
	}
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing CSV: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing CSV: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("moving CSV into place: %w", err)
	}
	return nil
}

// Summarize aggregates detections into totals per entity type.
func Summarize(detections []Detection) Summary {
	counts := make(map[string]int)
	cells := make(map[[2]int]bool)
	for _, d := range detections {
		counts[d.EntityType]++
		cells[[2]int{d.Row, d.Column}] = true
	}
	return Summary{
		TotalDetections: len(detections),
		AffectedCells:   len(cells),
		ByEntityType:    counts,
	}
}
