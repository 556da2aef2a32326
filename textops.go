package veil

import (
	"github.com/tsawler/veil/chunk"
	"github.com/tsawler/veil/detect"
	"github.com/tsawler/veil/relation"
)

// TextScanner provides a fluent interface for scanning and masking
// plain text. Each configuration method returns a new TextScanner
// instance, making it safe for concurrent use and allowing method
// chaining. Long inputs are analyzed in overlapping chunks so detection
// quality does not degrade on large documents.
type TextScanner struct {
	text     string
	provider detect.Provider
	language string

	chunkSize int
	overlap   int
	minScore  float64

	// Accumulated error (fail-fast)
	err error
}

// clone creates a copy of the TextScanner so chain methods stay
// immutable.
func (t *TextScanner) clone() *TextScanner {
	return &TextScanner{
		text:      t.text,
		provider:  t.provider,
		language:  t.language,
		chunkSize: t.chunkSize,
		overlap:   t.overlap,
		minScore:  t.minScore,
		err:       t.err,
	}
}

// Provider sets the detection provider. The default is the built-in
// pattern scanner with the embedded Australian recognizer pack.
func (t *TextScanner) Provider(p detect.Provider) *TextScanner {
	newT := t.clone()
	newT.provider = p
	return newT
}

// Language sets the language hint passed to the detection provider.
// The default is "en".
func (t *TextScanner) Language(language string) *TextScanner {
	newT := t.clone()
	newT.language = language
	return newT
}

// ChunkSize sets the analysis window size in bytes. Zero uses the
// default; negative values surface chunk.ErrInvalidChunkSize at the
// terminal operation.
func (t *TextScanner) ChunkSize(size int) *TextScanner {
	newT := t.clone()
	newT.chunkSize = size
	return newT
}

// Overlap sets the number of bytes shared between adjacent analysis
// windows, so entities straddling a window boundary are still seen
// whole.
func (t *TextScanner) Overlap(overlap int) *TextScanner {
	newT := t.clone()
	newT.overlap = overlap
	return newT
}

// MinScore drops detections scoring below the threshold.
func (t *TextScanner) MinScore(score float64) *TextScanner {
	newT := t.clone()
	newT.minScore = score
	return newT
}

// ============================================================================
// Terminal Operations
// ============================================================================

// Spans runs detection over the text and returns the merged spans in
// document order.
//
// Example:
//
//	spans, err := veil.Text(content).Spans()
func (t *TextScanner) Spans() ([]detect.Span, error) {
	if t.err != nil {
		return nil, t.err
	}

	p := t.provider
	if p == nil {
		scanner, err := detect.NewScanner()
		if err != nil {
			return nil, err
		}
		p = scanner
	}

	return chunk.Analyze(p, t.text, t.language, chunk.Options{
		Size:     t.chunkSize,
		Overlap:  t.overlap,
		MinScore: t.minScore,
	})
}

// Mask returns relationship-aware masked text: owner names become
// PERSON_<id>, values attributed to an owner become <TYPE_PERSON_id>,
// and unattributed values become <TYPE>.
//
// Example:
//
//	masked, err := veil.Text("John Smith, john.smith@example.com").Mask()
//	// "PERSON_1, <EMAIL_ADDRESS_PERSON_1>"
func (t *TextScanner) Mask() (string, error) {
	spans, err := t.Spans()
	if err != nil {
		return "", err
	}
	return relation.Mask(t.text, spans)
}

// Anonymize replaces every detected span with its <TYPE> placeholder,
// without relationship attribution.
func (t *TextScanner) Anonymize() (string, error) {
	spans, err := t.Spans()
	if err != nil {
		return "", err
	}
	return relation.Anonymize(t.text, spans, nil)
}

// Owners returns the PERSON entities found in the text with their
// 1-based owner ids, as used by Mask's placeholders.
func (t *TextScanner) Owners() ([]relation.Owner, error) {
	spans, err := t.Spans()
	if err != nil {
		return nil, err
	}
	owners, _ := relation.Assign(t.text, spans)
	return owners, nil
}
