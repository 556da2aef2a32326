package veil

import (
	"fmt"
	"os"

	"github.com/tsawler/tabula/reader"

	"github.com/tsawler/veil/csvredact"
	"github.com/tsawler/veil/detect"
	"github.com/tsawler/veil/format"
	"github.com/tsawler/veil/imageredact"
	"github.com/tsawler/veil/pdfredact"
	"github.com/tsawler/veil/severity"
)

// Summary reports what a redaction run changed.
type Summary struct {
	// Format is the resolved input format.
	Format format.Format
	// OutputPath is where the redacted copy was written.
	OutputPath string
	// Detections is the total number of PII hits redacted.
	Detections int
	// ByEntityType counts detections per entity type.
	ByEntityType map[string]int
}

// Redactor provides a fluent interface for detecting and redacting PII
// in PDF, image, and CSV files. Each configuration method returns a new
// Redactor instance, making it safe for concurrent use and allowing
// method chaining.
type Redactor struct {
	// Source
	filename string
	format   format.Format

	// PDF reader lifecycle
	reader       *reader.Reader
	ownsReader   bool // true if we opened the reader and should close it
	readerOpened bool // true if reader has been opened

	// Detection provider; nil means the built-in pattern scanner
	provider detect.Provider

	// Configuration
	options redactOptions

	// Accumulated error (fail-fast)
	err error
}

// clone creates a shallow copy of the Redactor with a deep copy of
// options. This ensures immutability - each chain method returns a new
// instance.
func (e *Redactor) clone() *Redactor {
	return &Redactor{
		filename:     e.filename,
		format:       e.format,
		reader:       e.reader,
		ownsReader:   e.ownsReader,
		readerOpened: e.readerOpened,
		provider:     e.provider,
		options:      e.options.clone(),
		err:          e.err,
	}
}

// resolveFormat settles an Unknown format by sniffing the file's
// leading bytes.
func (e *Redactor) resolveFormat() error {
	if e.format != format.Unknown {
		return nil
	}
	if e.filename == "" {
		return fmt.Errorf("no filename specified")
	}

	f, err := os.Open(e.filename)
	if err != nil {
		return fmt.Errorf("opening %s: %w", e.filename, err)
	}
	defer f.Close()

	head := make([]byte, 8)
	n, _ := f.Read(head)
	e.format = format.DetectFromMagic(head[:n])
	if e.format == format.Unknown {
		return fmt.Errorf("unsupported file format for %s", e.filename)
	}
	return nil
}

// ensureReader opens the PDF reader if not already open.
func (e *Redactor) ensureReader() error {
	if e.readerOpened {
		return nil
	}
	if e.filename == "" {
		return fmt.Errorf("no filename specified")
	}

	r, err := reader.Open(e.filename)
	if err != nil {
		return fmt.Errorf("failed to open PDF: %w", err)
	}
	e.reader = r
	e.ownsReader = true
	e.readerOpened = true
	return nil
}

// ensureProvider returns the configured detection provider, creating
// the default pattern scanner when none was set.
func (e *Redactor) ensureProvider() (detect.Provider, error) {
	if e.provider != nil {
		return e.provider, nil
	}
	return detect.NewScanner()
}

// Close releases resources associated with the Redactor.
// It is safe to call Close multiple times.
func (e *Redactor) Close() error {
	if e.ownsReader && e.reader != nil {
		err := e.reader.Close()
		e.reader = nil
		e.ownsReader = false
		e.readerOpened = false
		return err
	}
	return nil
}

// ============================================================================
// Configuration Methods (return new Redactor instance)
// ============================================================================

// Provider sets the detection provider. The default is the built-in
// pattern scanner with the embedded Australian recognizer pack.
//
// Example:
//
//	ner := veil.Must(ner.Load("model-bundle", 0))
//	summary, _, err := veil.Open("doc.pdf").Provider(ner).RedactTo("out.pdf")
func (e *Redactor) Provider(p detect.Provider) *Redactor {
	newR := e.clone()
	newR.provider = p
	return newR
}

// Language sets the language hint passed to the detection provider.
// The default is "en".
func (e *Redactor) Language(language string) *Redactor {
	newR := e.clone()
	newR.options.language = language
	return newR
}

// MinScore drops detections scoring below the threshold.
//
// Example:
//
//	summary, _, err := veil.Open("doc.pdf").MinScore(0.6).RedactTo("out.pdf")
func (e *Redactor) MinScore(score float64) *Redactor {
	newR := e.clone()
	newR.options.minScore = score
	return newR
}

// Entities restricts detection to the given entity types. Multiple
// calls are cumulative.
//
// Example:
//
//	summary, _, err := veil.Open("doc.pdf").
//	    Entities("AU_TFN", "AU_MEDICARE").
//	    RedactTo("out.pdf")
func (e *Redactor) Entities(entities ...string) *Redactor {
	newR := e.clone()
	newR.options.entities = append(newR.options.entities, entities...)
	return newR
}

// WholeElement redacts the full text element containing a detection
// rather than just the matched characters. Coarser but safer when glyph
// geometry is unreliable. PDF only.
func (e *Redactor) WholeElement() *Redactor {
	newR := e.clone()
	newR.options.wholeElement = true
	return newR
}

// DrawLabels draws the entity type (and confidence, for PDFs) on each
// redaction box.
func (e *Redactor) DrawLabels() *Redactor {
	newR := e.clone()
	newR.options.drawLabels = true
	return newR
}

// LabelPrefix prepends a string to every drawn label. PDF only.
func (e *Redactor) LabelPrefix(prefix string) *Redactor {
	newR := e.clone()
	newR.options.labelPrefix = prefix
	return newR
}

// AttachOriginal embeds the unredacted source file in the output PDF as
// a file attachment. Useful for review workflows; do not use when the
// output leaves a trust boundary.
func (e *Redactor) AttachOriginal() *Redactor {
	newR := e.clone()
	newR.options.attachOriginal = true
	return newR
}

// Style sets the obscuring style for image redaction (fill, rectangle,
// blur, or pixelate).
//
// Example:
//
//	style := imageredact.DefaultStyle()
//	style.Mode = imageredact.Pixelate
//	summary, _, err := veil.Open("scan.png").Style(style).RedactTo("out.png")
func (e *Redactor) Style(style imageredact.RedactionStyle) *Redactor {
	newR := e.clone()
	newR.options.style = &style
	return newR
}

// SeverityOverrides overrides the severity assigned to entity types
// when coloring PDF redaction boxes.
func (e *Redactor) SeverityOverrides(overrides map[string]severity.Severity) *Redactor {
	newR := e.clone()
	newR.options.severities = severity.MergeSeverities(newR.options.severities, overrides)
	return newR
}

// ColorOverrides overrides the box color used for severity levels in
// PDF output.
func (e *Redactor) ColorOverrides(overrides map[string]severity.Color) *Redactor {
	newR := e.clone()
	newR.options.colors = severity.MergeColors(newR.options.colors, overrides)
	return newR
}

// SkipHeader controls whether the first CSV row is analyzed. The
// default is to skip it.
func (e *Redactor) SkipHeader(skip bool) *Redactor {
	newR := e.clone()
	newR.options.skipHeader = skip
	return newR
}

// Delimiter sets the CSV field separator. The default is ','.
func (e *Redactor) Delimiter(d rune) *Redactor {
	newR := e.clone()
	newR.options.delimiter = d
	return newR
}

// UseEntityLabels replaces detected CSV values with <TYPE> placeholders
// instead of masking characters.
func (e *Redactor) UseEntityLabels() *Redactor {
	newR := e.clone()
	newR.options.useEntityLabels = true
	return newR
}

// ============================================================================
// Terminal Operations
// ============================================================================

// AnalyzePDF locates PII in a PDF and returns the redaction geometry
// per page (outer slice index = page index) without writing anything.
// This is a terminal operation that closes the underlying reader.
//
// Example:
//
//	perPage, warnings, err := veil.Open("statement.pdf").AnalyzePDF()
//	for pageIdx, boxes := range perPage {
//	    for _, b := range boxes {
//	        fmt.Printf("page %d: %s %q\n", pageIdx+1, b.EntityType, b.Text)
//	    }
//	}
func (e *Redactor) AnalyzePDF() ([][]pdfredact.EntityBox, []Warning, error) {
	if e.err != nil {
		return nil, nil, e.err
	}

	if err := e.resolveFormat(); err != nil {
		return nil, nil, err
	}
	if e.format != format.PDF {
		return nil, nil, fmt.Errorf("AnalyzePDF requires a PDF input, got %s", e.format)
	}

	if err := e.ensureReader(); err != nil {
		return nil, nil, err
	}
	defer e.Close()

	p, err := e.ensureProvider()
	if err != nil {
		return nil, nil, err
	}

	perPage, pdfWarnings, err := pdfredact.Analyze(e.reader, p, pdfredact.Options{
		Language:     e.options.language,
		MinScore:     e.options.minScore,
		Entities:     e.options.entities,
		WholeElement: e.options.wholeElement,
	})
	if err != nil {
		return nil, nil, err
	}
	return perPage, convertPDFWarnings(pdfWarnings), nil
}

// RedactTo detects PII in the input and writes a redacted copy to dst,
// routing by input format (PDF, PNG/JPEG, or CSV). This is a terminal
// operation that closes the underlying reader.
//
// PDF output is an incremental update: the original bytes are preserved
// as a prefix and the redaction boxes are drawn over the content. The
// text layer underneath is NOT removed; treat the output as a visual
// redaction, not a sanitized document.
//
// Example:
//
//	summary, warnings, err := veil.Open("statement.pdf").
//	    DrawLabels().
//	    RedactTo("redacted.pdf")
func (e *Redactor) RedactTo(dst string) (Summary, []Warning, error) {
	if e.err != nil {
		return Summary{}, nil, e.err
	}
	if e.filename == "" {
		return Summary{}, nil, fmt.Errorf("redaction requires a file path input; use Open")
	}
	if dst == "" {
		return Summary{}, nil, fmt.Errorf("no output path specified")
	}

	if err := e.resolveFormat(); err != nil {
		return Summary{}, nil, err
	}

	switch {
	case e.format == format.PDF:
		return e.redactPDF(dst)
	case e.format.IsImage():
		return e.redactImage(dst)
	case e.format == format.CSV:
		return e.redactCSV(dst)
	default:
		return Summary{}, nil, fmt.Errorf("unsupported file format: %s", e.format)
	}
}

func (e *Redactor) redactPDF(dst string) (Summary, []Warning, error) {
	perPage, warnings, err := e.AnalyzePDF()
	if err != nil {
		return Summary{}, warnings, err
	}

	err = pdfredact.Write(e.filename, dst, perPage, pdfredact.WriteOptions{
		DrawLabels:        e.options.drawLabels,
		LabelPrefix:       e.options.labelPrefix,
		AttachOriginal:    e.options.attachOriginal,
		SeverityOverrides: e.options.severities,
		ColorOverrides:    e.options.colors,
	})
	if err != nil {
		return Summary{}, warnings, err
	}

	summary := Summary{
		Format:       format.PDF,
		OutputPath:   dst,
		ByEntityType: make(map[string]int),
	}
	for _, boxes := range perPage {
		summary.Detections += len(boxes)
		for _, b := range boxes {
			summary.ByEntityType[b.EntityType]++
		}
	}
	return summary, warnings, nil
}

func (e *Redactor) redactImage(dst string) (Summary, []Warning, error) {
	p, err := e.ensureProvider()
	if err != nil {
		return Summary{}, nil, err
	}

	opts := imageredact.Options{
		Language:       e.options.language,
		Entities:       e.options.entities,
		ScoreThreshold: e.options.minScore,
		Style:          e.options.style,
		DrawLabels:     e.options.drawLabels,
	}

	result, err := imageredact.Redact(e.filename, dst, p, opts)
	if err != nil {
		return Summary{}, nil, err
	}

	summary := Summary{
		Format:       e.format,
		OutputPath:   result.OutputPath,
		Detections:   len(result.Boxes),
		ByEntityType: make(map[string]int),
	}
	for _, b := range result.Boxes {
		summary.ByEntityType[b.EntityType]++
	}
	return summary, nil, nil
}

func (e *Redactor) redactCSV(dst string) (Summary, []Warning, error) {
	p, err := e.ensureProvider()
	if err != nil {
		return Summary{}, nil, err
	}

	opts := csvredact.Options{
		Language:        e.options.language,
		MinScore:        e.options.minScore,
		SkipHeader:      e.options.skipHeader,
		Delimiter:       e.options.delimiter,
		Entities:        e.options.entities,
		UseEntityLabels: e.options.useEntityLabels,
	}

	detections, _, err := csvredact.Redact(e.filename, dst, p, opts)
	if err != nil {
		return Summary{}, nil, err
	}

	agg := csvredact.Summarize(detections)
	return Summary{
		Format:       format.CSV,
		OutputPath:   dst,
		Detections:   agg.TotalDetections,
		ByEntityType: agg.ByEntityType,
	}, nil, nil
}

// convertPDFWarnings maps page-scoped analysis warnings (0-based pages)
// into the root warning type (1-based pages).
func convertPDFWarnings(ws []pdfredact.Warning) []Warning {
	if len(ws) == 0 {
		return nil
	}
	out := make([]Warning, len(ws))
	for i, w := range ws {
		out[i] = Warning{Page: w.Page + 1, Message: w.Message}
	}
	return out
}
