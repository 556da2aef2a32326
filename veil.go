// Package veil provides a fluent API for detecting and redacting
// personally identifiable information in PDFs, images, CSV files, and
// plain text.
//
// Basic usage:
//
//	summary, warnings, err := veil.Open("statement.pdf").RedactTo("redacted.pdf")
//	if err != nil {
//	    // handle error
//	}
//	if len(warnings) > 0 {
//	    log.Println("Warnings:", veil.FormatWarnings(warnings))
//	}
//
// With options:
//
//	summary, _, err := veil.Open("statement.pdf").
//	    Entities("AU_TFN", "AU_MEDICARE", "EMAIL_ADDRESS").
//	    DrawLabels().
//	    RedactTo("redacted.pdf")
//
// Plain text goes through the Text pipeline:
//
//	masked, err := veil.Text("John Smith's TFN is 123 456 782").Mask()
//
// Detection defaults to the built-in pattern scanner with the embedded
// Australian recognizer pack; any detect.Provider (including the ONNX
// NER provider) can be substituted via Provider().
//
// For advanced use cases, the lower-level detect, chunk, relation,
// severity, pdfredact, imageredact, and csvredact packages are also
// available.
package veil

import (
	"github.com/tsawler/tabula/reader"

	"github.com/tsawler/veil/format"
)

// Open opens a file and returns a Redactor for fluent configuration.
// The input format is determined from the filename extension, with
// magic-byte sniffing as a fallback at execution time.
//
// Example:
//
//	summary, warnings, err := veil.Open("statement.pdf").RedactTo("out.pdf")
func Open(filename string) *Redactor {
	return &Redactor{
		filename: filename,
		format:   format.Detect(filename),
		options:  defaultRedactOptions(),
	}
}

// FromReader creates a Redactor from an already-opened tabula
// reader.Reader. Only PDF analysis is available this way; redaction
// needs the source path and must go through Open.
// Note: The caller is responsible for closing the reader.
//
// Example:
//
//	r, err := reader.Open("statement.pdf")
//	if err != nil {
//	    // handle error
//	}
//	defer r.Close()
//	boxes, warnings, err := veil.FromReader(r).AnalyzePDF()
func FromReader(r *reader.Reader) *Redactor {
	return &Redactor{
		format:       format.PDF,
		reader:       r,
		ownsReader:   false,
		readerOpened: true,
		options:      defaultRedactOptions(),
	}
}

// Text returns a TextScanner for fluent plain-text scanning and
// masking.
//
// Example:
//
//	spans, err := veil.Text(content).MinScore(0.5).Spans()
func Text(s string) *TextScanner {
	return &TextScanner{
		text:     s,
		language: "en",
	}
}

// Must is a helper that wraps a call to a function returning (T, error)
// and panics if the error is non-nil. It is intended for use in scripts
// or tests where error handling would be cumbersome.
//
// Example:
//
//	masked := veil.Must(veil.Text(content).Mask())
func Must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}

// MustResult is a helper that wraps a terminal operation returning
// (T, []Warning, error) and panics if the error is non-nil. It discards
// warnings and returns just the value. It is intended for use in
// scripts or tests where error handling would be cumbersome.
//
// Example:
//
//	boxes := veil.MustResult(veil.Open("statement.pdf").AnalyzePDF())
func MustResult[T any](val T, _ []Warning, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}
