//go:build !ocr

// This is the stub implementation used when the "ocr" build tag is not
// set. Redaction functions return ErrOCRNotEnabled.
//
// To enable image redaction, rebuild with the "ocr" build tag:
//
//	go build -tags ocr
//
// This requires Tesseract to be installed. On macOS:
//
//	brew install tesseract
//
// On Ubuntu/Debian:
//
//	apt-get install tesseract-ocr
package imageredact

import (
	"errors"

	"github.com/tsawler/veil/detect"
)

// ErrOCRNotEnabled is returned when image redaction is invoked but OCR
// support was not compiled in. Rebuild with -tags ocr to enable it.
var ErrOCRNotEnabled = errors.New("OCR support not enabled; rebuild with -tags ocr")

// Redact returns ErrOCRNotEnabled.
func Redact(inputPath, outputPath string, p detect.Provider, opts Options) (Result, error) {
	return Result{}, ErrOCRNotEnabled
}

// RedactBytes returns ErrOCRNotEnabled.
func RedactBytes(imageData []byte, outputPath string, p detect.Provider, opts Options) (Result, error) {
	return Result{}, ErrOCRNotEnabled
}
