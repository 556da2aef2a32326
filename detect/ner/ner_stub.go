//go:build !ner

// This is the stub implementation used when the "ner" build tag is not
// set. Load returns ErrNERNotEnabled.
//
// To enable model-based entity recognition, rebuild with the "ner"
// build tag:
//
//	go build -tags ner
//
// This requires the onnxruntime shared library to be installed, or its
// path set through ONNXRUNTIME_SHARED_LIBRARY_PATH.
package ner

import (
	"errors"

	"github.com/tsawler/veil/detect"
)

// DefaultSeqLen is the model sequence length used when Load is given
// zero.
const DefaultSeqLen = 256

// ErrNERNotEnabled is returned when the NER provider is used but ONNX
// support was not compiled in. Rebuild with -tags ner to enable it.
var ErrNERNotEnabled = errors.New("NER support not enabled; rebuild with -tags ner")

// Provider is the model-based entity recognizer. Without the "ner"
// build tag every method returns ErrNERNotEnabled.
type Provider struct{}

// Load returns ErrNERNotEnabled.
func Load(bundleDir string, seqLen int) (*Provider, error) {
	return nil, ErrNERNotEnabled
}

// Analyze returns ErrNERNotEnabled.
func (m *Provider) Analyze(text, language string) ([]detect.Span, error) {
	return nil, ErrNERNotEnabled
}

// Close is a no-op on the stub.
func (m *Provider) Close() error {
	return nil
}
