//go:build !ner

package ner

import (
	"errors"
	"testing"

	"github.com/tsawler/veil/detect"
)

func TestStub_WithoutNERTag(t *testing.T) {
	if _, err := Load("model", 0); !errors.Is(err, ErrNERNotEnabled) {
		t.Errorf("Load() error = %v, want ErrNERNotEnabled", err)
	}

	var p Provider
	if _, err := p.Analyze("text", "en"); !errors.Is(err, ErrNERNotEnabled) {
		t.Errorf("Analyze() error = %v, want ErrNERNotEnabled", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	// The stub still satisfies the provider contract.
	var _ detect.Provider = &p
}
