// Package imageredact redacts PII from raster images. Text is located
// with Tesseract OCR (word-level bounding boxes), detected with a
// detect.Provider, and obscured with a configurable visual style.
//
// OCR support requires the "ocr" build tag and a system Tesseract
// install; without the tag, Redact returns ErrOCRNotEnabled. The style
// and result types in this file are always available.
package imageredact

import "image/color"

// Mode selects how a detected region is obscured.
type Mode int

const (
	// Fill paints a solid rectangle over the region.
	Fill Mode = iota
	// Rectangle draws an outline around the region.
	Rectangle
	// Blur applies a box blur to the region.
	Blur
	// Pixelate replaces the region with enlarged pixels.
	Pixelate
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case Fill:
		return "fill"
	case Rectangle:
		return "rectangle"
	case Blur:
		return "blur"
	case Pixelate:
		return "pixelate"
	default:
		return "unknown"
	}
}

// RedactionStyle controls the visual treatment of redacted regions.
type RedactionStyle struct {
	Mode         Mode
	FillColor    color.RGBA
	OutlineColor color.RGBA
	BlurRadius   int
	PixelSize    int
	StrokeWidth  int
	Padding      int
}

// DefaultStyle returns the default redaction style: solid black fill
// with 2px padding.
func DefaultStyle() RedactionStyle {
	return RedactionStyle{
		Mode:         Fill,
		FillColor:    color.RGBA{A: 255},
		OutlineColor: color.RGBA{R: 255, A: 255},
		BlurRadius:   8,
		PixelSize:    12,
		StrokeWidth:  3,
		Padding:      2,
	}
}

// DefaultScoreThreshold is the minimum detection confidence applied when
// Options.ScoreThreshold is zero.
const DefaultScoreThreshold = 0.35

// Options configures image redaction.
type Options struct {
	// Language passed through to the detection provider.
	Language string
	// OCRLanguages is the Tesseract language string (e.g. "eng" or
	// "eng+fra"). Empty means Tesseract's default.
	OCRLanguages string
	// Entities restricts detection to the given entity types.
	Entities []string
	// ScoreThreshold drops detections below it; zero means
	// DefaultScoreThreshold.
	ScoreThreshold float64
	// Style is the visual treatment; zero value means DefaultStyle.
	Style *RedactionStyle
	// DrawLabels writes the entity type above each redacted region.
	DrawLabels bool
}

// Box is one redacted region in image pixel coordinates (origin
// top-left).
type Box struct {
	Left       int
	Top        int
	Width      int
	Height     int
	EntityType string
	Score      float64
}

// Result reports what was redacted.
type Result struct {
	OutputPath string
	Boxes      []Box
	Entities   []string
}

// threshold resolves the effective score threshold.
func (o Options) threshold() float64 {
	if o.ScoreThreshold == 0 {
		return DefaultScoreThreshold
	}
	return o.ScoreThreshold
}

// style resolves the effective style.
func (o Options) style() RedactionStyle {
	if o.Style == nil {
		return DefaultStyle()
	}
	return *o.Style
}
