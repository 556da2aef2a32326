package imageredact

import (
	"image/color"
	"testing"
)

func TestMode_String(t *testing.T) {
	tests := []struct {
		mode Mode
		want string
	}{
		{Fill, "fill"},
		{Rectangle, "rectangle"},
		{Blur, "blur"},
		{Pixelate, "pixelate"},
		{Mode(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.want {
			t.Errorf("Mode(%d).String() = %q, want %q", tt.mode, got, tt.want)
		}
	}
}

func TestDefaultStyle(t *testing.T) {
	s := DefaultStyle()
	if s.Mode != Fill {
		t.Errorf("default mode = %s, want fill", s.Mode)
	}
	if s.FillColor != (color.RGBA{A: 255}) {
		t.Errorf("default fill = %+v, want opaque black", s.FillColor)
	}
	if s.Padding != 2 {
		t.Errorf("default padding = %d", s.Padding)
	}
}

func TestOptions_Threshold(t *testing.T) {
	if got := (Options{}).threshold(); got != DefaultScoreThreshold {
		t.Errorf("zero threshold = %v, want default %v", got, DefaultScoreThreshold)
	}
	if got := (Options{ScoreThreshold: 0.8}).threshold(); got != 0.8 {
		t.Errorf("explicit threshold = %v, want 0.8", got)
	}
}

func TestOptions_Style(t *testing.T) {
	if got := (Options{}).style(); got != DefaultStyle() {
		t.Errorf("nil style = %+v, want default", got)
	}

	custom := RedactionStyle{Mode: Pixelate, PixelSize: 20}
	if got := (Options{Style: &custom}).style(); got != custom {
		t.Errorf("explicit style = %+v", got)
	}
}
