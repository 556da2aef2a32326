package pdfredact

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tsawler/veil/severity"
)

// labelFontSize is the size of redaction labels in points.
const labelFontSize = 8

// fontTag is the resource name the writer registers Helvetica under.
const fontTag = "/F1"

// EscapeText escapes a string for inclusion in a PDF literal string:
// backslash first, then parentheses.
func EscapeText(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "(", `\(`)
	s = strings.ReplaceAll(s, ")", `\)`)
	return s
}

// fnum renders a coordinate in minimal decimal form.
func fnum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// RectOp emits a filled-rectangle operator sequence for one redaction
// box. Width and height are clamped at zero so inverted boxes degrade to
// invisible marks rather than negative geometry.
func RectOp(x0, y0, x1, y1 float64, fill severity.Color) []byte {
	w := x1 - x0
	if w < 0 {
		w = 0
	}
	h := y1 - y0
	if h < 0 {
		h = 0
	}
	return []byte(fmt.Sprintf("%.3f %.3f %.3f rg %s %s %s %s re f Q\n",
		fill.R, fill.G, fill.B, fnum(x0), fnum(y0), fnum(w), fnum(h)))
}

// LabelOp emits a text-show operator sequence placing a label at (x, y).
func LabelOp(x, y float64, label string, rgb severity.Color) []byte {
	return []byte(fmt.Sprintf("BT %s %d Tf %.3f %.3f %.3f rg 1 0 0 1 %s %s Tm (%s) Tj ET\n",
		fontTag, labelFontSize, rgb.R, rgb.G, rgb.B, fnum(x), fnum(y), EscapeText(label)))
}

// Luminance returns the relative luminance of a color (ITU-R BT.709
// coefficients), used to pick a readable label color over the fill.
func Luminance(c severity.Color) float64 {
	return 0.2126*c.R + 0.7152*c.G + 0.0722*c.B
}

var (
	white = severity.Color{R: 1, G: 1, B: 1}
	black = severity.Color{}
)

// BuildPageOps synthesizes the full redaction content stream for one
// page: a fill rect per box, plus (when drawLabels) an entity label in a
// contrast-picked color and a confidence line in black.
func BuildPageOps(items []EntityBox, drawLabels bool, labelPrefix string,
	severities map[string]severity.Severity, colors map[string]severity.Color) []byte {

	var buf bytes.Buffer

	for _, item := range items {
		fill := severity.ColorFor(item.EntityType, severities, colors)
		buf.Write(RectOp(item.X0, item.Y0, item.X1, item.Y1, fill))

		if !drawLabels {
			continue
		}

		textColor := black
		if Luminance(fill) < 0.5 {
			textColor = white
		}
		buf.Write(LabelOp(item.X0+2, item.Y1-10, labelPrefix+item.EntityType, textColor))

		confText := "conf: n/a"
		if !math.IsNaN(item.Score) {
			confText = fmt.Sprintf("conf: %.2f", item.Score)
		}
		buf.Write(LabelOp(item.X0+2, item.Y1-20, confText, black))
	}

	return buf.Bytes()
}
