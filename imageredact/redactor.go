//go:build ocr

package imageredact

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/otiai10/gosseract/v2"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/tsawler/veil/detect"
)

// ocrWord is one OCR-recognized word with its offsets into the joined
// text buffer.
type ocrWord struct {
	text  string
	box   image.Rectangle
	start int
	end   int
}

// Redact locates PII in the image at inputPath and writes a redacted
// copy to outputPath. The output format follows the output extension
// (.png or .jpg/.jpeg; anything else encodes as PNG).
func Redact(inputPath, outputPath string, p detect.Provider, opts Options) (Result, error) {
	raw, err := os.ReadFile(inputPath)
	if err != nil {
		return Result{}, fmt.Errorf("reading image %s: %w", inputPath, err)
	}
	return redactBytes(raw, outputPath, p, opts)
}

// RedactBytes is like Redact but takes the image data directly.
func RedactBytes(imageData []byte, outputPath string, p detect.Provider, opts Options) (Result, error) {
	return redactBytes(imageData, outputPath, p, opts)
}

func redactBytes(raw []byte, outputPath string, p detect.Provider, opts Options) (Result, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Result{}, fmt.Errorf("decoding image: %w", err)
	}

	img := image.NewRGBA(src.Bounds())
	draw.Draw(img, img.Bounds(), src, src.Bounds().Min, draw.Src)

	words, err := recognizeWords(raw, opts.OCRLanguages)
	if err != nil {
		return Result{}, fmt.Errorf("OCR: %w", err)
	}

	text, words := joinWords(words)

	language := opts.Language
	if language == "" {
		language = "en"
	}
	spans, err := p.Analyze(text, language)
	if err != nil {
		return Result{}, fmt.Errorf("analyzing OCR text: %w", err)
	}
	spans = detect.FilterEntities(spans, opts.Entities)

	style := opts.style()
	threshold := opts.threshold()

	var boxes []Box
	entitySet := make(map[string]bool)

	for _, s := range spans {
		if s.Score < threshold {
			continue
		}

		rect, ok := spanRect(words, s.Start, s.End)
		if !ok {
			continue
		}
		rect = rect.Inset(-style.Padding).Intersect(img.Bounds())
		if rect.Empty() {
			continue
		}

		applyStyle(img, rect, style)
		if opts.DrawLabels {
			drawLabel(img, rect, s.EntityType)
		}

		boxes = append(boxes, Box{
			Left:       rect.Min.X,
			Top:        rect.Min.Y,
			Width:      rect.Dx(),
			Height:     rect.Dy(),
			EntityType: s.EntityType,
			Score:      s.Score,
		})
		entitySet[s.EntityType] = true
	}

	if err := encodeImage(outputPath, img); err != nil {
		return Result{}, err
	}

	entities := make([]string, 0, len(entitySet))
	for e := range entitySet {
		entities = append(entities, e)
	}

	return Result{OutputPath: outputPath, Boxes: boxes, Entities: entities}, nil
}

// recognizeWords runs Tesseract and returns word-level boxes.
func recognizeWords(imageData []byte, languages string) ([]ocrWord, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if languages != "" {
		if err := client.SetLanguage(strings.Split(languages, "+")...); err != nil {
			return nil, fmt.Errorf("setting OCR language: %w", err)
		}
	}
	if err := client.SetImageFromBytes(imageData); err != nil {
		return nil, fmt.Errorf("setting image: %w", err)
	}

	bbs, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("word boxes: %w", err)
	}

	words := make([]ocrWord, 0, len(bbs))
	for _, bb := range bbs {
		w := strings.TrimSpace(bb.Word)
		if w == "" {
			continue
		}
		words = append(words, ocrWord{text: w, box: bb.Box})
	}
	return words, nil
}

// joinWords concatenates words with single spaces, recording each word's
// byte offsets into the joined text.
func joinWords(words []ocrWord) (string, []ocrWord) {
	var sb strings.Builder
	for i := range words {
		if i > 0 {
			sb.WriteByte(' ')
		}
		words[i].start = sb.Len()
		sb.WriteString(words[i].text)
		words[i].end = sb.Len()
	}
	return sb.String(), words
}

// spanRect unions the boxes of every word the span overlaps.
func spanRect(words []ocrWord, start, end int) (image.Rectangle, bool) {
	var rect image.Rectangle
	found := false
	for _, w := range words {
		if w.end <= start || w.start >= end {
			continue
		}
		if !found {
			rect = w.box
			found = true
		} else {
			rect = rect.Union(w.box)
		}
	}
	return rect, found
}

// applyStyle obscures one region according to the style mode.
func applyStyle(img *image.RGBA, rect image.Rectangle, style RedactionStyle) {
	switch style.Mode {
	case Rectangle:
		strokeRect(img, rect, style)
	case Blur:
		blurRegion(img, rect, style.BlurRadius)
	case Pixelate:
		pixelateRegion(img, rect, style.PixelSize)
	default:
		draw.Draw(img, rect, image.NewUniform(style.FillColor), image.Point{}, draw.Src)
	}
}

// strokeRect draws an outline of the configured stroke width.
func strokeRect(img *image.RGBA, rect image.Rectangle, style RedactionStyle) {
	u := image.NewUniform(style.OutlineColor)
	sw := style.StrokeWidth
	if sw < 1 {
		sw = 1
	}
	top := image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+sw)
	bottom := image.Rect(rect.Min.X, rect.Max.Y-sw, rect.Max.X, rect.Max.Y)
	left := image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+sw, rect.Max.Y)
	right := image.Rect(rect.Max.X-sw, rect.Min.Y, rect.Max.X, rect.Max.Y)
	for _, edge := range []image.Rectangle{top, bottom, left, right} {
		draw.Draw(img, edge.Intersect(img.Bounds()), u, image.Point{}, draw.Src)
	}
}

// blurRegion applies a two-pass box blur to the region.
func blurRegion(img *image.RGBA, rect image.Rectangle, radius int) {
	if radius < 1 {
		radius = 1
	}
	region := rect.Intersect(img.Bounds())
	if region.Empty() {
		return
	}

	horizontal := image.NewRGBA(region)
	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			horizontal.Set(x, y, averagePixel(img, region, x, y, radius, 0))
		}
	}
	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			img.Set(x, y, averagePixel(horizontal, region, x, y, 0, radius))
		}
	}
}

// averagePixel averages a (2rx+1)x(2ry+1) window clamped to region.
func averagePixel(img image.Image, region image.Rectangle, cx, cy, rx, ry int) color.Color {
	var rSum, gSum, bSum, n uint32
	for y := cy - ry; y <= cy+ry; y++ {
		for x := cx - rx; x <= cx+rx; x++ {
			if x < region.Min.X || x >= region.Max.X || y < region.Min.Y || y >= region.Max.Y {
				continue
			}
			r, g, b, _ := img.At(x, y).RGBA()
			rSum += r >> 8
			gSum += g >> 8
			bSum += b >> 8
			n++
		}
	}
	if n == 0 {
		return img.At(cx, cy)
	}
	return color.RGBA{uint8(rSum / n), uint8(gSum / n), uint8(bSum / n), 255}
}

// pixelateRegion downsamples the region by pixelSize and scales it back
// with nearest-neighbor interpolation.
func pixelateRegion(img *image.RGBA, rect image.Rectangle, pixelSize int) {
	if pixelSize < 2 {
		pixelSize = 2
	}
	region := rect.Intersect(img.Bounds())
	if region.Empty() {
		return
	}

	smallW := (region.Dx() + pixelSize - 1) / pixelSize
	smallH := (region.Dy() + pixelSize - 1) / pixelSize
	if smallW < 1 {
		smallW = 1
	}
	if smallH < 1 {
		smallH = 1
	}

	small := image.NewRGBA(image.Rect(0, 0, smallW, smallH))
	xdraw.NearestNeighbor.Scale(small, small.Bounds(), img, region, xdraw.Src, nil)
	xdraw.NearestNeighbor.Scale(img, region, small, small.Bounds(), xdraw.Src, nil)
}

// drawLabel writes the entity type just above the region (or inside it
// when there is no room above).
func drawLabel(img *image.RGBA, rect image.Rectangle, label string) {
	y := rect.Min.Y - 3
	if y < basicfont.Face7x13.Height {
		y = rect.Min.Y + basicfont.Face7x13.Height
	}
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{R: 255, A: 255}),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(rect.Min.X, y),
	}
	d.DrawString(label)
}

// encodeImage writes the image in the format implied by the path's
// extension.
func encodeImage(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output image: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
	default:
		err = png.Encode(f, img)
	}
	if err != nil {
		return fmt.Errorf("encoding output image: %w", err)
	}
	return nil
}
