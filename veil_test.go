package veil

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tsawler/veil/detect"
	"github.com/tsawler/veil/format"
	"github.com/tsawler/veil/pdfredact"
)

// fakeProvider returns fixed spans for any input.
type fakeProvider struct {
	spans []detect.Span
}

func (f fakeProvider) Analyze(text, language string) ([]detect.Span, error) {
	var out []detect.Span
	for _, s := range f.spans {
		if s.End <= len(text) {
			out = append(out, s)
		}
	}
	return out, nil
}

// matchProvider finds every occurrence of a literal value.
type matchProvider struct {
	value  string
	entity string
	score  float64
}

func (m matchProvider) Analyze(text, language string) ([]detect.Span, error) {
	var out []detect.Span
	for i := 0; i+len(m.value) <= len(text); i++ {
		if text[i:i+len(m.value)] == m.value {
			out = append(out, detect.Span{
				EntityType: m.entity, Start: i, End: i + len(m.value), Score: m.score,
			})
		}
	}
	return out, nil
}

func TestText_Spans(t *testing.T) {
	p := fakeProvider{spans: []detect.Span{
		{EntityType: "EMAIL_ADDRESS", Start: 0, End: 5, Score: 0.9},
	}}

	spans, err := Text("a@b.c and more").Provider(p).Spans()
	if err != nil {
		t.Fatalf("Spans() error: %v", err)
	}
	if len(spans) != 1 || spans[0].EntityType != "EMAIL_ADDRESS" {
		t.Errorf("spans = %+v", spans)
	}
}

func TestText_SpansMinScore(t *testing.T) {
	p := fakeProvider{spans: []detect.Span{
		{EntityType: "WEAK", Start: 0, End: 4, Score: 0.2},
	}}

	spans, err := Text("text").Provider(p).MinScore(0.5).Spans()
	if err != nil {
		t.Fatalf("Spans() error: %v", err)
	}
	if len(spans) != 0 {
		t.Errorf("low-score spans survived: %+v", spans)
	}
}

func TestText_Mask(t *testing.T) {
	text := "John Smith john.smith@example.com"
	p := fakeProvider{spans: []detect.Span{
		{EntityType: "PERSON", Start: 0, End: 10, Score: 0.8},
		{EntityType: "EMAIL_ADDRESS", Start: 11, End: 33, Score: 0.9},
	}}

	masked, err := Text(text).Provider(p).Mask()
	if err != nil {
		t.Fatalf("Mask() error: %v", err)
	}
	if masked != "PERSON_1 <EMAIL_ADDRESS_PERSON_1>" {
		t.Errorf("Mask() = %q", masked)
	}
}

func TestText_Anonymize(t *testing.T) {
	p := matchProvider{value: "0412345678", entity: "AU_PHONE_NUMBER", score: 0.7}

	got, err := Text("call 0412345678 today").Provider(p).Anonymize()
	if err != nil {
		t.Fatalf("Anonymize() error: %v", err)
	}
	if got != "call <AU_PHONE_NUMBER> today" {
		t.Errorf("Anonymize() = %q", got)
	}
}

func TestText_Owners(t *testing.T) {
	text := "Jane Doe wrote this"
	p := fakeProvider{spans: []detect.Span{
		{EntityType: "PERSON", Start: 0, End: 8, Score: 0.8},
	}}

	owners, err := Text(text).Provider(p).Owners()
	if err != nil {
		t.Fatalf("Owners() error: %v", err)
	}
	if len(owners) != 1 || owners[0].ID != 1 || owners[0].Name != "Jane Doe" {
		t.Errorf("owners = %+v", owners)
	}
}

func TestText_ChainImmutability(t *testing.T) {
	base := Text("content").Provider(fakeProvider{})
	derived := base.MinScore(0.9).ChunkSize(100).Overlap(10).Language("de")

	if base.minScore != 0 || base.chunkSize != 0 || base.overlap != 0 {
		t.Errorf("base scanner mutated: %+v", base)
	}
	if derived.minScore != 0.9 || derived.chunkSize != 100 || derived.language != "de" {
		t.Errorf("derived scanner = %+v", derived)
	}
}

func TestText_InvalidChunkSize(t *testing.T) {
	_, err := Text("content").Provider(fakeProvider{}).ChunkSize(-1).Spans()
	if err == nil {
		t.Error("negative chunk size should surface an error")
	}
}

func TestRedactor_ChainImmutability(t *testing.T) {
	base := Open("doc.pdf")
	derived := base.
		MinScore(0.6).
		Entities("AU_TFN").
		DrawLabels().
		LabelPrefix("PII: ").
		WholeElement().
		AttachOriginal()

	if base.options.minScore != 0 || len(base.options.entities) != 0 {
		t.Errorf("base redactor mutated: %+v", base.options)
	}
	if base.options.drawLabels || base.options.wholeElement || base.options.attachOriginal {
		t.Errorf("base flags mutated: %+v", base.options)
	}
	if derived.options.minScore != 0.6 || derived.options.labelPrefix != "PII: " {
		t.Errorf("derived options = %+v", derived.options)
	}
	if len(derived.options.entities) != 1 || derived.options.entities[0] != "AU_TFN" {
		t.Errorf("derived entities = %v", derived.options.entities)
	}
}

func TestRedactor_EntitiesCumulative(t *testing.T) {
	r := Open("doc.pdf").Entities("AU_TFN").Entities("EMAIL_ADDRESS")
	if len(r.options.entities) != 2 {
		t.Errorf("entities = %v", r.options.entities)
	}
}

func TestOpen_FormatFromExtension(t *testing.T) {
	tests := []struct {
		filename string
		want     format.Format
	}{
		{"doc.pdf", format.PDF},
		{"scan.PNG", format.PNG},
		{"data.csv", format.CSV},
		{"mystery.bin", format.Unknown},
	}
	for _, tt := range tests {
		if got := Open(tt.filename).format; got != tt.want {
			t.Errorf("Open(%q).format = %s, want %s", tt.filename, got, tt.want)
		}
	}
}

func TestRedactTo_CSV(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.csv")
	dst := filepath.Join(dir, "out.csv")
	if err := os.WriteFile(src, []byte("name,phone\nAlice,0412345678\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := matchProvider{value: "0412345678", entity: "AU_PHONE_NUMBER", score: 0.7}
	summary, warnings, err := Open(src).Provider(p).RedactTo(dst)
	if err != nil {
		t.Fatalf("RedactTo() error: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}

	if summary.Format != format.CSV || summary.OutputPath != dst {
		t.Errorf("summary = %+v", summary)
	}
	if summary.Detections != 1 || summary.ByEntityType["AU_PHONE_NUMBER"] != 1 {
		t.Errorf("summary counts = %+v", summary)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Alice,**********") {
		t.Errorf("output not masked: %q", data)
	}
}

func TestRedactTo_CSVEntityLabels(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.csv")
	dst := filepath.Join(dir, "out.csv")
	if err := os.WriteFile(src, []byte("h\n0412345678\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := matchProvider{value: "0412345678", entity: "AU_PHONE_NUMBER", score: 0.7}
	if _, _, err := Open(src).Provider(p).UseEntityLabels().RedactTo(dst); err != nil {
		t.Fatalf("RedactTo() error: %v", err)
	}

	data, _ := os.ReadFile(dst)
	if !strings.Contains(string(data), "<AU_PHONE_NUMBER>") {
		t.Errorf("entity label not used: %q", data)
	}
}

func TestRedactTo_InputValidation(t *testing.T) {
	if _, _, err := Open("in.csv").RedactTo(""); err == nil {
		t.Error("empty destination should error")
	}

	// A reader-backed Redactor has no source path to copy from.
	if _, _, err := FromReader(nil).RedactTo("out.pdf"); err == nil {
		t.Error("FromReader input should not support RedactTo")
	}
}

func TestRedactTo_UnknownFormatSniffsMagic(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "mystery.dat")
	if err := os.WriteFile(src, []byte("just some text, no magic"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, err := Open(src).RedactTo(filepath.Join(dir, "out.dat"))
	if err == nil || !strings.Contains(err.Error(), "unsupported file format") {
		t.Errorf("expected unsupported-format error, got %v", err)
	}
}

func TestAnalyzePDF_RejectsNonPDF(t *testing.T) {
	_, _, err := Open("data.csv").AnalyzePDF()
	if err == nil || !strings.Contains(err.Error(), "requires a PDF") {
		t.Errorf("expected PDF-input error, got %v", err)
	}
}

func TestWarning_String(t *testing.T) {
	if got := (Warning{Page: 3, Message: "no geometry"}).String(); got != "page 3: no geometry" {
		t.Errorf("String() = %q", got)
	}
	if got := (Warning{Message: "general"}).String(); got != "general" {
		t.Errorf("pageless String() = %q", got)
	}
}

func TestFormatWarnings(t *testing.T) {
	warnings := []Warning{
		{Page: 1, Message: "a"},
		{Message: "b"},
	}
	if got := FormatWarnings(warnings); got != "page 1: a\nb" {
		t.Errorf("FormatWarnings() = %q", got)
	}
	if got := FormatWarnings(nil); got != "" {
		t.Errorf("FormatWarnings(nil) = %q", got)
	}
}

func TestConvertPDFWarnings(t *testing.T) {
	got := convertPDFWarnings([]pdfredact.Warning{{Page: 0, Message: "m"}})
	if len(got) != 1 || got[0].Page != 1 {
		t.Errorf("0-based page not shifted: %+v", got)
	}
	if convertPDFWarnings(nil) != nil {
		t.Error("nil input should stay nil")
	}
}

func TestMust(t *testing.T) {
	if got := Must("ok", nil); got != "ok" {
		t.Errorf("Must() = %q", got)
	}

	defer func() {
		if recover() == nil {
			t.Error("Must should panic on error")
		}
	}()
	Must("", errors.New("boom"))
}

func TestMustResult(t *testing.T) {
	if got := MustResult(42, []Warning{{Message: "ignored"}}, nil); got != 42 {
		t.Errorf("MustResult() = %d", got)
	}

	defer func() {
		if recover() == nil {
			t.Error("MustResult should panic on error")
		}
	}()
	MustResult(0, nil, errors.New("boom"))
}
