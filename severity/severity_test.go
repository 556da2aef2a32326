package severity

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFor(t *testing.T) {
	tests := []struct {
		entity string
		want   Severity
	}{
		{"AU_TFN", Critical},
		{"AU_MEDICARE", Critical},
		{"CREDIT_CARD", High},
		{"AU_BSB", High},
		{"PERSON", Medium},
		{"EMAIL_ADDRESS", Medium},
		{"AU_POSTCODE", Low},
		{"NEVER_SEEN_TYPE", Medium}, // unmapped defaults to Medium
	}
	for _, tt := range tests {
		if got := For(tt.entity); got != tt.want {
			t.Errorf("For(%q) = %s, want %s", tt.entity, got, tt.want)
		}
	}
}

func TestDefaultColorMap(t *testing.T) {
	colors := DefaultColorMap()

	if c := colors[string(Critical)]; c != (Color{0.90, 0.00, 0.00}) {
		t.Errorf("critical color = %+v", c)
	}
	if c := colors[string(Low)]; c != (Color{0.10, 0.40, 0.85}) {
		t.Errorf("low color = %+v", c)
	}
	if c := colors[DefaultKey]; c != (Color{}) {
		t.Errorf("default color = %+v, want black", c)
	}
}

func TestColorFor(t *testing.T) {
	severities := DefaultSeverityMap()
	colors := DefaultColorMap()

	if c := ColorFor("AU_TFN", severities, colors); c != (Color{0.90, 0.00, 0.00}) {
		t.Errorf("AU_TFN color = %+v, want critical red", c)
	}

	// Unmapped entity falls through to Low.
	if c := ColorFor("MYSTERY", severities, colors); c != (Color{0.10, 0.40, 0.85}) {
		t.Errorf("unmapped entity color = %+v, want low blue", c)
	}

	// Severity missing from the color map falls back to _default.
	partial := map[string]Color{DefaultKey: {0.5, 0.5, 0.5}}
	if c := ColorFor("AU_TFN", severities, partial); c != (Color{0.5, 0.5, 0.5}) {
		t.Errorf("fallback color = %+v, want _default", c)
	}

	// No _default either: black.
	if c := ColorFor("AU_TFN", severities, map[string]Color{}); c != (Color{}) {
		t.Errorf("empty color map gave %+v, want black", c)
	}
}

func TestMergeSeverities(t *testing.T) {
	base := DefaultSeverityMap()
	merged := MergeSeverities(base, map[string]Severity{
		"EMAIL_ADDRESS": Critical,
		"CUSTOM_ID":     High,
	})

	if merged["EMAIL_ADDRESS"] != Critical {
		t.Errorf("override not applied: %s", merged["EMAIL_ADDRESS"])
	}
	if merged["CUSTOM_ID"] != High {
		t.Errorf("new entity not added: %s", merged["CUSTOM_ID"])
	}
	if merged["AU_TFN"] != Critical {
		t.Errorf("base entry lost: %s", merged["AU_TFN"])
	}
	// The base map must not be mutated.
	if base["EMAIL_ADDRESS"] != Medium {
		t.Errorf("base map mutated: %s", base["EMAIL_ADDRESS"])
	}
}

func TestMergeColors(t *testing.T) {
	merged := MergeColors(DefaultColorMap(), map[string]Color{
		string(Medium): {0, 1, 0},
	})
	if merged[string(Medium)] != (Color{0, 1, 0}) {
		t.Errorf("color override not applied: %+v", merged[string(Medium)])
	}
	if merged[string(High)] != (Color{0.85, 0.10, 0.10}) {
		t.Errorf("base color lost: %+v", merged[string(High)])
	}
}

func TestGroups(t *testing.T) {
	groups := Groups()
	for _, name := range []string{"financial", "government_id", "personal", "geographic", "all_au_specific", "all_au"} {
		if len(groups[name]) == 0 {
			t.Errorf("group %q is empty", name)
		}
	}

	if got := Group("government_id"); len(got) != 5 {
		t.Errorf("government_id has %d entries, want 5", len(got))
	}
	if Group("no_such_group") != nil {
		t.Error("unknown group should return nil")
	}
}

func TestParse(t *testing.T) {
	yaml := `
severities:
  EMPLOYEE_ID: critical
colors:
  critical: [1.0, 0.0, 0.5]
`
	severities, colors, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if severities["EMPLOYEE_ID"] != Critical {
		t.Errorf("severity = %s", severities["EMPLOYEE_ID"])
	}
	if colors["critical"] != (Color{1.0, 0.0, 0.5}) {
		t.Errorf("color = %+v", colors["critical"])
	}
}

func TestParse_BadColor(t *testing.T) {
	if _, _, err := Parse([]byte("colors:\n  high: [1.0, 0.0]\n")); err == nil {
		t.Error("two-component color should fail")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "severity.yaml")
	if err := os.WriteFile(path, []byte("severities:\n  URL: low\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	severities, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if severities["URL"] != Low {
		t.Errorf("severity = %s, want low", severities["URL"])
	}

	if _, _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should error")
	}
}
