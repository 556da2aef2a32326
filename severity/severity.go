// Package severity maps entity types to severity tiers and severity
// tiers to redaction colors. The defaults are tuned for Australian PII;
// both maps can be overridden per call or loaded from YAML.
package severity

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Severity is a risk tier for an entity type.
type Severity string

// Severity tiers, highest risk first.
const (
	Critical Severity = "critical"
	High     Severity = "high"
	Medium   Severity = "medium"
	Low      Severity = "low"
)

// DefaultKey indexes the fallback color in a color map.
const DefaultKey = "_default"

// Color is an RGB color with components in [0, 1], matching PDF
// content-stream color operands.
type Color struct {
	R, G, B float64
}

// DefaultSeverityMap returns the built-in entity severity assignments.
func DefaultSeverityMap() map[string]Severity {
	return map[string]Severity{
		"AU_TFN":            Critical,
		"AU_MEDICARE":       Critical,
		"AU_PASSPORT":       Critical,
		"AU_CENTRELINK_CRN": Critical,

		"AU_DRIVER_LICENSE": High,
		"AU_ABN":            High,
		"AU_ACN":            High,
		"AU_BANK_ACCOUNT":   High,
		"AU_BSB":            High,
		"CREDIT_CARD":       High,
		"IBAN_CODE":         High,
		"AU_ACCOUNT_NUMBER": High,

		"PERSON":                Medium,
		"PERSON_WITH_TITLE":     Medium,
		"PERSON_AFTER_GREETING": Medium,
		"REPEATED_NAME":         Medium,
		"EMAIL_ADDRESS":         Medium,
		"AU_PHONE_NUMBER":       Medium,
		"PHONE_NUMBER":          Medium,
		"DATE_TIME":             Medium,
		"AU_ADDRESS":            Medium,
		"ORGANIZATION":          Medium,
		"IP_ADDRESS":            Medium,
		"URL":                   Medium,

		"AU_STATE":    Low,
		"AU_POSTCODE": Low,
		"NAME_TITLE":  Low,
		"LOCATION":    Low,
		"CITY":        Low,
	}
}

// DefaultColorMap returns the built-in severity colors.
func DefaultColorMap() map[string]Color {
	return map[string]Color{
		string(Critical): {0.90, 0.00, 0.00}, // bright red
		string(High):     {0.85, 0.10, 0.10}, // dark red
		string(Medium):   {1.00, 0.55, 0.00}, // orange
		string(Low):      {0.10, 0.40, 0.85}, // blue
		DefaultKey:       {0.00, 0.00, 0.00}, // black
	}
}

// MergeSeverities overlays overrides onto base, returning a new map.
// Either argument may be nil.
func MergeSeverities(base, overrides map[string]Severity) map[string]Severity {
	merged := make(map[string]Severity, len(base)+len(overrides))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

// MergeColors overlays overrides onto base, returning a new map.
func MergeColors(base, overrides map[string]Color) map[string]Color {
	merged := make(map[string]Color, len(base)+len(overrides))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

// For returns the severity for an entity type, defaulting to Medium for
// unmapped entities.
func For(entityType string) Severity {
	if s, ok := DefaultSeverityMap()[entityType]; ok {
		return s
	}
	return Medium
}

// ColorFor resolves an entity type to its severity color using the given
// maps. An unmapped entity is treated as Low severity (the redaction
// path's conservative default); a severity with no color falls back to
// the map's _default entry, then black.
func ColorFor(entityType string, severities map[string]Severity, colors map[string]Color) Color {
	sev, ok := severities[entityType]
	if !ok {
		sev = Low
	}
	if c, ok := colors[string(sev)]; ok {
		return c
	}
	if c, ok := colors[DefaultKey]; ok {
		return c
	}
	return Color{}
}

// Groups returns the named entity groups for bulk entity selection.
func Groups() map[string][]string {
	financial := []string{"AU_ABN", "AU_ACN", "AU_BANK_ACCOUNT", "AU_BSB", "CREDIT_CARD", "IBAN_CODE"}
	governmentID := []string{"AU_TFN", "AU_MEDICARE", "AU_PASSPORT", "AU_DRIVER_LICENSE", "AU_CENTRELINK_CRN"}
	personal := []string{"PERSON", "PERSON_WITH_TITLE", "PERSON_AFTER_GREETING", "REPEATED_NAME", "EMAIL_ADDRESS", "AU_PHONE_NUMBER", "PHONE_NUMBER", "DATE_TIME"}
	geographic := []string{"AU_STATE", "AU_POSTCODE", "LOCATION", "CITY", "AU_ADDRESS"}
	auSpecific := []string{"AU_TFN", "AU_MEDICARE", "AU_PASSPORT", "AU_CENTRELINK_CRN", "AU_DRIVER_LICENSE", "AU_ABN", "AU_ACN", "AU_BANK_ACCOUNT", "AU_BSB", "AU_PHONE_NUMBER", "AU_STATE", "AU_POSTCODE"}
	allAU := []string{"AU_TFN", "AU_MEDICARE", "AU_PASSPORT", "AU_CENTRELINK_CRN", "AU_DRIVER_LICENSE", "AU_ABN", "AU_ACN", "AU_BANK_ACCOUNT", "AU_BSB", "AU_PHONE_NUMBER", "AU_STATE", "AU_POSTCODE", "PERSON", "EMAIL_ADDRESS", "PHONE_NUMBER", "CREDIT_CARD", "DATE_TIME", "LOCATION", "ORGANIZATION"}

	return map[string][]string{
		"financial":       financial,
		"government_id":   governmentID,
		"personal":        personal,
		"geographic":      geographic,
		"all_au_specific": auSpecific,
		"all_au":          allAU,
	}
}

// Group returns the entity types in a named group, or nil for an unknown
// group name.
func Group(name string) []string {
	return Groups()[name]
}

// File is the YAML schema for severity and color overrides.
type File struct {
	Severities map[string]Severity  `yaml:"severities,omitempty"`
	Colors     map[string][]float64 `yaml:"colors,omitempty"`
}

// Parse reads severity/color overrides from YAML bytes. Colors are
// three-element [r, g, b] arrays in [0, 1].
func Parse(data []byte) (map[string]Severity, map[string]Color, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, nil, fmt.Errorf("parsing severity YAML: %w", err)
	}

	colors := make(map[string]Color, len(f.Colors))
	for k, v := range f.Colors {
		if len(v) != 3 {
			return nil, nil, fmt.Errorf("color %q: expected 3 components, got %d", k, len(v))
		}
		colors[k] = Color{R: v[0], G: v[1], B: v[2]}
	}

	return f.Severities, colors, nil
}

// Load reads severity/color overrides from a YAML file.
func Load(path string) (map[string]Severity, map[string]Color, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading severity file %s: %w", path, err)
	}
	return Parse(data)
}
