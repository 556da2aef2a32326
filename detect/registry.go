package detect

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/tsawler/veil/detect/patterns"
)

// RecognizerFile is the top-level YAML structure for a recognizer
// definition file. Mirrors Presidio's recognizer registry format.
type RecognizerFile struct {
	Recognizers []RecognizerConfig `yaml:"recognizers"`
}

// RecognizerConfig defines a single recognizer: one entity type backed by
// one or more regex patterns, or a deny list of literal terms.
type RecognizerConfig struct {
	Name            string          `yaml:"name"`
	SupportedEntity string          `yaml:"supported_entity"`
	Enabled         *bool           `yaml:"enabled,omitempty"`
	Patterns        []PatternConfig `yaml:"patterns,omitempty"`
	Context         []string        `yaml:"context,omitempty"`
	DenyList        []string        `yaml:"deny_list,omitempty"`
	DenyListScore   float64         `yaml:"deny_list_score,omitempty"`

	// Validation names a checksum gate applied to every match before it
	// is accepted: "abn", "luhn" or "iban".
	Validation string `yaml:"validation,omitempty"`
}

// PatternConfig is a single regex pattern within a recognizer.
type PatternConfig struct {
	Name  string  `yaml:"name"`
	Regex string  `yaml:"regex"`
	Score float64 `yaml:"score"`
}

// isEnabled reports whether the recognizer is active (default true).
func (r *RecognizerConfig) isEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// ParseRecognizerFile parses recognizer YAML bytes.
func ParseRecognizerFile(data []byte) (*RecognizerFile, error) {
	var rf RecognizerFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing recognizer YAML: %w", err)
	}
	return &rf, nil
}

// LoadRecognizerFile reads and parses a recognizer YAML file. A missing
// file is not an error; it returns nil so callers can treat an absent
// override file as a no-op.
func LoadRecognizerFile(path string) (*RecognizerFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading recognizer file %s: %w", path, err)
	}
	return ParseRecognizerFile(data)
}

// DefaultRecognizers returns the embedded Australian default pack.
func DefaultRecognizers() ([]RecognizerConfig, error) {
	rf, err := ParseRecognizerFile(patterns.PIIAustraliaYAML())
	if err != nil {
		return nil, fmt.Errorf("embedded AU recognizers: %w", err)
	}
	return rf.Recognizers, nil
}

// MergeRecognizers layers recognizer lists: later layers override earlier
// ones by Name; recognizers with new names are appended in order.
func MergeRecognizers(layers ...[]RecognizerConfig) []RecognizerConfig {
	index := make(map[string]int)
	var merged []RecognizerConfig

	for _, layer := range layers {
		for _, rc := range layer {
			if idx, exists := index[rc.Name]; exists {
				merged[idx] = rc
			} else {
				index[rc.Name] = len(merged)
				merged = append(merged, rc)
			}
		}
	}
	return merged
}

// FilterByEntities applies an entity whitelist then blacklist to a
// recognizer list, matching on supported_entity.
func FilterByEntities(recognizers []RecognizerConfig, enabled, disabled []string) []RecognizerConfig {
	result := recognizers

	if len(enabled) > 0 {
		allowed := make(map[string]bool, len(enabled))
		for _, e := range enabled {
			allowed[e] = true
		}
		var filtered []RecognizerConfig
		for _, r := range result {
			if allowed[r.SupportedEntity] {
				filtered = append(filtered, r)
			}
		}
		result = filtered
	}

	if len(disabled) > 0 {
		blocked := make(map[string]bool, len(disabled))
		for _, e := range disabled {
			blocked[e] = true
		}
		var filtered []RecognizerConfig
		for _, r := range result {
			if !blocked[r.SupportedEntity] {
				filtered = append(filtered, r)
			}
		}
		result = filtered
	}

	return result
}

// compiledPattern is one runtime regex with its recognizer metadata.
type compiledPattern struct {
	entityType string
	re         *regexp.Regexp
	score      float64
	context    []string
	validation string
}

// defaultDenyListScore is used when a deny-list recognizer does not
// specify its own score.
const defaultDenyListScore = 0.5

// compileRecognizers converts recognizer configs into runtime patterns.
// Disabled recognizers are skipped. Deny lists compile into a single
// word-bounded alternation per recognizer.
func compileRecognizers(recognizers []RecognizerConfig) ([]compiledPattern, error) {
	var compiled []compiledPattern

	for _, rec := range recognizers {
		if !rec.isEnabled() {
			continue
		}

		for _, p := range rec.Patterns {
			re, err := regexp.Compile(p.Regex)
			if err != nil {
				return nil, fmt.Errorf("compiling pattern %q in recognizer %q: %w", p.Name, rec.Name, err)
			}
			compiled = append(compiled, compiledPattern{
				entityType: rec.SupportedEntity,
				re:         re,
				score:      p.Score,
				context:    rec.Context,
				validation: rec.Validation,
			})
		}

		if len(rec.DenyList) > 0 {
			re, err := compileDenyList(rec.DenyList)
			if err != nil {
				return nil, fmt.Errorf("compiling deny list in recognizer %q: %w", rec.Name, err)
			}
			score := rec.DenyListScore
			if score == 0 {
				score = defaultDenyListScore
			}
			compiled = append(compiled, compiledPattern{
				entityType: rec.SupportedEntity,
				re:         re,
				score:      score,
				context:    rec.Context,
			})
		}
	}

	return compiled, nil
}

// compileDenyList builds a word-bounded alternation matching any term.
func compileDenyList(terms []string) (*regexp.Regexp, error) {
	alt := ""
	for i, t := range terms {
		if i > 0 {
			alt += "|"
		}
		alt += regexp.QuoteMeta(t)
	}
	return regexp.Compile(`\b(?:` + alt + `)\b`)
}
