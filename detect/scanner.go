package detect

import (
	"fmt"
	"strings"
)

const (
	// ContextSimilarityFactor is the score boost applied when one of a
	// recognizer's context words appears near a match. Matches Presidio's
	// default context_similarity_factor.
	ContextSimilarityFactor = 0.35

	// ContextWindowChars is how many characters before and after a match
	// are searched for context words.
	ContextWindowChars = 100
)

// Scanner detects PII using regex recognizers. It implements Provider.
// A zero-config Scanner uses the embedded Australian defaults; options
// layer file-based and programmatic recognizers on top and control
// filtering and scoring.
type Scanner struct {
	patterns     []compiledPattern
	minScore     float64
	contextBoost bool
}

// ScannerOption configures a Scanner.
type ScannerOption func(*scannerConfig)

type scannerConfig struct {
	recognizerFile    string
	customRecognizers []RecognizerConfig
	enabledEntities   []string
	disabledEntities  []string
	minScore          float64
	noContextBoost    bool
	noDefaults        bool
}

// WithRecognizerFile layers recognizers from a YAML file over the
// embedded defaults. A missing file is silently skipped.
func WithRecognizerFile(path string) ScannerOption {
	return func(c *scannerConfig) { c.recognizerFile = path }
}

// WithCustomRecognizers layers programmatic recognizer definitions over
// the defaults and any recognizer file.
func WithCustomRecognizers(recognizers ...RecognizerConfig) ScannerOption {
	return func(c *scannerConfig) {
		c.customRecognizers = append(c.customRecognizers, recognizers...)
	}
}

// WithEnabledEntities restricts detection to the given entity types.
func WithEnabledEntities(entities ...string) ScannerOption {
	return func(c *scannerConfig) { c.enabledEntities = entities }
}

// WithDisabledEntities excludes the given entity types.
func WithDisabledEntities(entities ...string) ScannerOption {
	return func(c *scannerConfig) { c.disabledEntities = entities }
}

// WithMinScore discards matches scoring below the threshold.
func WithMinScore(score float64) ScannerOption {
	return func(c *scannerConfig) { c.minScore = score }
}

// WithoutContextBoost disables the Presidio-style context word boost.
func WithoutContextBoost() ScannerOption {
	return func(c *scannerConfig) { c.noContextBoost = true }
}

// WithoutDefaults drops the embedded default pack, leaving only
// recognizers supplied via file or WithCustomRecognizers.
func WithoutDefaults() ScannerOption {
	return func(c *scannerConfig) { c.noDefaults = true }
}

// NewScanner creates a regex PII scanner.
func NewScanner(opts ...ScannerOption) (*Scanner, error) {
	var cfg scannerConfig
	for _, o := range opts {
		o(&cfg)
	}

	var defaults []RecognizerConfig
	if !cfg.noDefaults {
		var err error
		defaults, err = DefaultRecognizers()
		if err != nil {
			return nil, fmt.Errorf("loading default recognizers: %w", err)
		}
	}

	var fileRecs []RecognizerConfig
	if cfg.recognizerFile != "" {
		rf, err := LoadRecognizerFile(cfg.recognizerFile)
		if err != nil {
			return nil, fmt.Errorf("loading recognizer file: %w", err)
		}
		if rf != nil {
			fileRecs = rf.Recognizers
		}
	}

	merged := MergeRecognizers(defaults, fileRecs, cfg.customRecognizers)
	merged = FilterByEntities(merged, cfg.enabledEntities, cfg.disabledEntities)

	compiled, err := compileRecognizers(merged)
	if err != nil {
		return nil, fmt.Errorf("compiling recognizers: %w", err)
	}

	return &Scanner{
		patterns:     compiled,
		minScore:     cfg.minScore,
		contextBoost: !cfg.noContextBoost,
	}, nil
}

// MustNewScanner is like NewScanner but panics on error. The embedded
// defaults are expected to always compile, so this is safe for
// zero-config startup.
func MustNewScanner(opts ...ScannerOption) *Scanner {
	s, err := NewScanner(opts...)
	if err != nil {
		panic(fmt.Sprintf("detect.NewScanner: %v", err))
	}
	return s
}

// Analyze scans text and returns detected spans sorted by
// (Start, End, EntityType). Matches failing their recognizer's checksum
// validation are dropped; overlapping matches with identical offsets and
// entity type keep the highest score. The language parameter is accepted
// for Provider compatibility; the built-in packs are English.
func (s *Scanner) Analyze(text, language string) ([]Span, error) {
	_ = language

	type key struct {
		start, end int
		entity     string
	}
	best := make(map[key]Span)

	for _, p := range s.patterns {
		matches := p.re.FindAllStringIndex(text, -1)
		for _, m := range matches {
			value := text[m[0]:m[1]]

			if !validateMatch(p.validation, value) {
				continue
			}

			score := p.score
			if s.contextBoost && len(p.context) > 0 {
				score = enhanceScoreWithContext(text, m[0], m[1], score, p.context)
			}
			if score < s.minScore {
				continue
			}

			k := key{m[0], m[1], p.entityType}
			if existing, ok := best[k]; !ok || score > existing.Score {
				best[k] = Span{
					EntityType: p.entityType,
					Start:      m[0],
					End:        m[1],
					Score:      score,
				}
			}
		}
	}

	spans := make([]Span, 0, len(best))
	for _, sp := range best {
		spans = append(spans, sp)
	}
	SortSpans(spans)
	return spans, nil
}

// validateMatch applies the named checksum gate to a match value.
// An empty name passes everything.
func validateMatch(validation, value string) bool {
	switch validation {
	case "":
		return true
	case "abn":
		return ValidABN(value)
	case "luhn":
		return LuhnValid(stripNonDigits(value))
	case "iban":
		clean := strings.ReplaceAll(value, " ", "")
		return ValidIBANChecksum(clean)
	default:
		return true
	}
}

// enhanceScoreWithContext applies the Presidio-style context boost: if
// any context word occurs (case-insensitively) within ContextWindowChars
// of the match, the score is raised by ContextSimilarityFactor, capped
// at 1.0.
func enhanceScoreWithContext(text string, start, end int, base float64, contextWords []string) float64 {
	winStart := start - ContextWindowChars
	if winStart < 0 {
		winStart = 0
	}
	winEnd := end + ContextWindowChars
	if winEnd > len(text) {
		winEnd = len(text)
	}
	window := strings.ToLower(text[winStart:winEnd])

	for _, w := range contextWords {
		if w == "" {
			continue
		}
		if strings.Contains(window, strings.ToLower(w)) {
			boosted := base + ContextSimilarityFactor
			if boosted > 1.0 {
				boosted = 1.0
			}
			return boosted
		}
	}
	return base
}
