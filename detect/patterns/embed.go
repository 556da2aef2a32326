// Package patterns provides the embedded default recognizer definitions.
// The YAML files use the Presidio-compatible recognizer registry format
// with veil extensions (validation, deny_list_score).
package patterns

import _ "embed"

//go:embed pii_au.yaml
var piiAustraliaYAML []byte

// PIIAustraliaYAML returns the embedded Australian PII recognizer pack.
func PIIAustraliaYAML() []byte { return piiAustraliaYAML }
