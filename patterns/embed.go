// Package patterns provides the embedded default recognizer definitions.
// privacy.yaml uses a Presidio-style recognizer format extended with a
// per-recognizer placeholder, a Luhn validation flag and the keyword sets
// used for tier scoring.
package patterns

import _ "embed"

//go:embed privacy.yaml
var privacyYAML []byte

// PrivacyYAML returns the embedded default recognizer and keyword definitions.
func PrivacyYAML() []byte { return privacyYAML }
