// Package cvss parses, validates, and scores CVSS vector strings.
//
// The engine requires the literal, case-sensitive "CVSS:" version prefix on
// every vector. A bare metric string such as "AV:N/AC:L/..." is rejected even
// when it is otherwise well-formed v3 syntax: the v2 and v3 metric
// abbreviations overlap, so guessing a version for an unprefixed vector is
// unsafe. Supported versions are 3.0, 3.1, and 4.0; other recognized
// versions (2.0 in particular) are rejected with ErrUnsupportedVersion.
package cvss

import (
	"fmt"
	"regexp"
	"strings"
)

// Version identifies a CVSS standard version.
type Version string

// Supported versions.
const (
	Version30 Version = "3.0"
	Version31 Version = "3.1"
	Version40 Version = "4.0"
)

const prefix = "CVSS:"

// versionRegex matches a structurally valid version token after the prefix.
var versionRegex = regexp.MustCompile(`^\d+\.\d+$`)

// Vector is a parsed, validated CVSS vector.
type Vector struct {
	raw     string
	version Version
	metrics map[string]string
}

// Raw returns the vector exactly as submitted. Vectors are never
// re-serialized; the stored form is the caller's form.
func (v *Vector) Raw() string {
	return v.raw
}

// Version returns the vector's CVSS version.
func (v *Vector) Version() Version {
	return v.version
}

// Metric returns the value of a base metric, e.g. Metric("AV") == "N".
func (v *Vector) Metric(name string) string {
	return v.metrics[name]
}

// Score computes the base score for the vector, rounded to one decimal
// place in [0.0, 10.0].
func (v *Vector) Score() float64 {
	switch v.version {
	case Version40:
		return scoreV4(v.metrics)
	default:
		return scoreV3(v.metrics, v.version)
	}
}

// Parse parses and validates a CVSS vector string.
//
// Returns ErrNoValidVectorFound when the text cannot be parsed under any
// supported grammar, and ErrUnsupportedVersion when the version token is
// structurally valid but names a version the engine does not score.
func Parse(text string) (*Vector, error) {
	if !strings.HasPrefix(text, prefix) {
		return nil, fmt.Errorf("%w: missing %q version prefix", ErrNoValidVectorFound, prefix)
	}

	rest := text[len(prefix):]
	versionToken := rest
	metricsPart := ""
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		versionToken = rest[:idx]
		metricsPart = rest[idx+1:]
	}

	if !versionRegex.MatchString(versionToken) {
		return nil, fmt.Errorf("%w: malformed version %q", ErrNoValidVectorFound, versionToken)
	}

	version := Version(versionToken)
	var grammar metricGrammar
	switch version {
	case Version30, Version31:
		grammar = v3Grammar
	case Version40:
		grammar = v4Grammar
	default:
		return nil, NewUnsupportedVersionError(versionToken)
	}

	if metricsPart == "" {
		return nil, fmt.Errorf("%w: vector has no metrics", ErrNoValidVectorFound)
	}

	metrics, err := parseMetrics(metricsPart, grammar)
	if err != nil {
		return nil, err
	}

	return &Vector{raw: text, version: version, metrics: metrics}, nil
}

// ValidateAndScore parses a vector and computes its base score in one step.
// The returned string is the normalized (verbatim) vector. On failure the
// caller must leave any previously stored vector and score untouched.
func ValidateAndScore(text string) (string, float64, error) {
	vector, err := Parse(text)
	if err != nil {
		return "", 0, err
	}
	return vector.Raw(), vector.Score(), nil
}

// metricGrammar describes the metric set of one CVSS version: allowed values
// per metric and the mandatory metric order used for error reporting.
type metricGrammar struct {
	order  []string
	values map[string][]string
}

func parseMetrics(metricsPart string, grammar metricGrammar) (map[string]string, error) {
	tokens := strings.Split(metricsPart, "/")
	metrics := make(map[string]string, len(tokens))

	for _, token := range tokens {
		// An empty token means a doubled or trailing separator. A trailing
		// slash after the final metric is a parse failure, not tolerated.
		if token == "" {
			return nil, fmt.Errorf("%w: empty metric segment (trailing or doubled separator)", ErrNoValidVectorFound)
		}

		key, value, ok := strings.Cut(token, ":")
		if !ok || key == "" || value == "" {
			return nil, fmt.Errorf("%w: malformed metric %q", ErrNoValidVectorFound, token)
		}

		allowed, known := grammar.values[key]
		if !known {
			return nil, fmt.Errorf("%w: unknown metric %q", ErrNoValidVectorFound, key)
		}
		if _, dup := metrics[key]; dup {
			return nil, fmt.Errorf("%w: duplicate metric %q", ErrNoValidVectorFound, key)
		}
		if !contains(allowed, value) {
			return nil, fmt.Errorf("%w: invalid value %q for metric %q", ErrNoValidVectorFound, value, key)
		}

		metrics[key] = value
	}

	for _, required := range grammar.order {
		if _, ok := metrics[required]; !ok {
			return nil, fmt.Errorf("%w: missing mandatory metric %q", ErrNoValidVectorFound, required)
		}
	}

	return metrics, nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
