package types

import (
	"fmt"
	"strings"
)

// Recommendation is the verdict's suggested handling of the content.
type Recommendation string

const (
	RecommendAllow Recommendation = "allow" // RecommendAllow indicates the content is fine to watch.
	RecommendWarn  Recommendation = "warn"  // RecommendWarn indicates the content is questionable; parents are notified only.
	RecommendBlock Recommendation = "block" // RecommendBlock indicates the content must be interrupted.
)

// ParseRecommendation converts a raw string into a Recommendation.
func ParseRecommendation(s string) (Recommendation, error) {
	switch r := Recommendation(strings.ToLower(strings.TrimSpace(s))); r {
	case RecommendAllow, RecommendWarn, RecommendBlock:
		return r, nil
	default:
		return "", fmt.Errorf("invalid recommendation %q", s)
	}
}

// Severity grades how unsafe the content is. Values are totally ordered:
// SeverityNone < SeverityLow < SeverityMedium < SeverityHigh.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
)

var severityNames = [...]string{"none", "low", "medium", "high"}

// String returns the lowercase name of the severity.
func (s Severity) String() string {
	if s < SeverityNone || s > SeverityHigh {
		return fmt.Sprintf("severity(%d)", int(s))
	}
	return severityNames[s]
}

// ParseSeverity converts a raw string into a Severity.
func ParseSeverity(s string) (Severity, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range severityNames {
		if n == name {
			return Severity(i), nil
		}
	}
	return SeverityNone, fmt.Errorf("invalid severity %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// AnalysisResult is the verdict produced once per distinct video.
// It is treated as immutable after creation.
type AnalysisResult struct {
	Recommendation Recommendation `json:"recommendation"`
	Severity       Severity       `json:"severity"`
	Confidence     float64        `json:"confidence"`
	Categories     []string       `json:"categories,omitempty"`
	Reason         string         `json:"reason"`
	RuleViolations []string       `json:"rule_violations,omitempty"`

	// Fallback is set when the result is a substitute for an unavailable or
	// unparseable classification rather than a real verdict.
	Fallback bool `json:"fallback,omitempty"`
}

// IsBlock reports whether the verdict recommends blocking.
func (r AnalysisResult) IsBlock() bool {
	return r.Recommendation == RecommendBlock
}
