package policy

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/entrhq/kidguard/pkg/types"
)

// ErrParse is returned when a classifier response does not contain a valid
// verdict object.
var ErrParse = errors.New("unparseable classification response")

// rawVerdict is the object the classifier is asked to return.
type rawVerdict struct {
	Appropriate          *bool    `json:"appropriate"`
	Confidence           *float64 `json:"confidence"`
	CategoriesDetected   []string `json:"categories_detected"`
	Severity             string   `json:"severity"`
	Reason               string   `json:"reason"`
	Recommendation       string   `json:"recommendation"`
	CustomRuleViolations []string `json:"custom_rule_violations"`
}

// ExtractObject returns the substring from the first '{' to the last '}'.
func ExtractObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// ParseResponse converts the classifier's free text into an AnalysisResult.
// The embedded object must decode and carry a valid recommendation and
// severity; confidence, when present, must lie in [0, 1].
func ParseResponse(text string) (types.AnalysisResult, error) {
	obj, ok := ExtractObject(text)
	if !ok {
		return types.AnalysisResult{}, fmt.Errorf("%w: no JSON object found", ErrParse)
	}

	var raw rawVerdict
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return types.AnalysisResult{}, fmt.Errorf("%w: %v", ErrParse, err)
	}

	rec, err := types.ParseRecommendation(raw.Recommendation)
	if err != nil {
		return types.AnalysisResult{}, fmt.Errorf("%w: %v", ErrParse, err)
	}

	sev, err := types.ParseSeverity(raw.Severity)
	if err != nil {
		return types.AnalysisResult{}, fmt.Errorf("%w: %v", ErrParse, err)
	}

	var confidence float64
	if raw.Confidence != nil {
		confidence = *raw.Confidence
		if confidence < 0 || confidence > 1 {
			return types.AnalysisResult{}, fmt.Errorf("%w: confidence %v out of range", ErrParse, confidence)
		}
	}

	return types.AnalysisResult{
		Recommendation: rec,
		Severity:       sev,
		Confidence:     confidence,
		Categories:     raw.CategoriesDetected,
		Reason:         raw.Reason,
		RuleViolations: raw.CustomRuleViolations,
	}, nil
}
