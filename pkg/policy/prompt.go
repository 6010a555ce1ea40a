package policy

import (
	"fmt"
	"slices"
	"strings"
)

const basePromptTemplate = `You are a content safety analyzer for children's media.

Analyze this screenshot from a YouTube video and determine if it's appropriate for children under %d.

Evaluate for STANDARD categories:
1. Violence (fighting, weapons, gore, death)
2. Horror (scary imagery, jump scares, creepy content)
3. Adult content (sexual themes, nudity)
4. Drugs/alcohol
5. Gambling
6. Disturbing content (Elsagate-style, weird animations targeting kids)
7. Excessive profanity
8. Dangerous activities kids might imitate
%s
Respond in JSON format:
{
    "appropriate": true/false,
    "confidence": 0.0-1.0,
    "categories_detected": ["category1", "category2"],
    "severity": "none" | "low" | "medium" | "high",
    "reason": "Brief explanation",
    "recommendation": "allow" | "warn" | "block",
    "custom_rule_violations": ["rule1", "rule2"]
}

Be cautious - when in doubt, flag for review. Children's safety is the priority.`

var ruleBanner = strings.Repeat("=", 60)

// BuildPrompt composes the classification instruction: the base categories
// with the age threshold, followed by one section per enabled rule in the
// order the rules are given.
func BuildPrompt(cfg Config) string {
	age := cfg.MaxChildAge
	if age <= 0 {
		age = DefaultMaxChildAge
	}
	return fmt.Sprintf(basePromptTemplate, age, customRulesSection(cfg.Rules))
}

func customRulesSection(rules []Rule) string {
	var sections []string
	for _, r := range inCanonicalOrder(rules) {
		if r == nil || !r.IsEnabled() {
			continue
		}
		if s := r.Section(); s != "" {
			sections = append(sections, s)
		}
	}
	if len(sections) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n" + ruleBanner + "\n")
	b.WriteString("PARENT CUSTOM RULES (HIGHEST PRIORITY):\n")
	b.WriteString(ruleBanner + "\n")
	for _, s := range sections {
		b.WriteString("\n" + s + "\n")
	}
	b.WriteString(ruleBanner + "\n")
	return b.String()
}

// inCanonicalOrder returns rules sorted by CanonicalOrder. Kinds outside it
// sort last in their given order.
func inCanonicalOrder(rules []Rule) []Rule {
	rank := make(map[RuleKind]int, len(CanonicalOrder))
	for i, k := range CanonicalOrder {
		rank[k] = i
	}
	pos := func(r Rule) int {
		if r == nil {
			return len(CanonicalOrder)
		}
		if i, ok := rank[r.Kind()]; ok {
			return i
		}
		return len(CanonicalOrder)
	}
	sorted := slices.Clone(rules)
	slices.SortStableFunc(sorted, func(a, b Rule) int { return pos(a) - pos(b) })
	return sorted
}
