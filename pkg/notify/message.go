package notify

import (
	"fmt"
	"strings"

	"github.com/entrhq/kidguard/pkg/types"
)

var severityIcons = map[types.Severity]string{
	types.SeverityNone:   "✅",
	types.SeverityLow:    "⚠️",
	types.SeverityMedium: "🟠",
	types.SeverityHigh:   "🔴",
}

var actionIcons = map[types.InterventionKind]string{
	types.InterventionSkip:       "⏭️",
	types.InterventionRedirect:   "↩️",
	types.InterventionPause:      "⏸️",
	types.InterventionNotifyOnly: "📢",
}

// Headline summarizes the verdict in one line.
func Headline(r types.AnalysisResult) string {
	switch r.Recommendation {
	case types.RecommendBlock:
		return "Inappropriate content detected"
	case types.RecommendWarn:
		return "Questionable content detected"
	default:
		return "Content reviewed"
	}
}

// ActionLabel renders an intervention kind for humans, e.g. "Notify Only".
func ActionLabel(k types.InterventionKind) string {
	words := strings.Split(string(k), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// BuildMessage renders the alert as plain text.
func BuildMessage(a Alert) string {
	r := a.Result

	icon, ok := severityIcons[r.Severity]
	if !ok {
		icon = "⚠️"
	}
	actionIcon, ok := actionIcons[a.Intervention.Kind]
	if !ok {
		actionIcon = "📢"
	}

	name := a.Viewer.Name
	if name == "" {
		name = types.UnknownViewer().Name
	}
	age := "?"
	if a.Viewer.Age > 0 {
		age = fmt.Sprintf("%d", a.Viewer.Age)
	}

	categories := strings.Join(r.Categories, ", ")
	if categories == "" {
		categories = "Unknown"
	}
	reason := r.Reason
	if reason == "" {
		reason = "N/A"
	}

	var b strings.Builder
	b.WriteString("🛡️ KidGuard Alert\n\n")
	fmt.Fprintf(&b, "%s %s\n\n", icon, Headline(r))
	if id := a.Identity; id != nil && id.Title != "" {
		if id.Channel != "" {
			fmt.Fprintf(&b, "🎬 Video: %s (%s)\n", id.Title, id.Channel)
		} else {
			fmt.Fprintf(&b, "🎬 Video: %s\n", id.Title)
		}
	}
	fmt.Fprintf(&b, "👤 Viewer: %s (age %s)\n", name, age)
	fmt.Fprintf(&b, "📋 Categories: %s\n", categories)
	fmt.Fprintf(&b, "⚡ Severity: %s\n", strings.ToUpper(r.Severity.String()))
	fmt.Fprintf(&b, "📝 Reason: %s\n", reason)
	if len(r.RuleViolations) > 0 {
		fmt.Fprintf(&b, "🚫 Rules violated: %s\n", strings.Join(r.RuleViolations, ", "))
	}
	fmt.Fprintf(&b, "\n%s Action taken: %s\n\n", actionIcon, ActionLabel(a.Intervention.Kind))
	b.WriteString("---\n")
	fmt.Fprintf(&b, "Confidence: %.0f%%", r.Confidence*100)
	if r.Fallback {
		b.WriteString(" (classification unavailable)")
	}
	return b.String()
}
