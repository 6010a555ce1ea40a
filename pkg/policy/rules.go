package policy

import (
	"fmt"
	"strings"
)

// RuleKind names a custom rule variant.
type RuleKind string

const (
	RuleLanguage RuleKind = "language"
	RuleAction   RuleKind = "action"
	RuleAudio    RuleKind = "audio"
	RuleVisual   RuleKind = "visual"
	RuleTheme    RuleKind = "theme"
	RuleKeyword  RuleKind = "keyword"
)

// CanonicalOrder is the order in which rule sections are rendered.
var CanonicalOrder = []RuleKind{RuleLanguage, RuleAction, RuleAudio, RuleVisual, RuleTheme, RuleKeyword}

// Rule is one configurable custom rule set. Each variant renders its own
// prompt section under a fixed heading.
type Rule interface {
	Kind() RuleKind
	IsEnabled() bool
	// Section renders the prompt section, or "" when the rule has no terms.
	Section() string
}

// TypedItem is a blocked item with a short type label and a description.
type TypedItem struct {
	Type        string `yaml:"type" json:"type"`
	Description string `yaml:"description" json:"description"`
}

// BlockedAction is a prohibited on-screen behavior.
type BlockedAction struct {
	Type        string   `yaml:"type" json:"type"`
	Description string   `yaml:"description" json:"description"`
	Keywords    []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`
}

// LanguageRule restricts content to the allowed languages.
type LanguageRule struct {
	Enabled          bool     `yaml:"enabled" json:"enabled"`
	AllowedLanguages []string `yaml:"allowed_languages" json:"allowed_languages"`
}

func (r LanguageRule) Kind() RuleKind  { return RuleLanguage }
func (r LanguageRule) IsEnabled() bool { return r.Enabled }

func (r LanguageRule) Section() string {
	if len(r.AllowedLanguages) == 0 {
		return ""
	}
	return fmt.Sprintf(`LANGUAGE RESTRICTIONS:
- ONLY allow content in these languages: %s
- If you detect speech or text in other languages, mark as violation
- Check video title, on-screen text, and spoken language`, strings.Join(r.AllowedLanguages, ", "))
}

// ActionRule prohibits specific behaviors shown on screen.
type ActionRule struct {
	Enabled        bool            `yaml:"enabled" json:"enabled"`
	BlockedActions []BlockedAction `yaml:"blocked_actions" json:"blocked_actions"`
}

func (r ActionRule) Kind() RuleKind  { return RuleAction }
func (r ActionRule) IsEnabled() bool { return r.Enabled }

func (r ActionRule) Section() string {
	if len(r.BlockedActions) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("ACTION/BEHAVIOR RESTRICTIONS:\nThe following actions are STRICTLY PROHIBITED:\n")
	for _, a := range r.BlockedActions {
		fmt.Fprintf(&b, "  - %s: %s\n", a.Type, a.Description)
		if len(a.Keywords) > 0 {
			fmt.Fprintf(&b, "    Keywords: %s\n", strings.Join(a.Keywords, ", "))
		}
	}
	b.WriteString("- Look for these movements, gestures, or activities in the video\n")
	b.WriteString("- Even if cartoonish or comedic, still flag as violation")
	return b.String()
}

// AudioRule prohibits sound patterns, inferred from visual cues.
type AudioRule struct {
	Enabled           bool        `yaml:"enabled" json:"enabled"`
	BlockedAudioTypes []TypedItem `yaml:"blocked_audio_types" json:"blocked_audio_types"`
}

func (r AudioRule) Kind() RuleKind  { return RuleAudio }
func (r AudioRule) IsEnabled() bool { return r.Enabled }

func (r AudioRule) Section() string {
	if len(r.BlockedAudioTypes) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("AUDIO/SOUND RESTRICTIONS:\nThe following audio patterns are PROHIBITED:\n")
	writeTypedItems(&b, r.BlockedAudioTypes)
	b.WriteString("- Analyze facial expressions and body language that suggest these sounds\n")
	b.WriteString("- Check for visual cues like open mouths (screaming), angry faces (yelling)")
	return b.String()
}

// VisualRule prohibits visual styles.
type VisualRule struct {
	Enabled       bool        `yaml:"enabled" json:"enabled"`
	BlockedStyles []TypedItem `yaml:"blocked_styles" json:"blocked_styles"`
}

func (r VisualRule) Kind() RuleKind  { return RuleVisual }
func (r VisualRule) IsEnabled() bool { return r.Enabled }

func (r VisualRule) Section() string {
	if len(r.BlockedStyles) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("VISUAL STYLE RESTRICTIONS:\nThe following visual styles are NOT ALLOWED:\n")
	writeTypedItems(&b, r.BlockedStyles)
	b.WriteString("- Analyze color palette, lighting, composition, and overall visual tone")
	return b.String()
}

// ThemeRule prohibits topics.
type ThemeRule struct {
	Enabled       bool     `yaml:"enabled" json:"enabled"`
	BlockedThemes []string `yaml:"blocked_themes" json:"blocked_themes"`
}

func (r ThemeRule) Kind() RuleKind  { return RuleTheme }
func (r ThemeRule) IsEnabled() bool { return r.Enabled }

func (r ThemeRule) Section() string {
	if len(r.BlockedThemes) == 0 {
		return ""
	}
	return fmt.Sprintf(`THEME/TOPIC RESTRICTIONS:
Prohibited themes: %s
- Check video context for these themes
- Consider title, thumbnail, and visible content`, strings.Join(r.BlockedThemes, ", "))
}

// KeywordRule asks the classifier to flag blocked words it can see.
type KeywordRule struct {
	Enabled         bool     `yaml:"enabled" json:"enabled"`
	BlockedKeywords []string `yaml:"blocked_keywords" json:"blocked_keywords"`
}

func (r KeywordRule) Kind() RuleKind  { return RuleKeyword }
func (r KeywordRule) IsEnabled() bool { return r.Enabled }

func (r KeywordRule) Section() string {
	if len(r.BlockedKeywords) == 0 {
		return ""
	}
	return fmt.Sprintf(`KEYWORD BLACKLIST:
Blocked keywords: %s
- Check for these words in video title, description, or on-screen text
- Any match should be flagged as violation`, strings.Join(r.BlockedKeywords, ", "))
}

func writeTypedItems(b *strings.Builder, items []TypedItem) {
	for _, it := range items {
		fmt.Fprintf(b, "  - %s: %s\n", it.Type, it.Description)
	}
}

// EnabledKinds lists the kinds of the enabled rules, in order.
func EnabledKinds(rules []Rule) []RuleKind {
	var kinds []RuleKind
	for _, r := range rules {
		if r != nil && r.IsEnabled() {
			kinds = append(kinds, r.Kind())
		}
	}
	return kinds
}
