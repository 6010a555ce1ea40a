// Package policy evaluates video content against a family's rules, either by
// delegating to a vision classifier or by deterministic keyword matching.
package policy

import (
	"fmt"

	"github.com/entrhq/kidguard/pkg/types"
)

// Mode selects the evaluation strategy.
type Mode string

const (
	// ModeAIVision submits a captured frame to the vision classifier.
	ModeAIVision Mode = "ai_vision"
	// ModeKeywordFilter matches the video identity against blocklists.
	ModeKeywordFilter Mode = "keyword_filter"
)

// ParseMode validates a configured mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeAIVision, ModeKeywordFilter:
		return m, nil
	default:
		return "", fmt.Errorf("invalid analysis mode %q (must be 'ai_vision' or 'keyword_filter')", s)
	}
}

// FailMode selects the verdict used when classification cannot complete.
type FailMode string

const (
	// FailOpen allows the content.
	FailOpen FailMode = "open"
	// FailClosed blocks the content at low severity.
	FailClosed FailMode = "closed"
)

// ParseFailMode validates a configured fail mode. Empty means FailOpen.
func ParseFailMode(s string) (FailMode, error) {
	switch m := FailMode(s); m {
	case "":
		return FailOpen, nil
	case FailOpen, FailClosed:
		return m, nil
	default:
		return "", fmt.Errorf("invalid fail mode %q (must be 'open' or 'closed')", s)
	}
}

// Config is the evaluation policy for one run. It is treated as immutable
// once built; reloads produce a new Config.
type Config struct {
	MaxChildAge     int
	Mode            Mode
	FailMode        FailMode
	Rules           []Rule
	BlockedKeywords []string
	BlockedChannels []string
	ResponseAction  types.InterventionKind
}

// DefaultMaxChildAge is used when a config leaves max_child_age unset.
const DefaultMaxChildAge = 12
