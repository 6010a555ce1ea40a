// Package config loads, validates, and persists the KidGuard YAML
// configuration and derives the evaluation policy from it.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/entrhq/kidguard/pkg/policy"
	"github.com/entrhq/kidguard/pkg/types"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for the configuration file.
const DefaultPath = "config/config.yaml"

// Config represents the full KidGuard configuration document
type Config struct {
	// External vision classifier
	LLM LLMConfig `yaml:"llm" json:"llm"`

	// Family roster used to resolve viewer names
	Family []FamilyMember `yaml:"family" json:"family"`

	// Rule thresholds and response action
	Rules RulesConfig `yaml:"rules" json:"rules"`

	// Redirect destinations
	SafeChannels []types.ChannelRef `yaml:"safe_channels" json:"safe_channels"`

	Analysis      AnalysisConfig      `yaml:"analysis" json:"analysis"`
	Blocklist     BlocklistConfig     `yaml:"blocklist" json:"blocklist"`
	Detection     DetectionConfig     `yaml:"detection" json:"detection"`
	Viewer        ViewerConfig        `yaml:"viewer" json:"viewer"`
	Capture       CaptureConfig       `yaml:"capture" json:"capture"`
	Intervention  InterventionConfig  `yaml:"intervention" json:"intervention"`
	Notifications NotificationsConfig `yaml:"notifications" json:"notifications"`
	Privacy       PrivacyConfig       `yaml:"privacy" json:"privacy"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
}

// LLMConfig configures the OpenAI-compatible vision endpoint
type LLMConfig struct {
	APIKey    string        `yaml:"api_key" json:"api_key"`
	BaseURL   string        `yaml:"base_url" json:"base_url"`
	Model     string        `yaml:"model" json:"model"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	MaxTokens int           `yaml:"max_tokens" json:"max_tokens"`
}

// FamilyMember is one entry of the family roster
type FamilyMember struct {
	Name    string `yaml:"name" json:"name"`
	Age     int    `yaml:"age" json:"age"`
	IsChild *bool  `yaml:"is_child,omitempty" json:"is_child,omitempty"` // derived from age when unset
}

// RulesConfig holds the rule thresholds
type RulesConfig struct {
	MaxChildAge   int    `yaml:"max_child_age" json:"max_child_age"`
	Action        string `yaml:"action" json:"action"`                 // skip, redirect, pause, notify_only
	CheckInterval int    `yaml:"check_interval" json:"check_interval"` // seconds between presence polls
}

// AnalysisConfig selects the evaluation mode and custom rules
type AnalysisConfig struct {
	Mode        string      `yaml:"mode" json:"mode"`           // ai_vision or keyword_filter
	FailMode    string      `yaml:"fail_mode" json:"fail_mode"` // open or closed
	CustomRules CustomRules `yaml:"custom_rules" json:"custom_rules"`
}

// CustomRules holds one block per rule variant
type CustomRules struct {
	Language policy.LanguageRule `yaml:"language" json:"language"`
	Actions  policy.ActionRule   `yaml:"actions" json:"actions"`
	Audio    policy.AudioRule    `yaml:"audio" json:"audio"`
	Visual   policy.VisualRule   `yaml:"visual" json:"visual"`
	Themes   policy.ThemeRule    `yaml:"themes" json:"themes"`
	Keywords policy.KeywordRule  `yaml:"keywords" json:"keywords"`
}

// Ordered returns the rules in rendering order.
func (c CustomRules) Ordered() []policy.Rule {
	return []policy.Rule{c.Language, c.Actions, c.Audio, c.Visual, c.Themes, c.Keywords}
}

// BlocklistConfig holds the keyword filter terms
type BlocklistConfig struct {
	Keywords []string `yaml:"keywords" json:"keywords"`
	Channels []string `yaml:"channels" json:"channels"`
}

// DetectionConfig configures the presence detection strategies
type DetectionConfig struct {
	TargetMarker  string    `yaml:"target_marker" json:"target_marker"`
	WindowTitles  bool      `yaml:"window_titles" json:"window_titles"`
	Processes     bool      `yaml:"processes" json:"processes"`
	HostProcesses []string  `yaml:"host_processes" json:"host_processes"` // glob patterns
	TitleSuffixes []string  `yaml:"title_suffixes" json:"title_suffixes"`
	TimeoutMS     int       `yaml:"timeout_ms" json:"timeout_ms"`
	CDP           CDPConfig `yaml:"cdp" json:"cdp"`
}

// CDPConfig configures the remote debugging connection to the browser
type CDPConfig struct {
	Enabled         bool   `yaml:"enabled" json:"enabled"`
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
	WatchURLPattern string `yaml:"watch_url_pattern" json:"watch_url_pattern"`
}

// ViewerConfig configures viewer identification
type ViewerConfig struct {
	Enabled     bool     `yaml:"enabled" json:"enabled"`
	Command     []string `yaml:"command" json:"command"`
	DefaultName string   `yaml:"default_name" json:"default_name"`
}

// CaptureConfig configures frame capture
type CaptureConfig struct {
	Method  string   `yaml:"method" json:"method"` // browser, command, none
	Command []string `yaml:"command" json:"command"`
	Dir     string   `yaml:"dir" json:"dir"`
}

// InterventionConfig configures how interventions are executed
type InterventionConfig struct {
	Method string `yaml:"method" json:"method"` // browser, keyboard, none
}

// NotificationsConfig configures parent alerts
type NotificationsConfig struct {
	Enabled           bool           `yaml:"enabled" json:"enabled"`
	BlockOnly         bool           `yaml:"block_only" json:"block_only"`
	IncludeScreenshot bool           `yaml:"include_screenshot" json:"include_screenshot"`
	Console           bool           `yaml:"console" json:"console"`
	Telegram          TelegramConfig `yaml:"telegram" json:"telegram"`
}

// TelegramConfig configures the Telegram bot sink
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	BotToken string `yaml:"bot_token" json:"bot_token"`
	ChatID   string `yaml:"chat_id" json:"chat_id"`
	APIURL   string `yaml:"api_url" json:"api_url"`
}

// PrivacyConfig controls retention of captured frames
type PrivacyConfig struct {
	DeleteClips bool `yaml:"delete_clips" json:"delete_clips"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"` // debug, info, warn, error
	Dir   string `yaml:"dir" json:"dir"`
}

// Default returns the built-in configuration used when no file exists:
// AI vision mode without credentials, every custom rule disabled, and
// notifications disabled.
func Default() *Config {
	return &Config{
		Rules: RulesConfig{
			MaxChildAge:   policy.DefaultMaxChildAge,
			Action:        string(types.InterventionRedirect),
			CheckInterval: 30,
		},
		Analysis: AnalysisConfig{
			Mode:     string(policy.ModeAIVision),
			FailMode: string(policy.FailOpen),
		},
		Detection: DetectionConfig{
			TargetMarker: "youtube",
			WindowTitles: true,
			Processes:    true,
			HostProcesses: []string{
				"chrome", "chromium*", "google-chrome*", "firefox*", "msedge", "brave*", "opera*",
			},
			TitleSuffixes: []string{
				" - Google Chrome", " - Chromium", " - Mozilla Firefox", " \u2014 Mozilla Firefox",
				" - Microsoft Edge", " - Microsoft\u200b Edge", " - Brave", " - Opera",
			},
			TimeoutMS: 300,
			CDP: CDPConfig{
				Endpoint:        "http://127.0.0.1:9222",
				WatchURLPattern: "*youtube.com/watch*",
			},
		},
		Capture: CaptureConfig{
			Method: "browser",
			Dir:    "screenshots",
		},
		Intervention: InterventionConfig{
			Method: "browser",
		},
		Notifications: NotificationsConfig{
			Console: true,
			Telegram: TelegramConfig{
				APIURL: "https://api.telegram.org",
			},
		},
		Privacy: PrivacyConfig{
			DeleteClips: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the configuration at path on top of Default. A missing file
// yields Default with no error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Exists reports whether a configuration file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// CheckInterval returns the poll cadence.
func (c *Config) CheckInterval() time.Duration {
	if c.Rules.CheckInterval <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Rules.CheckInterval) * time.Second
}

// Timeout returns the per-strategy time limit.
func (c DetectionConfig) Timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return 300 * time.Millisecond
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// MaxChildAge returns the configured age threshold, or the default.
func (c *Config) MaxChildAge() int {
	if c.Rules.MaxChildAge <= 0 {
		return policy.DefaultMaxChildAge
	}
	return c.Rules.MaxChildAge
}

// Policy derives the evaluation policy. Invalid enum values fall back to
// their defaults; call Validate first to reject them instead.
func (c *Config) Policy() policy.Config {
	mode, err := policy.ParseMode(c.Analysis.Mode)
	if err != nil {
		mode = policy.ModeAIVision
	}
	failMode, err := policy.ParseFailMode(c.Analysis.FailMode)
	if err != nil {
		failMode = policy.FailOpen
	}
	action, err := types.ParseInterventionKind(c.Rules.Action)
	if err != nil {
		action = types.InterventionNotifyOnly
	}

	return policy.Config{
		MaxChildAge:     c.MaxChildAge(),
		Mode:            mode,
		FailMode:        failMode,
		Rules:           c.Analysis.CustomRules.Ordered(),
		BlockedKeywords: append([]string(nil), c.Blocklist.Keywords...),
		BlockedChannels: append([]string(nil), c.Blocklist.Channels...),
		ResponseAction:  action,
	}
}

// RedirectTarget returns the first safe channel, if any.
func (c *Config) RedirectTarget() (types.ChannelRef, bool) {
	for _, ch := range c.SafeChannels {
		if ch.ID != "" {
			return ch, true
		}
	}
	return types.ChannelRef{}, false
}

// Child reports whether the member counts as a child. An explicit is_child
// wins; otherwise the age is compared against maxChildAge.
func (m FamilyMember) Child(maxChildAge int) bool {
	if m.IsChild != nil {
		return *m.IsChild
	}
	return m.Age < maxChildAge
}
