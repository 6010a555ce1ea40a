package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/entrhq/kidguard/pkg/policy"
	"github.com/entrhq/kidguard/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
llm:
  model: gpt-4o-mini
  timeout: 20s
family:
  - name: Mia
    age: 7
  - name: Dad
    age: 40
rules:
  max_child_age: 10
  action: skip
  check_interval: 5
safe_channels:
  - id: UCbCmjCuTUZos6Inko4u57UQ
    name: Cocomelon
analysis:
  mode: keyword_filter
  custom_rules:
    keywords:
      enabled: true
      blocked_keywords: [scary]
    language:
      enabled: true
      allowed_languages: [English]
blocklist:
  keywords: [scary, prank]
  channels: [Bad Channel]
detection:
  processes: false
notifications:
  enabled: true
  block_only: true
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, string(policy.ModeAIVision), cfg.Analysis.Mode)
	assert.False(t, cfg.Notifications.Enabled)
	assert.Empty(t, policy.EnabledKinds(cfg.Analysis.CustomRules.Ordered()))
	require.NoError(t, cfg.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 20*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 5*time.Second, cfg.CheckInterval())
	assert.Len(t, cfg.Family, 2)
	assert.False(t, cfg.Detection.Processes)
	assert.True(t, cfg.Detection.WindowTitles, "unset keys keep their defaults")
	assert.Equal(t, "http://127.0.0.1:9222", cfg.Detection.CDP.Endpoint)
	assert.True(t, cfg.Notifications.BlockOnly)
	require.NoError(t, cfg.Validate())
}

func TestLoadMalformed(t *testing.T) {
	_, err := Load(writeConfig(t, "rules: [not: a: map"))
	assert.Error(t, err)
}

func TestPolicyDerivation(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	p := cfg.Policy()
	assert.Equal(t, 10, p.MaxChildAge)
	assert.Equal(t, policy.ModeKeywordFilter, p.Mode)
	assert.Equal(t, policy.FailOpen, p.FailMode)
	assert.Equal(t, types.InterventionSkip, p.ResponseAction)
	assert.Equal(t, []string{"scary", "prank"}, p.BlockedKeywords)
	assert.Equal(t, []string{"Bad Channel"}, p.BlockedChannels)
	assert.Equal(t, []policy.RuleKind{policy.RuleLanguage, policy.RuleKeyword}, policy.EnabledKinds(p.Rules))

	p.BlockedKeywords[0] = "changed"
	assert.Equal(t, "scary", cfg.Blocklist.Keywords[0], "policy owns its own copy")
}

func TestRedirectTarget(t *testing.T) {
	cfg := Default()
	_, ok := cfg.RedirectTarget()
	assert.False(t, ok)

	cfg.SafeChannels = []types.ChannelRef{{Name: "no id"}, {ID: "UC123", Name: "Kids"}}
	target, ok := cfg.RedirectTarget()
	require.True(t, ok)
	assert.Equal(t, "https://www.youtube.com/channel/UC123/videos", target.URL())
}

func TestFamilyMemberChild(t *testing.T) {
	yes, no := true, false
	assert.True(t, FamilyMember{Age: 7}.Child(12))
	assert.False(t, FamilyMember{Age: 12}.Child(12))
	assert.True(t, FamilyMember{Age: 30, IsChild: &yes}.Child(12))
	assert.False(t, FamilyMember{Age: 5, IsChild: &no}.Child(12))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad mode", func(c *Config) { c.Analysis.Mode = "vibes" }, "invalid analysis mode"},
		{"bad fail mode", func(c *Config) { c.Analysis.FailMode = "maybe" }, "invalid fail mode"},
		{"bad action", func(c *Config) { c.Rules.Action = "explode" }, "invalid response action"},
		{"zero age", func(c *Config) { c.Rules.MaxChildAge = 0 }, "max_child_age"},
		{"zero interval", func(c *Config) { c.Rules.CheckInterval = 0 }, "check_interval"},
		{"bad glob", func(c *Config) { c.Detection.HostProcesses = []string{"chrome["} }, "invalid host process pattern"},
		{"command capture without command", func(c *Config) { c.Capture.Method = "command" }, "capture.command"},
		{"bad capture method", func(c *Config) { c.Capture.Method = "webcam" }, "invalid capture method"},
		{"bad intervention method", func(c *Config) { c.Intervention.Method = "mouse" }, "invalid intervention method"},
		{"viewer without source", func(c *Config) { c.Viewer.Enabled = true }, "viewer identification"},
		{"llm timeout without unit", func(c *Config) { c.LLM.Timeout = 30 }, "invalid llm timeout"},
		{"bad log level", func(c *Config) { c.Logging.Level = "chatty" }, "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLLMTimeoutWithoutUnitIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  timeout: 30\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Nanosecond, cfg.LLM.Timeout)
	assert.ErrorContains(t, cfg.Validate(), "invalid llm timeout")
}

func TestDetectionTimeout(t *testing.T) {
	assert.Equal(t, 300*time.Millisecond, DetectionConfig{}.Timeout())
	assert.Equal(t, 750*time.Millisecond, DetectionConfig{TimeoutMS: 750}.Timeout())
}

func TestWarnings(t *testing.T) {
	cfg := Default()
	warnings := cfg.Warnings()

	assert.Contains(t, warnings, "no family members configured")
	assert.Contains(t, warnings, "no custom rules enabled")
	assert.Contains(t, warnings, "action is 'redirect' but no safe_channels are configured")
	assert.Contains(t, warnings, "browser capture or intervention requires detection.cdp.enabled")

	cfg.Family = []FamilyMember{{Name: "Mia", Age: 7}}
	cfg.LLM.APIKey = "sk-test"
	cfg.Analysis.CustomRules.Themes = policy.ThemeRule{Enabled: true, BlockedThemes: []string{"horror"}}
	cfg.SafeChannels = []types.ChannelRef{{ID: "UC1"}}
	cfg.Detection.CDP.Enabled = true
	assert.Contains(t, cfg.Warnings(), "process detection takes precedence over DOM extraction; disable detection.processes to identify videos over CDP")

	cfg.Detection.Processes = false
	cfg.Notifications.Enabled = true
	cfg.Notifications.Telegram.Enabled = true

	warnings = cfg.Warnings()
	assert.Equal(t, []string{
		"Telegram notifications enabled but no bot token set",
		"Telegram notifications enabled but no chat id set",
	}, warnings)
}
