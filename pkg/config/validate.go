package config

import (
	"fmt"
	"time"

	"github.com/entrhq/kidguard/pkg/logging"
	"github.com/entrhq/kidguard/pkg/policy"
	"github.com/entrhq/kidguard/pkg/types"
	"github.com/gobwas/glob"
)

// Validate returns the first hard configuration error.
func (c *Config) Validate() error {
	if _, err := policy.ParseMode(c.Analysis.Mode); err != nil {
		return err
	}

	if _, err := policy.ParseFailMode(c.Analysis.FailMode); err != nil {
		return err
	}

	if _, err := types.ParseInterventionKind(c.Rules.Action); err != nil {
		return err
	}

	if c.Rules.MaxChildAge <= 0 {
		return fmt.Errorf("max_child_age must be positive")
	}

	if c.Rules.CheckInterval <= 0 {
		return fmt.Errorf("check_interval must be positive")
	}

	if c.Detection.TimeoutMS < 0 {
		return fmt.Errorf("detection timeout_ms cannot be negative")
	}

	if c.LLM.Timeout < 0 {
		return fmt.Errorf("llm timeout cannot be negative")
	}

	// A bare integer in YAML decodes as nanoseconds.
	if c.LLM.Timeout > 0 && c.LLM.Timeout < time.Second {
		return fmt.Errorf("invalid llm timeout: %s (must be at least 1s; use a unit such as \"30s\")", c.LLM.Timeout)
	}

	for _, pattern := range c.Detection.HostProcesses {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("invalid host process pattern %q: %w", pattern, err)
		}
	}

	if c.Detection.CDP.WatchURLPattern != "" {
		if _, err := glob.Compile(c.Detection.CDP.WatchURLPattern); err != nil {
			return fmt.Errorf("invalid watch_url_pattern %q: %w", c.Detection.CDP.WatchURLPattern, err)
		}
	}

	switch c.Capture.Method {
	case "browser", "none", "":
	case "command":
		if len(c.Capture.Command) == 0 {
			return fmt.Errorf("capture method 'command' requires capture.command")
		}
	default:
		return fmt.Errorf("invalid capture method: %s (must be 'browser', 'command', or 'none')", c.Capture.Method)
	}

	switch c.Intervention.Method {
	case "browser", "keyboard", "none", "":
	default:
		return fmt.Errorf("invalid intervention method: %s (must be 'browser', 'keyboard', or 'none')", c.Intervention.Method)
	}

	if c.Viewer.Enabled && len(c.Viewer.Command) == 0 && c.Viewer.DefaultName == "" {
		return fmt.Errorf("viewer identification requires viewer.command or viewer.default_name")
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}

	return nil
}

// Warnings returns soft problems that do not prevent a run.
func (c *Config) Warnings() []string {
	var warnings []string

	mode := policy.Mode(c.Analysis.Mode)

	if mode == policy.ModeAIVision && c.LLM.APIKey == "" {
		warnings = append(warnings, "no LLM API key configured; AI vision classification will use the fallback verdict unless OPENAI_API_KEY is set")
	}

	if len(c.Family) == 0 {
		warnings = append(warnings, "no family members configured")
	}

	if mode == policy.ModeAIVision && len(policy.EnabledKinds(c.Analysis.CustomRules.Ordered())) == 0 {
		warnings = append(warnings, "no custom rules enabled")
	}

	if mode == policy.ModeKeywordFilter && len(c.Blocklist.Keywords) == 0 && len(c.Blocklist.Channels) == 0 {
		warnings = append(warnings, "keyword_filter mode with an empty blocklist allows everything")
	}

	if c.Notifications.Enabled && c.Notifications.Telegram.Enabled {
		if c.Notifications.Telegram.BotToken == "" {
			warnings = append(warnings, "Telegram notifications enabled but no bot token set")
		}
		if c.Notifications.Telegram.ChatID == "" {
			warnings = append(warnings, "Telegram notifications enabled but no chat id set")
		}
	}

	if c.Rules.Action == string(types.InterventionRedirect) {
		if _, ok := c.RedirectTarget(); !ok {
			warnings = append(warnings, "action is 'redirect' but no safe_channels are configured")
		}
	}

	needsCDP := c.Intervention.Method == "browser" || (mode == policy.ModeAIVision && c.Capture.Method == "browser")
	if needsCDP && !c.Detection.CDP.Enabled {
		warnings = append(warnings, "browser capture or intervention requires detection.cdp.enabled")
	}

	if c.Detection.CDP.Enabled && c.Detection.Processes {
		warnings = append(warnings, "process detection takes precedence over DOM extraction; disable detection.processes to identify videos over CDP")
	}

	if mode == policy.ModeAIVision && c.Capture.Method == "none" {
		warnings = append(warnings, "ai_vision mode without frame capture always uses the fallback verdict")
	}

	return warnings
}
