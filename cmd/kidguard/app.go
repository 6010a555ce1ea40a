package main

import (
	"fmt"
	"os"

	"github.com/entrhq/kidguard/pkg/browser"
	"github.com/entrhq/kidguard/pkg/capture"
	"github.com/entrhq/kidguard/pkg/config"
	"github.com/entrhq/kidguard/pkg/detect"
	"github.com/entrhq/kidguard/pkg/dispatch"
	"github.com/entrhq/kidguard/pkg/intervene"
	"github.com/entrhq/kidguard/pkg/llm"
	"github.com/entrhq/kidguard/pkg/llm/openai"
	"github.com/entrhq/kidguard/pkg/logging"
	"github.com/entrhq/kidguard/pkg/monitor"
	"github.com/entrhq/kidguard/pkg/notify"
	"github.com/entrhq/kidguard/pkg/policy"
	"github.com/entrhq/kidguard/pkg/viewer"
)

// app holds what outlives a configuration reload: loggers, the browser
// connection, and the sample store.
type app struct {
	logger *logging.Logger
	conn   *browser.Connection
	store  *capture.Store

	// detectOpts overrides OS facilities; tests use it.
	detectOpts detect.Options
}

func newLogger(component string) *logging.Logger {
	if verbose {
		return logging.NewWriterLogger(component, os.Stderr, logging.LevelDebug)
	}
	return logging.MustLogger(component)
}

// configureLogging applies the logging section. It must run before the
// first logger is created.
func configureLogging(cfg *config.Config) {
	if cfg.Logging.Dir != "" {
		logging.SetDirectory(cfg.Logging.Dir)
	}
	if level, err := logging.ParseLevel(cfg.Logging.Level); err == nil {
		logging.SetLevel(level)
	}
}

// newApp opens the long-lived resources. A browser that cannot be reached
// only disables the browser-backed capabilities.
func newApp(cfg *config.Config, logger *logging.Logger) *app {
	a := &app{logger: logger}

	if cfg.Detection.CDP.Enabled {
		conn, err := browser.NewConnection(cfg.Detection.CDP.Endpoint, cfg.Detection.CDP.WatchURLPattern, logger.WithComponent("browser"))
		if err == nil {
			err = conn.Initialize()
		}
		if err != nil {
			logger.Warnf("browser connection unavailable: %v", err)
		} else {
			a.conn = conn
		}
	}

	if cfg.Capture.Method != "none" && cfg.Capture.Dir != "" {
		store, err := capture.NewStore(cfg.Capture.Dir)
		if err != nil {
			logger.Warnf("capture store unavailable, frames kept in memory: %v", err)
		} else {
			a.store = store
		}
	}

	return a
}

func (a *app) close() {
	if a.conn != nil {
		if err := a.conn.Shutdown(); err != nil {
			a.logger.Warnf("browser shutdown failed: %v", err)
		}
	}
}

// pages returns the browser page source, or nil when there is none.
func (a *app) pages() browser.PageSource {
	if a.conn == nil {
		return nil
	}
	return a.conn
}

// pipeline builds the detector and dispatcher for cfg.
func (a *app) pipeline(cfg *config.Config) (monitor.Pipeline, error) {
	opts := a.detectOpts
	if opts.Pages == nil {
		opts.Pages = a.pages()
	}
	detector, err := detect.FromConfig(cfg.Detection, opts, a.logger.WithComponent("detect"))
	if err != nil {
		return monitor.Pipeline{}, fmt.Errorf("failed to build detector: %w", err)
	}
	a.logger.Infof("presence strategies: %v", detector.Strategies())

	return monitor.Pipeline{
		Detector: detector,
		Handler:  a.dispatcher(cfg),
		Interval: cfg.CheckInterval(),
	}, nil
}

func (a *app) dispatcher(cfg *config.Config) *dispatch.Dispatcher {
	pol := cfg.Policy()
	target, _ := cfg.RedirectTarget()

	return dispatch.New(dispatch.Options{
		Engine:         a.engine(cfg),
		Capturer:       a.capturer(cfg),
		Viewer:         a.viewer(cfg),
		Executor:       a.executor(cfg),
		Notifier:       a.notifier(cfg),
		Store:          a.store,
		ResponseAction: pol.ResponseAction,
		RedirectTarget: target,
		CaptureAlways:  cfg.Notifications.Enabled && cfg.Notifications.IncludeScreenshot,
		DeleteSamples:  cfg.Privacy.DeleteClips,
		Logger:         a.logger.WithComponent("dispatch"),
	})
}

func (a *app) engine(cfg *config.Config) policy.Engine {
	pol := cfg.Policy()
	var provider llm.Provider
	if pol.Mode == policy.ModeAIVision {
		provider = newProvider(cfg.LLM)
		if !llm.IsAvailable(provider) {
			a.logger.Warnf("vision classifier unavailable; every video gets the %s fallback verdict", pol.FailMode)
		} else {
			a.logger.Infof("vision classifier: %s", provider.GetModel())
		}
	}
	a.logger.Infof("analysis mode: %s, response action: %s", pol.Mode, pol.ResponseAction)
	return policy.New(pol, provider, a.logger.WithComponent("policy"))
}

func newProvider(cfg config.LLMConfig) llm.Provider {
	var opts []openai.ProviderOption
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Model))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, openai.WithTimeout(cfg.Timeout))
	}
	if cfg.MaxTokens > 0 {
		opts = append(opts, openai.WithMaxTokens(cfg.MaxTokens))
	}

	p, err := openai.NewProvider(cfg.APIKey, opts...)
	if err != nil {
		return llm.Unavailable{Reason: err.Error()}
	}
	return p
}

func (a *app) capturer(cfg *config.Config) capture.Capturer {
	switch cfg.Capture.Method {
	case "command":
		c, err := capture.NewCommandCapturer(cfg.Capture.Command, a.store)
		if err != nil {
			a.logger.Warnf("%v", err)
			return capture.Unavailable{Reason: err.Error()}
		}
		return c
	case "browser", "":
		if pages := a.pages(); pages != nil {
			return capture.NewBrowserCapturer(pages, a.store)
		}
		return capture.Unavailable{Reason: "no browser connection"}
	default:
		return capture.Unavailable{Reason: "capture.method is none"}
	}
}

// viewer returns nil when identification is disabled, which turns off
// viewer gating.
func (a *app) viewer(cfg *config.Config) viewer.Identifier {
	if !cfg.Viewer.Enabled {
		return nil
	}
	roster := viewer.NewRoster(cfg.Family, cfg.MaxChildAge())
	if len(cfg.Viewer.Command) > 0 {
		c, err := viewer.NewCommand(cfg.Viewer.Command, roster)
		if err == nil {
			return c
		}
		if cfg.Viewer.DefaultName == "" {
			a.logger.Warnf("%v; analysis is skipped until a viewer can be identified", err)
			return viewer.Unavailable{}
		}
		a.logger.Warnf("%v; using default viewer %s", err, cfg.Viewer.DefaultName)
	}
	return viewer.NewStatic(roster, cfg.Viewer.DefaultName)
}

func (a *app) executor(cfg *config.Config) intervene.Executor {
	switch cfg.Intervention.Method {
	case "keyboard":
		k, err := intervene.NewKeyboardExecutor()
		if err != nil {
			a.logger.Warnf("%v", err)
			return intervene.Unavailable{Reason: err.Error()}
		}
		return k
	case "browser", "":
		if pages := a.pages(); pages != nil {
			return intervene.NewBrowserExecutor(pages)
		}
		return intervene.Unavailable{Reason: "no browser connection"}
	default:
		return intervene.Unavailable{Reason: "intervention.method is none"}
	}
}

func (a *app) notifier(cfg *config.Config) *notify.Gateway {
	n := cfg.Notifications
	logger := a.logger.WithComponent("notify")
	if !n.Enabled {
		return notify.NewGateway(n.BlockOnly, logger)
	}

	var sinks []notify.Sink
	if n.Console {
		sinks = append(sinks, notify.NewConsoleSink(os.Stdout))
	}
	if n.Telegram.Enabled {
		s, err := notify.NewTelegramSink(n.Telegram.BotToken, n.Telegram.ChatID,
			notify.WithTelegramAPIURL(n.Telegram.APIURL),
			notify.WithScreenshot(n.IncludeScreenshot),
		)
		if err != nil {
			logger.Warnf("telegram notifications disabled: %v", err)
		} else {
			sinks = append(sinks, s)
		}
	}
	return notify.NewGateway(n.BlockOnly, logger, sinks...)
}
