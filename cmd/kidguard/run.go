package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/entrhq/kidguard/pkg/config"
	"github.com/entrhq/kidguard/pkg/logging"
	"github.com/entrhq/kidguard/pkg/monitor"
	"github.com/spf13/cobra"
)

var noWatch bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start monitoring",
	Long: `Start the monitoring loop. KidGuard polls for YouTube playback every
rules.check_interval seconds and evaluates each new video once.

Edits to the configuration file are picked up between cycles unless
--no-watch is given. Stop with Ctrl+C; a cycle in progress finishes first.`,
	RunE: runCommand,
}

func init() {
	runCmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not reload the configuration file on change")
	rootCmd.AddCommand(runCmd)
}

// loadForRun falls back to the defaults when the file cannot be used.
func loadForRun(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Default(), err
	}
	if err := cfg.Validate(); err != nil {
		return config.Default(), fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg, loadErr := loadForRun(configPath)
	configureLogging(cfg)

	logger := newLogger("kidguard")
	defer logger.Close()

	if loadErr != nil {
		logger.Errorf("%v; using built-in defaults", loadErr)
	} else if !config.Exists(configPath) {
		logger.Infof("no configuration at %s; using built-in defaults", configPath)
	}
	for _, w := range cfg.Warnings() {
		logger.Warnf("%s", w)
	}
	if path := logger.LogPath(); path != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "KidGuard %s monitoring; logging to %s\n", Version, path)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(cfg, logger)
	defer a.close()

	pipeline, err := a.pipeline(cfg)
	if err != nil {
		return err
	}

	opts := []monitor.Option{monitor.WithLogger(logger.WithComponent("monitor"))}
	if !noWatch {
		reload := make(chan monitor.Pipeline, 1)
		go watchConfig(ctx, a, reload, logger.WithComponent("config"))
		opts = append(opts, monitor.WithReload(reload))
	}

	m, err := monitor.New(pipeline, opts...)
	if err != nil {
		return err
	}
	return m.Run(ctx)
}

// watchConfig rebuilds the pipeline on every valid edit. Only the latest
// pending pipeline is kept.
func watchConfig(ctx context.Context, a *app, reload chan monitor.Pipeline, logger *logging.Logger) {
	err := config.Watch(ctx, configPath, func(cfg *config.Config, err error) {
		if err != nil {
			logger.Warnf("configuration change ignored: %v", err)
			return
		}
		if cfg.Detection.CDP.Enabled && a.conn == nil {
			logger.Warnf("enabling the browser connection requires a restart")
		}
		p, err := a.pipeline(cfg)
		if err != nil {
			logger.Warnf("configuration change ignored: %v", err)
			return
		}
		select {
		case <-reload:
		default:
		}
		reload <- p
	})
	if err != nil {
		logger.Warnf("configuration watch stopped: %v", err)
	}
}
