package main

import (
	"github.com/entrhq/kidguard/pkg/config"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "kidguard",
	Short: "KidGuard - a video guardian for children",
	Long: `KidGuard watches for YouTube playback on this machine. Each time a new
video starts it classifies the content against the family's rules, either
with a vision model or a local keyword filter, and can skip, pause, or
redirect the video and alert a parent.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log to stderr at debug level")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
