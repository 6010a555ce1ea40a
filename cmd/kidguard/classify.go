package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/entrhq/kidguard/pkg/config"
	"github.com/entrhq/kidguard/pkg/dispatch"
	"github.com/entrhq/kidguard/pkg/logging"
	"github.com/entrhq/kidguard/pkg/policy"
	"github.com/entrhq/kidguard/pkg/types"
	"github.com/spf13/cobra"
)

var (
	classifyImage   string
	classifyTitle   string
	classifyChannel string
	showPrompt      bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Evaluate one frame or title with the configured policy",
	Long: `Run a single evaluation without monitoring. In ai_vision mode an image
file is required; in keyword_filter mode a title and/or channel is.

  kidguard classify --image frame.jpg
  kidguard classify --title "Scary Clown Compilation"`,
	RunE: classifyCommand,
}

func init() {
	classifyCmd.Flags().StringVarP(&classifyImage, "image", "i", "", "Image file to classify")
	classifyCmd.Flags().StringVarP(&classifyTitle, "title", "t", "", "Video title")
	classifyCmd.Flags().StringVar(&classifyChannel, "channel", "", "Video channel")
	classifyCmd.Flags().BoolVar(&showPrompt, "show-prompt", false, "Print the composed classification prompt")
	rootCmd.AddCommand(classifyCmd)
}

type classifyOutput struct {
	Result       types.AnalysisResult   `json:"result"`
	Intervention types.InterventionKind `json:"intervention"`
}

func classifyCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	configureLogging(cfg)

	var logger *logging.Logger
	if verbose {
		logger = newLogger("classify")
	} else {
		logger = logging.NewWriterLogger("classify", cmd.ErrOrStderr(), logging.LevelWarn)
	}

	a := &app{logger: logger}
	engine := a.engine(cfg)

	if showPrompt {
		if ai, ok := engine.(*policy.AIEngine); ok {
			fmt.Fprintln(cmd.OutOrStdout(), ai.Prompt())
			fmt.Fprintln(cmd.OutOrStdout())
		}
	}

	in := policy.Input{}
	if classifyTitle != "" || classifyChannel != "" {
		in.Identity = &types.VideoIdentity{Title: classifyTitle, Channel: classifyChannel}
	}
	if classifyImage != "" {
		sample, err := readSample(classifyImage)
		if err != nil {
			return err
		}
		in.Sample = sample
	}

	if engine.RequiresSample() && in.Sample == nil {
		return fmt.Errorf("%s mode requires --image", engine.Mode())
	}
	if !engine.RequiresSample() && in.Identity == nil {
		return fmt.Errorf("%s mode requires --title or --channel", engine.Mode())
	}

	result := engine.Evaluate(cmd.Context(), in)
	target, _ := cfg.RedirectTarget()
	intervention := dispatch.Map(result.Recommendation, cfg.Policy().ResponseAction, target)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(classifyOutput{Result: result, Intervention: intervention.Kind})
}

func readSample(path string) (*types.Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	mediaType := "image/jpeg"
	if strings.EqualFold(filepath.Ext(path), ".png") {
		mediaType = "image/png"
	}
	return &types.Sample{Data: data, MediaType: mediaType, Path: path, CapturedAt: time.Now()}, nil
}
