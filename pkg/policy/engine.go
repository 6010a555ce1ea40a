package policy

import (
	"context"
	"fmt"
	"strings"

	"github.com/entrhq/kidguard/pkg/llm"
	"github.com/entrhq/kidguard/pkg/logging"
	"github.com/entrhq/kidguard/pkg/types"
)

// Input is what an engine evaluates. Sample may be nil for engines that do
// not require one.
type Input struct {
	Sample   *types.Sample
	Identity *types.VideoIdentity
}

// Engine produces exactly one verdict per call. Evaluate never fails: every
// failure is folded into a fallback verdict.
type Engine interface {
	Evaluate(ctx context.Context, in Input) types.AnalysisResult
	// RequiresSample reports whether a captured frame must be supplied.
	RequiresSample() bool
	Mode() Mode
}

// New returns the engine selected by cfg.Mode.
func New(cfg Config, provider llm.Provider, logger *logging.Logger) Engine {
	if cfg.Mode == ModeKeywordFilter {
		return NewKeywordEngine(cfg)
	}
	return NewAIEngine(cfg, provider, logger)
}

// AIEngine delegates evaluation to a vision classifier.
type AIEngine struct {
	cfg      Config
	provider llm.Provider
	prompt   string
	logger   *logging.Logger
}

// NewAIEngine builds the prompt once and binds it to the provider. A nil
// provider is treated as unavailable.
func NewAIEngine(cfg Config, provider llm.Provider, logger *logging.Logger) *AIEngine {
	if provider == nil {
		provider = llm.Unavailable{Reason: "no provider configured"}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &AIEngine{
		cfg:      cfg,
		provider: provider,
		prompt:   BuildPrompt(cfg),
		logger:   logger,
	}
}

func (e *AIEngine) RequiresSample() bool { return true }
func (e *AIEngine) Mode() Mode           { return ModeAIVision }

// Prompt returns the composed classification instruction.
func (e *AIEngine) Prompt() string { return e.prompt }

// Evaluate submits the sample and the composed prompt to the classifier.
func (e *AIEngine) Evaluate(ctx context.Context, in Input) types.AnalysisResult {
	if in.Sample.Empty() {
		e.logger.Warnf("no frame to classify")
		return e.fallback("no frame to classify")
	}

	text, err := e.provider.CompleteVision(ctx, e.prompt, llm.Image{
		Data:      in.Sample.Data,
		MediaType: in.Sample.MediaType,
	})
	if err != nil {
		e.logger.Warnf("classification failed: %v", err)
		return e.fallback("classification unavailable")
	}

	result, err := ParseResponse(text)
	if err != nil {
		e.logger.Warnf("classification response rejected: %v", err)
		return e.fallback("classification response unparseable")
	}

	e.logger.Infof("verdict: %s (severity %s, confidence %.2f)", result.Recommendation, result.Severity, result.Confidence)
	return result
}

func (e *AIEngine) fallback(cause string) types.AnalysisResult {
	result := Fallback(e.cfg.FailMode, cause)
	e.logger.Debugf("using fallback verdict: recommendation=%s severity=%s confidence=%.0f fail_mode=%s cause=%q",
		result.Recommendation, result.Severity, result.Confidence, e.cfg.FailMode, cause)
	return result
}

// Fallback returns the verdict used when classification cannot complete.
// FailOpen allows with severity none. FailClosed blocks with severity low.
// Confidence is always 0.
func Fallback(mode FailMode, cause string) types.AnalysisResult {
	if mode == FailClosed {
		return types.AnalysisResult{
			Recommendation: types.RecommendBlock,
			Severity:       types.SeverityLow,
			Categories:     []string{"classification_unavailable"},
			Reason:         "Blocked because content could not be classified: " + cause,
			Fallback:       true,
		}
	}
	return types.AnalysisResult{
		Recommendation: types.RecommendAllow,
		Severity:       types.SeverityNone,
		Reason:         "Allowed because content could not be classified: " + cause,
		Fallback:       true,
	}
}

// KeywordEngine matches the video identity against blocklists. It needs no
// network and no captured frame.
type KeywordEngine struct {
	keywords []term
	channels []term
}

// NewKeywordEngine copies the blocklists out of cfg.
func NewKeywordEngine(cfg Config) *KeywordEngine {
	return &KeywordEngine{
		keywords: normalizeTerms(cfg.BlockedKeywords),
		channels: normalizeTerms(cfg.BlockedChannels),
	}
}

func (e *KeywordEngine) RequiresSample() bool { return false }
func (e *KeywordEngine) Mode() Mode           { return ModeKeywordFilter }

// Evaluate checks the title against blocked keywords, then the channel
// against blocked channels. The first case-insensitive substring match
// blocks at medium severity.
func (e *KeywordEngine) Evaluate(_ context.Context, in Input) types.AnalysisResult {
	if in.Identity == nil {
		return allowResult()
	}

	if term, ok := firstMatch(in.Identity.Title, e.keywords); ok {
		return types.AnalysisResult{
			Recommendation: types.RecommendBlock,
			Severity:       types.SeverityMedium,
			Confidence:     1,
			Categories:     []string{"blocked_keyword"},
			Reason:         fmt.Sprintf("Title contains blocked keyword %q", term.original),
			RuleViolations: []string{"keyword:" + term.original},
		}
	}

	if term, ok := firstMatch(in.Identity.Channel, e.channels); ok {
		return types.AnalysisResult{
			Recommendation: types.RecommendBlock,
			Severity:       types.SeverityMedium,
			Confidence:     1,
			Categories:     []string{"blocked_channel"},
			Reason:         fmt.Sprintf("Channel matches blocked channel %q", term.original),
			RuleViolations: []string{"channel:" + term.original},
		}
	}

	return allowResult()
}

func allowResult() types.AnalysisResult {
	return types.AnalysisResult{
		Recommendation: types.RecommendAllow,
		Severity:       types.SeverityNone,
		Confidence:     1,
		Reason:         "No blocked keywords or channels matched",
	}
}

type term struct {
	original string
	folded   string
}

// normalizeTerms drops blank entries, which would otherwise match everything.
func normalizeTerms(in []string) []term {
	out := make([]term, 0, len(in))
	for _, s := range in {
		trimmed := strings.TrimSpace(s)
		if trimmed == "" {
			continue
		}
		out = append(out, term{original: trimmed, folded: strings.ToLower(trimmed)})
	}
	return out
}

func firstMatch(text string, terms []term) (term, bool) {
	if text == "" {
		return term{}, false
	}
	folded := strings.ToLower(text)
	for _, t := range terms {
		if strings.Contains(folded, t.folded) {
			return t, true
		}
	}
	return term{}, false
}
