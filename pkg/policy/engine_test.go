package policy

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/entrhq/kidguard/pkg/llm"
	"github.com/entrhq/kidguard/pkg/logging"
	"github.com/entrhq/kidguard/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type fakeProvider struct {
	response string
	err      error
	calls    int
	prompt   string
	image    llm.Image
}

func (f *fakeProvider) CompleteVision(_ context.Context, prompt string, image llm.Image) (string, error) {
	f.calls++
	f.prompt = prompt
	f.image = image
	return f.response, f.err
}

func (f *fakeProvider) GetModel() string { return "fake" }

func frame() *types.Sample {
	return &types.Sample{Data: []byte("jpeg"), MediaType: "image/jpeg"}
}

func TestKeywordEngine(t *testing.T) {
	cfg := Config{
		Mode:            ModeKeywordFilter,
		BlockedKeywords: []string{"scary", "toy", "  "},
		BlockedChannels: []string{"Prank Kings"},
	}
	engine := NewKeywordEngine(cfg)

	tests := []struct {
		name     string
		identity *types.VideoIdentity
		wantRec  types.Recommendation
		wantSev  types.Severity
		reason   string
	}{
		{"title match", &types.VideoIdentity{Title: "Scary Clown Compilation"}, types.RecommendBlock, types.SeverityMedium, `"scary"`},
		{"substring not whole word", &types.VideoIdentity{Title: "My Toy Review"}, types.RecommendBlock, types.SeverityMedium, `"toy"`},
		{"inside a word", &types.VideoIdentity{Title: "Toyota commercials"}, types.RecommendBlock, types.SeverityMedium, `"toy"`},
		{"channel match", &types.VideoIdentity{Title: "Fun day", Channel: "the prank kings official"}, types.RecommendBlock, types.SeverityMedium, `"Prank Kings"`},
		{"no match", &types.VideoIdentity{Title: "Counting Numbers Song", Channel: "Cocomelon"}, types.RecommendAllow, types.SeverityNone, ""},
		{"no identity", nil, types.RecommendAllow, types.SeverityNone, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.Evaluate(context.Background(), Input{Identity: tt.identity})
			assert.Equal(t, tt.wantRec, got.Recommendation)
			assert.Equal(t, tt.wantSev, got.Severity)
			if tt.reason != "" {
				assert.Contains(t, got.Reason, tt.reason)
			}
			assert.False(t, got.Fallback)
		})
	}
}

func TestKeywordEngineTitleBeforeChannel(t *testing.T) {
	engine := NewKeywordEngine(Config{
		BlockedKeywords: []string{"zombie"},
		BlockedChannels: []string{"horror"},
	})

	got := engine.Evaluate(context.Background(), Input{Identity: &types.VideoIdentity{Title: "Zombie dance", Channel: "Horror Hub"}})
	assert.Equal(t, []string{"blocked_keyword"}, got.Categories)
}

func TestKeywordEngineDoesNotRequireSample(t *testing.T) {
	engine := New(Config{Mode: ModeKeywordFilter}, nil, nil)
	assert.False(t, engine.RequiresSample())
	assert.Equal(t, ModeKeywordFilter, engine.Mode())
}

func TestAIEngineEvaluate(t *testing.T) {
	provider := &fakeProvider{response: `Sure. {"appropriate": false, "confidence": 0.9, "categories_detected": ["horror"],
		"severity": "high", "reason": "Creepy clown", "recommendation": "block", "custom_rule_violations": ["visual"]} done`}
	engine := NewAIEngine(Config{Mode: ModeAIVision, MaxChildAge: 8}, provider, nil)

	got := engine.Evaluate(context.Background(), Input{Sample: frame()})

	assert.Equal(t, types.RecommendBlock, got.Recommendation)
	assert.Equal(t, types.SeverityHigh, got.Severity)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)
	assert.Equal(t, []string{"horror"}, got.Categories)
	assert.Equal(t, []string{"visual"}, got.RuleViolations)
	assert.Equal(t, 1, provider.calls)
	assert.Contains(t, provider.prompt, "children under 8")
	assert.Equal(t, "image/jpeg", provider.image.MediaType)
}

func TestAIEngineTimeoutFallsBackWithDebugLog(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWriterLogger("policy", &buf, logging.LevelDebug)
	provider := &fakeProvider{err: context.DeadlineExceeded}
	engine := NewAIEngine(Config{Mode: ModeAIVision}, provider, logger)

	got := engine.Evaluate(context.Background(), Input{Sample: frame()})

	assert.Equal(t, types.RecommendAllow, got.Recommendation)
	assert.Equal(t, types.SeverityNone, got.Severity)
	assert.Zero(t, got.Confidence)
	assert.True(t, got.Fallback)
	assert.Contains(t, buf.String(), "[DEBUG] using fallback verdict")
	assert.Contains(t, buf.String(), "[WARN] classification failed")
}

func TestAIEngineFailClosed(t *testing.T) {
	engine := NewAIEngine(Config{Mode: ModeAIVision, FailMode: FailClosed}, llm.Unavailable{}, nil)

	got := engine.Evaluate(context.Background(), Input{Sample: frame()})

	assert.Equal(t, types.RecommendBlock, got.Recommendation)
	assert.Equal(t, types.SeverityLow, got.Severity)
	assert.Zero(t, got.Confidence)
	assert.True(t, got.Fallback)
}

func TestAIEngineWithoutSampleSkipsProvider(t *testing.T) {
	provider := &fakeProvider{response: `{"recommendation":"block","severity":"high"}`}
	engine := NewAIEngine(Config{}, provider, nil)

	got := engine.Evaluate(context.Background(), Input{})
	assert.Equal(t, types.RecommendAllow, got.Recommendation)
	assert.Zero(t, provider.calls)
}

func TestAIEngineUnparseableFallsBack(t *testing.T) {
	responses := []string{
		"I cannot help with that.",
		`{"recommendation": "block", "severity": "extreme"}`,
		`{"recommendation": "maybe", "severity": "low"}`,
		`{"recommendation": "block"`,
	}
	for _, resp := range responses {
		engine := NewAIEngine(Config{}, &fakeProvider{response: resp}, nil)
		got := engine.Evaluate(context.Background(), Input{Sample: frame()})
		assert.Equal(t, types.RecommendAllow, got.Recommendation, resp)
		assert.Zero(t, got.Confidence, resp)
	}
}

func TestAIEngineFallbackIsDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		title := rapid.String().Draw(t, "title")
		data := rapid.SliceOf(rapid.Byte()).Draw(t, "frame")
		age := rapid.IntRange(-5, 30).Draw(t, "age")
		keywords := rapid.SliceOf(rapid.String()).Draw(t, "keywords")

		engine := NewAIEngine(Config{
			MaxChildAge: age,
			Rules:       []Rule{KeywordRule{Enabled: true, BlockedKeywords: keywords}},
		}, &fakeProvider{err: errors.New("connection refused")}, nil)

		got := engine.Evaluate(context.Background(), Input{
			Sample:   &types.Sample{Data: data},
			Identity: &types.VideoIdentity{Title: title},
		})
		if got.Recommendation != types.RecommendAllow || got.Confidence != 0 {
			t.Fatalf("fallback = %+v, want allow with confidence 0", got)
		}
	})
}

func TestNewDefaultsToAIVision(t *testing.T) {
	engine := New(Config{}, nil, nil)
	require.IsType(t, &AIEngine{}, engine)
	assert.True(t, engine.RequiresSample())

	got := engine.Evaluate(context.Background(), Input{Sample: frame()})
	assert.True(t, got.Fallback)
	assert.True(t, strings.HasPrefix(got.Reason, "Allowed"))
}
