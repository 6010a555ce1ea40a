package dispatch

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/entrhq/kidguard/pkg/capture"
	"github.com/entrhq/kidguard/pkg/llm"
	"github.com/entrhq/kidguard/pkg/logging"
	"github.com/entrhq/kidguard/pkg/notify"
	"github.com/entrhq/kidguard/pkg/policy"
	"github.com/entrhq/kidguard/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type fakeCapturer struct {
	mu      sync.Mutex
	calls   int
	err     error
	sample  *types.Sample
	entered chan struct{}
	release chan struct{}
}

func (f *fakeCapturer) Capture(ctx context.Context) (*types.Sample, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.entered != nil {
		close(f.entered)
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.sample != nil {
		return f.sample, nil
	}
	return &types.Sample{Data: []byte("jpeg"), MediaType: "image/jpeg"}, nil
}

type fakeExecutor struct {
	executed []types.Intervention
	err      error
}

func (f *fakeExecutor) Execute(_ context.Context, in types.Intervention) error {
	f.executed = append(f.executed, in)
	return f.err
}

type fakeNotifier struct {
	alerts []notify.Alert
}

func (f *fakeNotifier) Notify(_ context.Context, a notify.Alert) {
	f.alerts = append(f.alerts, a)
}

type fakeViewer struct {
	viewer *types.Viewer
	err    error
}

func (f fakeViewer) Identify(context.Context) (*types.Viewer, error) {
	return f.viewer, f.err
}

type timeoutProvider struct{}

func (timeoutProvider) CompleteVision(context.Context, string, llm.Image) (string, error) {
	return "", context.DeadlineExceeded
}

func (timeoutProvider) GetModel() string { return "fake" }

func changed(title string) types.ChangeEvent {
	return types.ChangeEvent{
		Kind:     types.ChangeVideo,
		Source:   types.SourceWindowTitle,
		Identity: &types.VideoIdentity{Title: title},
	}
}

func keywordPolicy() policy.Config {
	return policy.Config{
		Mode:            policy.ModeKeywordFilter,
		BlockedKeywords: []string{"scary"},
		ResponseAction:  types.InterventionSkip,
	}
}

func TestScenarioKeywordBlock(t *testing.T) {
	capturer := &fakeCapturer{}
	exec := &fakeExecutor{}
	notifier := &fakeNotifier{}
	cfg := keywordPolicy()

	d := New(Options{
		Engine:         policy.New(cfg, nil, nil),
		Capturer:       capturer,
		Executor:       exec,
		Notifier:       notifier,
		ResponseAction: cfg.ResponseAction,
	})

	out, err := d.Handle(context.Background(), changed("Scary Clown Compilation"))
	require.NoError(t, err)

	assert.True(t, out.Completed())
	assert.Equal(t, types.RecommendBlock, out.Result.Recommendation)
	assert.Equal(t, types.SeverityMedium, out.Result.Severity)
	assert.Equal(t, types.Intervention{Kind: types.InterventionSkip}, out.Intervention)
	assert.Equal(t, []types.Intervention{{Kind: types.InterventionSkip}}, exec.executed)
	assert.Zero(t, capturer.calls, "keyword mode needs no frame")

	require.Len(t, notifier.alerts, 1)
	assert.Contains(t, notify.BuildMessage(notifier.alerts[0]), "Action taken: Skip")
	assert.Equal(t, StateIdle, d.State())
	assert.False(t, d.InFlight())
}

func TestScenarioKeywordAllow(t *testing.T) {
	exec := &fakeExecutor{}
	notifier := &fakeNotifier{}
	cfg := keywordPolicy()

	d := New(Options{
		Engine:         policy.New(cfg, nil, nil),
		Executor:       exec,
		Notifier:       notifier,
		ResponseAction: cfg.ResponseAction,
	})

	out, err := d.Handle(context.Background(), changed("Counting Numbers Song"))
	require.NoError(t, err)

	assert.Equal(t, types.RecommendAllow, out.Result.Recommendation)
	assert.Equal(t, types.NotifyOnly(), out.Intervention)
	assert.Empty(t, exec.executed, "no active-action call")
	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, types.InterventionNotifyOnly, notifier.alerts[0].Intervention.Kind)
}

func TestScenarioClassifierTimeout(t *testing.T) {
	var logs bytes.Buffer
	logger := logging.NewWriterLogger("dispatch", &logs, logging.LevelDebug)
	exec := &fakeExecutor{}
	cfg := policy.Config{Mode: policy.ModeAIVision, MaxChildAge: 12, ResponseAction: types.InterventionPause}

	d := New(Options{
		Engine:         policy.New(cfg, timeoutProvider{}, logger),
		Capturer:       &fakeCapturer{},
		Executor:       exec,
		ResponseAction: cfg.ResponseAction,
		Logger:         logger,
	})

	out, err := d.Handle(context.Background(), changed("Anything"))
	require.NoError(t, err)

	assert.Equal(t, types.RecommendAllow, out.Result.Recommendation)
	assert.Zero(t, out.Result.Confidence)
	assert.True(t, out.Result.Fallback)
	assert.Empty(t, exec.executed)
	assert.Contains(t, logs.String(), "[DEBUG] using fallback verdict")
}

func TestCaptureFailureAbortsCycle(t *testing.T) {
	var logs bytes.Buffer
	notifier := &fakeNotifier{}
	d := New(Options{
		Engine:   policy.New(policy.Config{Mode: policy.ModeAIVision}, timeoutProvider{}, nil),
		Capturer: &fakeCapturer{err: errors.New("screen locked")},
		Notifier: notifier,
		Logger:   logging.NewWriterLogger("dispatch", &logs, logging.LevelDebug),
	})

	out, err := d.Handle(context.Background(), changed("Video"))
	require.NoError(t, err)
	assert.False(t, out.Completed())
	assert.Equal(t, "capture failed", out.Skipped)
	assert.Empty(t, notifier.alerts)
	assert.Contains(t, logs.String(), "[WARN] capture failed")
	assert.Equal(t, StateIdle, d.State())
}

func TestInterventionFailureStillNotifies(t *testing.T) {
	var logs bytes.Buffer
	notifier := &fakeNotifier{}
	cfg := keywordPolicy()
	d := New(Options{
		Engine:         policy.New(cfg, nil, nil),
		Executor:       &fakeExecutor{err: errors.New("no next button")},
		Notifier:       notifier,
		ResponseAction: cfg.ResponseAction,
		Logger:         logging.NewWriterLogger("dispatch", &logs, logging.LevelDebug),
	})

	out, err := d.Handle(context.Background(), changed("scary stuff"))
	require.NoError(t, err)
	assert.Error(t, out.InterventionErr)
	assert.Len(t, notifier.alerts, 1)
	assert.Contains(t, logs.String(), "[ERROR] intervention skip failed: no next button")
}

func TestViewerGating(t *testing.T) {
	cfg := keywordPolicy()
	tests := []struct {
		name    string
		viewer  fakeViewer
		skipped string
	}{
		{"child", fakeViewer{viewer: &types.Viewer{Name: "Mia", IsChild: true}}, ""},
		{"adult", fakeViewer{viewer: &types.Viewer{Name: "Dad"}}, "viewer is not a child"},
		{"nobody", fakeViewer{}, "no viewer"},
		{"error", fakeViewer{err: errors.New("camera busy")}, "viewer identification failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{}
			d := New(Options{
				Engine:         policy.New(cfg, nil, nil),
				Viewer:         tt.viewer,
				Executor:       exec,
				ResponseAction: cfg.ResponseAction,
			})

			out, err := d.Handle(context.Background(), changed("scary"))
			require.NoError(t, err)
			assert.Equal(t, tt.skipped, out.Skipped)
			if tt.skipped == "" {
				assert.Equal(t, "Mia", out.Viewer.Name)
				assert.Len(t, exec.executed, 1)
			} else {
				assert.Empty(t, exec.executed)
			}
		})
	}
}

func TestSecondChangeDroppedWhileInFlight(t *testing.T) {
	capturer := &fakeCapturer{entered: make(chan struct{}), release: make(chan struct{})}
	notifier := &fakeNotifier{}
	d := New(Options{
		Engine:   policy.New(policy.Config{Mode: policy.ModeAIVision}, timeoutProvider{}, nil),
		Capturer: capturer,
		Notifier: notifier,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := d.Handle(context.Background(), changed("first"))
		assert.NoError(t, err)
	}()

	select {
	case <-capturer.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first cycle never started capturing")
	}
	assert.True(t, d.InFlight())
	assert.Equal(t, StateCapturing, d.State())

	_, err := d.Handle(context.Background(), changed("second"))
	assert.ErrorIs(t, err, ErrCycleInFlight)

	close(capturer.release)
	<-done

	assert.Equal(t, 1, capturer.calls)
	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, "first", notifier.alerts[0].Identity.Title)
	assert.False(t, d.InFlight())
}

func TestCycleSurvivesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	notifier := &fakeNotifier{}
	cfg := keywordPolicy()
	d := New(Options{
		Engine:         policy.New(cfg, nil, nil),
		Executor:       &fakeExecutor{},
		Notifier:       notifier,
		ResponseAction: cfg.ResponseAction,
	})

	out, err := d.Handle(ctx, changed("scary"))
	require.NoError(t, err)
	assert.True(t, out.Completed())
	assert.Len(t, notifier.alerts, 1)
}

func TestSessionEndedIgnored(t *testing.T) {
	d := New(Options{Engine: policy.New(keywordPolicy(), nil, nil)})
	out, err := d.Handle(context.Background(), types.ChangeEvent{Kind: types.ChangeSessionEnded})
	require.NoError(t, err)
	assert.False(t, out.Completed())
}

func TestSamplesDeletedAfterCycle(t *testing.T) {
	store, err := capture.NewStore(t.TempDir())
	require.NoError(t, err)
	sample, err := store.Keep([]byte("jpeg"), "image/jpeg", time.Now())
	require.NoError(t, err)

	d := New(Options{
		Engine:        policy.New(policy.Config{Mode: policy.ModeAIVision}, timeoutProvider{}, nil),
		Capturer:      &fakeCapturer{sample: sample},
		Store:         store,
		DeleteSamples: true,
	})

	_, err = d.Handle(context.Background(), changed("video"))
	require.NoError(t, err)
	assert.NoFileExists(t, sample.Path)
}

func TestCaptureAlwaysAttachesFrame(t *testing.T) {
	notifier := &fakeNotifier{}
	cfg := keywordPolicy()
	d := New(Options{
		Engine:         policy.New(cfg, nil, nil),
		Capturer:       &fakeCapturer{},
		Executor:       &fakeExecutor{},
		Notifier:       notifier,
		ResponseAction: cfg.ResponseAction,
		CaptureAlways:  true,
	})

	_, err := d.Handle(context.Background(), changed("scary"))
	require.NoError(t, err)
	require.Len(t, notifier.alerts, 1)
	assert.False(t, notifier.alerts[0].Sample.Empty())
}

func TestMap(t *testing.T) {
	target := types.ChannelRef{ID: "UCsafe"}
	assert.Equal(t, types.Intervention{Kind: types.InterventionRedirect, Target: target},
		Map(types.RecommendBlock, types.InterventionRedirect, target))
	assert.Equal(t, types.Intervention{Kind: types.InterventionPause},
		Map(types.RecommendBlock, types.InterventionPause, target))
	assert.Equal(t, types.NotifyOnly(), Map(types.RecommendBlock, types.InterventionNotifyOnly, target))
	assert.Equal(t, types.NotifyOnly(), Map(types.RecommendWarn, types.InterventionSkip, target))
}

func TestMapProperty(t *testing.T) {
	recs := []types.Recommendation{types.RecommendAllow, types.RecommendWarn, types.RecommendBlock}
	actions := []types.InterventionKind{
		types.InterventionNotifyOnly, types.InterventionSkip,
		types.InterventionRedirect, types.InterventionPause,
	}

	rapid.Check(t, func(rt *rapid.T) {
		rec := rapid.SampledFrom(recs).Draw(rt, "recommendation")
		action := rapid.SampledFrom(actions).Draw(rt, "action")
		target := types.ChannelRef{ID: rapid.StringMatching(`[A-Za-z0-9_-]{0,24}`).Draw(rt, "channel")}

		in := Map(rec, action, target)

		if rec != types.RecommendBlock && in.Kind.IsActive() {
			rt.Fatalf("%s produced active intervention %s", rec, in.Kind)
		}
		if rec == types.RecommendBlock && in.Kind != action {
			rt.Fatalf("block with %s produced %s", action, in.Kind)
		}
		if in.Kind != types.InterventionRedirect && in.Target != (types.ChannelRef{}) {
			rt.Fatalf("%s carries a redirect target", in.Kind)
		}
	})
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "notifying", StateNotifying.String())
	assert.Equal(t, "unknown", State(42).String())
}
