// Package dispatch runs one evaluation cycle per video change: identify the
// viewer, capture a frame, classify, intervene, and notify.
package dispatch

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/entrhq/kidguard/pkg/capture"
	"github.com/entrhq/kidguard/pkg/intervene"
	"github.com/entrhq/kidguard/pkg/logging"
	"github.com/entrhq/kidguard/pkg/notify"
	"github.com/entrhq/kidguard/pkg/policy"
	"github.com/entrhq/kidguard/pkg/types"
	"github.com/entrhq/kidguard/pkg/viewer"
)

// ErrCycleInFlight is returned when a change arrives while a cycle runs.
// The change is dropped, not queued.
var ErrCycleInFlight = errors.New("evaluation cycle already in flight")

// State is the dispatcher's position in the cycle.
type State int32

const (
	StateIdle State = iota
	StateCapturing
	StateDeciding
	StateActing
	StateNotifying
)

var stateNames = [...]string{"idle", "capturing", "deciding", "acting", "notifying"}

func (s State) String() string {
	if s < StateIdle || s > StateNotifying {
		return "unknown"
	}
	return stateNames[s]
}

// Notifier receives the outcome of every completed cycle.
type Notifier interface {
	Notify(ctx context.Context, alert notify.Alert)
}

// Map derives the intervention for a verdict. Only block produces an active
// intervention, and only when the configured action is active.
func Map(rec types.Recommendation, action types.InterventionKind, target types.ChannelRef) types.Intervention {
	if rec != types.RecommendBlock || !action.IsActive() {
		return types.NotifyOnly()
	}
	in := types.Intervention{Kind: action}
	if action == types.InterventionRedirect {
		in.Target = target
	}
	return in
}

// Options wires the dispatcher's capabilities. Viewer may be nil, which
// disables viewer gating.
type Options struct {
	Engine   policy.Engine
	Capturer capture.Capturer
	Viewer   viewer.Identifier
	Executor intervene.Executor
	Notifier Notifier
	Store    *capture.Store

	ResponseAction types.InterventionKind
	RedirectTarget types.ChannelRef

	// CaptureAlways captures a frame even when the engine does not need one,
	// so it can be attached to notifications.
	CaptureAlways bool
	// DeleteSamples removes captured frames when the cycle ends.
	DeleteSamples bool

	Logger *logging.Logger
}

// Outcome describes how a cycle ended.
type Outcome struct {
	Identity     *types.VideoIdentity
	Viewer       types.Viewer
	Result       types.AnalysisResult
	Intervention types.Intervention
	// InterventionErr is set when the intervention was attempted and failed.
	InterventionErr error
	// Skipped explains why the cycle ended before classification.
	Skipped string
}

// Completed reports whether the cycle reached the notification stage.
func (o Outcome) Completed() bool {
	return o.Skipped == ""
}

// Dispatcher is the action state machine.
type Dispatcher struct {
	opts     Options
	inFlight atomic.Bool
	state    atomic.Int32
	logger   *logging.Logger
}

// New creates a dispatcher. Missing capabilities are replaced by their
// unavailable variants.
func New(opts Options) *Dispatcher {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Capturer == nil {
		opts.Capturer = capture.Unavailable{Reason: "no capturer configured"}
	}
	if opts.Executor == nil {
		opts.Executor = intervene.Unavailable{Reason: "no executor configured"}
	}
	if opts.ResponseAction == "" {
		opts.ResponseAction = types.InterventionNotifyOnly
	}
	return &Dispatcher{opts: opts, logger: opts.Logger}
}

// State returns the current state.
func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

// InFlight reports whether a cycle is running.
func (d *Dispatcher) InFlight() bool {
	return d.inFlight.Load()
}

func (d *Dispatcher) enter(s State) {
	d.state.Store(int32(s))
}

// Handle runs a full cycle for a change event. Events other than a video
// change are ignored. The cycle is not interrupted by ctx cancellation once
// it has started.
func (d *Dispatcher) Handle(ctx context.Context, ev types.ChangeEvent) (Outcome, error) {
	if ev.Kind != types.ChangeVideo || ev.Identity == nil {
		return Outcome{Skipped: "not a video change"}, nil
	}
	if !d.inFlight.CompareAndSwap(false, true) {
		d.logger.Debugf("dropping change to %q: %v", ev.Identity.Title, ErrCycleInFlight)
		return Outcome{}, ErrCycleInFlight
	}
	defer func() {
		d.enter(StateIdle)
		d.inFlight.Store(false)
	}()

	return d.cycle(context.WithoutCancel(ctx), ev), nil
}

func (d *Dispatcher) cycle(ctx context.Context, ev types.ChangeEvent) Outcome {
	out := Outcome{Identity: ev.Identity, Viewer: types.UnknownViewer()}

	if d.opts.Viewer != nil {
		v, err := d.opts.Viewer.Identify(ctx)
		switch {
		case err != nil:
			d.logger.Warnf("viewer identification failed: %v", err)
			out.Skipped = "viewer identification failed"
			return out
		case v == nil:
			d.logger.Debugf("no viewer identified, skipping %q", ev.Identity.Title)
			out.Skipped = "no viewer"
			return out
		case !v.IsChild:
			d.logger.Infof("viewer %s is not a child, skipping %q", v.Name, ev.Identity.Title)
			out.Viewer = *v
			out.Skipped = "viewer is not a child"
			return out
		}
		out.Viewer = *v
	}

	d.enter(StateCapturing)
	var sample *types.Sample
	if d.opts.Engine.RequiresSample() || d.opts.CaptureAlways {
		s, err := d.opts.Capturer.Capture(ctx)
		if err != nil {
			d.logger.Warnf("capture failed for %q: %v", ev.Identity.Title, err)
			if d.opts.Engine.RequiresSample() {
				out.Skipped = "capture failed"
				return out
			}
		} else {
			sample = s
		}
	}
	if sample != nil && d.opts.DeleteSamples {
		defer func() {
			if err := d.opts.Store.Discard(sample); err != nil {
				d.logger.Warnf("%v", err)
			}
		}()
	}

	d.enter(StateDeciding)
	d.logger.Infof("analyzing %q (%s)", ev.Identity.Title, ev.Source)
	out.Result = d.opts.Engine.Evaluate(ctx, policy.Input{Sample: sample, Identity: ev.Identity})
	d.logger.Infof("verdict for %q: %s (severity %s, confidence %.2f)",
		ev.Identity.Title, out.Result.Recommendation, out.Result.Severity, out.Result.Confidence)

	d.enter(StateActing)
	out.Intervention = Map(out.Result.Recommendation, d.opts.ResponseAction, d.opts.RedirectTarget)
	if out.Intervention.Kind.IsActive() {
		if err := d.opts.Executor.Execute(ctx, out.Intervention); err != nil {
			out.InterventionErr = err
			d.logger.Errorf("intervention %s failed: %v", out.Intervention, err)
		} else {
			d.logger.Infof("intervention %s applied", out.Intervention)
		}
	}

	d.enter(StateNotifying)
	if d.opts.Notifier != nil {
		d.opts.Notifier.Notify(ctx, notify.Alert{
			Viewer:       out.Viewer,
			Identity:     ev.Identity,
			Result:       out.Result,
			Intervention: out.Intervention,
			Sample:       sample,
		})
	}
	return out
}
