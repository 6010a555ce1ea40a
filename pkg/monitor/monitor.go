// Package monitor runs KidGuard's single control loop: poll presence,
// debounce video changes, and hand each change to the dispatcher.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/kidguard/pkg/dispatch"
	"github.com/entrhq/kidguard/pkg/logging"
	"github.com/entrhq/kidguard/pkg/tracker"
	"github.com/entrhq/kidguard/pkg/types"
)

const (
	// DefaultInterval is the pause between presence polls.
	DefaultInterval = 30 * time.Second
	// DefaultBackoff is the pause after a failed iteration.
	DefaultBackoff = 5 * time.Second
)

// Detector reports the current presence signal.
type Detector interface {
	Detect(ctx context.Context) types.PresenceSignal
}

// Handler runs the evaluation cycle for a change event.
type Handler interface {
	Handle(ctx context.Context, ev types.ChangeEvent) (dispatch.Outcome, error)
}

// Pipeline is the part of the loop that a configuration reload replaces.
type Pipeline struct {
	Detector Detector
	Handler  Handler
	Interval time.Duration
}

// Monitor owns the loop state. It is not safe to call Run twice.
type Monitor struct {
	pipeline Pipeline
	tracker  *tracker.Tracker
	backoff  time.Duration
	reload   <-chan Pipeline
	logger   *logging.Logger

	iterations int
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithBackoff sets the pause after an iteration fails.
func WithBackoff(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.backoff = d
		}
	}
}

// WithReload supplies replacement pipelines. A received pipeline takes
// effect at the start of the next iteration; the tracker is kept, so the
// current video is not re-evaluated.
func WithReload(ch <-chan Pipeline) Option {
	return func(m *Monitor) {
		m.reload = ch
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a monitor.
func New(p Pipeline, opts ...Option) (*Monitor, error) {
	if p.Detector == nil {
		return nil, fmt.Errorf("detector is required")
	}
	if p.Handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	if p.Interval <= 0 {
		p.Interval = DefaultInterval
	}
	m := &Monitor{
		pipeline: p,
		tracker:  tracker.New(),
		backoff:  DefaultBackoff,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Run polls until ctx is cancelled. A cycle that has started when ctx is
// cancelled runs to completion before Run returns.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Infof("monitoring started (interval %s)", m.pipeline.Interval)
	defer m.logger.Infof("monitoring stopped after %d polls", m.iterations)

	for {
		if ctx.Err() != nil {
			return nil
		}
		m.applyReload()

		wait := m.pipeline.Interval
		if err := m.Step(ctx); err != nil {
			m.logger.Errorf("monitor iteration failed: %v", err)
			wait = m.backoff
		}

		if !sleep(ctx, wait) {
			return nil
		}
	}
}

// Step runs a single poll. Panics are recovered and returned as errors.
func (m *Monitor) Step(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	m.iterations++

	signal := m.pipeline.Detector.Detect(ctx)
	ev := m.tracker.Observe(signal)
	if ev == nil {
		return nil
	}

	switch ev.Kind {
	case types.ChangeSessionEnded:
		title := ""
		if ev.Identity != nil {
			title = ev.Identity.Title
		}
		m.logger.Infof("viewing session ended (last video %q)", title)
		return nil
	case types.ChangeVideo:
		if ev.Identity == nil {
			m.logger.Infof("viewing session detected via %s, no video identity", ev.Source)
			return nil
		}
		m.logger.Infof("new video via %s: %q", ev.Source, ev.Identity.Title)
	}

	out, err := m.pipeline.Handler.Handle(ctx, *ev)
	if errors.Is(err, dispatch.ErrCycleInFlight) {
		m.logger.Debugf("change dropped: %v", err)
		return nil
	}
	if err != nil {
		return err
	}
	if !out.Completed() {
		m.logger.Debugf("cycle ended early: %s", out.Skipped)
	}
	return nil
}

// Tracker exposes the change tracker.
func (m *Monitor) Tracker() *tracker.Tracker {
	return m.tracker
}

func (m *Monitor) applyReload() {
	if m.reload == nil {
		return
	}
	select {
	case p, ok := <-m.reload:
		if !ok {
			m.reload = nil
			return
		}
		if p.Detector == nil || p.Handler == nil {
			m.logger.Warnf("ignoring incomplete reloaded pipeline")
			return
		}
		if p.Interval <= 0 {
			p.Interval = m.pipeline.Interval
		}
		m.pipeline = p
		m.logger.Infof("configuration reloaded (interval %s)", p.Interval)
	default:
	}
}

// sleep waits for d and reports false if ctx was cancelled first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
