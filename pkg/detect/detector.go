// Package detect determines whether a monitored video session is active and
// which video it is showing.
package detect

import (
	"context"
	"errors"
	"time"

	"github.com/entrhq/kidguard/pkg/logging"
	"github.com/entrhq/kidguard/pkg/types"
)

// ErrStrategyUnavailable is returned when a strategy's underlying OS facility
// is missing or denied.
var ErrStrategyUnavailable = errors.New("detection strategy unavailable")

// DefaultTimeout bounds a single strategy.
const DefaultTimeout = 300 * time.Millisecond

// Strategy is one source of presence signals. Detect returns an inactive
// signal when the strategy sees nothing.
type Strategy interface {
	Source() types.SignalSource
	Detect(ctx context.Context) (types.PresenceSignal, error)
}

// Detector tries its strategies in order and returns the first active signal.
type Detector struct {
	strategies []Strategy
	timeout    time.Duration
	logger     *logging.Logger
}

// New creates a detector. Strategies are tried in the order given.
func New(timeout time.Duration, logger *logging.Logger, strategies ...Strategy) *Detector {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Detector{
		strategies: strategies,
		timeout:    timeout,
		logger:     logger,
	}
}

// Detect polls each strategy under its own deadline. Strategy errors and
// timeouts count as "no signal from this strategy".
func (d *Detector) Detect(ctx context.Context) types.PresenceSignal {
	for _, s := range d.strategies {
		if ctx.Err() != nil {
			break
		}
		signal, err := d.run(ctx, s)
		if err != nil {
			d.logger.Debugf("%s strategy: %v", s.Source(), err)
			continue
		}
		if signal.Active {
			signal.Source = s.Source()
			return signal
		}
	}
	return types.Inactive()
}

type result struct {
	signal types.PresenceSignal
	err    error
}

// run executes one strategy and abandons it when the deadline passes. The
// strategy goroutine is left to finish on its own; its context is already
// cancelled so well-behaved strategies return promptly.
func (d *Detector) run(ctx context.Context, s Strategy) (types.PresenceSignal, error) {
	sctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		signal, err := s.Detect(sctx)
		done <- result{signal: signal, err: err}
	}()

	select {
	case r := <-done:
		return r.signal, r.err
	case <-sctx.Done():
		return types.Inactive(), sctx.Err()
	}
}

// Strategies returns the configured strategy sources in priority order.
func (d *Detector) Strategies() []types.SignalSource {
	out := make([]types.SignalSource, len(d.strategies))
	for i, s := range d.strategies {
		out[i] = s.Source()
	}
	return out
}
