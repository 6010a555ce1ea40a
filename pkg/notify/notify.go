// Package notify tells parents what KidGuard saw and did.
//
// A Gateway fans one Alert out to its sinks. Delivery is best effort:
// failures are logged and never returned to the caller.
package notify

import (
	"context"

	"github.com/entrhq/kidguard/pkg/logging"
	"github.com/entrhq/kidguard/pkg/types"
)

// Alert is everything a notification can report about one cycle.
type Alert struct {
	Viewer       types.Viewer
	Identity     *types.VideoIdentity
	Result       types.AnalysisResult
	Intervention types.Intervention
	// Sample is the analyzed frame, if one was captured.
	Sample *types.Sample
}

// Sink delivers an alert to one destination.
type Sink interface {
	Name() string
	Send(ctx context.Context, alert Alert) error
}

// Gateway applies the block-only filter and delivers to every sink.
type Gateway struct {
	sinks     []Sink
	blockOnly bool
	logger    *logging.Logger
}

// NewGateway creates a gateway. With blockOnly set, alerts whose verdict is
// not block are dropped.
func NewGateway(blockOnly bool, logger *logging.Logger, sinks ...Sink) *Gateway {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Gateway{sinks: sinks, blockOnly: blockOnly, logger: logger}
}

// Notify delivers the alert. It never fails.
func (g *Gateway) Notify(ctx context.Context, alert Alert) {
	if g == nil || len(g.sinks) == 0 {
		return
	}
	if g.blockOnly && !alert.Result.IsBlock() {
		g.logger.Debugf("notification suppressed (block_only, recommendation=%s)", alert.Result.Recommendation)
		return
	}

	for _, s := range g.sinks {
		if err := s.Send(ctx, alert); err != nil {
			g.logger.Warnf("%s notification failed: %v", s.Name(), err)
			continue
		}
		g.logger.Debugf("%s notification sent", s.Name())
	}
}

// Sinks returns the configured sinks.
func (g *Gateway) Sinks() []Sink {
	return g.sinks
}
