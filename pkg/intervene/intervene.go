// Package intervene carries out skip, pause, and redirect actions against
// the session being watched.
//
// Two executors are available. BrowserExecutor drives the watch page over
// the existing CDP connection. KeyboardExecutor sends YouTube's keyboard
// shortcuts to the focused window through xdotool, and redirects by pasting
// the target URL into the address bar.
package intervene

import (
	"context"
	"errors"
	"fmt"

	"github.com/entrhq/kidguard/pkg/types"
)

// ErrUnavailable is returned when no intervention method is configured or
// its tooling is missing.
var ErrUnavailable = errors.New("intervention unavailable")

// Executor performs an intervention. notify_only is always a successful
// no-op.
type Executor interface {
	Execute(ctx context.Context, in types.Intervention) error
}

// Unavailable rejects every active intervention.
type Unavailable struct {
	Reason string
}

func (u Unavailable) Execute(_ context.Context, in types.Intervention) error {
	if !in.Kind.IsActive() {
		return nil
	}
	if u.Reason == "" {
		return ErrUnavailable
	}
	return fmt.Errorf("%w: %s", ErrUnavailable, u.Reason)
}

func redirectURL(in types.Intervention) (string, error) {
	url := in.Target.URL()
	if url == "" {
		return "", fmt.Errorf("redirect requires a safe channel")
	}
	return url, nil
}

func unknownKind(k types.InterventionKind) error {
	return fmt.Errorf("unknown intervention %q", k)
}
