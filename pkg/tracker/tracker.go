// Package tracker debounces presence signals into change events so each
// distinct video is handled once regardless of poll rate.
package tracker

import "github.com/entrhq/kidguard/pkg/types"

// Tracker remembers the last observed video identity. It is not safe for
// concurrent use; the control loop owns it.
type Tracker struct {
	active bool
	last   *types.VideoIdentity
}

// New returns a tracker with no active session.
func New() *Tracker {
	return &Tracker{}
}

// Observe folds one presence signal into the tracker state and returns the
// resulting event, or nil when nothing changed.
func (t *Tracker) Observe(signal types.PresenceSignal) *types.ChangeEvent {
	if !signal.Active {
		if !t.active {
			return nil
		}
		ended := &types.ChangeEvent{Kind: types.ChangeSessionEnded, Identity: t.last}
		t.active = false
		t.last = nil
		return ended
	}

	if t.active && types.SameIdentity(t.last, signal.Identity) {
		return nil
	}

	t.active = true
	t.last = signal.Identity
	return &types.ChangeEvent{
		Kind:     types.ChangeVideo,
		Source:   signal.Source,
		Identity: signal.Identity,
	}
}

// Last returns the identity of the current session, or nil.
func (t *Tracker) Last() *types.VideoIdentity {
	return t.last
}

// Active reports whether a session is currently tracked.
func (t *Tracker) Active() bool {
	return t.active
}

