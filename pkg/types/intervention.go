package types

import "fmt"

// InterventionKind enumerates the recognized intervention kinds.
type InterventionKind string

const (
	InterventionNotifyOnly InterventionKind = "notify_only" // InterventionNotifyOnly takes no external action.
	InterventionSkip       InterventionKind = "skip"        // InterventionSkip advances to the next content.
	InterventionRedirect   InterventionKind = "redirect"    // InterventionRedirect navigates to a configured safe destination.
	InterventionPause      InterventionKind = "pause"       // InterventionPause halts playback.
)

// ParseInterventionKind converts a configured response action into a kind.
func ParseInterventionKind(s string) (InterventionKind, error) {
	switch k := InterventionKind(s); k {
	case InterventionNotifyOnly, InterventionSkip, InterventionRedirect, InterventionPause:
		return k, nil
	default:
		return "", fmt.Errorf("invalid response action %q (must be 'skip', 'redirect', 'pause', or 'notify_only')", s)
	}
}

// IsActive reports whether the kind requires an external action.
func (k InterventionKind) IsActive() bool {
	return k == InterventionSkip || k == InterventionRedirect || k == InterventionPause
}

// ChannelRef points at a safe destination channel.
type ChannelRef struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// URL returns the channel's video listing URL, or "" when the ref is empty.
func (c ChannelRef) URL() string {
	if c.ID == "" {
		return ""
	}
	return "https://www.youtube.com/channel/" + c.ID + "/videos"
}

// Intervention is the concrete action taken against an active session.
// Target is only meaningful for InterventionRedirect.
type Intervention struct {
	Kind   InterventionKind
	Target ChannelRef
}

// NotifyOnly returns the no-op intervention.
func NotifyOnly() Intervention {
	return Intervention{Kind: InterventionNotifyOnly}
}

// String returns the kind name, which is also the "action taken" label.
func (i Intervention) String() string {
	return string(i.Kind)
}
