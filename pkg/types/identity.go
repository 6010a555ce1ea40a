package types

import "strings"

// SignalSource identifies which detection strategy produced a presence signal.
type SignalSource string

const (
	SourceNone        SignalSource = ""             // SourceNone indicates no strategy signalled activity.
	SourceWindowTitle SignalSource = "window_title" // SourceWindowTitle indicates a visible window title matched the target marker.
	SourceProcess     SignalSource = "process"      // SourceProcess indicates a host application process is running.
	SourceDOM         SignalSource = "dom"          // SourceDOM indicates identity was read from the page over a debugging connection.
)

// VideoIdentity is the best-effort identifier of the content currently showing.
// Any field may be empty.
type VideoIdentity struct {
	// ID is the content identifier (e.g. a YouTube video id) when known.
	ID string `json:"id,omitempty"`

	// Title is the human-readable title.
	Title string `json:"title,omitempty"`

	// Channel is the publishing channel name.
	Channel string `json:"channel,omitempty"`

	// Description is a short excerpt of the content description (DOM source only).
	Description string `json:"description,omitempty"`

	// URL is the page location (DOM source only).
	URL string `json:"url,omitempty"`
}

// NormalizedTitle returns the case-folded, trimmed title used for equality.
func (v *VideoIdentity) NormalizedTitle() string {
	if v == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(v.Title))
}

// String returns a short label for logs.
func (v *VideoIdentity) String() string {
	if v == nil {
		return "<none>"
	}
	label := v.Title
	if label == "" {
		label = v.ID
	}
	if v.Channel != "" {
		label += " (" + v.Channel + ")"
	}
	if label == "" {
		return "<untitled>"
	}
	return label
}

// SameIdentity reports whether a and b describe the same content.
//
// When both carry an ID the IDs are compared; otherwise the normalized titles
// are. Two absent identities are equal, an absent and a present one are not.
func SameIdentity(a, b *VideoIdentity) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.ID != "" && b.ID != "" {
		return a.ID == b.ID
	}
	return a.NormalizedTitle() == b.NormalizedTitle()
}

// PresenceSignal is a single poll's observation of the monitored session.
// It is produced fresh on each poll and never persisted.
type PresenceSignal struct {
	Active   bool
	Source   SignalSource
	Identity *VideoIdentity
}

// Inactive returns the signal used when no strategy reports activity.
func Inactive() PresenceSignal {
	return PresenceSignal{Active: false, Source: SourceNone}
}
