package types

import "time"

// Viewer is the person in front of the screen, as reported by the viewer
// identification capability.
type Viewer struct {
	Name       string  `json:"name"`
	Age        int     `json:"age"`
	IsChild    bool    `json:"is_child"`
	Confidence float64 `json:"confidence"`
}

// UnknownViewer is used in notifications when identification is disabled.
func UnknownViewer() Viewer {
	return Viewer{Name: "Unknown"}
}

// Sample is a single representative frame handed to the classifier.
type Sample struct {
	Data       []byte
	MediaType  string // "image/png" or "image/jpeg"
	Path       string // where the frame was stored, if it was
	CapturedAt time.Time
}

// Empty reports whether the sample carries no image data.
func (s *Sample) Empty() bool {
	return s == nil || len(s.Data) == 0
}

// ChangeKind enumerates Video Change Tracker events.
type ChangeKind string

const (
	ChangeVideo        ChangeKind = "changed"       // ChangeVideo indicates a new distinct video identity.
	ChangeSessionEnded ChangeKind = "session_ended" // ChangeSessionEnded indicates a previously active session went away.
)

// ChangeEvent is emitted by the Video Change Tracker.
type ChangeEvent struct {
	Kind     ChangeKind
	Source   SignalSource
	Identity *VideoIdentity
}
