// Package visibility tracks how many consecutive frames have gone by without a
// detected face and decides when to warn the user and when to leave the
// monitor screen.
package visibility

import (
	"fmt"
	"time"
)

const (
	// NotifyAt is the absent count at which the toast is shown.
	NotifyAt = 100
	// TransitionAt is the absent count at which the monitor screen is left for good.
	TransitionAt = 150

	// ToastDuration matches a short platform toast.
	ToastDuration = 2 * time.Second
)

// Display strings shown on the monitor screen.
const (
	StatusFaceDetected    = "Face detected"
	StatusNoFaceDetected  = "No face detected"
	StatusDetectionFailed = "Face detection failed"
	ToastMessage          = "Face not visible 100 times"
	countLabelFormat      = "Face Not Visible Count: %d"
)

// Phase is the lifecycle phase of a monitor screen.
type Phase int

const (
	// Counting is the initial phase; every processed frame updates the counter.
	Counting Phase = iota
	// Transitioned is terminal. The screen has been replaced and frames are ignored.
	Transitioned
)

func (p Phase) String() string {
	switch p {
	case Counting:
		return "counting"
	case Transitioned:
		return "transitioned"
	default:
		return "unknown"
	}
}

// State is the face-visibility state owned by one monitor screen.
type State struct {
	ConsecutiveAbsent int
	Phase             Phase
}

// Observation is the detector outcome for one frame.
type Observation struct {
	FrameNumber uint64
	Faces       int
	Err         error
}

// FaceDetected reports whether the frame was analyzed and contained at least one face.
func (o Observation) FaceDetected() bool {
	return o.Err == nil && o.Faces > 0
}

// Outputs are the presentation changes derived from a single observation.
// An empty Status or CountLabel means that display is left untouched.
type Outputs struct {
	Status     string
	CountLabel string
	Notify     bool
	Navigate   bool
}

// Empty reports whether the outputs carry nothing to render.
func (o Outputs) Empty() bool {
	return o.Status == "" && o.CountLabel == "" && !o.Notify && !o.Navigate
}

// CountLabel renders the absent-count display string.
func CountLabel(count int) string {
	return fmt.Sprintf(countLabelFormat, count)
}

// Initial returns the state of a freshly created screen and what it displays.
func Initial() (State, Outputs) {
	return State{}, Outputs{CountLabel: CountLabel(0)}
}

// Apply folds one observation into the state. It has no side effects; the
// caller renders the returned outputs.
func Apply(s State, obs Observation) (State, Outputs) {
	if s.Phase == Transitioned {
		return s, Outputs{}
	}

	if obs.Err != nil {
		return s, Outputs{Status: StatusDetectionFailed}
	}

	var out Outputs
	if obs.Faces > 0 {
		s.ConsecutiveAbsent = 0
		out.Status = StatusFaceDetected
	} else {
		s.ConsecutiveAbsent++
		out.Status = StatusNoFaceDetected
		out.Notify = s.ConsecutiveAbsent == NotifyAt
		if s.ConsecutiveAbsent == TransitionAt {
			out.Navigate = true
			s.Phase = Transitioned
		}
	}
	out.CountLabel = CountLabel(s.ConsecutiveAbsent)

	return s, out
}
