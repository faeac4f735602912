// Package detect runs face detection on captured frames.
package detect

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"
)

var (
	// ErrDetectionFailed wraps every failure reported for a single frame.
	ErrDetectionFailed = errors.New("face detection failed")
	// ErrClassificationUnsupported is returned when attribute classification is requested.
	ErrClassificationUnsupported = errors.New("detect: face classification is not supported")
)

// PerformanceMode trades accuracy for speed.
type PerformanceMode string

const (
	ModeFast     PerformanceMode = "fast"
	ModeAccurate PerformanceMode = "accurate"
)

// FastMaxWidth is the width frames are scaled down to in fast mode.
const FastMaxWidth = 320

// Face is one detected face in upright frame coordinates.
type Face struct {
	Bounds image.Rectangle
	Score  float32
}

// Result is the outcome of detecting faces on one frame.
type Result struct {
	FrameNumber uint64
	Captured    time.Time
	Faces       []Face
	Err         error
	Latency     time.Duration
}

// Detector finds faces in an upright image.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Face, error)
	Close() error
}

// Options configures a detector.
type Options struct {
	Mode           PerformanceMode `yaml:"mode"`
	Classification bool            `yaml:"classification"`
	CascadePath    string          `yaml:"cascade"`
	MinFaceSize    int             `yaml:"min_face_size"`
	MaxFaceSize    int             `yaml:"max_face_size"`
	ScoreThreshold float32         `yaml:"score_threshold"`
}

// DefaultOptions mirrors a fast detector without classification.
func DefaultOptions() Options {
	return Options{
		Mode:           ModeFast,
		CascadePath:    "cascade/facefinder",
		MinFaceSize:    40,
		MaxFaceSize:    1000,
		ScoreThreshold: 5.0,
	}
}

// Validate checks option consistency.
func (o Options) Validate() error {
	var errs []error
	switch o.Mode {
	case ModeFast, ModeAccurate:
	default:
		errs = append(errs, fmt.Errorf("detect: unknown performance mode %q", o.Mode))
	}
	if o.Classification {
		errs = append(errs, ErrClassificationUnsupported)
	}
	if o.MinFaceSize <= 0 {
		errs = append(errs, fmt.Errorf("detect: min face size must be positive, got %d", o.MinFaceSize))
	}
	if o.MaxFaceSize < o.MinFaceSize {
		errs = append(errs, fmt.Errorf("detect: max face size %d below min %d", o.MaxFaceSize, o.MinFaceSize))
	}
	return errors.Join(errs...)
}

// Backends accepted by New.
const (
	BackendPigo   = "pigo"
	BackendOpenCV = "opencv"
)

// New opens the detector for backend.
func New(backend string, opts Options) (Detector, error) {
	switch backend {
	case BackendPigo, "":
		d, err := NewPigoDetector(opts)
		if err != nil {
			return nil, err
		}
		return d, nil
	case BackendOpenCV:
		d, err := NewCascadeDetector(opts)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("detect: unknown backend %q", backend)
	}
}
