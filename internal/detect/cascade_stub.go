//go:build !opencv

package detect

import (
	"context"
	"errors"
	"image"
)

// CascadeDetector needs the opencv build tag.
type CascadeDetector struct{}

// NewCascadeDetector always fails without OpenCV.
func NewCascadeDetector(opts Options) (*CascadeDetector, error) {
	return nil, errors.New("detect: opencv backend not compiled in (build with -tags opencv)")
}

func (d *CascadeDetector) Detect(ctx context.Context, img image.Image) ([]Face, error) {
	return nil, ErrDetectionFailed
}

func (d *CascadeDetector) Close() error {
	return nil
}
