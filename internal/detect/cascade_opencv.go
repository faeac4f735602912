//go:build opencv

package detect

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/logger"
)

// CascadeDetector detects faces with an OpenCV Haar cascade.
type CascadeDetector struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
	opts       Options
}

// NewCascadeDetector loads the Haar cascade XML named in opts.
func NewCascadeDetector(opts Options) (*CascadeDetector, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(opts.CascadePath) {
		classifier.Close()
		return nil, fmt.Errorf("load cascade %s", opts.CascadePath)
	}

	logger.Info("Detector", "OpenCV cascade loaded from %s (mode=%s)", opts.CascadePath, opts.Mode)
	return &CascadeDetector{classifier: classifier, opts: opts}, nil
}

// Detect converts img to grayscale and runs the cascade.
func (d *CascadeDetector) Detect(ctx context.Context, img image.Image) ([]Face, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	maxWidth := 0
	if d.opts.Mode == ModeFast {
		maxWidth = FastMaxWidth
	}
	small, factor := downscale(img, maxWidth)

	mat, err := gocv.ImageToMatRGB(small)
	if err != nil {
		return nil, fmt.Errorf("image to mat: %w", err)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorRGBToGray)

	minSide := int(float64(d.opts.MinFaceSize) / factor)
	maxSide := int(float64(d.opts.MaxFaceSize) / factor)

	d.mu.Lock()
	rects := d.classifier.DetectMultiScaleWithParams(gray, 1.1, 3, 0,
		image.Pt(minSide, minSide), image.Pt(maxSide, maxSide))
	d.mu.Unlock()

	faces := make([]Face, 0, len(rects))
	for _, r := range rects {
		faces = append(faces, Face{Bounds: scaleRect(r, factor, img.Bounds().Min), Score: 1})
	}
	return faces, nil
}

// Close frees the classifier.
func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifier.Close()
}
