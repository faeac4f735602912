package detect

import (
	"context"
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/logger"
)

// PigoDetector detects faces with a pixel-intensity-comparison cascade.
type PigoDetector struct {
	opts       Options
	classifier *pigo.Pigo
	shift      float64
	scale      float64
	maxWidth   int
}

// NewPigoDetector loads the cascade file named in opts.
func NewPigoDetector(opts Options) (*PigoDetector, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(opts.CascadePath)
	if err != nil {
		return nil, fmt.Errorf("read cascade %s: %w", opts.CascadePath, err)
	}
	return newPigoDetectorFromCascade(opts, data)
}

func newPigoDetectorFromCascade(opts Options, cascade []byte) (*PigoDetector, error) {
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpack cascade: %w", err)
	}

	d := &PigoDetector{
		opts:       opts,
		classifier: classifier,
		shift:      0.1,
		scale:      1.1,
	}
	if opts.Mode == ModeFast {
		d.shift = 0.15
		d.scale = 1.2
		d.maxWidth = FastMaxWidth
	}

	logger.Info("Detector", "pigo cascade loaded (mode=%s, min=%d, max=%d)", opts.Mode, opts.MinFaceSize, opts.MaxFaceSize)
	return d, nil
}

// Detect runs the cascade over img.
func (d *PigoDetector) Detect(ctx context.Context, img image.Image) ([]Face, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img == nil {
		return nil, fmt.Errorf("%w: empty image", ErrDetectionFailed)
	}

	origin := img.Bounds().Min
	small, factor := downscale(img, d.maxWidth)

	src := pigo.ImgToNRGBA(small)
	cols, rows := src.Bounds().Dx(), src.Bounds().Dy()

	minSize := int(float64(d.opts.MinFaceSize) / factor)
	if minSize < 20 {
		minSize = 20
	}
	maxSize := int(float64(d.opts.MaxFaceSize) / factor)
	if maxSize < minSize {
		maxSize = minSize
	}

	params := pigo.CascadeParams{
		MinSize:     minSize,
		MaxSize:     maxSize,
		ShiftFactor: d.shift,
		ScaleFactor: d.scale,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(src),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := d.classifier.RunCascade(params, 0.0)
	dets = d.classifier.ClusterDetections(dets, 0.2)

	var faces []Face
	for _, det := range dets {
		if det.Q < d.opts.ScoreThreshold {
			continue
		}
		half := det.Scale / 2
		r := image.Rect(det.Col-half, det.Row-half, det.Col+half, det.Row+half)
		faces = append(faces, Face{
			Bounds: scaleRect(r, factor, origin),
			Score:  det.Q,
		})
	}
	return faces, nil
}

// Close is a no-op; the cascade lives in Go memory.
func (d *PigoDetector) Close() error {
	return nil
}
