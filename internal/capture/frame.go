// Package capture defines camera frames and the sources that produce them.
package capture

import (
	"fmt"
	"image"
	"sync"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Frame is one captured image plus the metadata needed to interpret it.
type Frame struct {
	Number   uint64
	Captured time.Time
	// Rotation is the clockwise rotation in degrees (0, 90, 180 or 270)
	// that makes Image upright.
	Rotation int
	Image    image.Image

	releaseOnce sync.Once
	release     func()
}

// NewFrame wraps img. release, if non-nil, frees the backing buffer and runs
// at most once.
func NewFrame(number uint64, captured time.Time, rotation int, img image.Image, release func()) *Frame {
	return &Frame{
		Number:   number,
		Captured: captured,
		Rotation: rotation,
		Image:    img,
		release:  release,
	}
}

// Release returns the frame's buffer to its source. It is safe to call more
// than once and on a nil frame.
func (f *Frame) Release() {
	if f == nil {
		return
	}
	f.releaseOnce.Do(func() {
		if f.release != nil {
			f.release()
		}
	})
}

// Upright returns the image rotated by Rotation.
func (f *Frame) Upright() image.Image {
	return Rotate(f.Image, f.Rotation)
}

// ValidRotation reports whether deg is a supported rotation.
func ValidRotation(deg int) bool {
	switch deg {
	case 0, 90, 180, 270:
		return true
	}
	return false
}

// Rotate turns src clockwise by deg degrees. Unsupported angles return src
// unchanged.
func Rotate(src image.Image, deg int) image.Image {
	if src == nil || deg == 0 || !ValidRotation(deg) {
		return src
	}

	b := src.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	x0, y0 := float64(b.Min.X), float64(b.Min.Y)

	var dst *image.RGBA
	var m f64.Aff3
	switch deg {
	case 90:
		dst = image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
		// x' = h - (y - y0), y' = x - x0
		m = f64.Aff3{0, -1, h + y0, 1, 0, -x0}
	case 180:
		dst = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		m = f64.Aff3{-1, 0, w + x0, 0, -1, h + y0}
	case 270:
		dst = image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
		m = f64.Aff3{0, 1, -y0, -1, 0, w + x0}
	}

	draw.NearestNeighbor.Transform(dst, m, src, b, draw.Src, nil)
	return dst
}

func (f *Frame) String() string {
	if f == nil {
		return "frame(nil)"
	}
	size := image.Point{}
	if f.Image != nil {
		size = f.Image.Bounds().Size()
	}
	return fmt.Sprintf("frame#%d %dx%d rot=%d", f.Number, size.X, size.Y, f.Rotation)
}
