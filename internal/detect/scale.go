package detect

import (
	"image"

	"golang.org/x/image/draw"
)

// downscale shrinks img to at most maxWidth pixels wide and returns the
// factor that maps the result back to the original size.
func downscale(img image.Image, maxWidth int) (image.Image, float64) {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img, 1
	}

	scale := float64(b.Dx()) / float64(maxWidth)
	h := int(float64(b.Dy()) / scale)
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst, scale
}

func scaleRect(r image.Rectangle, factor float64, origin image.Point) image.Rectangle {
	if factor == 1 {
		return r.Add(origin)
	}
	return image.Rect(
		int(float64(r.Min.X)*factor),
		int(float64(r.Min.Y)*factor),
		int(float64(r.Max.X)*factor),
		int(float64(r.Max.Y)*factor),
	).Add(origin)
}
