package webmonitor

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	faceColor   = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	failColor   = color.RGBA{R: 255, G: 64, B: 64, A: 255}
	textColor   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	bannerColor = color.RGBA{R: 0, G: 0, B: 0, A: 160}
)

const boxThickness = 2

// renderPreview scales the frame to width, draws the detected faces and the
// current labels, and encodes the result as JPEG.
func renderPreview(job previewJob, view ViewState, width, quality int) ([]byte, error) {
	src := job.img.Bounds()
	scale := 1.0
	if width > 0 && src.Dx() > width {
		scale = float64(width) / float64(src.Dx())
	}
	dstRect := image.Rect(0, 0, int(float64(src.Dx())*scale), int(float64(src.Dy())*scale))
	canvas := image.NewRGBA(dstRect)
	draw.ApproxBiLinear.Scale(canvas, dstRect, job.img, src, draw.Src, nil)

	for _, f := range job.faces {
		r := image.Rect(
			int(float64(f.Bounds.Min.X-src.Min.X)*scale),
			int(float64(f.Bounds.Min.Y-src.Min.Y)*scale),
			int(float64(f.Bounds.Max.X-src.Min.X)*scale),
			int(float64(f.Bounds.Max.Y-src.Min.Y)*scale),
		)
		strokeRect(canvas, r, faceColor)
	}
	if job.failed {
		strokeRect(canvas, dstRect, failColor)
	}

	drawBanner(canvas, []string{view.Status, view.CountLabel})

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func strokeRect(dst draw.Image, r image.Rectangle, c color.Color) {
	r = r.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	fill := image.NewUniform(c)
	t := boxThickness
	draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t), fill, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y), fill, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y), fill, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y), fill, image.Point{}, draw.Src)
}

func drawBanner(dst draw.Image, lines []string) {
	face := basicfont.Face7x13
	lineHeight := face.Metrics().Height.Ceil() + 2

	var text []string
	for _, l := range lines {
		if l != "" {
			text = append(text, l)
		}
	}
	if len(text) == 0 {
		return
	}

	b := dst.Bounds()
	banner := image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+lineHeight*len(text)+4)
	draw.Draw(dst, banner, image.NewUniform(bannerColor), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(textColor),
		Face: face,
	}
	for i, l := range text {
		d.Dot = fixed.P(b.Min.X+6, b.Min.Y+lineHeight*(i+1))
		d.DrawString(l)
	}
}

// blankJPEG is sent while no analyzed frame is available.
func blankJPEG() ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 32, G: 32, B: 32, A: 255}), image.Point{}, draw.Src)
	drawBanner(img, []string{"Waiting for camera..."})

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 75}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
