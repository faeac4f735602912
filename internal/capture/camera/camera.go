// Package camera opens the front-facing camera as a capture.Source.
package camera

import (
	"errors"
	"time"
)

// ErrUnavailable is returned when the binary was built without camera support
// or the device cannot be opened.
var ErrUnavailable = errors.New("camera: unavailable")

// Options selects and shapes the capture device.
type Options struct {
	Device   int // V4L2 index of the front-facing camera
	Width    int
	Height   int
	FPS      int
	Rotation int
	Mirror   bool // flip horizontally, as a selfie preview does
}

// readRetryDelay is how long to back off after an empty read.
const readRetryDelay = 10 * time.Millisecond
