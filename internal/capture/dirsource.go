package capture

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/logger"
)

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".webp": true,
}

// DirSource replays the images of a directory in name order, as if they came
// from a camera.
type DirSource struct {
	dir      string
	interval time.Duration
	rotation int
	loop     bool

	files []string
}

// NewDirSource lists the images in dir. fps <= 0 replays as fast as the sink
// accepts frames.
func NewDirSource(dir string, fps int, rotation int, loop bool) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read replay dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("replay dir %s has no images", dir)
	}
	sort.Strings(files)

	var interval time.Duration
	if fps > 0 {
		interval = time.Second / time.Duration(fps)
	}

	return &DirSource{
		dir:      dir,
		interval: interval,
		rotation: rotation,
		loop:     loop,
		files:    files,
	}, nil
}

// Len returns the number of images per pass.
func (s *DirSource) Len() int {
	return len(s.files)
}

// Start decodes and emits images until ctx ends or, without looping, the
// directory is exhausted. Unreadable files are skipped.
func (s *DirSource) Start(ctx context.Context, sink func(*Frame)) error {
	logger.Info("Replay", "Replaying %d images from %s (loop=%v)", len(s.files), s.dir, s.loop)

	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	var number uint64
	for {
		for _, path := range s.files {
			if tick != nil {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-tick:
				}
			} else if err := ctx.Err(); err != nil {
				return err
			}

			img, err := decodeFile(path)
			if err != nil {
				logger.Warn("Replay", "Skipping %s: %v", filepath.Base(path), err)
				continue
			}

			number++
			sink(NewFrame(number, time.Now(), s.rotation, img, nil))
		}

		if !s.loop {
			logger.Info("Replay", "Replay finished after %d frames", number)
			return nil
		}
	}
}

// Close is a no-op; files are opened per frame.
func (s *DirSource) Close() error {
	return nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}
