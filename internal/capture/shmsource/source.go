//go:build linux && cgo

// Package shmsource reads camera frames published by the capture daemon into
// a POSIX shared-memory ring buffer.
package shmsource

/*
#cgo LDFLAGS: -lrt

#include <stdlib.h>
#include <stdint.h>
#include <string.h>
#include <time.h>
#include <fcntl.h>
#include <unistd.h>
#include <sys/mman.h>

#define FW_RING_SIZE 30
#define FW_MAX_FRAME (1920 * 1080 * 3 / 2)

typedef struct {
    uint64_t frame_number;
    struct timespec timestamp;
    int camera_id;
    int width;
    int height;
    int format;
    size_t data_size;
    uint8_t data[FW_MAX_FRAME];
} fw_frame;

typedef struct {
    volatile uint32_t write_index;
    volatile uint32_t frame_interval_ms;
    fw_frame frames[FW_RING_SIZE];
} fw_ring;

static fw_ring* fw_open(const char* name) {
    int fd = shm_open(name, O_RDONLY, 0);
    if (fd == -1) {
        return NULL;
    }
    void* p = mmap(NULL, sizeof(fw_ring), PROT_READ, MAP_SHARED, fd, 0);
    close(fd);
    return p == MAP_FAILED ? NULL : (fw_ring*)p;
}

static void fw_close(fw_ring* ring) {
    if (ring != NULL) {
        munmap((void*)ring, sizeof(fw_ring));
    }
}

// Copies the newest frame header and payload. Returns -1 when nothing was written yet.
static int fw_latest(fw_ring* ring, fw_frame* out) {
    uint32_t idx = __atomic_load_n(&ring->write_index, __ATOMIC_ACQUIRE);
    if (idx == 0) {
        return -1;
    }
    memcpy(out, &ring->frames[(idx - 1) % FW_RING_SIZE], sizeof(fw_frame));
    return 0;
}
*/
import "C"

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"sync"
	"time"
	"unsafe"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/capture"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/logger"
)

const (
	formatJPEG   = 0
	maxFrameSize = 1920 * 1080 * 3 / 2
)

// Source polls the ring buffer for new JPEG frames.
type Source struct {
	name     string
	interval time.Duration
	rotation int

	mu   sync.Mutex
	ring *C.fw_ring
	// frame is a reusable copy buffer; it is far too large for the Go stack.
	frame *C.fw_frame
}

// Open maps the named shared memory segment read-only.
func Open(name string, pollInterval time.Duration, rotation int) (*Source, error) {
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))

	ring := C.fw_open(cName)
	if ring == nil {
		return nil, fmt.Errorf("open shared memory %s: not available", name)
	}
	if pollInterval <= 0 {
		pollInterval = 33 * time.Millisecond
	}

	logger.Info("ShmSource", "Mapped %s (poll every %v)", name, pollInterval)
	return &Source{
		name:     name,
		interval: pollInterval,
		rotation: rotation,
		ring:     ring,
		frame:    (*C.fw_frame)(C.malloc(C.sizeof_fw_frame)),
	}, nil
}

// Start emits every frame number once, skipping frames the writer has
// already overwritten.
func (s *Source) Start(ctx context.Context, sink func(*capture.Frame)) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var last uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		data, number, captured, ok, err := s.readLatest()
		if err != nil {
			return err
		}
		if !ok || number == last {
			continue
		}
		last = number

		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			logger.Debug("ShmSource", "Frame #%d decode failed: %v", number, err)
			continue
		}
		sink(capture.NewFrame(number, captured, s.rotation, img, nil))
	}
}

func (s *Source) readLatest() ([]byte, uint64, time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ring == nil {
		return nil, 0, time.Time{}, false, capture.ErrClosed
	}
	if C.fw_latest(s.ring, s.frame) != 0 {
		return nil, 0, time.Time{}, false, nil
	}
	if int(s.frame.format) != formatJPEG {
		return nil, 0, time.Time{}, false, nil
	}

	size := int(s.frame.data_size)
	if size <= 0 || size > maxFrameSize {
		return nil, 0, time.Time{}, false, nil
	}

	data := C.GoBytes(unsafe.Pointer(&s.frame.data[0]), C.int(size))
	captured := time.Unix(int64(s.frame.timestamp.tv_sec), int64(s.frame.timestamp.tv_nsec))
	return data, uint64(s.frame.frame_number), captured, true, nil
}

// Close unmaps the segment.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ring != nil {
		C.fw_close(s.ring)
		s.ring = nil
	}
	if s.frame != nil {
		C.free(unsafe.Pointer(s.frame))
		s.frame = nil
	}
	return nil
}
