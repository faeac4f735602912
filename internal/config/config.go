// Package config holds the daemon settings. Values come from DefaultConfig,
// then an optional YAML file, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/capture"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/capture/camera"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/detect"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/logger"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/webmonitor"
)

// Frame source kinds.
const (
	SourceCamera = "camera"
	SourceDir    = "dir"
	SourceShm    = "shm"
)

// Camera selects the front-facing capture device.
type Camera struct {
	Device   int  `yaml:"device"`
	Width    int  `yaml:"width"`
	Height   int  `yaml:"height"`
	FPS      int  `yaml:"fps"`
	Rotation int  `yaml:"rotation"`
	Mirror   bool `yaml:"mirror"`
}

// Options converts to the camera package's options.
func (c Camera) Options() camera.Options {
	return camera.Options{
		Device:   c.Device,
		Width:    c.Width,
		Height:   c.Height,
		FPS:      c.FPS,
		Rotation: c.Rotation,
		Mirror:   c.Mirror,
	}
}

// Replay feeds image files from a directory instead of a camera.
type Replay struct {
	Dir      string `yaml:"dir"`
	FPS      int    `yaml:"fps"`
	Rotation int    `yaml:"rotation"`
	Loop     bool   `yaml:"loop"`
}

// Shm reads JPEG frames published by the camera daemon.
type Shm struct {
	Name         string        `yaml:"name"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Rotation     int           `yaml:"rotation"`
}

// Detector picks the backend and its options.
type Detector struct {
	Backend string `yaml:"backend"`

	detect.Options `yaml:",inline"`
}

// WebRTC configures the state event data channels.
type WebRTC struct {
	Enabled     bool     `yaml:"enabled"`
	STUNServers []string `yaml:"stun_servers"`
	MaxClients  int      `yaml:"max_clients"`
}

// Config is the complete daemon configuration.
type Config struct {
	Source   string            `yaml:"source"`
	Camera   Camera            `yaml:"camera"`
	Replay   Replay            `yaml:"replay"`
	Shm      Shm               `yaml:"shm"`
	Detector Detector          `yaml:"detector"`
	Web      webmonitor.Config `yaml:"web"`
	WebRTC   WebRTC            `yaml:"webrtc"`

	MetricsAddr string `yaml:"metrics_addr"` // empty serves /metrics on the web address only
	LogLevel    string `yaml:"log_level"`
	LogColor    bool   `yaml:"log_color"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Source: SourceCamera,
		Camera: Camera{
			Device: 0,
			Width:  640,
			Height: 480,
			FPS:    30,
			Mirror: true,
		},
		Replay: Replay{FPS: 30},
		Shm: Shm{
			Name:         "/pet_camera_mjpeg_frame",
			PollInterval: 33 * time.Millisecond,
		},
		Detector: Detector{
			Backend: detect.BackendPigo,
			Options: detect.DefaultOptions(),
		},
		Web: webmonitor.DefaultConfig(),
		WebRTC: WebRTC{
			Enabled:     true,
			STUNServers: []string{"stun:stun.l.google.com:19302"},
			MaxClients:  10,
		},
		LogLevel: "info",
		LogColor: true,
	}
}

// LoadFile overlays the YAML file at path onto cfg. Keys missing from the
// file keep their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	switch c.Source {
	case SourceCamera:
		errs = append(errs, checkRotation("camera.rotation", c.Camera.Rotation))
		if c.Camera.FPS <= 0 {
			errs = append(errs, fmt.Errorf("config: camera.fps must be positive, got %d", c.Camera.FPS))
		}
	case SourceDir:
		if c.Replay.Dir == "" {
			errs = append(errs, errors.New("config: replay.dir is required for the dir source"))
		}
		errs = append(errs, checkRotation("replay.rotation", c.Replay.Rotation))
		if c.Replay.FPS <= 0 {
			errs = append(errs, fmt.Errorf("config: replay.fps must be positive, got %d", c.Replay.FPS))
		}
	case SourceShm:
		if c.Shm.Name == "" {
			errs = append(errs, errors.New("config: shm.name is required for the shm source"))
		}
		errs = append(errs, checkRotation("shm.rotation", c.Shm.Rotation))
	default:
		errs = append(errs, fmt.Errorf("config: unknown source %q (want camera, dir or shm)", c.Source))
	}

	switch c.Detector.Backend {
	case detect.BackendPigo, detect.BackendOpenCV:
	default:
		errs = append(errs, fmt.Errorf("config: unknown detector backend %q", c.Detector.Backend))
	}
	errs = append(errs, c.Detector.Options.Validate())

	if c.Web.Addr == "" {
		errs = append(errs, errors.New("config: web.addr is required"))
	}
	if c.WebRTC.Enabled && c.WebRTC.MaxClients <= 0 {
		errs = append(errs, fmt.Errorf("config: webrtc.max_clients must be positive, got %d", c.WebRTC.MaxClients))
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}

	return errors.Join(errs...)
}

func checkRotation(field string, deg int) error {
	if !capture.ValidRotation(deg) {
		return fmt.Errorf("config: %s must be 0, 90, 180 or 270, got %d", field, deg)
	}
	return nil
}
