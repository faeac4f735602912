package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/config"
)

// loadConfig builds the configuration from the defaults, the optional
// -config file and args, in that order of precedence (args win).
func loadConfig(args []string, output io.Writer) (config.Config, error) {
	cfg := config.DefaultConfig()

	var configPath string
	var stunServers string
	fs := flag.NewFlagSet("facewatch", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&configPath, "config", "", "YAML config file (flags override it)")
	fs.StringVar(&cfg.Source, "source", cfg.Source, "Frame source (camera, dir, shm)")
	fs.IntVar(&cfg.Camera.Device, "camera", cfg.Camera.Device, "Front camera device index")
	fs.IntVar(&cfg.Camera.Width, "width", cfg.Camera.Width, "Capture width")
	fs.IntVar(&cfg.Camera.Height, "height", cfg.Camera.Height, "Capture height")
	fs.IntVar(&cfg.Camera.FPS, "fps", cfg.Camera.FPS, "Capture FPS")
	fs.IntVar(&cfg.Camera.Rotation, "rotation", cfg.Camera.Rotation, "Camera clockwise rotation to upright (0, 90, 180, 270)")
	fs.BoolVar(&cfg.Camera.Mirror, "mirror", cfg.Camera.Mirror, "Mirror the front camera horizontally")
	fs.StringVar(&cfg.Replay.Dir, "replay-dir", cfg.Replay.Dir, "Image directory for the dir source")
	fs.IntVar(&cfg.Replay.FPS, "replay-fps", cfg.Replay.FPS, "Replay FPS for the dir source")
	fs.IntVar(&cfg.Replay.Rotation, "replay-rotation", cfg.Replay.Rotation, "Replayed frames' clockwise rotation to upright")
	fs.BoolVar(&cfg.Replay.Loop, "replay-loop", cfg.Replay.Loop, "Loop the replay directory")
	fs.StringVar(&cfg.Shm.Name, "shm", cfg.Shm.Name, "JPEG frame shared memory name for the shm source")
	fs.IntVar(&cfg.Shm.Rotation, "shm-rotation", cfg.Shm.Rotation, "Shared memory frames' clockwise rotation to upright")
	fs.StringVar(&cfg.Detector.Backend, "detector", cfg.Detector.Backend, "Face detector backend (pigo, opencv)")
	fs.StringVar(&cfg.Detector.CascadePath, "cascade", cfg.Detector.CascadePath, "Face cascade file")
	fs.StringVar(&cfg.Web.Addr, "http", cfg.Web.Addr, "HTTP server address")
	fs.StringVar(&cfg.Web.AssetsDir, "assets", cfg.Web.AssetsDir, "Web assets directory")
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Dedicated metrics server address (empty: serve on -http)")
	fs.BoolVar(&cfg.WebRTC.Enabled, "webrtc", cfg.WebRTC.Enabled, "Push state over WebRTC data channels")
	fs.IntVar(&cfg.WebRTC.MaxClients, "max-clients", cfg.WebRTC.MaxClients, "Maximum WebRTC clients")
	fs.StringVar(&stunServers, "stun", strings.Join(cfg.WebRTC.STUNServers, ","), "STUN server URLs (comma-separated)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error, silent)")
	fs.BoolVar(&cfg.LogColor, "log-color", cfg.LogColor, "Enable colored log output")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if configPath != "" {
		if err := config.LoadFile(configPath, &cfg); err != nil {
			return cfg, err
		}
		// Flags given on the command line win over the file.
		stunServers = strings.Join(cfg.WebRTC.STUNServers, ",")
		if err := fs.Parse(args); err != nil {
			return cfg, err
		}
	}
	cfg.WebRTC.STUNServers = splitList(stunServers)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config:\n%w", err)
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
