package webmonitor

import (
	"time"
)

// Config defines the runtime configuration for the web monitor server.
type Config struct {
	Addr            string        `yaml:"addr"`
	AssetsDir       string        `yaml:"assets_dir"`
	KeepAlive       time.Duration `yaml:"keepalive"`
	PreviewInterval time.Duration `yaml:"preview_interval"`
	PreviewQuality  int           `yaml:"preview_quality"`
	PreviewWidth    int           `yaml:"preview_width"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		AssetsDir:       "./web_assets",
		KeepAlive:       30 * time.Second,
		PreviewInterval: 5 * time.Second,
		PreviewQuality:  75,
		PreviewWidth:    640,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.KeepAlive <= 0 {
		c.KeepAlive = def.KeepAlive
	}
	if c.PreviewInterval <= 0 {
		c.PreviewInterval = def.PreviewInterval
	}
	if c.PreviewQuality <= 0 || c.PreviewQuality > 100 {
		c.PreviewQuality = def.PreviewQuality
	}
	return c
}
