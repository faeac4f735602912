package main

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/facewatch/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "facewatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(nil, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)
}

func TestRotationFlagFollowsSource(t *testing.T) {
	dir := t.TempDir()
	cfg, err := loadConfig([]string{"-source", "dir", "-replay-dir", dir, "-replay-rotation", "270"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 270, cfg.Replay.Rotation)
	assert.Equal(t, 0, cfg.Camera.Rotation)

	cfg, err = loadConfig([]string{"-source", "shm", "-shm-rotation", "90"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 90, cfg.Shm.Rotation)
	assert.Equal(t, 0, cfg.Replay.Rotation)

	cfg, err = loadConfig([]string{"-rotation", "180"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 180, cfg.Camera.Rotation)
}

func TestInvalidRotationRejected(t *testing.T) {
	_, err := loadConfig([]string{"-source", "shm", "-shm-rotation", "45"}, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shm.rotation")
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	path := writeConfig(t, `
source: shm
shm:
  name: /from_file
  rotation: 90
webrtc:
  stun_servers: ["stun:file.example.org:3478"]
log_level: debug
`)
	cfg, err := loadConfig([]string{"-config", path, "-shm-rotation", "180"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, config.SourceShm, cfg.Source)
	assert.Equal(t, "/from_file", cfg.Shm.Name)
	assert.Equal(t, 180, cfg.Shm.Rotation)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"stun:file.example.org:3478"}, cfg.WebRTC.STUNServers)
}

func TestSTUNFlagSplitsList(t *testing.T) {
	cfg, err := loadConfig([]string{"-stun", " stun:a.example.org:3478, ,stun:b.example.org:3478 "}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, []string{"stun:a.example.org:3478", "stun:b.example.org:3478"}, cfg.WebRTC.STUNServers)

	cfg, err = loadConfig([]string{"-stun", ""}, io.Discard)
	require.NoError(t, err)
	assert.Empty(t, cfg.WebRTC.STUNServers)
}

func TestHelpFlag(t *testing.T) {
	_, err := loadConfig([]string{"-h"}, io.Discard)
	assert.ErrorIs(t, err, flag.ErrHelp)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := loadConfig([]string{"-config", filepath.Join(t.TempDir(), "nope.yaml")}, io.Discard)
	assert.Error(t, err)
}
