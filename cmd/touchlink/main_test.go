package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/touchlink/internal/config"
	"github.com/banshee-data/touchlink/internal/handler"
	"github.com/banshee-data/touchlink/internal/timeutil"
)

// resetFlags restores flag values after a test changes them.
func resetFlags(t *testing.T) {
	t.Helper()
	saved := struct {
		config, port, listen, db string
		dev                      bool
		fps                      float64
	}{*configPath, *port, *listen, *dbPath, *devMode, *fps}
	t.Cleanup(func() {
		*configPath, *port, *listen, *dbPath = saved.config, saved.port, saved.listen, saved.db
		*devMode, *fps = saved.dev, saved.fps
	})
}

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, "", *configPath)
	assert.Equal(t, "", *port)
	assert.False(t, *devMode)
	assert.Equal(t, "", *listen)
	assert.Equal(t, "", *dbPath)
	assert.Equal(t, 0.0, *fps)
	assert.False(t, *showVersion)
	assert.False(t, *listPorts)
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	resetFlags(t)
	path := filepath.Join(t.TempDir(), "tl.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"serial_port": "/dev/ttyUSB0", "frame_rate": 30, "listen": ":1"}`), 0644))

	*configPath = path
	*listen = ":2"
	*fps = 120

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", cfg.GetSerialPort())
	assert.Equal(t, ":2", cfg.GetListen())
	assert.Equal(t, 120.0, cfg.GetFrameRate())
}

func TestLoadConfig_NoFile(t *testing.T) {
	resetFlags(t)
	t.Chdir(t.TempDir())
	*devMode = true

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.GetDev())
	assert.Equal(t, config.DefaultListen, cfg.GetListen())
}

func TestLoadConfig_InvalidFlag(t *testing.T) {
	resetFlags(t)
	t.Chdir(t.TempDir())
	*fps = -1

	_, err := loadConfig()
	assert.ErrorContains(t, err, "frame_rate")
}

func TestNewHandler(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))

	dev := true
	h, err := newHandler(&config.Config{Dev: &dev}, clock)
	require.NoError(t, err)
	assert.IsType(t, &handler.Synthetic{}, h)

	_, err = newHandler(config.Empty(), clock)
	assert.Error(t, err)

	p := "/dev/ttyACM0"
	h, err = newHandler(&config.Config{SerialPort: &p}, clock)
	require.NoError(t, err)
	assert.IsType(t, &handler.Service{}, h)
	assert.False(t, h.IsInitialized())
}
