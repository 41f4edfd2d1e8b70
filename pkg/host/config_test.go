package host

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
service:
  name: test-host
  version: 1.2.3
store:
  path: /tmp/test.ring
  threshold: warn
  unlink_on_shutdown: true
control_plane:
  port: 7070
workers:
  count: 2
  command: /usr/bin/worker
  args: ["-v"]
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "test-host", config.Service.Name)
	assert.Equal(t, "1.2.3", config.Service.Version)
	assert.Equal(t, "/tmp/test.ring", config.Store.Path)
	assert.Equal(t, "warn", config.Store.Threshold)
	assert.True(t, config.Store.UnlinkOnShutdown)
	assert.Equal(t, 7070, config.ControlPlane.Port)
	assert.Equal(t, 2, config.Workers.Count)
	assert.Equal(t, "/usr/bin/worker", config.Workers.Command)
	assert.Equal(t, []string{"-v"}, config.Workers.Args)
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `service: {name: minimal}`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "minimal", config.Service.Name)
	assert.Equal(t, "/dev/shm/shmlog.ring", config.Store.Path)
	assert.Equal(t, "error", config.Store.Threshold)
	assert.Equal(t, 9090, config.ControlPlane.Port)
	assert.Equal(t, 0, config.Workers.Count)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	path := writeConfig(t, "service: [not: a: mapping")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig("shmlog-host", "0.1.0")

	assert.Equal(t, "shmlog-host", config.Service.Name)
	assert.Equal(t, "0.1.0", config.Service.Version)
	assert.Equal(t, "/dev/shm/shmlog.ring", config.Store.Path)
	assert.Equal(t, "error", config.Store.Threshold)
	assert.Equal(t, 9090, config.ControlPlane.Port)
}

func TestThresholdLevel(t *testing.T) {
	cases := []struct {
		threshold string
		want      slog.Level
	}{
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"warn", slog.LevelWarn},
		{"info", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"error-1", slog.LevelError - 1},
	}

	for _, tc := range cases {
		t.Run(tc.threshold, func(t *testing.T) {
			store := StoreConfig{Threshold: tc.threshold}
			level, err := store.ThresholdLevel()
			require.NoError(t, err)
			assert.Equal(t, tc.want, level)
		})
	}
}

func TestThresholdLevelInvalid(t *testing.T) {
	store := StoreConfig{Threshold: "catastrophic"}
	_, err := store.ThresholdLevel()
	assert.Error(t, err)
}
