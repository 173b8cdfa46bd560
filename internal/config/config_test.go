package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "printer-service", cfg.App.Name)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 9100, cfg.Discovery.Network.Port)
	assert.Equal(t, time.Second, cfg.Discovery.Network.Timeout)
	assert.Equal(t, 9600, cfg.Device.DefaultPort.Serial.BaudRate)
	assert.Equal(t, 200*time.Millisecond, cfg.Device.RetryDelay)
	assert.NotEmpty(t, cfg.Discovery.Network.Candidates)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "printers.yaml")
	content := []byte(`
logging:
  level: debug
store:
  path: /tmp/custom.db
discovery:
  network:
    candidates: ["10.0.0.5"]
    timeout: 250ms
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	t.Setenv("PRINTER_SERVICE_LOGGING_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "/tmp/custom.db", cfg.Store.Path)
	assert.Equal(t, []string{"10.0.0.5"}, cfg.Discovery.Network.Candidates)
	assert.Equal(t, 250*time.Millisecond, cfg.Discovery.Network.Timeout)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: loud\n"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "logging.level")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
