package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illmade-knight/go-cardlog/pkg/config"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cardlog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func TestLoad_Valid(t *testing.T) {
	path := writeConfig(t, `
device_id: door-7
collector_url: http://collector.local/upload
upload_interval_ms: 10000
max_batch: 50
queue_path: /var/lib/cardlog/scans.log
reader:
  type: serial
  device: /dev/ttyUSB0
link:
  broker_url: tls://broker.local:8883
  retry_interval_s: 15
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "door-7", cfg.DeviceID)
	assert.Equal(t, "http://collector.local/upload", cfg.CollectorURL)
	assert.Equal(t, 10*time.Second, cfg.UploadInterval())
	assert.Equal(t, 50, cfg.MaxBatch)
	assert.Equal(t, "serial", cfg.Reader.Type)
	assert.Equal(t, 15*time.Second, cfg.Link.RetryInterval())
}

func TestLoad_RejectsSubMinimumInterval(t *testing.T) {
	path := writeConfig(t, `
device_id: door-7
upload_interval_ms: 1000
queue_path: /var/lib/cardlog/scans.log
`)

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload_interval_ms")
}

func TestLoad_RequiresDeviceID(t *testing.T) {
	path := writeConfig(t, `
upload_interval_ms: 10000
queue_path: /var/lib/cardlog/scans.log
`)

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device_id")
}

func TestLinkConfig_RetryIntervalDefault(t *testing.T) {
	var link config.LinkConfig
	assert.Equal(t, 10*time.Second, link.RetryInterval())
}
