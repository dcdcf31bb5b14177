package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// MinUploadIntervalMS is the floor on the upload timer; anything lower
// is rejected at the configuration boundary, not re-validated by the
// core components.
const MinUploadIntervalMS = 5000

// Config is the device's configuration. The core consumes read-only
// copies of these values; nothing holds a live alias into this struct.
type Config struct {
	// DeviceID identifies this device in upload envelopes and status
	// topics.
	DeviceID string `yaml:"device_id"`

	// Collector settings.
	CollectorURL     string `yaml:"collector_url"`
	UploadIntervalMS int    `yaml:"upload_interval_ms"`
	MaxBatch         int    `yaml:"max_batch"`

	// QueuePath is the durable scan queue file.
	QueuePath string `yaml:"queue_path"`

	// Reader configuration.
	Reader ReaderConfig `yaml:"reader"`

	// Link holds wireless/broker settings for the connectivity layer.
	Link LinkConfig `yaml:"link"`
}

// ReaderConfig selects and configures the card reader.
type ReaderConfig struct {
	// Type is "serial" or "stub".
	Type   string `yaml:"type"`
	Device string `yaml:"device"`
}

// LinkConfig holds broker connection settings.
type LinkConfig struct {
	BrokerURL      string `yaml:"broker_url"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	CACert         string `yaml:"ca_cert"`
	ClientCert     string `yaml:"client_cert"`
	ClientKey      string `yaml:"client_key"`
	RetryIntervalS int    `yaml:"retry_interval_s"`
}

// Load reads and validates the yaml config at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces the configuration boundary's invariants.
func (c *Config) Validate() error {
	if c.DeviceID == "" {
		return fmt.Errorf("device_id is required")
	}
	if c.QueuePath == "" {
		return fmt.Errorf("queue_path is required")
	}
	if c.UploadIntervalMS < MinUploadIntervalMS {
		return fmt.Errorf("upload_interval_ms %d is below the minimum %d", c.UploadIntervalMS, MinUploadIntervalMS)
	}
	return nil
}

// UploadInterval returns the upload timer period.
func (c *Config) UploadInterval() time.Duration {
	return time.Duration(c.UploadIntervalMS) * time.Millisecond
}

// RetryInterval returns the minimum connect-attempt spacing.
func (c *LinkConfig) RetryInterval() time.Duration {
	if c.RetryIntervalS <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.RetryIntervalS) * time.Second
}
