// Package config loads and validates the aidotbridge YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultHTTPAddr    = "0.0.0.0:8080"
	DefaultMQTTPort    = 1883
	DefaultTopicPrefix = "aidot"
	DefaultRetryDelay  = 5 * time.Second
	DefaultBackend     = "sim"
	DefaultBlobPrefix  = "aidotbridge/bootstrap"
)

// Config is the full daemon configuration.
type Config struct {
	Log       LogConfig         `yaml:"log"`
	Backend   string            `yaml:"backend"`
	Bootstrap BootstrapConfig   `yaml:"bootstrap"`
	MQTT      MQTTConfig        `yaml:"mqtt"`
	HTTP      HTTPConfig        `yaml:"http"`
	Poll      PollConfig        `yaml:"poll"`
	Ledger    LedgerConfig      `yaml:"ledger"`
	ManualIPs map[string]string `yaml:"manual_ips"`
}

// LogConfig controls log level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	JSON   bool   `yaml:"json"`
	Colors bool   `yaml:"colors"`
}

// BootstrapConfig locates the bootstrap payload and its optional blob
// mirror.
type BootstrapConfig struct {
	Path string      `yaml:"path"`
	Blob *BlobConfig `yaml:"blob"`
}

// BlobConfig points at S3-compatible object storage mirroring the
// bootstrap payload. Credentials are read from files, never inline.
type BlobConfig struct {
	Endpoint      string `yaml:"endpoint"`
	Bucket        string `yaml:"bucket"`
	Prefix        string `yaml:"prefix"`
	AccessKeyFile string `yaml:"access_key_file"`
	SecretKeyFile string `yaml:"secret_key_file"`
	Region        string `yaml:"region"`
}

// MQTTConfig configures the broker session. An empty broker disables the
// MQTT surface entirely.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	Port        int    `yaml:"port"`
	TLS         bool   `yaml:"tls"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// Enabled reports whether an MQTT broker is configured.
func (c MQTTConfig) Enabled() bool { return c.Broker != "" }

// HTTPConfig configures the HTTP API listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// PollConfig tunes the per-light status polling loop.
type PollConfig struct {
	RetryDelay Duration `yaml:"retry_delay"`
}

// LedgerConfig configures the sqlite status ledger. An empty path disables
// it.
type LedgerConfig struct {
	Path          string   `yaml:"path"`
	RetentionDays int      `yaml:"retention_days"`
	PruneInterval Duration `yaml:"prune_interval"`
}

// Enabled reports whether the ledger is configured.
func (c LedgerConfig) Enabled() bool { return c.Path != "" }

// Load parses the YAML config file, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero values with daemon defaults.
func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = DefaultBackend
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}
	if c.MQTT.Port == 0 {
		c.MQTT.Port = DefaultMQTTPort
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = DefaultTopicPrefix
	}
	if c.Poll.RetryDelay <= 0 {
		c.Poll.RetryDelay = Duration(DefaultRetryDelay)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Bootstrap.Blob != nil && c.Bootstrap.Blob.Prefix == "" {
		c.Bootstrap.Blob.Prefix = DefaultBlobPrefix
	}
}

// Validate enforces required invariants beyond YAML typing.
func (c *Config) Validate() error {
	if c.Bootstrap.Path == "" {
		return fmt.Errorf("bootstrap.path is required")
	}
	if blob := c.Bootstrap.Blob; blob != nil {
		if blob.Endpoint == "" {
			return fmt.Errorf("bootstrap.blob.endpoint is required")
		}
		if blob.Bucket == "" {
			return fmt.Errorf("bootstrap.blob.bucket is required")
		}
		if blob.AccessKeyFile == "" {
			return fmt.Errorf("bootstrap.blob.access_key_file is required")
		}
		if blob.SecretKeyFile == "" {
			return fmt.Errorf("bootstrap.blob.secret_key_file is required")
		}
	}
	if c.MQTT.Enabled() && (c.MQTT.Port < 1 || c.MQTT.Port > 65535) {
		return fmt.Errorf("mqtt.port %d out of range", c.MQTT.Port)
	}
	for id, ip := range c.ManualIPs {
		if id == "" {
			return fmt.Errorf("manual_ips contains an empty device id (ip %q)", ip)
		}
	}
	return nil
}

// Duration wraps time.Duration for YAML unmarshalling ("5s", "2m").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }
