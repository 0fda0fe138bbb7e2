package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"ble-solar-monitor/pkg/logger"
	"ble-solar-monitor/pkg/registers"
)

// Duration wraps time.Duration so YAML values can be written as "10s", "500ms"
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the complete application configuration
type Config struct {
	Devices    map[string]Device    `yaml:"devices"`
	Connection ConnectionConfig     `yaml:"connection"`
	Polling    PollingConfig        `yaml:"polling"`
	MQTT       MQTTConfig           `yaml:"mqtt"`
	Metrics    MetricsConfig        `yaml:"metrics"`
	Logging    logger.LoggingConfig `yaml:"logging"`
}

// Device describes one monitored BLE device
type Device struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"` // BLE MAC, e.g. "F8:55:48:17:99:EB"
	Family  string `yaml:"family"`  // "controller" or "inverter"

	// GATT endpoints; family-specific but structurally fixed. Empty values
	// take the defaults below.
	ServiceUUID string `yaml:"service_uuid,omitempty"`
	WriteUUID   string `yaml:"write_uuid,omitempty"`
	NotifyUUID  string `yaml:"notify_uuid,omitempty"`

	Enabled *bool `yaml:"enabled,omitempty"` // default true
}

// IsEnabled reports whether the device should be monitored
func (d Device) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// Default GATT endpoints shared by the supported device families
const (
	DefaultServiceUUID = "0000ffd0-0000-1000-8000-00805f9b34fb"
	DefaultWriteUUID   = "0000ffd1-0000-1000-8000-00805f9b34fb"
	DefaultNotifyUUID  = "0000fff1-0000-1000-8000-00805f9b34fb"
)

// ConnectionConfig is the timeout/retry surface recognized by the core
type ConnectionConfig struct {
	ConnectTimeout Duration `yaml:"connect_timeout"`
	SectionTimeout Duration `yaml:"section_timeout"`
	MaxRetries     int      `yaml:"max_retries"`
	BackoffBase    Duration `yaml:"backoff_base"`
	BackoffCap     Duration `yaml:"backoff_cap"`
	SettleDelay    Duration `yaml:"settle_delay"`
}

// PollingConfig drives the periodic polling scheduler
type PollingConfig struct {
	Interval Duration `yaml:"interval"`
	// UnhealthyMultiplier stretches the interval for devices whose health
	// verdict is negative, so a dead device is probed rarely
	UnhealthyMultiplier int `yaml:"unhealthy_multiplier"`
}

// MQTTConfig contains the optional snapshot publisher settings
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	Port        int    `yaml:"port"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	KeepAlive   int    `yaml:"keep_alive"` // seconds
}

// MetricsConfig contains the optional metrics endpoint settings
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// LoadConfig loads configuration from the specified file, falling back to
// the usual system locations
func LoadConfig(configPath string) (*Config, error) {
	paths := []string{
		configPath,
		"/etc/ble-solar-monitor/config.yaml",
		"./config.yaml",
	}

	var data []byte
	var err error
	var usedPath string

	for _, path := range paths {
		if path == "" {
			continue
		}
		// #nosec G304 - paths come from a fixed list of configuration locations
		data, err = os.ReadFile(path)
		if err == nil {
			usedPath = path
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read configuration from any of %v: %w", paths, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing configuration %s: %w", usedPath, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills in the zero-valued knobs
func (c *Config) applyDefaults() {
	if c.Connection.ConnectTimeout == 0 {
		c.Connection.ConnectTimeout = Duration(10 * time.Second)
	}
	if c.Connection.SectionTimeout == 0 {
		c.Connection.SectionTimeout = Duration(5 * time.Second)
	}
	if c.Connection.MaxRetries == 0 {
		c.Connection.MaxRetries = 3
	}
	if c.Connection.BackoffBase == 0 {
		c.Connection.BackoffBase = Duration(500 * time.Millisecond)
	}
	if c.Connection.BackoffCap == 0 {
		c.Connection.BackoffCap = Duration(8 * time.Second)
	}
	if c.Connection.SettleDelay == 0 {
		c.Connection.SettleDelay = Duration(1 * time.Second)
	}
	if c.Polling.Interval == 0 {
		c.Polling.Interval = Duration(30 * time.Second)
	}
	if c.Polling.UnhealthyMultiplier == 0 {
		c.Polling.UnhealthyMultiplier = 4
	}
	if c.MQTT.Port == 0 {
		c.MQTT.Port = 1883
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "ble-solar-monitor"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "solar"
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = 9099
	}

	for id, dev := range c.Devices {
		if dev.Name == "" {
			dev.Name = id
		}
		if dev.ServiceUUID == "" {
			dev.ServiceUUID = DefaultServiceUUID
		}
		if dev.WriteUUID == "" {
			dev.WriteUUID = DefaultWriteUUID
		}
		if dev.NotifyUUID == "" {
			dev.NotifyUUID = DefaultNotifyUUID
		}
		c.Devices[id] = dev
	}
}

// Validate checks the configuration for mistakes a typo would cause
func (c *Config) Validate() error {
	if len(c.Devices) == 0 {
		return fmt.Errorf("configuration declares no devices")
	}
	for id, dev := range c.Devices {
		if dev.Address == "" {
			return fmt.Errorf("device %q: address is required", id)
		}
		if !registers.Family(dev.Family).Valid() {
			return fmt.Errorf("device %q: unknown family %q (want %q or %q)",
				id, dev.Family, registers.FamilyController, registers.FamilyInverter)
		}
	}
	if c.Connection.MaxRetries < 1 {
		return fmt.Errorf("connection.max_retries must be at least 1")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	return nil
}
