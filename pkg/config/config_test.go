package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

const minimalConfig = `
devices:
  garage:
    address: "F8:55:48:17:99:EB"
    family: controller
`

func TestLoadConfigAppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Connection.ConnectTimeout.Std() != 10*time.Second {
		t.Errorf("ConnectTimeout = %v, expected 10s default", cfg.Connection.ConnectTimeout.Std())
	}
	if cfg.Connection.SectionTimeout.Std() != 5*time.Second {
		t.Errorf("SectionTimeout = %v, expected 5s default", cfg.Connection.SectionTimeout.Std())
	}
	if cfg.Connection.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, expected 3", cfg.Connection.MaxRetries)
	}
	if cfg.Connection.BackoffBase.Std() != 500*time.Millisecond {
		t.Errorf("BackoffBase = %v, expected 500ms", cfg.Connection.BackoffBase.Std())
	}
	if cfg.Polling.Interval.Std() != 30*time.Second {
		t.Errorf("Polling.Interval = %v, expected 30s", cfg.Polling.Interval.Std())
	}

	dev := cfg.Devices["garage"]
	if dev.Name != "garage" {
		t.Errorf("device name = %q, expected map key fallback", dev.Name)
	}
	if dev.ServiceUUID != DefaultServiceUUID {
		t.Errorf("ServiceUUID = %q, expected default", dev.ServiceUUID)
	}
	if dev.WriteUUID != DefaultWriteUUID || dev.NotifyUUID != DefaultNotifyUUID {
		t.Error("characteristic UUIDs did not default")
	}
	if !dev.IsEnabled() {
		t.Error("device without enabled key should default to enabled")
	}
}

func TestLoadConfigParsesDurationsAndOverrides(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
devices:
  shed:
    name: "Shed Inverter"
    address: "C0:FF:EE:00:00:01"
    family: inverter
    enabled: false
connection:
  connect_timeout: 3s
  section_timeout: 500ms
  max_retries: 5
polling:
  interval: 2m
mqtt:
  enabled: true
  broker: broker.local
  topic_prefix: energy
`))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Connection.ConnectTimeout.Std() != 3*time.Second {
		t.Errorf("ConnectTimeout = %v", cfg.Connection.ConnectTimeout.Std())
	}
	if cfg.Connection.SectionTimeout.Std() != 500*time.Millisecond {
		t.Errorf("SectionTimeout = %v", cfg.Connection.SectionTimeout.Std())
	}
	if cfg.Polling.Interval.Std() != 2*time.Minute {
		t.Errorf("Polling.Interval = %v", cfg.Polling.Interval.Std())
	}
	if cfg.MQTT.TopicPrefix != "energy" {
		t.Errorf("TopicPrefix = %q", cfg.MQTT.TopicPrefix)
	}
	if cfg.MQTT.Port != 1883 {
		t.Errorf("MQTT.Port = %d, expected default 1883", cfg.MQTT.Port)
	}

	dev := cfg.Devices["shed"]
	if dev.Name != "Shed Inverter" {
		t.Errorf("explicit name overridden: %q", dev.Name)
	}
	if dev.IsEnabled() {
		t.Error("enabled: false ignored")
	}
}

func TestLoadConfigRejectsInvalidDuration(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
devices:
  garage:
    address: "F8:55:48:17:99:EB"
    family: controller
connection:
  connect_timeout: soon
`))
	if err == nil || !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("expected duration parse error, got %v", err)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "no devices",
			body: `devices: {}`,
			want: "no devices",
		},
		{
			name: "missing address",
			body: `
devices:
  garage:
    family: controller
`,
			want: "address is required",
		},
		{
			name: "unknown family",
			body: `
devices:
  garage:
    address: "F8:55:48:17:99:EB"
    family: toaster
`,
			want: "unknown family",
		},
		{
			name: "mqtt without broker",
			body: minimalConfig + `
mqtt:
  enabled: true
`,
			want: "mqtt.broker is required",
		},
		{
			name: "negative retries",
			body: minimalConfig + `
connection:
  max_retries: -1
`,
			want: "max_retries",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("invalid configuration accepted")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Error("expected an error for a missing configuration file")
	}
}
