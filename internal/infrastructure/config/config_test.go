package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
hub:
  serial: "102000012345"
  address: "192.168.1.50"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8080
schedule:
  timezone: "UTC"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Hub.Serial != "102000012345" {
		t.Errorf("Hub.Serial = %q, want %q", cfg.Hub.Serial, "102000012345")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.MQTT.Broker.ClientID != "test-client" {
		t.Errorf("MQTT.Broker.ClientID = %q, want %q", cfg.MQTT.Broker.ClientID, "test-client")
	}
	// Unset values keep their defaults.
	if cfg.Hub.KeepAliveInterval != 14 {
		t.Errorf("Hub.KeepAliveInterval = %d, want 14", cfg.Hub.KeepAliveInterval)
	}
	if cfg.Schedule.Spec != "* * * * *" {
		t.Errorf("Schedule.Spec = %q, want every minute", cfg.Schedule.Spec)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
hub:
  address: "192.168.1.50"
database:
  path: "/tmp/test.db"
`)
	if _, err := Load(path); err == nil {
		t.Error("Load() expected validation error for missing hub.serial, got nil")
	}
}

func TestLoad_EnvSuppliesSecret(t *testing.T) {
	path := writeConfig(t, `
hub:
  address: "192.168.1.50"
`)
	t.Setenv("NOBOHUB_HUB_SERIAL", "102000012345")
	t.Setenv("NOBOHUB_MQTT_PASSWORD", "s3cret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Hub.Serial != "102000012345" {
		t.Errorf("Hub.Serial = %q, want env value", cfg.Hub.Serial)
	}
	if cfg.MQTT.Auth.Password != "s3cret" {
		t.Errorf("MQTT.Auth.Password = %q, want env value", cfg.MQTT.Auth.Password)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Hub.Serial = "102000012345"
		cfg.Hub.Address = "192.168.1.50"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid config", func(*Config) {}, false},
		{"missing serial", func(c *Config) { c.Hub.Serial = "" }, true},
		{"serial not digits", func(c *Config) { c.Hub.Serial = "10200001234x" }, true},
		{"serial wrong length", func(c *Config) { c.Hub.Serial = "12345" }, true},
		{"short serial without discovery", func(c *Config) { c.Hub.Serial = "345" }, true},
		{"short serial with discovery", func(c *Config) {
			c.Hub.Serial = "345"
			c.Hub.Discovery = true
		}, false},
		{"no address without discovery", func(c *Config) { c.Hub.Address = "" }, true},
		{"no address with discovery", func(c *Config) {
			c.Hub.Address = ""
			c.Hub.Discovery = true
		}, false},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, true},
		{"invalid QoS", func(c *Config) { c.MQTT.QoS = 3 }, true},
		{"invalid port low", func(c *Config) { c.API.Port = 0 }, true},
		{"invalid port high", func(c *Config) { c.API.Port = 70000 }, true},
		{"port ignored when API disabled", func(c *Config) {
			c.API.Enabled = false
			c.API.Port = 0
		}, false},
		{"influx without url", func(c *Config) { c.InfluxDB.Enabled = true }, true},
		{"unknown timezone", func(c *Config) { c.Schedule.Timezone = "Mars/Olympus" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{Read: 30, Write: 45, Idle: 60},
		},
		Hub: HubConfig{
			DiscoveryTimeout:  20,
			ConnectTimeout:    10,
			KeepAliveInterval: 14,
			ReconnectInterval: 5,
			CommandTimeout:    3,
		},
	}

	tests := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"read", cfg.GetReadTimeout(), 30 * time.Second},
		{"write", cfg.GetWriteTimeout(), 45 * time.Second},
		{"idle", cfg.GetIdleTimeout(), 60 * time.Second},
		{"discovery", cfg.GetDiscoveryTimeout(), 20 * time.Second},
		{"connect", cfg.GetConnectTimeout(), 10 * time.Second},
		{"keepalive", cfg.GetKeepAliveInterval(), 14 * time.Second},
		{"reconnect", cfg.GetReconnectInterval(), 5 * time.Second},
		{"command", cfg.GetCommandTimeout(), 3 * time.Second},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s timeout = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("NOBOHUB_HUB_SERIAL", "102000012345")
	t.Setenv("NOBOHUB_HUB_ADDRESS", "10.0.0.9")
	t.Setenv("NOBOHUB_HUB_DISCOVERY", "true")
	t.Setenv("NOBOHUB_DATABASE_PATH", "/custom/path.db")
	t.Setenv("NOBOHUB_MQTT_HOST", "mqtt.example.com")
	t.Setenv("NOBOHUB_MQTT_USERNAME", "testuser")
	t.Setenv("NOBOHUB_MQTT_PASSWORD", "testpass")
	t.Setenv("NOBOHUB_API_HOST", "192.168.1.1")
	t.Setenv("NOBOHUB_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("NOBOHUB_SCHEDULE_TIMEZONE", "Europe/Oslo")
	t.Setenv("NOBOHUB_LOG_LEVEL", "debug")

	if err := applyEnvOverrides(cfg); err != nil {
		t.Fatalf("applyEnvOverrides() error = %v", err)
	}

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"Hub.Serial", cfg.Hub.Serial, "102000012345"},
		{"Hub.Address", cfg.Hub.Address, "10.0.0.9"},
		{"Hub.Discovery", cfg.Hub.Discovery, true},
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Schedule.Timezone", cfg.Schedule.Timezone, "Europe/Oslo"},
		{"Logging.Level", cfg.Logging.Level, "debug"},
		// Untouched values survive.
		{"MQTT.Broker.Port", cfg.MQTT.Broker.Port, 1883},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestApplyEnvOverrides_BadValue(t *testing.T) {
	t.Setenv("NOBOHUB_API_PORT", "eighty")
	if err := applyEnvOverrides(defaultConfig()); err == nil {
		t.Error("applyEnvOverrides() expected error for non-numeric port")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}
	if loc, err := cfg.Location(); err != nil || loc != time.Local {
		t.Errorf("defaultConfig Location() = %v, %v; want Local", loc, err)
	}
}
