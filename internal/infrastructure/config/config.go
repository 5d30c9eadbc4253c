package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable override.
const EnvPrefix = "NOBOHUB_"

// Config is the root configuration structure for the Nobø hub service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Hub      HubConfig      `yaml:"hub" envPrefix:"HUB_"`
	Database DatabaseConfig `yaml:"database" envPrefix:"DATABASE_"`
	MQTT     MQTTConfig     `yaml:"mqtt" envPrefix:"MQTT_"`
	API      APIConfig      `yaml:"api" envPrefix:"API_"`
	InfluxDB InfluxDBConfig `yaml:"influxdb" envPrefix:"INFLUXDB_"`
	Schedule ScheduleConfig `yaml:"schedule" envPrefix:"SCHEDULE_"`
	Logging  LoggingConfig  `yaml:"logging" envPrefix:"LOG_"`
}

// HubConfig contains the Nobø hub connection settings.
type HubConfig struct {
	// Serial is the full 12 digit serial, or the last 3 digits printed on
	// the hub label when Discovery is enabled.
	Serial string `yaml:"serial" env:"SERIAL"`

	// Address is the hub IP, optionally with port. Empty requires Discovery.
	Address string `yaml:"address" env:"ADDRESS"`

	// Discovery listens for hub UDP broadcasts to find the address and
	// the first 9 serial digits.
	Discovery bool `yaml:"discovery" env:"DISCOVERY"`

	// DiscoveryTimeout in seconds.
	DiscoveryTimeout int `yaml:"discovery_timeout" env:"DISCOVERY_TIMEOUT"`

	// ConnectTimeout in seconds.
	ConnectTimeout int `yaml:"connect_timeout" env:"CONNECT_TIMEOUT"`

	// KeepAliveInterval in seconds.
	KeepAliveInterval int `yaml:"keepalive_interval" env:"KEEPALIVE_INTERVAL"`

	// ReconnectInterval in seconds.
	ReconnectInterval int `yaml:"reconnect_interval" env:"RECONNECT_INTERVAL"`

	// CommandTimeout in seconds.
	CommandTimeout int `yaml:"command_timeout" env:"COMMAND_TIMEOUT"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path" env:"PATH"`
	WALMode     bool   `yaml:"wal_mode" env:"WAL_MODE"`
	BusyTimeout int    `yaml:"busy_timeout" env:"BUSY_TIMEOUT"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos" env:"QOS"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	TLS      bool   `yaml:"tls" env:"TLS"`
	ClientID string `yaml:"client_id" env:"CLIENT_ID"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username" env:"USERNAME"`
	Password string `yaml:"password" env:"PASSWORD"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled" env:"ENABLED"`
	Host     string           `yaml:"host" env:"HOST"`
	Port     int              `yaml:"port" env:"PORT"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ORIGINS"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled" env:"ENABLED"`
	URL           string `yaml:"url" env:"URL"`
	Token         string `yaml:"token" env:"TOKEN"`
	Org           string `yaml:"org" env:"ORG"`
	Bucket        string `yaml:"bucket" env:"BUCKET"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// ScheduleConfig controls periodic week profile evaluation.
type ScheduleConfig struct {
	// Spec is a 5-field cron expression.
	Spec string `yaml:"spec" env:"SPEC"`

	// Timezone is the IANA zone the hub's week profiles are written in.
	Timezone string `yaml:"timezone" env:"TIMEZONE"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
	Output string `yaml:"output" env:"OUTPUT"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: NOBOHUB_SECTION_KEY
// For example: NOBOHUB_HUB_SERIAL, NOBOHUB_MQTT_PASSWORD
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Hub: HubConfig{
			DiscoveryTimeout:  30,
			ConnectTimeout:    10,
			KeepAliveInterval: 14,
			ReconnectInterval: 5,
			CommandTimeout:    5,
		},
		Database: DatabaseConfig{
			Path:        "./data/nobohub.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "nobohub",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "nobohub",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Schedule: ScheduleConfig{
			Spec:     "* * * * *",
			Timezone: "Local",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies NOBOHUB_* environment variables on top of cfg.
// Unset variables leave the file value in place.
func applyEnvOverrides(cfg *Config) error {
	return env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix})
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Hub validation
	if c.Hub.Serial == "" {
		errs = append(errs, "hub.serial is required (set NOBOHUB_HUB_SERIAL environment variable)")
	} else if !isDigits(c.Hub.Serial) || (len(c.Hub.Serial) != 12 && len(c.Hub.Serial) != 3) {
		errs = append(errs, "hub.serial must be 12 digits, or the last 3 digits with discovery enabled")
	} else if len(c.Hub.Serial) == 3 && !c.Hub.Discovery {
		errs = append(errs, "hub.serial of 3 digits requires hub.discovery")
	}
	if c.Hub.Address == "" && !c.Hub.Discovery {
		errs = append(errs, "hub.address is required unless hub.discovery is enabled")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	// Schedule validation
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Sprintf("schedule.timezone: %v", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// Location returns the time zone week profiles are evaluated in.
// Empty and "Local" mean the host zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Schedule.Timezone == "" || c.Schedule.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Schedule.Timezone)
}

// seconds converts a whole-second setting to a Duration.
func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return seconds(c.API.Timeouts.Read)
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return seconds(c.API.Timeouts.Write)
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return seconds(c.API.Timeouts.Idle)
}

// GetDiscoveryTimeout returns how long to wait for a hub broadcast.
func (c *Config) GetDiscoveryTimeout() time.Duration {
	return seconds(c.Hub.DiscoveryTimeout)
}

// GetConnectTimeout returns the hub dial and handshake timeout.
func (c *Config) GetConnectTimeout() time.Duration {
	return seconds(c.Hub.ConnectTimeout)
}

// GetKeepAliveInterval returns the hub keepalive interval.
func (c *Config) GetKeepAliveInterval() time.Duration {
	return seconds(c.Hub.KeepAliveInterval)
}

// GetReconnectInterval returns the initial hub reconnect delay.
func (c *Config) GetReconnectInterval() time.Duration {
	return seconds(c.Hub.ReconnectInterval)
}

// GetCommandTimeout returns the per-command send timeout.
func (c *Config) GetCommandTimeout() time.Duration {
	return seconds(c.Hub.CommandTimeout)
}
