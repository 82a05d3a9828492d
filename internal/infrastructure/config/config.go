package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for HomeWatt Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Topology TopologyConfig `yaml:"topology"`
	Database DatabaseConfig `yaml:"database"`
	Fieldbus FieldbusConfig `yaml:"fieldbus"`
	Cloud    CloudConfig    `yaml:"cloud"`
	Engine   EngineConfig   `yaml:"engine"`
	API      APIConfig      `yaml:"api"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// TopologyConfig points at the static room/device topology file.
type TopologyConfig struct {
	Path string `yaml:"path"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// FieldbusConfig contains Modbus TCP gateway settings.
type FieldbusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`

	// TransactionTimeout bounds a single coil read/write, in seconds.
	TransactionTimeout int `yaml:"transaction_timeout"`

	// PollInterval is how often all rooms are polled for externally
	// flipped switches, in seconds.
	PollInterval int `yaml:"poll_interval"`
}

// CloudConfig contains MQTT broker settings for the cloud sync namespace.
type CloudConfig struct {
	Enabled   bool                 `yaml:"enabled"`
	Broker    CloudBrokerConfig    `yaml:"broker"`
	Auth      CloudAuthConfig      `yaml:"auth"`
	QoS       int                  `yaml:"qos"`
	Reconnect CloudReconnectConfig `yaml:"reconnect"`
}

// CloudBrokerConfig contains broker connection details.
type CloudBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// CloudAuthConfig contains broker authentication credentials.
type CloudAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// CloudReconnectConfig contains broker reconnection settings, in seconds.
type CloudReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// EngineConfig contains reconciliation engine tuning.
type EngineConfig struct {
	// ReportInterval is how often aggregate power/cost figures are
	// pushed to the cloud namespace, in seconds.
	ReportInterval int `yaml:"report_interval"`

	// CommandRetries is the number of cloud publish attempts for a
	// locally issued command before it is dropped.
	CommandRetries int `yaml:"command_retries"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings, in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HOMEWATT_SECTION_KEY
// For example: HOMEWATT_DATABASE_PATH, HOMEWATT_CLOUD_PASSWORD
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "HomeWatt",
			Timezone: "Asia/Ho_Chi_Minh",
		},
		Topology: TopologyConfig{
			Path: "./configs/topology.yaml",
		},
		Database: DatabaseConfig{
			Path:        "./data/homewatt.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Fieldbus: FieldbusConfig{
			Enabled:            true,
			Host:               "localhost",
			Port:               502,
			TransactionTimeout: 2,
			PollInterval:       5,
		},
		Cloud: CloudConfig{
			Enabled: true,
			Broker: CloudBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "homewatt-core",
			},
			QoS: 1,
			Reconnect: CloudReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Engine: EngineConfig{
			ReportInterval: 10,
			CommandRetries: 3,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HOMEWATT_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HOMEWATT_TOPOLOGY_PATH"); v != "" {
		cfg.Topology.Path = v
	}
	if v := os.Getenv("HOMEWATT_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Fieldbus
	if v := os.Getenv("HOMEWATT_FIELDBUS_HOST"); v != "" {
		cfg.Fieldbus.Host = v
	}

	// Cloud broker
	if v := os.Getenv("HOMEWATT_CLOUD_HOST"); v != "" {
		cfg.Cloud.Broker.Host = v
	}
	if v := os.Getenv("HOMEWATT_CLOUD_USERNAME"); v != "" {
		cfg.Cloud.Auth.Username = v
	}
	if v := os.Getenv("HOMEWATT_CLOUD_PASSWORD"); v != "" {
		cfg.Cloud.Auth.Password = v
	}

	// API
	if v := os.Getenv("HOMEWATT_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("HOMEWATT_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if c.Topology.Path == "" {
		errs = append(errs, "topology.path is required")
	}
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.Fieldbus.Enabled {
		if c.Fieldbus.Port < 1 || c.Fieldbus.Port > 65535 {
			errs = append(errs, "fieldbus.port must be between 1 and 65535")
		}
		if c.Fieldbus.TransactionTimeout < 1 {
			errs = append(errs, "fieldbus.transaction_timeout must be at least 1 second")
		}
		if c.Fieldbus.PollInterval < 1 {
			errs = append(errs, "fieldbus.poll_interval must be at least 1 second")
		}
	}

	if c.Cloud.Enabled {
		if c.Cloud.QoS < 0 || c.Cloud.QoS > 2 {
			errs = append(errs, "cloud.qos must be 0, 1, or 2")
		}
		if c.Cloud.Broker.ClientID == "" {
			errs = append(errs, "cloud.broker.client_id is required")
		}
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// TransactionTimeout returns the fieldbus per-transaction timeout as a Duration.
func (c *Config) TransactionTimeout() time.Duration {
	return time.Duration(c.Fieldbus.TransactionTimeout) * time.Second
}

// PollInterval returns the fieldbus poll interval as a Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Fieldbus.PollInterval) * time.Second
}

// ReportInterval returns the engine report interval as a Duration.
func (c *Config) ReportInterval() time.Duration {
	return time.Duration(c.Engine.ReportInterval) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
