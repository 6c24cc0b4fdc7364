package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Input Dock Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Focus     FocusConfig     `yaml:"focus"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// ServiceConfig contains instance-level identification.
type ServiceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DiscoveryConfig contains HID discovery provider settings.
type DiscoveryConfig struct {
	// Backend selects the discovery provider. Currently only "hid" ships;
	// "none" disables hardware discovery (events must be injected by the host).
	Backend string `yaml:"backend"`

	// PollInterval is how often attached devices are re-enumerated (seconds).
	PollInterval int `yaml:"poll_interval"`

	// WirelessPollInterval is the faster cadence used while wireless
	// discovery is active (seconds).
	WirelessPollInterval int `yaml:"wireless_poll_interval"`

	// VendorAllowList restricts enumeration to the given USB vendor IDs.
	// Empty means all vendors.
	VendorAllowList []uint16 `yaml:"vendor_allow_list"`

	// AutoAssignSlots controls whether new devices receive a slot index
	// automatically on connect.
	AutoAssignSlots bool `yaml:"auto_assign_slots"`
}

// FocusConfig contains keyboard focus tracker settings.
type FocusConfig struct {
	// DebounceMs is the confirmation delay applied to "entered focus-deferring
	// environment" signals before a focus change is published (milliseconds).
	DebounceMs int `yaml:"debounce_ms"`

	// Surfaces lists the display surfaces to track at startup. Environment
	// signals for them arrive over MQTT or the focus API. Surface IDs appear
	// in MQTT topic segments, so they must be topic-safe (no '/', '+', '#').
	Surfaces []string `yaml:"surfaces"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// JournalRetentionDays is how long connect/disconnect journal entries are
	// kept before pruning. 0 disables pruning.
	JournalRetentionDays int `yaml:"journal_retention_days"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
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
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
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

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT bearer-token settings for the read-only API.
type JWTConfig struct {
	// Enabled gates the auth middleware. When false the API is open; this is
	// acceptable only for loopback deployments.
	Enabled bool   `yaml:"enabled"`
	Secret  string `yaml:"secret"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: INPUTDOCK_SECTION_KEY
// For example: INPUTDOCK_DATABASE_PATH, INPUTDOCK_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := Default()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults. Useful for tests and for
// embedding hosts that configure programmatically rather than from YAML.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			ID:   "inputdock-001",
			Name: "Input Dock",
		},
		Discovery: DiscoveryConfig{
			Backend:              "hid",
			PollInterval:         2,
			WirelessPollInterval: 1,
			AutoAssignSlots:      true,
		},
		Focus: FocusConfig{
			DebounceMs: 500,
		},
		Database: DatabaseConfig{
			Path:                 "./data/inputdock.db",
			WALMode:              true,
			BusyTimeout:          5,
			JournalRetentionDays: 30,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "inputdock-core",
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
			Host:    "127.0.0.1",
			Port:    8094,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: INPUTDOCK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("INPUTDOCK_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("INPUTDOCK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("INPUTDOCK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("INPUTDOCK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("INPUTDOCK_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("INPUTDOCK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - JWT secret (always override in production)
	if v := os.Getenv("INPUTDOCK_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Service validation
	if c.Service.ID == "" {
		errs = append(errs, "service.id is required")
	}

	// Discovery validation
	switch c.Discovery.Backend {
	case "hid", "none":
	default:
		errs = append(errs, "discovery.backend must be \"hid\" or \"none\"")
	}
	if c.Discovery.PollInterval < 1 {
		errs = append(errs, "discovery.poll_interval must be at least 1 second")
	}

	// Focus validation
	if c.Focus.DebounceMs < 0 {
		errs = append(errs, "focus.debounce_ms must not be negative")
	}
	for _, surface := range c.Focus.Surfaces {
		if surface == "" || strings.ContainsAny(surface, "/+#") {
			errs = append(errs, fmt.Sprintf("focus.surfaces entry %q must be non-empty and MQTT topic-safe", surface))
		}
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
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Security validation. The device list is low-sensitivity, so auth is
	// optional, but a weak secret with auth enabled is worse than no auth.
	const minJWTSecretLength = 32
	if c.Security.JWT.Enabled {
		if c.Security.JWT.Secret == "" {
			errs = append(errs, "security.jwt.secret is required when auth is enabled (set INPUTDOCK_JWT_SECRET)")
		} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetPollInterval returns the discovery poll interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Discovery.PollInterval) * time.Second
}

// GetWirelessPollInterval returns the wireless-discovery poll cadence as a Duration.
func (c *Config) GetWirelessPollInterval() time.Duration {
	return time.Duration(c.Discovery.WirelessPollInterval) * time.Second
}

// GetDebounce returns the focus debounce delay as a Duration.
func (c *Config) GetDebounce() time.Duration {
	return time.Duration(c.Focus.DebounceMs) * time.Millisecond
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
