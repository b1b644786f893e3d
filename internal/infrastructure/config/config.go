package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the NMOS dashboard core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Dashboard     DashboardConfig     `yaml:"dashboard"`
	Database      DatabaseConfig      `yaml:"database"`
	Bridge        BridgeConfig        `yaml:"bridge"`
	Registry      RegistryConfig      `yaml:"registry"`
	Notifications NotificationsConfig `yaml:"notifications"`
	API           APIConfig           `yaml:"api"`
	WebSocket     WebSocketConfig     `yaml:"websocket"`
	InfluxDB      InfluxDBConfig      `yaml:"influxdb"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// DashboardConfig identifies this dashboard instance.
type DashboardConfig struct {
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
// The database holds the persisted login session.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// BridgeConfig contains the live event bridge settings.
type BridgeConfig struct {
	// Enabled turns the event bridge on. When false the dashboard still
	// serves notifications and the registry proxy, but no live events.
	Enabled bool `yaml:"enabled"`

	// URL is the broker endpoint, usually a WebSocket URL (ws://host:9001).
	URL string `yaml:"url"`

	// TopicPrefix is the event topic prefix; the bridge subscribes to {prefix}/all.
	TopicPrefix string `yaml:"topic_prefix"`

	// Discover asks the registry for ws_url/topic_prefix before connecting.
	// Configured values are used as the fallback.
	Discover bool `yaml:"discover"`

	// ClientIDPrefix is combined with the creation timestamp to form the client id.
	ClientIDPrefix string `yaml:"client_id_prefix"`

	// Username is sent to the broker when set. The stored session token is
	// used as the password.
	Username string `yaml:"username"`

	QoS int `yaml:"qos"`

	// ReconnectInterval is the fixed retry period in milliseconds.
	ReconnectInterval int `yaml:"reconnect_interval"`

	// ConnectTimeout bounds each connect attempt, in milliseconds.
	ConnectTimeout int `yaml:"connect_timeout"`

	// KeepAlive is the MQTT keepalive in seconds.
	KeepAlive int `yaml:"keep_alive"`
}

// RegistryConfig contains the registry HTTP API settings.
type RegistryConfig struct {
	// BaseURL is the registry API root, e.g. http://registry:9090/api.
	BaseURL string `yaml:"base_url"`

	// Timeout is the per-request timeout in seconds.
	Timeout int `yaml:"timeout"`

	// Username and Password are used to log in when no valid session is stored.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig configures the circuit breaker around registry calls.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold"`
	ResetTimeout     int `yaml:"reset_timeout"` // seconds
}

// NotificationsConfig controls the notification channel.
type NotificationsConfig struct {
	// TTL is the auto-dismiss delay for event notifications, in seconds. 0 keeps them.
	TTL int `yaml:"ttl"`

	// EventRate limits event-driven notifications per second.
	EventRate float64 `yaml:"event_rate"`

	// EventBurst is the limiter burst size.
	EventBurst int `yaml:"event_burst"`
}

// APIConfig contains HTTP relay server settings.
type APIConfig struct {
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

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: NMOSDASH_SECTION_KEY
// For example: NMOSDASH_BRIDGE_URL, NMOSDASH_REGISTRY_BASE_URL
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

// Default returns the built-in configuration without reading a file.
func Default() *Config {
	return defaultConfig()
}

// defaultConfig returns a Config with sensible defaults.
// Bridge defaults mirror the registry's own defaults (ws on 9001,
// go-nmos/flows/events prefix).
func defaultConfig() *Config {
	return &Config{
		Dashboard: DashboardConfig{
			Name: "NMOS Dashboard",
		},
		Database: DatabaseConfig{
			Path:        "./data/nmosdash.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Bridge: BridgeConfig{
			Enabled:           true,
			URL:               "ws://localhost:9001",
			TopicPrefix:       "go-nmos/flows/events",
			ClientIDPrefix:    "go-nmos-frontend",
			QoS:               0,
			ReconnectInterval: 5000,
			ConnectTimeout:    10000,
			KeepAlive:         60,
		},
		Registry: RegistryConfig{
			BaseURL: "http://localhost:9090/api",
			Timeout: 15,
			Breaker: BreakerConfig{
				FailureThreshold: 5,
				ResetTimeout:     30,
			},
		},
		Notifications: NotificationsConfig{
			TTL:        5,
			EventRate:  5,
			EventBurst: 10,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8088,
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
// Environment variables follow the pattern: NMOSDASH_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("NMOSDASH_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Bridge
	if v := os.Getenv("NMOSDASH_BRIDGE_URL"); v != "" {
		cfg.Bridge.URL = v
	}
	if v := os.Getenv("NMOSDASH_BRIDGE_TOPIC_PREFIX"); v != "" {
		cfg.Bridge.TopicPrefix = v
	}
	if v := os.Getenv("NMOSDASH_BRIDGE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Bridge.Enabled = b
		}
	}
	if v := os.Getenv("NMOSDASH_BRIDGE_USERNAME"); v != "" {
		cfg.Bridge.Username = v
	}

	// Registry
	if v := os.Getenv("NMOSDASH_REGISTRY_BASE_URL"); v != "" {
		cfg.Registry.BaseURL = v
	}
	if v := os.Getenv("NMOSDASH_REGISTRY_USERNAME"); v != "" {
		cfg.Registry.Username = v
	}
	if v := os.Getenv("NMOSDASH_REGISTRY_PASSWORD"); v != "" {
		cfg.Registry.Password = v
	}

	// API
	if v := os.Getenv("NMOSDASH_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("NMOSDASH_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("NMOSDASH_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// The bridge URL is only checked for presence here; scheme validation is the
// bridge's job so a bad endpoint surfaces as a Failed connection, not a
// startup abort.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.Bridge.Enabled {
		if c.Bridge.URL == "" && !c.Bridge.Discover {
			errs = append(errs, "bridge.url is required unless bridge.discover is set")
		}
		if c.Bridge.TopicPrefix == "" && !c.Bridge.Discover {
			errs = append(errs, "bridge.topic_prefix is required unless bridge.discover is set")
		}
	}
	if c.Bridge.QoS < 0 || c.Bridge.QoS > 2 {
		errs = append(errs, "bridge.qos must be 0, 1, or 2")
	}
	if c.Bridge.ReconnectInterval <= 0 {
		errs = append(errs, "bridge.reconnect_interval must be positive")
	}
	if c.Bridge.ConnectTimeout <= 0 {
		errs = append(errs, "bridge.connect_timeout must be positive")
	}

	if c.Registry.BaseURL == "" {
		errs = append(errs, "registry.base_url is required")
	} else if u, err := url.Parse(c.Registry.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, "registry.base_url must be an absolute URL")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Notifications.TTL < 0 {
		errs = append(errs, "notifications.ttl cannot be negative")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
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

// ReconnectIntervalDuration returns the bridge retry period.
func (b BridgeConfig) ReconnectIntervalDuration() time.Duration {
	return time.Duration(b.ReconnectInterval) * time.Millisecond
}

// ConnectTimeoutDuration returns the per-attempt connect timeout.
func (b BridgeConfig) ConnectTimeoutDuration() time.Duration {
	return time.Duration(b.ConnectTimeout) * time.Millisecond
}

// KeepAliveDuration returns the MQTT keepalive interval.
func (b BridgeConfig) KeepAliveDuration() time.Duration {
	return time.Duration(b.KeepAlive) * time.Second
}

// TimeoutDuration returns the registry request timeout.
func (r RegistryConfig) TimeoutDuration() time.Duration {
	return time.Duration(r.Timeout) * time.Second
}
