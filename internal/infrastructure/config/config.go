package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for HSB Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Box        BoxConfig        `yaml:"box"`
	Database   DatabaseConfig   `yaml:"database"`
	Network    NetworkConfig    `yaml:"network"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Scene      SceneConfig      `yaml:"scene"`
	Timers     TimerConfig      `yaml:"timers"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// BoxConfig identifies this hub on the local network.
type BoxConfig struct {
	// ID is the box identifier returned in UDP discovery replies.
	ID uint16 `yaml:"id"`

	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// NetworkConfig contains the UDP discovery and TCP command server settings.
type NetworkConfig struct {
	// UDPPort is the discovery listener port.
	UDPPort int `yaml:"udp_port"`

	// TCPPort is the client command/notification port.
	TCPPort int `yaml:"tcp_port"`

	// MaxClients bounds the TCP session pool.
	MaxClients int `yaml:"max_clients"`

	// SessionQueueSize bounds the per-session outgoing event queue.
	// The oldest event is dropped when the queue overflows.
	SessionQueueSize int `yaml:"session_queue_size"`

	// WriteTimeout is the per-write deadline on client sockets (seconds).
	WriteTimeout int `yaml:"write_timeout"`
}

// DispatcherConfig contains async action dispatcher settings.
type DispatcherConfig struct {
	// QueueSize bounds the task queue; submission fails when full.
	QueueSize int `yaml:"queue_size"`
}

// SceneConfig contains scene engine settings.
type SceneConfig struct {
	// Workers is the size of the scene execution pool.
	Workers int `yaml:"workers"`
}

// TimerConfig contains timer/delay checker settings.
type TimerConfig struct {
	// FireWindow is how far past its scheduled second a timer may still
	// fire (seconds).
	FireWindow int `yaml:"fire_window"`

	// RolloverWindow is the seconds-after-midnight span within which a
	// backwards jump of the clock is treated as a day rollover.
	RolloverWindow int `yaml:"rollover_window"`
}

// MQTTConfig contains the optional MQTT event relay settings.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      int    `yaml:"qos"`

	// TopicPrefix is prepended to all published topics.
	TopicPrefix string `yaml:"topic_prefix"`
}

// InfluxDBConfig contains the optional telemetry writer settings.
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
// Environment variables follow the pattern: HSB_SECTION_KEY
// For example: HSB_DATABASE_PATH, HSB_NETWORK_TCP_PORT
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
// The default ports match the shipped Android/OpenWrt builds.
func defaultConfig() *Config {
	return &Config{
		Box: BoxConfig{
			ID:   1,
			Name: "hsb",
		},
		Database: DatabaseConfig{
			Path:        "./data/hsb.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Network: NetworkConfig{
			UDPPort:          18000,
			TCPPort:          18002,
			MaxClients:       10,
			SessionQueueSize: 256,
			WriteTimeout:     1,
		},
		Dispatcher: DispatcherConfig{
			QueueSize: 256,
		},
		Scene: SceneConfig{
			Workers: 5,
		},
		Timers: TimerConfig{
			FireWindow:     5,
			RolloverWindow: 10,
		},
		MQTT: MQTTConfig{
			Host:        "localhost",
			Port:        1883,
			ClientID:    "hsbcore",
			QoS:         1,
			TopicPrefix: "hsb",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HSB_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HSB_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("HSB_NETWORK_TCP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Network.TCPPort = port
		}
	}
	if v := os.Getenv("HSB_NETWORK_UDP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Network.UDPPort = port
		}
	}

	if v := os.Getenv("HSB_MQTT_HOST"); v != "" {
		cfg.MQTT.Host = v
	}
	if v := os.Getenv("HSB_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("HSB_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}

	if v := os.Getenv("HSB_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.Network.UDPPort < 1 || c.Network.UDPPort > 65535 {
		errs = append(errs, "network.udp_port must be between 1 and 65535")
	}
	if c.Network.TCPPort < 1 || c.Network.TCPPort > 65535 {
		errs = append(errs, "network.tcp_port must be between 1 and 65535")
	}
	if c.Network.MaxClients < 1 {
		errs = append(errs, "network.max_clients must be at least 1")
	}
	if c.Network.SessionQueueSize < 1 {
		errs = append(errs, "network.session_queue_size must be at least 1")
	}
	if c.Network.WriteTimeout < 1 {
		errs = append(errs, "network.write_timeout must be at least 1")
	}

	if c.Dispatcher.QueueSize < 1 {
		errs = append(errs, "dispatcher.queue_size must be at least 1")
	}

	if c.Scene.Workers < 1 {
		errs = append(errs, "scene.workers must be at least 1")
	}

	if c.Timers.FireWindow < 1 {
		errs = append(errs, "timers.fire_window must be at least 1")
	}
	if c.Timers.RolloverWindow < 1 {
		errs = append(errs, "timers.rollover_window must be at least 1")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// SessionWriteTimeout returns the client socket write deadline as a Duration.
func (n NetworkConfig) SessionWriteTimeout() time.Duration {
	return time.Duration(n.WriteTimeout) * time.Second
}
