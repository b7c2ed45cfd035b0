package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfigFile(t, "box:\n  id: 7\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Box.ID != 7 {
		t.Errorf("Box.ID = %d, want 7", cfg.Box.ID)
	}
	if cfg.Network.UDPPort != 18000 {
		t.Errorf("Network.UDPPort = %d, want 18000", cfg.Network.UDPPort)
	}
	if cfg.Network.TCPPort != 18002 {
		t.Errorf("Network.TCPPort = %d, want 18002", cfg.Network.TCPPort)
	}
	if cfg.Network.MaxClients != 10 {
		t.Errorf("Network.MaxClients = %d, want 10", cfg.Network.MaxClients)
	}
	if cfg.Scene.Workers != 5 {
		t.Errorf("Scene.Workers = %d, want 5", cfg.Scene.Workers)
	}
	if cfg.Timers.FireWindow != 5 {
		t.Errorf("Timers.FireWindow = %d, want 5", cfg.Timers.FireWindow)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
network:
  tcp_port: 28002
  max_clients: 3
timers:
  fire_window: 2
logging:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Network.TCPPort != 28002 {
		t.Errorf("Network.TCPPort = %d, want 28002", cfg.Network.TCPPort)
	}
	if cfg.Network.MaxClients != 3 {
		t.Errorf("Network.MaxClients = %d, want 3", cfg.Network.MaxClients)
	}
	if cfg.Timers.FireWindow != 2 {
		t.Errorf("Timers.FireWindow = %d, want 2", cfg.Timers.FireWindow)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, "database:\n  path: /tmp/from-file.db\n")

	t.Setenv("HSB_DATABASE_PATH", "/tmp/from-env.db")
	t.Setenv("HSB_NETWORK_TCP_PORT", "38002")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/from-env.db" {
		t.Errorf("Database.Path = %q, want /tmp/from-env.db", cfg.Database.Path)
	}
	if cfg.Network.TCPPort != 38002 {
		t.Errorf("Network.TCPPort = %d, want 38002", cfg.Network.TCPPort)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"empty db path", func(c *Config) { c.Database.Path = "" }, true},
		{"bad tcp port", func(c *Config) { c.Network.TCPPort = 0 }, true},
		{"bad udp port", func(c *Config) { c.Network.UDPPort = 70000 }, true},
		{"zero clients", func(c *Config) { c.Network.MaxClients = 0 }, true},
		{"zero session queue", func(c *Config) { c.Network.SessionQueueSize = 0 }, true},
		{"zero write timeout", func(c *Config) { c.Network.WriteTimeout = 0 }, true},
		{"zero workers", func(c *Config) { c.Scene.Workers = 0 }, true},
		{"zero queue", func(c *Config) { c.Dispatcher.QueueSize = 0 }, true},
		{"bad qos", func(c *Config) { c.MQTT.QoS = 3 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
