// Package config loads the application configuration. Lifecycle:
// defaults -> config.yml -> config.local.yml -> env overrides ->
// validation.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Supabase SupabaseConfig `yaml:"supabase"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Notify   NotifyConfig   `yaml:"notify"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxPageLimit    int           `yaml:"max_page_limit"`
}

// SupabaseConfig carries the data service endpoint and the two keys.
// The service key stays inside the process; it is never sent to or
// derived from callers.
type SupabaseConfig struct {
	URL        string        `yaml:"url"`
	AnonKey    string        `yaml:"anon_key"`
	ServiceKey string        `yaml:"service_key"`
	Timeout    time.Duration `yaml:"timeout"`
}

type RealtimeConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	ConnectTimeout    time.Duration `yaml:"connect_timeout"`
	ReconnectBase     time.Duration `yaml:"reconnect_base"`
	ReconnectMax      time.Duration `yaml:"reconnect_max"`
	MaxAttempts       int           `yaml:"max_attempts"`
}

type NotifyConfig struct {
	SettingsCacheTTL time.Duration `yaml:"settings_cache_ttl"`
	NATSURL          string        `yaml:"nats_url"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			MaxPageLimit:    100,
		},
		Supabase: SupabaseConfig{
			Timeout: 30 * time.Second,
		},
		Realtime: RealtimeConfig{
			HeartbeatInterval: 25 * time.Second,
			ConnectTimeout:    10 * time.Second,
			ReconnectBase:     time.Second,
			ReconnectMax:      30 * time.Second,
			MaxAttempts:       10,
		},
		Notify: NotifyConfig{
			SettingsCacheTTL: time.Minute,
		},
		Logging: DefaultLoggingConfig(),
	}
}

// Load builds the configuration from files and the environment. It
// terminates the process on validation failure, matching startup-only
// usage.
func Load() *Config {
	cfg := DefaultConfig()

	loadFile("config/config.yml", cfg)
	loadFile("config/config.local.yml", cfg)

	cfg.ApplyDefaults()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	return cfg
}

func loadFile(filename string, cfg *Config) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		log.Printf("Warning: Error reading %s: %v", filename, err)
		return
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Printf("Warning: Error parsing %s: %v", filename, err)
	}
}

// ApplyDefaults fills in missing values with defaults.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = d.Server.ShutdownTimeout
	}
	if c.Server.MaxPageLimit == 0 {
		c.Server.MaxPageLimit = d.Server.MaxPageLimit
	}
	if c.Supabase.Timeout == 0 {
		c.Supabase.Timeout = d.Supabase.Timeout
	}
	if c.Realtime.HeartbeatInterval == 0 {
		c.Realtime.HeartbeatInterval = d.Realtime.HeartbeatInterval
	}
	if c.Realtime.ConnectTimeout == 0 {
		c.Realtime.ConnectTimeout = d.Realtime.ConnectTimeout
	}
	if c.Realtime.ReconnectBase == 0 {
		c.Realtime.ReconnectBase = d.Realtime.ReconnectBase
	}
	if c.Realtime.ReconnectMax == 0 {
		c.Realtime.ReconnectMax = d.Realtime.ReconnectMax
	}
	if c.Realtime.MaxAttempts == 0 {
		c.Realtime.MaxAttempts = d.Realtime.MaxAttempts
	}
	if c.Notify.SettingsCacheTTL == 0 {
		c.Notify.SettingsCacheTTL = d.Notify.SettingsCacheTTL
	}
	c.Logging.ApplyDefaults()
}

// ApplyEnvOverrides applies environment variable overrides. Secrets are
// expected to arrive this way in deployed environments.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("SUPABASE_URL"); v != "" {
		c.Supabase.URL = v
	}
	if v := os.Getenv("SUPABASE_ANON_KEY"); v != "" {
		c.Supabase.AnonKey = v
	}
	if v := os.Getenv("SUPABASE_SERVICE_KEY"); v != "" {
		c.Supabase.ServiceKey = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.Notify.NATSURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) Validate() error {
	if c.Supabase.URL == "" {
		return fmt.Errorf("supabase.url is required")
	}
	if c.Supabase.AnonKey == "" {
		return fmt.Errorf("supabase.anon_key is required")
	}
	if c.Server.MaxPageLimit < 1 {
		return fmt.Errorf("server.max_page_limit must be positive")
	}
	if c.Realtime.MaxAttempts < 1 {
		return fmt.Errorf("realtime.max_attempts must be positive")
	}
	if c.Realtime.ReconnectMax < c.Realtime.ReconnectBase {
		return fmt.Errorf("realtime.reconnect_max must be >= reconnect_base")
	}
	return c.Logging.Validate()
}
