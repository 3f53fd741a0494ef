package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	API        APIConfig        `yaml:"api"`
	Session    SessionConfig    `yaml:"session"`
	TokenStore TokenStoreConfig `yaml:"token_store"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Bookings   BookingsConfig   `yaml:"bookings"`
	Geocode    GeocodeConfig    `yaml:"geocode"`
	Payment    PaymentConfig    `yaml:"payment"`
	Worker     WorkerConfig     `yaml:"worker"`
	Log        LogConfig        `yaml:"log"`
}

type APIConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

type SessionConfig struct {
	RenewalBufferSeconds int `yaml:"renewal_buffer_seconds"`
	MinimumDelaySeconds  int `yaml:"minimum_delay_seconds"`
}

func (s SessionConfig) RenewalBuffer() time.Duration {
	return time.Duration(s.RenewalBufferSeconds) * time.Second
}

func (s SessionConfig) MinimumDelay() time.Duration {
	return time.Duration(s.MinimumDelaySeconds) * time.Second
}

// TokenStoreConfig selects where the session survives restarts.
// Driver is one of file, redis, postgres or memory.
type TokenStoreConfig struct {
	Driver  string `yaml:"driver"`
	Path    string `yaml:"path"`
	Prefix  string `yaml:"prefix"`
	Profile string `yaml:"profile"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// Cache enables the geocode and search result cache.
	Cache bool `yaml:"cache"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	BookingEventsTopic string   `yaml:"booking_events_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type BookingsConfig struct {
	PollIntervalSeconds     int  `yaml:"poll_interval_seconds"`
	PushPollIntervalSeconds int  `yaml:"push_poll_interval_seconds"`
	PushEnabled             bool `yaml:"push_enabled"`
}

// PollInterval is the fallback refresh period. It stretches when push is on.
func (b BookingsConfig) PollInterval() time.Duration {
	if b.PushEnabled {
		return time.Duration(b.PushPollIntervalSeconds) * time.Second
	}
	return time.Duration(b.PollIntervalSeconds) * time.Second
}

type GeocodeConfig struct {
	BaseURL          string  `yaml:"base_url"`
	UserAgent        string  `yaml:"user_agent"`
	CountryCodes     string  `yaml:"country_codes"`
	RegionContext    string  `yaml:"region_context"`
	RequestsPerSec   float64 `yaml:"requests_per_second"`
	CacheTTLSeconds  int     `yaml:"cache_ttl_seconds"`
	SearchTTLSeconds int     `yaml:"search_cache_ttl_seconds"`
}

type PaymentConfig struct {
	CallbackAddress string `yaml:"callback_address"`
}

// WorkerConfig controls the booking watcher. Journal records every observed
// change in the booking_events table of the configured database.
type WorkerConfig struct {
	Journal bool `yaml:"journal"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyEnv() {
	if base := os.Getenv("TAILORBOOK_API_BASE"); base != "" {
		c.API.BaseURL = base
	}
}

func (c *Config) applyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = "http://localhost:8000/api"
	}
	if c.API.TimeoutSeconds == 0 {
		c.API.TimeoutSeconds = 15
	}
	if c.Session.RenewalBufferSeconds == 0 {
		c.Session.RenewalBufferSeconds = 60
	}
	if c.Session.MinimumDelaySeconds == 0 {
		c.Session.MinimumDelaySeconds = 5
	}
	if c.TokenStore.Driver == "" {
		c.TokenStore.Driver = "file"
	}
	if c.TokenStore.Path == "" {
		c.TokenStore.Path = ".tailorbook/session.json"
	}
	if c.TokenStore.Prefix == "" {
		c.TokenStore.Prefix = "tailorbook"
	}
	if c.TokenStore.Profile == "" {
		c.TokenStore.Profile = "default"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "tailorbook-worker"
	}
	if c.Bookings.PollIntervalSeconds == 0 {
		c.Bookings.PollIntervalSeconds = 10
	}
	if c.Bookings.PushPollIntervalSeconds == 0 {
		c.Bookings.PushPollIntervalSeconds = 120
	}
	if c.Geocode.BaseURL == "" {
		c.Geocode.BaseURL = "https://nominatim.openstreetmap.org"
	}
	if c.Geocode.UserAgent == "" {
		c.Geocode.UserAgent = "tailorbook/1.0"
	}
	if c.Geocode.RequestsPerSec == 0 {
		c.Geocode.RequestsPerSec = 1
	}
	if c.Geocode.CacheTTLSeconds == 0 {
		c.Geocode.CacheTTLSeconds = 86400
	}
	if c.Geocode.SearchTTLSeconds == 0 {
		c.Geocode.SearchTTLSeconds = 60
	}
	if c.Payment.CallbackAddress == "" {
		c.Payment.CallbackAddress = "127.0.0.1:8787"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}
