package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "evslot/backend/libs/config"
)

// HTTPConfig holds listener settings.
type HTTPConfig struct {
	Port           string        `yaml:"port" env:"RESERVATION_HTTP_PORT"`
	ReadTimeout    time.Duration `yaml:"readTimeout" env:"RESERVATION_HTTP_READ_TIMEOUT"`
	WriteTimeout   time.Duration `yaml:"writeTimeout" env:"RESERVATION_HTTP_WRITE_TIMEOUT"`
	AllowedOrigins []string      `yaml:"allowedOrigins" env:"RESERVATION_HTTP_ALLOWED_ORIGINS"`
}

// DatabaseConfig holds postgres settings.
type DatabaseConfig struct {
	DSN          string        `yaml:"dsn" env:"RESERVATION_POSTGRES_DSN"`
	MaxOpenConns int           `yaml:"maxOpenConns" env:"RESERVATION_POSTGRES_MAX_OPEN_CONNS"`
	MaxIdleConns int           `yaml:"maxIdleConns" env:"RESERVATION_POSTGRES_MAX_IDLE_CONNS"`
	ConnLifetime time.Duration `yaml:"connLifetime" env:"RESERVATION_POSTGRES_CONN_LIFETIME"`
	Migrate      bool          `yaml:"migrate" env:"RESERVATION_POSTGRES_MIGRATE"`
}

// RedisConfig holds redis settings. An empty Addr runs without a cache.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"RESERVATION_REDIS_ADDR"`
	Password string `yaml:"password" env:"RESERVATION_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"RESERVATION_REDIS_DB"`
}

// CacheConfig holds read model TTLs.
type CacheConfig struct {
	Namespace       string        `yaml:"namespace" env:"RESERVATION_CACHE_NAMESPACE"`
	SlotsTTL        time.Duration `yaml:"slotsTTL" env:"RESERVATION_CACHE_SLOTS_TTL"`
	AvailabilityTTL time.Duration `yaml:"availabilityTTL" env:"RESERVATION_CACHE_AVAILABILITY_TTL"`
	SearchTTL       time.Duration `yaml:"searchTTL" env:"RESERVATION_CACHE_SEARCH_TTL"`
	OpTimeout       time.Duration `yaml:"opTimeout" env:"RESERVATION_CACHE_OP_TIMEOUT"`
}

// AuthConfig holds token validation settings.
type AuthConfig struct {
	JWTSecret   string `yaml:"jwtSecret" env:"RESERVATION_JWT_SECRET"`
	InternalKey string `yaml:"internalKey" env:"RESERVATION_INTERNAL_KEY"`
}

// WSConfig tunes the gateway.
type WSConfig struct {
	PingInterval time.Duration `yaml:"pingInterval" env:"RESERVATION_WS_PING_INTERVAL"`
	WriteTimeout time.Duration `yaml:"writeTimeout" env:"RESERVATION_WS_WRITE_TIMEOUT"`
	SendBuffer   int           `yaml:"sendBuffer" env:"RESERVATION_WS_SEND_BUFFER"`
}

// BrokerConfig points at the optional RabbitMQ event sink. An empty URL disables it.
type BrokerConfig struct {
	URL         string        `yaml:"url" env:"RESERVATION_AMQP_URL"`
	Exchange    string        `yaml:"exchange" env:"RESERVATION_AMQP_EXCHANGE"`
	Buffer      int           `yaml:"buffer" env:"RESERVATION_AMQP_BUFFER"`
	DialTimeout time.Duration `yaml:"dialTimeout" env:"RESERVATION_AMQP_DIAL_TIMEOUT"`
}

// ExpiryConfig controls the reservation expiry sweeper.
type ExpiryConfig struct {
	Enabled  bool   `yaml:"enabled" env:"RESERVATION_EXPIRY_ENABLED"`
	Schedule string `yaml:"schedule" env:"RESERVATION_EXPIRY_SCHEDULE"`
	Batch    int    `yaml:"batch" env:"RESERVATION_EXPIRY_BATCH"`
}

// Config defines reservation-service configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Cache    CacheConfig    `yaml:"cache"`
	Auth     AuthConfig     `yaml:"auth"`
	WS       WSConfig       `yaml:"ws"`
	Broker   BrokerConfig   `yaml:"broker"`
	Expiry   ExpiryConfig   `yaml:"expiry"`
}

// Default returns the configuration used before file and env overrides.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:           "8085",
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   15 * time.Second,
			AllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			MaxOpenConns: 25,
			MaxIdleConns: 5,
			ConnLifetime: time.Hour,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Cache: CacheConfig{
			Namespace:       "evslot",
			SlotsTTL:        30 * time.Second,
			AvailabilityTTL: 30 * time.Second,
			SearchTTL:       60 * time.Second,
			OpTimeout:       2 * time.Second,
		},
		WS: WSConfig{
			PingInterval: 30 * time.Second,
			WriteTimeout: 10 * time.Second,
			SendBuffer:   16,
		},
		Broker: BrokerConfig{
			Exchange:    "evslot.events",
			Buffer:      256,
			DialTimeout: 5 * time.Second,
		},
		Expiry: ExpiryConfig{
			Enabled:  true,
			Schedule: "@every 1m",
			Batch:    500,
		},
	}
}

// Load reads configuration via shared helper.
func Load() (*Config, error) {
	cfg := Default()
	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("config: database dsn required")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("config: jwt secret required")
	}
	if c.Expiry.Enabled && strings.TrimSpace(c.Expiry.Schedule) == "" {
		return errors.New("config: expiry schedule required when expiry is enabled")
	}
	return nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8085"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}
