package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "voltgrid/libs/config"
)

// HTTPConfig holds HTTP listener settings.
type HTTPConfig struct {
	Port string `yaml:"port" env:"REGISTRY_HTTP_PORT"`
}

// DatabaseConfig holds postgres settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"REGISTRY_POSTGRES_DSN"`
}

// RedisConfig holds availability cache settings. An empty Addr disables the
// cache.
type RedisConfig struct {
	Addr       string `yaml:"addr" env:"REGISTRY_REDIS_ADDR"`
	Password   string `yaml:"password" env:"REGISTRY_REDIS_PASSWORD"`
	TTLSeconds int    `yaml:"ttlSeconds" env:"REGISTRY_REDIS_TTL"`
}

// AuthConfig holds operator auth and station credential settings.
type AuthConfig struct {
	JWTSecret  string `yaml:"jwtSecret" env:"REGISTRY_JWT_SECRET"`
	BcryptCost int    `yaml:"bcryptCost" env:"REGISTRY_BCRYPT_COST"`
}

// WebSocketConfig holds OCPP websocket settings.
type WebSocketConfig struct {
	PingIntervalSeconds int `yaml:"pingIntervalSeconds" env:"REGISTRY_WS_PING_INTERVAL"`
	ReadTimeoutSeconds  int `yaml:"readTimeoutSeconds" env:"REGISTRY_WS_READ_TIMEOUT"`
	WriteTimeoutSeconds int `yaml:"writeTimeoutSeconds" env:"REGISTRY_WS_WRITE_TIMEOUT"`
	BootIntervalSeconds int `yaml:"bootIntervalSeconds" env:"REGISTRY_BOOT_INTERVAL"`
}

// LinksConfig holds association writer settings.
type LinksConfig struct {
	BufferSize int `yaml:"bufferSize" env:"REGISTRY_LINK_BUFFER"`
}

// Config defines device registry configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Links     LinksConfig     `yaml:"links"`
}

// Load uses shared config loader and validates required fields.
func Load() (*Config, error) {
	cfg := &Config{
		HTTP: HTTPConfig{Port: "8080"},
		WebSocket: WebSocketConfig{
			PingIntervalSeconds: 30,
			ReadTimeoutSeconds:  60,
			WriteTimeoutSeconds: 15,
			BootIntervalSeconds: 300,
		},
	}

	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, errors.New("config: database DSN is required")
	}
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, errors.New("config: JWT secret is required")
	}

	return cfg, nil
}

// HTTPAddress returns :port style address.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// PingInterval returns websocket ping interval.
func (c *Config) PingInterval() time.Duration {
	return secondsOr(c.WebSocket.PingIntervalSeconds, 30*time.Second)
}

// ReadTimeout returns websocket read deadline.
func (c *Config) ReadTimeout() time.Duration {
	return secondsOr(c.WebSocket.ReadTimeoutSeconds, 60*time.Second)
}

// WriteTimeout returns websocket write deadline.
func (c *Config) WriteTimeout() time.Duration {
	return secondsOr(c.WebSocket.WriteTimeoutSeconds, 15*time.Second)
}

// BootInterval returns the heartbeat interval advertised to stations.
func (c *Config) BootInterval() time.Duration {
	return secondsOr(c.WebSocket.BootIntervalSeconds, 300*time.Second)
}

// RedisTTL returns availability cache entry lifetime.
func (c *Config) RedisTTL() time.Duration {
	return secondsOr(c.Redis.TTLSeconds, 5*time.Minute)
}

func secondsOr(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
