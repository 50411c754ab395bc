// Package config loads yatube settings from defaults, an optional YAML file
// and the environment, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	MediaBackendLocal = "local"
	MediaBackendGCS   = "gcs"
)

type Config struct {
	Port string `yaml:"port"`

	Database DatabaseConfig `yaml:"database"`
	Session  SessionConfig  `yaml:"session"`
	Media    MediaConfig    `yaml:"media"`
	Redis    RedisConfig    `yaml:"redis"`
	NATS     NATSConfig     `yaml:"nats"`
	Log      LogConfig      `yaml:"log"`

	// BcryptCost is the work factor used when hashing new passwords.
	BcryptCost int `yaml:"bcrypt_cost"`
}

// DatabaseConfig selects PostgreSQL when Host is set and SQLite otherwise.
type DatabaseConfig struct {
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

type SessionConfig struct {
	Key    string        `yaml:"key"`
	MaxAge time.Duration `yaml:"max_age"`
	// Secure marks the session and CSRF cookies HTTPS-only.
	Secure bool `yaml:"secure"`
}

type MediaConfig struct {
	Backend        string `yaml:"backend"`
	Root           string `yaml:"root"`
	GCSBucket      string `yaml:"gcs_bucket"`
	GCSCredentials string `yaml:"gcs_credentials"`
}

type RedisConfig struct {
	Host     string        `yaml:"host"`
	Port     string        `yaml:"port"`
	Password string        `yaml:"password"`
	FeedTTL  time.Duration `yaml:"feed_ttl"`
}

func (r RedisConfig) Enabled() bool { return r.Host != "" }

func (r RedisConfig) Addr() string {
	port := r.Port
	if port == "" {
		port = "6379"
	}
	return fmt.Sprintf("%s:%s", r.Host, port)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type LogConfig struct {
	Level        string `yaml:"level"`
	LogstashAddr string `yaml:"logstash_addr"`
}

func Default() *Config {
	return &Config{
		Port: ":8000",
		Database: DatabaseConfig{
			Path:    "yatube.db",
			SSLMode: "require",
		},
		Session: SessionConfig{
			Key:    "SESSION_KEY",
			MaxAge: 16 * time.Hour,
		},
		Media: MediaConfig{
			Backend: MediaBackendLocal,
			Root:    "media",
		},
		Redis: RedisConfig{
			FeedTTL: 20 * time.Second,
		},
		Log: LogConfig{
			Level: "warn",
		},
		BcryptCost: 14,
	}
}

// Load builds the configuration. An empty path skips the YAML file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading config file %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parsing config file %s", path)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "PORT")
	if c.Port != "" && c.Port[0] != ':' {
		c.Port = ":" + c.Port
	}

	setString(&c.Database.Path, "DATABASE")
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.Port, "DB_PORT")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Name, "DB_NAME")
	setString(&c.Database.SSLMode, "DB_SSLMODE")

	setString(&c.Session.Key, "SESSION_KEY")
	if v := os.Getenv("SESSION_SECURE"); v != "" {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, "SESSION_SECURE")
		}
		c.Session.Secure = secure
	}

	setString(&c.Media.Backend, "MEDIA_BACKEND")
	setString(&c.Media.Root, "MEDIA_ROOT")
	setString(&c.Media.GCSBucket, "GCS_BUCKET")
	setString(&c.Media.GCSCredentials, "GCS_CREDENTIALS")

	setString(&c.Redis.Host, "REDIS_HOST")
	setString(&c.Redis.Port, "REDIS_PORT")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	if v := os.Getenv("FEED_CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrap(err, "FEED_CACHE_TTL")
		}
		c.Redis.FeedTTL = ttl
	}

	setString(&c.NATS.URL, "NATS_URL")

	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.LogstashAddr, "LOGSTASH_ADDR")

	if v := os.Getenv("BCRYPT_COST"); v != "" {
		cost, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "BCRYPT_COST")
		}
		c.BcryptCost = cost
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Media.Backend {
	case MediaBackendLocal:
		if c.Media.Root == "" {
			return errors.New("media root must be set for the local backend")
		}
	case MediaBackendGCS:
		if c.Media.GCSBucket == "" {
			return errors.New("GCS_BUCKET must be set for the gcs media backend")
		}
	default:
		return errors.Errorf("unknown media backend %q", c.Media.Backend)
	}
	if c.Database.Host == "" && c.Database.Path == "" {
		return errors.New("either DB_HOST or DATABASE must be set")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
