package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultJWTSecret is the placeholder shipped in config/config.yaml.
const DefaultJWTSecret = "change-me"

var (
	ErrMissingJWTSecret = errors.New("auth.jwt_secret is empty")
	ErrDefaultJWTSecret = errors.New("auth.jwt_secret still has the shipped placeholder; set JWT_SECRET before using postgres")
)

type Config struct {
	Server struct {
		Port            string `yaml:"port"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Paper struct {
		TTL string `yaml:"ttl"`
	} `yaml:"paper"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	Contest struct {
		RegistrationLead string `yaml:"registration_lead"`
		SubmissionGrace  string `yaml:"submission_grace"`
		SweepSchedule    string `yaml:"sweep_schedule"`
	} `yaml:"contest"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load reads YAML config from path and applies environment overrides.
// A missing file yields the defaults plus the environment.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// Validate rejects configs that would sign tokens with a guessable key
// against persistent storage. The placeholder secret is tolerated in
// in-memory mode only.
func (c Config) Validate() error {
	switch {
	case c.Auth.JWTSecret == "":
		return ErrMissingJWTSecret
	case c.Auth.JWTSecret == DefaultJWTSecret && c.Postgres.URL != "":
		return ErrDefaultJWTSecret
	}
	return nil
}

// DefaultSecret reports whether the placeholder secret is in use.
func (c Config) DefaultSecret() bool {
	return c.Auth.JWTSecret == DefaultJWTSecret
}

func (c *Config) applyEnv() {
	override(&c.Server.Port, "PORT")
	override(&c.Postgres.URL, "POSTGRES_URL")
	override(&c.Redis.Addr, "REDIS_ADDR")
	override(&c.Redis.Password, "REDIS_PASSWORD")
	override(&c.Auth.JWTSecret, "JWT_SECRET")
	override(&c.Log.Level, "LOG_LEVEL")
	if raw := os.Getenv("REDIS_DB"); raw != "" {
		if db, err := strconv.Atoi(raw); err == nil {
			c.Redis.DB = db
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Contest.SweepSchedule == "" {
		c.Contest.SweepSchedule = "@every 10m"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func override(field *string, key string) {
	if v := os.Getenv(key); v != "" {
		*field = v
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
