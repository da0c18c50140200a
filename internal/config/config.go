package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultMaxAttempts bounds optimistic retries when a section leaves it unset.
const DefaultMaxAttempts = 5

type Config struct {
	Server struct {
		Port string `yaml:"port"`
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
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	AMQP struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"amqp"`
	Leaderboard struct {
		MaxAttempts int `yaml:"maxAttempts"`
	} `yaml:"leaderboard"`
	Profile struct {
		MaxAttempts int `yaml:"maxAttempts"`
	} `yaml:"profile"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	applyEnv(&cfg)
	if cfg.AMQP.Exchange == "" {
		cfg.AMQP.Exchange = "quiz_events"
	}
	return cfg, nil
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

// Attempts returns n, or DefaultMaxAttempts when n is not positive.
func Attempts(n int) int {
	if n <= 0 {
		return DefaultMaxAttempts
	}
	return n
}

// applyEnv lets connection secrets come from the environment instead of the YAML file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("POSTGRES_URL"); v != "" {
		cfg.Postgres.URL = v
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.AMQP.URL = v
	}
}
