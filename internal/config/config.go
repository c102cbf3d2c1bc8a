package config

import (
	"errors"
	"strings"
	"time"

	cenv "github.com/caarlos0/env/v11"
)

const (
	StoreFile  = "file"
	StoreRedis = "redis"
)

type Config struct {
	ListenAddr      string
	UpstreamBaseURL string
	Model           string
	RequestTimeout  time.Duration
	ExplainTimeout  time.Duration
	StreamDelay     time.Duration
	ConfigStore     string
	ConfigPath      string
	RedisURL        string
	ModesFile       string
	HistoryLimit    int
	LogLevel        string
}

type envConfig struct {
	ListenAddr            string `env:"LISTEN_ADDR" envDefault:":8080"`
	UpstreamBaseURL       string `env:"UPSTREAM_BASE_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta"`
	Model                 string `env:"MODEL" envDefault:"gemini-1.5-flash-latest"`
	RequestTimeoutSeconds int    `env:"REQUEST_TIMEOUT_SECONDS" envDefault:"60"`
	ExplainTimeoutSeconds int    `env:"EXPLAIN_TIMEOUT_SECONDS" envDefault:"30"`
	StreamDelayMS         int    `env:"STREAM_DELAY_MS" envDefault:"20"`
	ConfigStore           string `env:"CONFIG_STORE" envDefault:"file"`
	ConfigPath            string `env:"CONFIG_PATH"`
	RedisURL              string `env:"REDIS_URL"`
	ModesFile             string `env:"MODES_FILE"`
	HistoryLimit          int    `env:"HISTORY_LIMIT" envDefault:"20"`
	LogLevel              string `env:"LOG_LEVEL" envDefault:"info"`
}

func Load() (Config, error) {
	var raw envConfig
	if err := cenv.Parse(&raw); err != nil {
		return Config{}, err
	}

	cfg := Config{
		ListenAddr:      strings.TrimSpace(raw.ListenAddr),
		UpstreamBaseURL: strings.TrimRight(strings.TrimSpace(raw.UpstreamBaseURL), "/"),
		Model:           strings.TrimSpace(raw.Model),
		RequestTimeout:  time.Duration(raw.RequestTimeoutSeconds) * time.Second,
		ExplainTimeout:  time.Duration(raw.ExplainTimeoutSeconds) * time.Second,
		StreamDelay:     time.Duration(raw.StreamDelayMS) * time.Millisecond,
		ConfigStore:     strings.ToLower(strings.TrimSpace(raw.ConfigStore)),
		ConfigPath:      strings.TrimSpace(raw.ConfigPath),
		RedisURL:        strings.TrimSpace(raw.RedisURL),
		ModesFile:       strings.TrimSpace(raw.ModesFile),
		HistoryLimit:    raw.HistoryLimit,
		LogLevel:        strings.ToLower(strings.TrimSpace(raw.LogLevel)),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("LISTEN_ADDR must not be empty")
	}
	if c.UpstreamBaseURL == "" {
		return errors.New("UPSTREAM_BASE_URL must not be empty")
	}
	if c.Model == "" {
		return errors.New("MODEL must not be empty")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT_SECONDS must be > 0")
	}
	if c.ExplainTimeout <= 0 {
		return errors.New("EXPLAIN_TIMEOUT_SECONDS must be > 0")
	}
	if c.StreamDelay < 0 {
		return errors.New("STREAM_DELAY_MS must be >= 0")
	}
	switch c.ConfigStore {
	case StoreFile:
	case StoreRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL must be set when CONFIG_STORE=redis")
		}
	default:
		return errors.New("CONFIG_STORE must be one of: file, redis")
	}
	if c.HistoryLimit <= 0 {
		return errors.New("HISTORY_LIMIT must be > 0")
	}
	return nil
}
