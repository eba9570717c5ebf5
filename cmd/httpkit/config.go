package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/adamwoolhether/httpkit/client"
)

// config is read from HTTPKIT_* environment variables.
type config struct {
	Addr            string        `envconfig:"ADDR" default:"127.0.0.1:8080"`
	Timeout         time.Duration `envconfig:"TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	Debug           bool          `envconfig:"DEBUG" default:"false"`
	UserAgent       string        `envconfig:"USER_AGENT" default:"httpkit/1.0"`
	DownloadDir     string        `envconfig:"DOWNLOAD_DIR"`
	MaxConcurrent   int           `envconfig:"MAX_CONCURRENT" default:"4"`
	CORSOrigins     []string      `envconfig:"CORS_ORIGINS"`
	RateLimit       rateLimitConfig
}

type rateLimitConfig struct {
	RPS   int `envconfig:"RPS" default:"0"`
	Burst int `envconfig:"BURST" default:"1"`
}

func loadConfig() (config, error) {
	var cfg config
	if err := envconfig.Process("HTTPKIT", &cfg); err != nil {
		return config{}, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

func (cfg config) logger() *slog.Logger {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (cfg config) clientOptions(log *slog.Logger) []client.Option {
	opts := []client.Option{
		client.WithLogger(log),
		client.WithTimeout(cfg.Timeout),
		client.WithUserAgent(cfg.UserAgent),
		client.WithMaxConcurrent(cfg.MaxConcurrent),
	}
	if cfg.Debug {
		opts = append(opts, client.WithDebug())
	}
	if cfg.DownloadDir != "" {
		opts = append(opts, client.WithDownloadDir(cfg.DownloadDir))
	}
	if cfg.RateLimit.RPS > 0 {
		opts = append(opts, client.WithThrottle(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	}

	return opts
}
