package main

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// NOTE: run nats: docker run --net=host nats:latest -js
// or set CONTAINER=1 to start the backend in a throwaway container.

type config struct {
	Backend   string        `env:"BACKEND" envDefault:"mem"` // mem|leveldb|nats|redis|postgres|mongo|s3
	Location  string        `env:"LOCATION"`                 // backend-specific; a default is picked per backend
	Create    bool          `env:"CREATE" envDefault:"true"`
	Container bool          `env:"CONTAINER"`
	Capacity  int           `env:"CAPACITY" envDefault:"10240"`
	Shards    int           `env:"SHARDS" envDefault:"1"`
	N         int           `env:"N" envDefault:"200000"`
	Workers   int           `env:"WORKERS" envDefault:"8"`
	KeySpace  int           `env:"KEYSPACE" envDefault:"20000"`
	ValueSize int           `env:"VALUE_SIZE" envDefault:"64"`
	ReadPct   int           `env:"READ_PCT" envDefault:"80"`
	DeletePct int           `env:"DELETE_PCT" envDefault:"5"`
	Compress  int           `env:"COMPRESS"` // zstd level; 0 disables compression
	Report    time.Duration `env:"REPORT_INTERVAL" envDefault:"1s"`
	Timeout   time.Duration `env:"TIMEOUT" envDefault:"10m"`
	LogLevel  string        `env:"LOG_LEVEL" envDefault:"info"`

	MetricsAddr string `env:"METRICS_ADDR"` // serve /metrics when set, e.g. ":9100"
}

// containerBackends can be started with CONTAINER=1.
var containerBackends = map[string]bool{
	"nats":     true,
	"redis":    true,
	"postgres": true,
	"mongo":    true,
}

var defaultLocations = map[string]string{
	"leveldb":  "/tmp/lrukv-loadtest",
	"nats":     "lrukv_loadtest",
	"redis":    "lrukv:loadtest:",
	"postgres": "lrukv_loadtest",
	"mongo":    "lrukv_loadtest",
	"s3":       "lrukv-loadtest",
}

func loadConfig() (config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	cfg, err := env.ParseAs[config]()
	if err != nil {
		return cfg, err
	}
	if cfg.Location == "" {
		cfg.Location = defaultLocations[cfg.Backend]
	}
	cfg.Workers = max(cfg.Workers, 1)
	cfg.KeySpace = max(cfg.KeySpace, 1)
	cfg.Shards = max(cfg.Shards, 1)
	cfg.ValueSize = max(cfg.ValueSize, 1)
	return cfg, nil
}
