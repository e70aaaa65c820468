// Package config holds runtime settings for the gate daemon.
//
// Values are resolved in three layers, later layers winning:
// struct defaults, environment variables, command-line flags.
package config

import (
	"flag"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration for gated.
//
// Units: CheckInterval and FetchTimeout are durations (e.g. "30s").
type Config struct {
	ListenAddr    string        `envconfig:"GATED_LISTEN_ADDR" default:":8490"`
	ServerBaseURL string        `envconfig:"GATED_SERVER_BASE_URL" default:"http://127.0.0.1:4000"`
	CacheDSN      string        `envconfig:"GATED_CACHE_DSN" default:"gate.db"`
	CheckInterval time.Duration `envconfig:"GATED_CHECK_INTERVAL" default:"30s"`
	FetchTimeout  time.Duration `envconfig:"GATED_FETCH_TIMEOUT" default:"12s"`
	LogLevel      string        `envconfig:"GATED_LOG_LEVEL" default:"info"`
}

// Load reads configuration from the environment and overlays CLI flags.
func Load(args []string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(&cfg, args); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   address to listen on for the routing shell
//	-s string   base URL of the remote application server
//	-d string   SQLite DSN for the local cache
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("gated", flag.ContinueOnError)

	fs.StringVar(&cfg.ListenAddr, "a", cfg.ListenAddr, "address to listen on")
	fs.StringVar(&cfg.ServerBaseURL, "s", cfg.ServerBaseURL, "remote server base URL")
	fs.StringVar(&cfg.CacheDSN, "d", cfg.CacheDSN, "local cache SQLite DSN")

	return fs.Parse(args)
}
