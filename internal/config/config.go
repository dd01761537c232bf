// Package config loads netgrok settings from the environment and command-line flags.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/netgrok/netgrok/internal/publisher"
	"github.com/netgrok/netgrok/internal/scanner"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Config holds the pipeline settings. Environment variables provide the
// defaults; flags bound with BindFlags override them.
type Config struct {
	// Endpoint is the broadcast address events are published on.
	Endpoint string `env:"NETGROK_ENDPOINT" envDefault:"ipc://netgrok_socket"`
	// LogLevel is a zerolog level name.
	LogLevel string `env:"NETGROK_LOG_LEVEL" envDefault:"info"`
	// Filter is an optional expr-lang expression selecting published records.
	Filter string `env:"NETGROK_FILTER" envDefault:""`

	HostMaxLen    int `env:"NETGROK_HOST_MAX_LEN" envDefault:"256"`
	RefererMaxLen int `env:"NETGROK_REFERER_MAX_LEN" envDefault:"2048"`
	LineMaxLen    int `env:"NETGROK_LINE_MAX_LEN" envDefault:"4096"`
	// MaxSessionBytes caps how much of one session is kept for scanning.
	MaxSessionBytes int `env:"NETGROK_MAX_SESSION_BYTES" envDefault:"65536"`

	OTEL OTELConfig
}

// Load parses the configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// BindFlags registers flags overriding the environment on cmd and all of its
// subcommands.
func (c *Config) BindFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()

	flags.StringVar(&c.Endpoint, "endpoint", c.Endpoint, "Broadcast endpoint (ipc://, tcp://, inproc://)")
	flags.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (trace, debug, info, warn, error, disabled)")
	flags.StringVar(&c.Filter, "filter", c.Filter, `Only publish records matching this expression, e.g. 'protocol == "https"'`)
	flags.IntVar(&c.HostMaxLen, "host-max-len", c.HostMaxLen, "Host field size; longer values are truncated")
	flags.IntVar(&c.RefererMaxLen, "referer-max-len", c.RefererMaxLen, "Referer field size; longer values are truncated")
	flags.IntVar(&c.LineMaxLen, "line-max-len", c.LineMaxLen, "Longest header line examined")
	flags.IntVar(&c.MaxSessionBytes, "max-session-bytes", c.MaxSessionBytes, "Bytes of each session kept for scanning")
}

// Validate checks the limits and the log level.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint must not be empty")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	if c.HostMaxLen < 2 {
		return fmt.Errorf("host max length must be at least 2, got %d", c.HostMaxLen)
	}
	if c.RefererMaxLen < 2 {
		return fmt.Errorf("referer max length must be at least 2, got %d", c.RefererMaxLen)
	}
	if c.LineMaxLen < c.HostMaxLen || c.LineMaxLen < c.RefererMaxLen {
		return fmt.Errorf("line max length %d must not be below the field limits", c.LineMaxLen)
	}
	if c.MaxSessionBytes <= 0 {
		return fmt.Errorf("max session bytes must be positive, got %d", c.MaxSessionBytes)
	}
	return nil
}

// Level returns the parsed log level, info when it cannot be parsed.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// ScannerLimits returns the field limits for the header scanner.
func (c *Config) ScannerLimits() scanner.Limits {
	return scanner.Limits{
		HostMaxLen:    c.HostMaxLen,
		RefererMaxLen: c.RefererMaxLen,
		LineMaxLen:    c.LineMaxLen,
	}
}

// PublisherEndpoint returns the endpoint, falling back to the default.
func (c *Config) PublisherEndpoint() string {
	if c.Endpoint == "" {
		return publisher.DefaultEndpoint
	}
	return c.Endpoint
}
