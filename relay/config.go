package relay

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/boardcast/analysis"
)

// Config is the relay configuration.
type Config struct {
	Listen string `yaml:"listen"`
	// AllowOrigins lists host patterns ("overlay.local", "localhost:*",
	// "*") for browser origins accepted on websocket upgrade. A scheme
	// prefix is ignored. Requests without an Origin header and same-host
	// origins are always accepted. Default: localhost and 127.0.0.1 on any
	// port.
	AllowOrigins []string `yaml:"allow_origins"`
	// Journal is the SQLite path. Empty disables the journal.
	Journal string                `yaml:"journal"`
	Engine  analysis.EngineConfig `yaml:"engine"`

	WriteTimeout time.Duration `yaml:"write_timeout"`
	PingInterval time.Duration `yaml:"ping_interval"`
	// MaxMessage bounds one producer message in bytes.
	MaxMessage int64 `yaml:"max_message"`
}

// LoadConfig reads a YAML configuration file and applies defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("relay: read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("relay: parse config: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	if c.Listen == "" {
		c.Listen = ":3000"
	}
	if len(c.AllowOrigins) == 0 {
		c.AllowOrigins = []string{"localhost", "localhost:*", "127.0.0.1", "127.0.0.1:*"}
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 15 * time.Second
	}
	if c.MaxMessage <= 0 {
		c.MaxMessage = 1 << 20
	}
}

// originPatterns turns configured origins into websocket host patterns.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if _, host, ok := strings.Cut(o, "://"); ok {
			o = host
		}
		o = strings.TrimSuffix(o, "/")
		if o != "" {
			patterns = append(patterns, o)
		}
	}
	return patterns
}
