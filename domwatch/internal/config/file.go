// Package config handles board watcher configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level watcher configuration.
type Config struct {
	Browser  BrowserConfig  `yaml:"browser"`
	Page     PageConfig     `yaml:"page"`
	Debounce DebounceConfig `yaml:"debounce"`
	// PollInterval forces an extraction cycle when no mutation was
	// observed for this long. It also paces the HTTP-only mode.
	PollInterval time.Duration `yaml:"poll_interval"`
	// MoveListLimit keeps the n most recent full moves.
	MoveListLimit int          `yaml:"move_list_limit"`
	Sinks         []SinkConfig `yaml:"sinks"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	MemoryLimit      int64         `yaml:"memory_limit"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	Stealth          string        `yaml:"stealth"` // headless | headful
	XvfbDisplay      string        `yaml:"xvfb_display"`
}

// PageConfig defines the game page to watch.
type PageConfig struct {
	URL string `yaml:"url"`
	// Mode selects the acquisition path: browser, http or auto. auto
	// fetches the page once over HTTP and uses the browser unless the
	// static HTML already carries a board.
	Mode string `yaml:"mode"`
	// BoardSelector locates the board element the observer attaches to.
	BoardSelector string `yaml:"board_selector"`
	// LoadTimeout bounds navigation and the wait for the board.
	LoadTimeout time.Duration `yaml:"load_timeout"`
}

// DebounceConfig controls how mutation bursts are coalesced into
// extraction cycles.
type DebounceConfig struct {
	// Window is the quiet period after the last mutation.
	Window time.Duration `yaml:"window"`
	// MaxWait forces a cycle during continuous mutation storms.
	MaxWait time.Duration `yaml:"max_wait"`
}

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type string `yaml:"type"` // stdout | webhook | relay
	URL  string `yaml:"url"`  // webhook endpoint or relay producer websocket
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	if c.Browser.MemoryLimit <= 0 {
		c.Browser.MemoryLimit = 1 << 30
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Page.Mode == "" {
		c.Page.Mode = "browser"
	}
	if c.Page.BoardSelector == "" {
		c.Page.BoardSelector = "wc-chess-board, .board, #board-layout-main, .board-layout-chessboard"
	}
	if c.Page.LoadTimeout <= 0 {
		c.Page.LoadTimeout = 30 * time.Second
	}
	if c.Debounce.Window <= 0 {
		c.Debounce.Window = 50 * time.Millisecond
	}
	if c.Debounce.MaxWait <= 0 {
		c.Debounce.MaxWait = 500 * time.Millisecond
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.MoveListLimit <= 0 {
		c.MoveListLimit = 12
	}
}
