package domwatch

import (
	"github.com/hazyhaar/boardcast/domwatch/internal/config"
)

// Config is the top-level watcher configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig = config.BrowserConfig

// PageConfig defines the game page to watch.
type PageConfig = config.PageConfig

// DebounceConfig controls mutation coalescing.
type DebounceConfig = config.DebounceConfig

// SinkConfig defines an output backend.
type SinkConfig = config.SinkConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}
