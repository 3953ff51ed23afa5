package core

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds the engine settings loaded from lumen.toml. Everything has a
// usable default so the file is optional.
type Config struct {
	Window struct {
		Width  uint32 `toml:"width"`
		Height uint32 `toml:"height"`
	} `toml:"window"`

	LogLevel string `toml:"log_level"`

	Vulkan struct {
		EnableValidation bool `toml:"enable_validation"`
	} `toml:"vulkan"`

	AssetsDir string `toml:"assets_dir"`
}

func DefaultConfig() *Config {
	c := &Config{}
	c.Window.Width = 1024
	c.Window.Height = 576
	c.LogLevel = "debug"
	c.AssetsDir = "assets"
	return c
}

// LoadConfig reads a TOML config file. A missing file is not an error, the
// defaults are returned instead.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			LogDebug("config file '%s' not found, using defaults", path)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file '%s': %w", path, err)
	}

	if cfg.Window.Width == 0 || cfg.Window.Height == 0 {
		err := fmt.Errorf("config window size must be > 0")
		LogError(err.Error())
		return nil, err
	}

	return cfg, nil
}
