package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

var ErrInvalid = errors.New("invalid configuration")

const (
	BackendOpenGL = "opengl"
	BackendVulkan = "vulkan"
)

type Device struct {
	Backend string `toml:"backend"`
	Title   string `toml:"title"`
	Width   uint32 `toml:"width"`
	Height  uint32 `toml:"height"`
	VSync   bool   `toml:"vsync"`
	// Debug enables GL error checks and Vulkan validation layers.
	Debug bool `toml:"debug"`
}

type Shaders struct {
	HotReload bool `toml:"hot_reload"`
	// BytecodeCacheEntries bounds the in-memory compiled stage cache.
	BytecodeCacheEntries int `toml:"bytecode_cache_entries"`
}

type Immediate struct {
	InitialCapacity int    `toml:"initial_capacity"`
	Font            string `toml:"font"`
}

type Log struct {
	Level string `toml:"level"`
}

type Config struct {
	Device    Device    `toml:"device"`
	Shaders   Shaders   `toml:"shaders"`
	Immediate Immediate `toml:"immediate"`
	Log       Log       `toml:"log"`
}

func Default() *Config {
	return &Config{
		Device: Device{
			Backend: BackendOpenGL,
			Title:   "anima-gpu",
			Width:   1280,
			Height:  720,
			VSync:   true,
		},
		Shaders: Shaders{
			HotReload:            true,
			BytecodeCacheEntries: 256,
		},
		Immediate: Immediate{
			InitialCapacity: 1024,
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Load reads a TOML file on top of Default. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Device.Backend {
	case BackendOpenGL, BackendVulkan:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalid, c.Device.Backend)
	}
	if c.Device.Width == 0 || c.Device.Height == 0 {
		return fmt.Errorf("%w: window size %dx%d", ErrInvalid, c.Device.Width, c.Device.Height)
	}
	if c.Shaders.BytecodeCacheEntries <= 0 {
		return fmt.Errorf("%w: bytecode_cache_entries must be positive", ErrInvalid)
	}
	if c.Immediate.InitialCapacity <= 0 {
		return fmt.Errorf("%w: immediate initial_capacity must be positive", ErrInvalid)
	}
	return nil
}

func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}
