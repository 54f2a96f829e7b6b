// Package config loads the mirage runtime configuration: listen addresses,
// queue sizing, and the devices the process serves, from a JSON file with
// MIRAGE_* environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/zsiec/mirage/internal/queue"
	"github.com/zsiec/mirage/media"
)

// FormatConfig describes one video format a device offers.
type FormatConfig struct {
	PixelFormat string   `json:"pixelFormat"`
	Width       int      `json:"width"`
	Height      int      `json:"height"`
	FrameRates  []string `json:"frameRates"`
}

// DeviceConfig describes one virtual camera device.
type DeviceConfig struct {
	Key       string         `json:"key"`
	Name      string         `json:"name"`
	TestImage string         `json:"testImage,omitempty"`
	Formats   []FormatConfig `json:"formats"`
}

// Config is the full runtime configuration. Fields are loaded from a JSON
// file and may be overridden by environment variables.
type Config struct {
	LogLevel      string         `json:"logLevel"`
	APIAddr       string         `json:"apiAddr"`
	IngestAddr    string         `json:"ingestAddr"`
	QUICAddr      string         `json:"quicAddr"`
	QueueCapacity int            `json:"queueCapacity"`
	Devices       []DeviceConfig `json:"devices"`
}

// Default returns a Config serving one 640x480 RGB24 device at 30 fps.
func Default() *Config {
	return &Config{
		LogLevel:      "info",
		APIAddr:       ":8080",
		IngestAddr:    ":7000",
		QUICAddr:      ":7001",
		QueueCapacity: queue.DefaultCapacity,
		Devices: []DeviceConfig{{
			Key:  "cam0",
			Name: "Mirage Camera",
			Formats: []FormatConfig{{
				PixelFormat: "RGB24",
				Width:       640,
				Height:      480,
				FrameRates:  []string{"30/1"},
			}},
		}},
	}
}

// Load reads configuration from path. A missing file yields Default() so
// the process runs without any setup; a malformed one is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// FromEnv applies MIRAGE_* environment overrides to cfg.
func FromEnv(cfg *Config) {
	cfg.LogLevel = envOr("MIRAGE_LOG_LEVEL", cfg.LogLevel)
	cfg.APIAddr = envOr("MIRAGE_API_ADDR", cfg.APIAddr)
	cfg.IngestAddr = envOr("MIRAGE_INGEST_ADDR", cfg.IngestAddr)
	cfg.QUICAddr = envOr("MIRAGE_QUIC_ADDR", cfg.QUICAddr)
	if v := os.Getenv("MIRAGE_QUEUE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.QueueCapacity = n
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Validate clamps tunables to safe values and reports structural problems:
// missing devices, duplicate or empty keys, unparseable formats.
func (c *Config) Validate() error {
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = queue.DefaultCapacity
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = "info"
	}

	if len(c.Devices) == 0 {
		return fmt.Errorf("config: no devices configured")
	}
	seen := make(map[string]bool, len(c.Devices))
	for i, d := range c.Devices {
		if d.Key == "" {
			return fmt.Errorf("config: device %d has no key", i)
		}
		if seen[d.Key] {
			return fmt.Errorf("config: duplicate device key %q", d.Key)
		}
		seen[d.Key] = true
		if _, err := d.ToFormats(); err != nil {
			return err
		}
	}
	return nil
}

// Level maps LogLevel to its slog level, defaulting to info.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ToFormats builds the media formats for one device. Parse errors carry
// the device key and format index so a bad config line is findable.
func (d DeviceConfig) ToFormats() ([]media.VideoFormat, error) {
	if len(d.Formats) == 0 {
		return nil, fmt.Errorf("config: device %q has no formats", d.Key)
	}

	out := make([]media.VideoFormat, 0, len(d.Formats))
	for i, fc := range d.Formats {
		pf, err := media.ParsePixelFormat(fc.PixelFormat)
		if err != nil {
			return nil, fmt.Errorf("config: device %q format %d: %w", d.Key, i, err)
		}
		f := media.VideoFormat{
			PixelFormat: pf,
			Width:       fc.Width,
			Height:      fc.Height,
		}
		for _, rs := range fc.FrameRates {
			rate, err := media.ParseFraction(rs)
			if err != nil {
				return nil, fmt.Errorf("config: device %q format %d: %w", d.Key, i, err)
			}
			f.FrameRates = append(f.FrameRates, rate)
		}
		if len(f.FrameRates) == 0 {
			return nil, fmt.Errorf("config: device %q format %d has no frame rates", d.Key, i)
		}
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("config: device %q format %d: %w", d.Key, i, err)
		}
		out = append(out, f)
	}
	return out, nil
}
