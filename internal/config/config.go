package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/phinze/overlaystudio/internal/compositor"
	"github.com/phinze/overlaystudio/internal/export"
	"github.com/phinze/overlaystudio/internal/overlay"
	"github.com/phinze/overlaystudio/internal/playback"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration
type Config struct {
	Canvas   CanvasConfig          `yaml:"canvas" toml:"canvas"`
	Playback PlaybackConfig        `yaml:"playback" toml:"playback"`
	Shadow   ShadowConfig          `yaml:"shadow" toml:"shadow"`
	Export   ExportConfig          `yaml:"export" toml:"export"`
	Fonts    map[string]FontFiles  `yaml:"fonts" toml:"fonts"`
	Overlays []overlay.TextOverlay `yaml:"overlays" toml:"overlays"`
}

type CanvasConfig struct {
	Width  int `yaml:"width" toml:"width"`
	Height int `yaml:"height" toml:"height"`
	// Scaler is one of nearest, approx-bilinear, bilinear, catmull-rom.
	Scaler string `yaml:"scaler" toml:"scaler"`
}

type PlaybackConfig struct {
	RefreshRate float64 `yaml:"refresh_rate" toml:"refresh_rate"`
}

type ShadowConfig struct {
	Color   string  `yaml:"color" toml:"color"`
	Blur    float64 `yaml:"blur" toml:"blur"`
	OffsetX int     `yaml:"offset_x" toml:"offset_x"`
	OffsetY int     `yaml:"offset_y" toml:"offset_y"`
}

type ExportConfig struct {
	Filename string `yaml:"filename" toml:"filename"`
	Dir      string `yaml:"dir" toml:"dir"`
}

// FontFiles points a family at TrueType/OpenType files on disk. Bold may
// be empty, in which case bold text uses the regular face.
type FontFiles struct {
	Regular string `yaml:"regular" toml:"regular"`
	Bold    string `yaml:"bold" toml:"bold"`
}

// Load reads configuration from file or returns defaults. Files ending in
// .toml are decoded as TOML, everything else as YAML.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrap(err, "read config")
	}

	if isTOML(path) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, errors.Wrapf(err, "parse %s", path)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}

	return cfg, nil
}

// Save writes configuration to file in the format implied by its extension.
func (c *Config) Save(path string) error {
	data, err := c.Marshal(isTOML(path))
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Marshal encodes the configuration as YAML, or TOML when asked.
func (c *Config) Marshal(asTOML bool) ([]byte, error) {
	if asTOML {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return nil, errors.Wrap(err, "encode toml")
		}
		return buf.Bytes(), nil
	}

	data, err := yaml.Marshal(c)
	return data, errors.Wrap(err, "encode yaml")
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Canvas: CanvasConfig{
			Width:  compositor.DefaultSize.X,
			Height: compositor.DefaultSize.Y,
			Scaler: "approx-bilinear",
		},
		Playback: PlaybackConfig{
			RefreshRate: 60,
		},
		Shadow: ShadowConfig{
			Color:   "#000000cc",
			Blur:    compositor.DefaultShadow.Blur,
			OffsetX: compositor.DefaultShadow.OffsetX,
			OffsetY: compositor.DefaultShadow.OffsetY,
		},
		Export: ExportConfig{
			Filename: export.DefaultFilename,
			Dir:      ".",
		},
		Fonts:    make(map[string]FontFiles),
		Overlays: overlay.Campaign(),
	}
}

func findConfigFile() string {
	candidates := []string{
		"./overlaystudio.yaml",
		"./overlaystudio.yml",
		"./overlaystudio.toml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".config", "overlaystudio", "config.yaml"),
			filepath.Join(home, ".config", "overlaystudio", "config.toml"),
		)
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// Compositor translates the canvas and shadow sections.
func (c *Config) Compositor() (compositor.Config, error) {
	cfg := compositor.DefaultConfig()
	if c.Canvas.Width > 0 && c.Canvas.Height > 0 {
		cfg.DefaultSize.X = c.Canvas.Width
		cfg.DefaultSize.Y = c.Canvas.Height
	}

	scaler, err := parseScaler(c.Canvas.Scaler)
	if err != nil {
		return cfg, err
	}
	cfg.Scaler = scaler

	if c.Shadow.Color != "" {
		col, err := compositor.ParseColor(c.Shadow.Color)
		if err != nil {
			return cfg, errors.Wrap(err, "shadow color")
		}
		cfg.Shadow.Color = col
	}
	if c.Shadow.Blur < 0 {
		return cfg, errors.Errorf("shadow blur must not be negative, got %v", c.Shadow.Blur)
	}
	cfg.Shadow.Blur = c.Shadow.Blur
	cfg.Shadow.OffsetX = c.Shadow.OffsetX
	cfg.Shadow.OffsetY = c.Shadow.OffsetY

	return cfg, nil
}

func parseScaler(name string) (draw.Scaler, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "approx-bilinear":
		return draw.ApproxBiLinear, nil
	case "nearest":
		return draw.NearestNeighbor, nil
	case "bilinear":
		return draw.BiLinear, nil
	case "catmull-rom":
		return draw.CatmullRom, nil
	default:
		return nil, errors.Errorf("unknown scaler %q", name)
	}
}

// RegisterFonts loads every configured family into book.
func (c *Config) RegisterFonts(book *compositor.FontBook) error {
	for family, files := range c.Fonts {
		if files.Regular == "" {
			return errors.Errorf("font %q: regular file is required", family)
		}
		if err := book.RegisterFile(family, overlay.WeightNormal, files.Regular); err != nil {
			return err
		}
		bold := files.Bold
		if bold == "" {
			bold = files.Regular
		}
		if err := book.RegisterFile(family, overlay.WeightBold, bold); err != nil {
			return err
		}
	}
	return nil
}

// Interval returns the playback refresh interval.
func (c *Config) Interval() time.Duration {
	return playback.IntervalForRate(c.Playback.RefreshRate)
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
