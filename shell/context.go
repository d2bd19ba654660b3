package shell

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"github.com/wailsapp/wails/v2/pkg/options"
)

// EnvPrefix is the prefix for environment overrides of manifest keys
const EnvPrefix = "BUDGETING"

const defaultFrontendDist = "frontend/dist"

var (
	ErrInvalidManifest = errors.New("invalid app manifest")
	ErrMissingAssets   = errors.New("front-end assets not found")
)

// Config is the parsed app manifest
type Config struct {
	ProductName string      `mapstructure:"productName"`
	Version     string      `mapstructure:"version"`
	Identifier  string      `mapstructure:"identifier"`
	Build       BuildConfig `mapstructure:"build"`
	App         AppConfig   `mapstructure:"app"`
}

// BuildConfig describes where the bundled front end lives inside the asset FS
type BuildConfig struct {
	FrontendDist string `mapstructure:"frontendDist"`
}

// AppConfig holds window and security definitions
type AppConfig struct {
	Windows  []WindowConfig `mapstructure:"windows"`
	Security SecurityConfig `mapstructure:"security"`
}

// WindowConfig describes a native window
type WindowConfig struct {
	Label           string `mapstructure:"label"`
	Title           string `mapstructure:"title"`
	Width           int    `mapstructure:"width"`
	Height          int    `mapstructure:"height"`
	MinWidth        int    `mapstructure:"minWidth"`
	MinHeight       int    `mapstructure:"minHeight"`
	MaxWidth        int    `mapstructure:"maxWidth"`
	MaxHeight       int    `mapstructure:"maxHeight"`
	Resizable       *bool  `mapstructure:"resizable"`
	Fullscreen      bool   `mapstructure:"fullscreen"`
	BackgroundColor string `mapstructure:"backgroundColor"`
}

// SecurityConfig lists the capabilities granted to windows
type SecurityConfig struct {
	Capabilities []Capability `mapstructure:"capabilities"`
}

// Capability grants a set of plugin permissions to a set of windows
type Capability struct {
	Identifier  string   `mapstructure:"identifier"`
	Windows     []string `mapstructure:"windows"`
	Permissions []string `mapstructure:"permissions"`
}

// IsResizable reports whether the window may be resized (default true)
func (w WindowConfig) IsResizable() bool {
	return w.Resizable == nil || *w.Resizable
}

// Background parses BackgroundColor ("#rrggbb" or "#rrggbbaa").
// An empty or malformed value yields the default dark background.
func (w WindowConfig) Background() *options.RGBA {
	if c, err := parseHexColour(w.BackgroundColor); err == nil {
		return c
	}
	return &options.RGBA{R: 27, G: 38, B: 54, A: 255}
}

func parseHexColour(s string) (*options.RGBA, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 && len(hex) != 8 {
		return nil, fmt.Errorf("invalid colour %q", s)
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return &options.RGBA{
		R: uint8(v >> 24),
		G: uint8(v >> 16),
		B: uint8(v >> 8),
		A: uint8(v),
	}, nil
}

// MainWindow returns the first configured window
func (c *Config) MainWindow() WindowConfig {
	var w WindowConfig
	if len(c.App.Windows) > 0 {
		w = c.App.Windows[0]
	}
	if w.Label == "" {
		w.Label = "main"
	}
	if w.Title == "" {
		w.Title = c.ProductName
	}
	if w.Width == 0 {
		w.Width = 1024
	}
	if w.Height == 0 {
		w.Height = 768
	}
	return w
}

// Context is the run context handed to Builder.Run: the manifest plus the bundled front end
type Context struct {
	Config *Config
	Assets fs.FS

	v *viper.Viper
}

// GenerateContext parses the JSON manifest and locates the front-end bundle in assets.
func GenerateContext(assets fs.FS, manifest []byte) (*Context, error) {
	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("build.frontendDist", defaultFrontendDist)
	v.SetDefault("dev", false)

	if err := v.ReadConfig(bytes.NewReader(manifest)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	if cfg.Identifier == "" {
		return nil, fmt.Errorf("%w: identifier is required", ErrInvalidManifest)
	}
	if len(cfg.App.Windows) == 0 {
		return nil, fmt.Errorf("%w: at least one window is required", ErrInvalidManifest)
	}

	if assets == nil {
		return nil, ErrMissingAssets
	}
	dist, err := fs.Sub(assets, cfg.Build.FrontendDist)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingAssets, err)
	}
	if _, err := fs.Stat(dist, "index.html"); err != nil {
		return nil, fmt.Errorf("%w: %s/index.html: %v", ErrMissingAssets, cfg.Build.FrontendDist, err)
	}

	return &Context{Config: &cfg, Assets: dist, v: v}, nil
}

// Dev reports whether the app runs in development mode (BUDGETING_DEV=1 or "dev": true)
func (c *Context) Dev() bool {
	if c.v == nil {
		return false
	}
	return c.v.GetBool("dev")
}

// PluginConfig returns the plugins.<name> section of the manifest.
// Missing sections yield an empty config rather than nil.
func (c *Context) PluginConfig(name string) *viper.Viper {
	if c.v == nil {
		return viper.New()
	}
	if sub := c.v.Sub("plugins." + name); sub != nil {
		return sub
	}
	return viper.New()
}
