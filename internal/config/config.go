// Package config handles configuration loading and validation for wayentry.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds the complete dialog configuration. It is read once at
// startup and never reloaded: a pinentry process lives for a handful of
// seconds and owns no state worth hot-swapping.
type Config struct {
	// Window holds the fixed surface geometry.
	Window WindowConfig `toml:"window"`

	// Font holds the font resolution and sizing settings.
	Font FontConfig `toml:"font"`

	// Colors holds the dialog palette.
	Colors ColorConfig `toml:"colors"`

	// Input holds entry behavior settings.
	Input InputConfig `toml:"input"`

	// Logging holds log output settings.
	Logging LoggingConfig `toml:"logging"`
}

// WindowConfig holds the fixed window geometry. The dialog is not
// resizable; the compositor may still scale it.
type WindowConfig struct {
	// Width is the surface width in pixels.
	Width int `toml:"width"`

	// Height is the surface height in pixels.
	Height int `toml:"height"`

	// Title is the fallback window title when the peer sets none.
	Title string `toml:"title"`
}

// FontConfig holds font settings.
type FontConfig struct {
	// Paths is the ordered list of font files to try. The first readable
	// one wins; if none loads the process exits before any window is shown.
	Paths []string `toml:"paths"`

	// LabelSize is the point size for prompt and description text.
	LabelSize float64 `toml:"label_size"`

	// MaskSize is the point size for the entry mask glyph.
	MaskSize float64 `toml:"mask_size"`

	// MaskRune is the placeholder drawn per entered character.
	MaskRune string `toml:"mask_rune"`
}

// ColorConfig holds the palette as "#rrggbb" strings.
type ColorConfig struct {
	Background string `toml:"background"`
	Box        string `toml:"box"`
	Border     string `toml:"border"`
	Text       string `toml:"text"`
	Label      string `toml:"label"`
	Cursor     string `toml:"cursor"`
}

// InputConfig holds entry behavior settings.
type InputConfig struct {
	// BlinkIntervalMs is the cursor blink half-period in milliseconds.
	BlinkIntervalMs int `toml:"blink_interval_ms"`

	// PasteEnabled allows Ctrl+V insertion from the clipboard.
	PasteEnabled bool `toml:"paste_enabled"`

	// MaxLength caps the number of entered code points. 0 means unlimited.
	MaxLength int `toml:"max_length"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	// Level is the minimum level: debug, info, warn, error.
	Level string `toml:"level"`

	// JSON selects JSON log output.
	JSON bool `toml:"json"`
}

// DefaultConfig returns the built-in configuration. Geometry and palette
// match the dialog's original fixed design.
func DefaultConfig() *Config {
	return &Config{
		Window: WindowConfig{
			Width:  400,
			Height: 200,
			Title:  "PIN Entry",
		},
		Font: FontConfig{
			Paths: []string{
				"/usr/share/fonts/X11/dejavu/DejaVuSans.ttf",
				"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
				"/usr/share/fonts/TTF/DejaVuSans.ttf",
				"/usr/share/fonts/liberation/LiberationSans-Regular.ttf",
				"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
			},
			LabelSize: 14,
			MaskSize:  16,
			MaskRune:  "*",
		},
		Colors: ColorConfig{
			Background: "#1e1e2e",
			Box:        "#313244",
			Border:     "#45475a",
			Text:       "#b4befe",
			Label:      "#b4befe",
			Cursor:     "#bac2de",
		},
		Input: InputConfig{
			BlinkIntervalMs: 530,
			PasteEnabled:    true,
			MaxLength:       0,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the default config file location under the XDG
// config home.
func DefaultPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		homeDir, _ := os.UserHomeDir()
		configHome = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configHome, "wayentry", "config.toml")
}

// Load reads the configuration file at path, layered over the defaults.
// A missing file is not an error: the defaults apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("stat config: %w", err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the dialog cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Window.Width < 100 || c.Window.Height < 60 {
		errs = append(errs, fmt.Errorf("window %dx%d too small", c.Window.Width, c.Window.Height))
	}
	if len(c.Font.Paths) == 0 {
		errs = append(errs, errors.New("font.paths must not be empty"))
	}
	if c.Font.LabelSize <= 0 || c.Font.MaskSize <= 0 {
		errs = append(errs, errors.New("font sizes must be positive"))
	}
	if n := len([]rune(c.Font.MaskRune)); n != 1 {
		errs = append(errs, fmt.Errorf("font.mask_rune must be a single character, got %d", n))
	}
	if c.Input.BlinkIntervalMs <= 0 {
		errs = append(errs, errors.New("input.blink_interval_ms must be positive"))
	}
	if c.Input.MaxLength < 0 {
		errs = append(errs, errors.New("input.max_length must not be negative"))
	}

	for name, v := range map[string]string{
		"background": c.Colors.Background,
		"box":        c.Colors.Box,
		"border":     c.Colors.Border,
		"text":       c.Colors.Text,
		"label":      c.Colors.Label,
		"cursor":     c.Colors.Cursor,
	} {
		if _, _, _, err := ParseColor(v); err != nil {
			errs = append(errs, fmt.Errorf("colors.%s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

// MaskGlyph returns the configured mask rune.
func (c *Config) MaskGlyph() rune {
	return []rune(c.Font.MaskRune)[0]
}

// ParseColor parses a "#rrggbb" string into its components.
func ParseColor(s string) (r, g, b uint8, err error) {
	if len(s) != 7 || s[0] != '#' {
		return 0, 0, 0, fmt.Errorf("color %q: want #rrggbb", s)
	}
	var rv, gv, bv uint8
	if _, err := fmt.Sscanf(s[1:], "%02x%02x%02x", &rv, &gv, &bv); err != nil {
		return 0, 0, 0, fmt.Errorf("color %q: %w", s, err)
	}
	return rv, gv, bv, nil
}
