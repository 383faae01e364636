package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid config")

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault reads path, falling back to defaults when the file is missing
// or unusable. The second return value carries the load error, if any.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return Default(), err
	}
	return cfg, nil
}

// SaveConfig writes the config to the specified path
func SaveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate rejects values the presence controller cannot work with.
func Validate(cfg *Config) error {
	for i, a := range cfg.Anchor {
		if a < 0 || a > 1 {
			return fmt.Errorf("%w: anchor[%d]=%v outside [0,1]", ErrInvalid, i, a)
		}
	}
	for _, size := range [][2]int{cfg.Expanded, cfg.Collapsed} {
		if size[0] <= 0 || size[1] <= 0 {
			return fmt.Errorf("%w: window size %v must be positive", ErrInvalid, size)
		}
	}
	if cfg.Alignment != AlignVertical && cfg.Alignment != AlignHorizontal {
		return fmt.Errorf("%w: alignment %q", ErrInvalid, cfg.Alignment)
	}
	switch cfg.Theme {
	case ThemeAuto, ThemeDark, ThemeLight:
	default:
		return fmt.Errorf("%w: theme %q", ErrInvalid, cfg.Theme)
	}
	return nil
}

// Parse decodes a read_config response and merges defaults. It never fails:
// malformed JSON yields the defaults and out-of-range values are clamped.
func Parse(data []byte) *Config {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		cfg = Config{}
	}
	applyDefaults(&cfg)
	for i := range cfg.Anchor {
		cfg.Anchor[i] = min(max(cfg.Anchor[i], 0), 1)
	}
	if cfg.Alignment != AlignHorizontal {
		cfg.Alignment = AlignVertical
	}
	if cfg.Theme != ThemeDark && cfg.Theme != ThemeLight {
		cfg.Theme = ThemeAuto
	}
	def := Default()
	if cfg.Expanded[0] <= 0 || cfg.Expanded[1] <= 0 {
		cfg.Expanded = def.Expanded
	}
	if cfg.Collapsed[0] <= 0 || cfg.Collapsed[1] <= 0 {
		cfg.Collapsed = def.Collapsed
	}
	return &cfg
}
