package config

import (
	"time"

	"github.com/b/shelf/pkg/paths"
)

// Config is the widget configuration. The monitor serves it over read_config
// as JSON; on disk it is YAML.
type Config struct {
	Alignment    string        `yaml:"alignment" json:"alignment"`        // "vertical" or "horizontal"
	Anchor       [2]float64    `yaml:"anchor" json:"anchor"`              // fractional point held fixed on resize
	Position     [2]int        `yaml:"position" json:"position"`          // anchor point on screen when the window position is unknown
	Expanded     [2]int        `yaml:"expanded" json:"expanded"`          // expanded window size [w, h]
	Collapsed    [2]int        `yaml:"collapsed" json:"collapsed"`        // collapsed window size [w, h]
	NameLimit    int           `yaml:"name_limit" json:"nameLimit"`       // displayed file name length before truncation
	TickInterval time.Duration `yaml:"tick_interval" json:"tickInterval"` // command channel cadence
	SettleDelay  time.Duration `yaml:"settle_delay" json:"settleDelay"`   // expand/collapse debounce
	Theme        string        `yaml:"theme" json:"theme"`                // "auto", "dark" or "light"
}

const (
	AlignVertical   = "vertical"
	AlignHorizontal = "horizontal"
)

const (
	ThemeAuto  = "auto"
	ThemeDark  = "dark"
	ThemeLight = "light"
)

const (
	DefaultNameLimit    = 30
	DefaultTickInterval = 10 * time.Millisecond
	DefaultSettleDelay  = 500 * time.Millisecond
)

// Default returns a config with every field at its default value.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// DefaultConfigPath is the YAML file the monitor reads.
func DefaultConfigPath() string {
	return paths.ConfigPath()
}

func applyDefaults(cfg *Config) {
	if cfg.Alignment == "" {
		cfg.Alignment = AlignVertical
	}
	if cfg.Expanded == [2]int{} {
		cfg.Expanded = [2]int{100, 300}
	}
	if cfg.Collapsed == [2]int{} {
		cfg.Collapsed = [2]int{20, 20}
	}
	if cfg.NameLimit <= 0 {
		cfg.NameLimit = DefaultNameLimit
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if cfg.Theme == "" {
		cfg.Theme = ThemeAuto
	}
}
