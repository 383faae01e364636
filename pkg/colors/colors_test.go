package colors

import (
	"math"
	"testing"
)

func TestGetLuminance(t *testing.T) {
	tests := []struct {
		name     string
		hexColor string
		want     float64
		delta    float64
	}{
		{"black", "#000000", 0.0, 0.001},
		{"white", "#ffffff", 1.0, 0.001},
		{"mid gray", "#808080", 0.2159, 0.01},
		{"pure red", "#ff0000", 0.2126, 0.01},
		{"pure green", "#00ff00", 0.7152, 0.01},
		{"invalid", "#abc", 0, 0.001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetLuminance(tt.hexColor)
			if math.Abs(got-tt.want) > tt.delta {
				t.Errorf("GetLuminance(%q) = %v, want %v (delta %v)", tt.hexColor, got, tt.want, tt.delta)
			}
		})
	}
}

func TestGetContrastRatio(t *testing.T) {
	tests := []struct {
		name  string
		fg    string
		bg    string
		want  float64
		delta float64
	}{
		{"black on white", "#000000", "#ffffff", 21.0, 0.1},
		{"white on black", "#ffffff", "#000000", 21.0, 0.1},
		{"same color", "#808080", "#808080", 1.0, 0.1},
		{"black on mid gray", "#000000", "#808080", 5.3, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetContrastRatio(tt.fg, tt.bg)
			if math.Abs(got-tt.want) > tt.delta {
				t.Errorf("GetContrastRatio(%q, %q) = %v, want %v", tt.fg, tt.bg, got, tt.want)
			}
		})
	}
}

func TestParseHex(t *testing.T) {
	c, ok := ParseHex("#0a1B2c")
	if !ok || c != (RGB{0x0a, 0x1b, 0x2c}) {
		t.Fatalf("ParseHex() = %v, %v", c, ok)
	}
	if got := c.Hex(); got != "#0a1b2c" {
		t.Errorf("Hex() = %q", got)
	}
	for _, bad := range []string{"", "#12345", "#zzzzzz", "#1234567"} {
		if _, ok := ParseHex(bad); ok {
			t.Errorf("ParseHex(%q) accepted", bad)
		}
	}
}

func TestEnsureContrast(t *testing.T) {
	tests := []struct {
		name string
		fg   string
		bg   string
	}{
		{"gray on gray", "#777777", "#888888"},
		{"dim text on dark", "#333333", "#1a1a2e"},
		{"pale on light", "#eeeeee", "#faf4ed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EnsureContrast(tt.fg, tt.bg, 3.0)
			if r := GetContrastRatio(got, tt.bg); r < 3.0 {
				t.Errorf("EnsureContrast(%q, %q) = %q with ratio %.2f", tt.fg, tt.bg, got, r)
			}
		})
	}
	if got := EnsureContrast("#ffffff", "#000000", 4.5); got != "#ffffff" {
		t.Errorf("already legible colour changed to %q", got)
	}
}

func TestHSL(t *testing.T) {
	tests := []struct {
		h, s, l float64
		want    RGB
	}{
		{0, 1, 0.5, RGB{255, 0, 0}},
		{120, 1, 0.5, RGB{0, 255, 0}},
		{240, 1, 0.5, RGB{0, 0, 255}},
		{0, 0, 0.5, RGB{127, 127, 127}},
	}
	for _, tt := range tests {
		if got := HSL(tt.h, tt.s, tt.l); got != tt.want {
			t.Errorf("HSL(%v, %v, %v) = %v, want %v", tt.h, tt.s, tt.l, got, tt.want)
		}
	}
}

func TestFileColorIsStable(t *testing.T) {
	if FileColor(".txt") != FileColor(".txt") {
		t.Fatal("same kind, different colour")
	}
	if FileColor("/") == FileColor(".txt") {
		t.Error("folders share a colour with text files")
	}
	if FileColor("") != unknownColor {
		t.Error("extensionless files are not grey")
	}
}

func TestBackgroundDetector(t *testing.T) {
	tests := []struct {
		name string
		mode ThemeMode
		env  map[string]string
		want bool
	}{
		{"forced light", ThemeModeLight, nil, false},
		{"forced dark", ThemeModeDark, map[string]string{"COLORFGBG": "0;15"}, true},
		{"COLORFGBG dark", ThemeModeAuto, map[string]string{"COLORFGBG": "15;0"}, true},
		{"COLORFGBG light", ThemeModeAuto, map[string]string{"COLORFGBG": "0;15"}, false},
		{"iTerm light profile", ThemeModeAuto, map[string]string{"ITERM_PROFILE": "Solarized Light"}, false},
		{"nothing known", ThemeModeAuto, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewBackgroundDetector(tt.mode, nil)
			d.getenv = func(k string) string { return tt.env[k] }
			if got := d.IsDarkBackground(); got != tt.want {
				t.Errorf("IsDarkBackground() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPaletteIsLegible(t *testing.T) {
	for _, dark := range []bool{true, false} {
		p := NewPalette(dark)
		for name, c := range map[string]string{"text": p.Text, "hover": p.Hover, "pending": p.Pending, "closing": p.Closing} {
			if r := GetContrastRatio(c, p.Background); r < 3.0 {
				t.Errorf("dark=%v %s %s on %s: ratio %.2f", dark, name, c, p.Background, r)
			}
		}
	}
}
