// Package colors picks the widget's colours: it detects whether the
// terminal background is dark and derives a palette that stays legible on
// it.
package colors

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/muesli/termenv"
)

// ThemeMode represents the theme detection mode
type ThemeMode string

const (
	ThemeModeAuto  ThemeMode = "auto"
	ThemeModeDark  ThemeMode = "dark"
	ThemeModeLight ThemeMode = "light"
)

// BackgroundDetector decides whether the terminal background is dark. The
// answer is computed once and cached.
type BackgroundDetector struct {
	mode   ThemeMode
	out    io.Writer
	getenv func(string) string

	cachedIsDark *bool
}

// NewBackgroundDetector creates a detector that queries out (normally
// os.Stdout) in auto mode
func NewBackgroundDetector(mode ThemeMode, out io.Writer) *BackgroundDetector {
	return &BackgroundDetector{mode: mode, out: out, getenv: os.Getenv}
}

// IsDarkBackground returns true if the background is dark
func (d *BackgroundDetector) IsDarkBackground() bool {
	if d.cachedIsDark != nil {
		return *d.cachedIsDark
	}

	var isDark bool
	switch d.mode {
	case ThemeModeDark:
		isDark = true
	case ThemeModeLight:
		isDark = false
	default:
		isDark = d.detectDarkBackground()
	}
	d.cachedIsDark = &isDark
	return isDark
}

func (d *BackgroundDetector) detectDarkBackground() bool {
	if isDark, ok := d.checkCOLORFGBG(); ok {
		return isDark
	}
	if isDark, ok := d.checkTerminalHints(); ok {
		return isDark
	}
	if isDark, ok := d.checkTermenvBackground(); ok {
		return isDark
	}
	// most terminals are dark
	return true
}

// checkCOLORFGBG reads "fg;bg" ANSI indices; 0-7 are dark backgrounds
func (d *BackgroundDetector) checkCOLORFGBG() (bool, bool) {
	colorFGBG := d.getenv("COLORFGBG")
	if colorFGBG == "" {
		return false, false
	}
	parts := strings.Split(colorFGBG, ";")
	if len(parts) < 2 {
		return false, false
	}
	bg, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return false, false
	}
	return bg < 8 || bg == 16, true
}

func (d *BackgroundDetector) checkTerminalHints() (bool, bool) {
	profile := strings.ToLower(d.getenv("ITERM_PROFILE"))
	switch {
	case strings.Contains(profile, "light"):
		return false, true
	case strings.Contains(profile, "dark"):
		return true, true
	}
	return false, false
}

// checkTermenvBackground sends an OSC query; tmux does not answer it
func (d *BackgroundDetector) checkTermenvBackground() (bool, bool) {
	if d.out == nil || d.getenv("TMUX") != "" {
		return false, false
	}
	output := termenv.NewOutput(d.out)
	bgColor := output.BackgroundColor()
	if bgColor == nil {
		return false, false
	}
	if _, ok := bgColor.(termenv.NoColor); ok {
		return false, false
	}
	return output.HasDarkBackground(), true
}
