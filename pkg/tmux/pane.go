// Package tmux sizes the pane the widget runs in when it is hosted by tmux.
package tmux

import (
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// ansiEscapeRegex matches ANSI escape sequences
var ansiEscapeRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]|\x1b\].*?(?:\x07|\x1b\\)`)

// stripANSI removes ANSI escape sequences from a string
func stripANSI(s string) string {
	return ansiEscapeRegex.ReplaceAllString(s, "")
}

const paneFormat = "#{pane_id}\x1f#{pane_left}\x1f#{pane_top}\x1f#{pane_width}\x1f#{pane_height}\x1f#{pane_title}"

// Pane is a tmux pane's geometry in cells
type Pane struct {
	ID     string
	Left   int
	Top    int
	Width  int
	Height int
	Title  string
}

// InTmux reports whether the process runs inside a tmux client
func InTmux() bool {
	return os.Getenv("TMUX") != ""
}

// CurrentPaneID returns $TMUX_PANE, the pane this process was started in
func CurrentPaneID() string {
	return os.Getenv("TMUX_PANE")
}

// GetPane returns the geometry of paneID
func GetPane(paneID string) (Pane, error) {
	out, err := exec.Command("tmux", "display-message", "-p", "-t", paneID, paneFormat).Output()
	if err != nil {
		return Pane{}, fmt.Errorf("tmux display-message failed: %w", err)
	}
	return parsePane(strings.TrimSpace(string(out)))
}

// ResizePane sets paneID to width x height cells. tmux clamps the request
// to what the window layout allows.
func ResizePane(paneID string, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid pane size %dx%d", width, height)
	}
	args := []string{"resize-pane", "-t", paneID, "-x", strconv.Itoa(width), "-y", strconv.Itoa(height)}
	if out, err := exec.Command("tmux", args...).CombinedOutput(); err != nil {
		return fmt.Errorf("tmux resize-pane failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func parsePane(line string) (Pane, error) {
	parts := strings.Split(line, "\x1f")
	if len(parts) < 5 {
		return Pane{}, fmt.Errorf("unexpected pane format %q", line)
	}
	var nums [4]int
	for i := range nums {
		n, err := strconv.Atoi(parts[i+1])
		if err != nil {
			return Pane{}, fmt.Errorf("pane field %d: %w", i+1, err)
		}
		nums[i] = n
	}
	p := Pane{
		ID:     parts[0],
		Left:   nums[0],
		Top:    nums[1],
		Width:  nums[2],
		Height: nums[3],
	}
	if len(parts) > 5 {
		p.Title = stripANSI(parts[5])
	}
	return p, nil
}
