package main

import (
	"bytes"
	"fmt"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/b/shelf/pkg/colors"
	"github.com/b/shelf/pkg/config"
	"github.com/b/shelf/pkg/shelf"
)

// geometry places every slot in cell coordinates. Occupied slots come
// first and share the occupied part of the main axis; empty slots share
// the spacer part and stay drop targets.
type geometry struct {
	order []shelf.Handle
	rects [shelf.Capacity]shelf.Rect
	cells [shelf.Capacity][2]int // rendered width, height
}

// slotGeometry lays out views inside a w×h area starting at row top
func slotGeometry(views []shelf.View, layout shelf.Layout, w, h, top int, align string) geometry {
	var g geometry
	var occupied, empty []shelf.Handle
	for _, v := range views {
		if v.Full {
			occupied = append(occupied, v.Handle)
		} else {
			empty = append(empty, v.Handle)
		}
	}
	g.order = append(occupied, empty...)

	axis := h
	if align == config.AlignHorizontal {
		axis = w
	}
	occupiedLen := axis * layout.Occupied / shelf.Capacity
	if len(empty) == 0 {
		occupiedLen = axis
	}
	spans := append(split(occupiedLen, len(occupied)), split(axis-occupiedLen, len(empty))...)

	offset := 0
	for i, handle := range g.order {
		size := spans[i]
		var x, y, cw, ch int
		if align == config.AlignHorizontal {
			x, y, cw, ch = offset, top, size, h
		} else {
			x, y, cw, ch = 0, top+offset, w, size
		}
		offset += size
		g.cells[handle] = [2]int{cw, ch}
		if cw > 0 && ch > 0 {
			g.rects[handle] = shelf.Rect{X: float64(x), Y: float64(y), W: float64(cw - 1), H: float64(ch - 1)}
		} else {
			g.rects[handle] = shelf.Rect{X: -1, Y: -1}
		}
	}
	return g
}

// split divides n into k near-equal parts, the remainder going to the last
func split(n, k int) []int {
	if k == 0 {
		return nil
	}
	parts := make([]int, k)
	for i := range parts {
		parts[i] = n / k
	}
	parts[k-1] += n % k
	return parts
}

// at returns the slot whose rect holds p
func (g geometry) at(p shelf.Point) (shelf.Handle, bool) {
	for _, handle := range g.order {
		r := g.rects[handle]
		if r.X >= 0 && r.Contains(p) {
			return handle, true
		}
	}
	return 0, false
}

// iconColor samples the centre of a host icon
func iconColor(data []byte) (string, bool) {
	if len(data) == 0 {
		return "", false
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return "", false
	}
	b := img.Bounds()
	r, g, bl, a := img.At(b.Min.X+b.Dx()/2, b.Min.Y+b.Dy()/2).RGBA()
	if a == 0 {
		return "", false
	}
	return colors.RGB{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(bl >> 8)}.Hex(), true
}

// fit cuts s to w cells
func fit(s string, w int) string {
	if w <= 0 {
		return ""
	}
	return runewidth.Truncate(s, w, "…")
}

type slotStyle struct {
	palette  colors.Palette
	selected bool
	accent   string
}

// renderSlot draws one slot into a w×h cell box
func renderSlot(v shelf.View, w, h int, st slotStyle) string {
	if w <= 0 || h <= 0 {
		return ""
	}
	p := st.palette
	border := p.Border
	switch {
	case v.State == shelf.Closing:
		border = p.Closing
	case v.State == shelf.PendingRegister:
		border = p.Pending
	case v.Hovered || st.selected:
		border = p.Hover
	}

	boxed := w >= 4 && h >= 3
	inner := w
	if boxed {
		inner = w - 2
	}
	lines := slotLines(v, st, inner)

	style := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Text))
	if !boxed {
		return style.Width(w).MaxHeight(h).Render(strings.Join(lines, "\n"))
	}
	return style.
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(border)).
		Width(inner).
		Height(h - 2).
		MaxHeight(h).
		Render(strings.Join(lines, "\n"))
}

// slotLines returns the slot's text, each line cut to w cells before
// styling
func slotLines(v shelf.View, st slotStyle, w int) []string {
	p := st.palette
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color(p.Dim))
	plain := lipgloss.NewStyle()
	switch v.State {
	case shelf.Empty:
		if v.Hovered {
			return []string{lipgloss.NewStyle().Foreground(lipgloss.Color(p.Hover)).Render(fit("drop here", w))}
		}
		return []string{dim.Render(fit("·", w))}
	case shelf.PendingRegister:
		return []string{plain.Render(fit(v.Name, w)), dim.Render(fit("registering…", w))}
	case shelf.Closing:
		return []string{plain.Render(fit(v.Name, w)), dim.Render(fit("removing…", w))}
	}

	accent := st.accent
	if accent == "" {
		accent = colors.FileAccent(fileKind(v.File), p.Background)
	}
	glyph := "●"
	if v.Confidence == shelf.Provisional {
		glyph = "○"
	}
	lines := []string{
		lipgloss.NewStyle().Foreground(lipgloss.Color(accent)).Render(glyph) + " " + fit(v.Name, w-2),
	}
	if v.Age > 0 {
		lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color(p.Pending)).
			Render(fit(fmt.Sprintf("lost %d/%d", v.Age, shelf.DefaultAgeLimit), w)))
	} else if v.Confidence == shelf.Provisional {
		lines = append(lines, dim.Render(fit("checking", w)))
	}
	return lines
}

func fileKind(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// renderCollapsed is the handle shown while the window is collapsed
func renderCollapsed(occupied, w, h int, p colors.Palette) string {
	label := "▤"
	if occupied > 0 {
		label = fmt.Sprintf("▤%d", occupied)
	}
	return lipgloss.Place(max(w, 1), max(h, 1), lipgloss.Center, lipgloss.Center,
		lipgloss.NewStyle().Foreground(lipgloss.Color(p.Collapsed)).Render(fit(label, w)))
}
