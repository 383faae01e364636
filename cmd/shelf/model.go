package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/b/shelf/pkg/colors"
	"github.com/b/shelf/pkg/config"
	"github.com/b/shelf/pkg/presence"
	"github.com/b/shelf/pkg/shelf"
)

// dropTimeout bounds a drop's tag lookup round trip
const dropTimeout = 5 * time.Second

// Message types
type changeMsg struct{}

type dropMsg struct {
	handle shelf.Handle
	ok     bool
	paths  []string
}

type closedMsg struct{ err error }

type errMsg struct{ err error }

type model struct {
	app     *app
	keys    keyMap
	help    help.Model
	palette colors.Palette

	width  int
	height int

	views   []shelf.View
	layout  shelf.Layout
	state   presence.State
	geom    geometry
	accents map[shelf.Handle]string

	pointer  *shelf.Point
	selected int // handle under the pointer, -1 for none
	status   string
	closing  bool
}

func newModel(a *app, p colors.Palette) model {
	return model{
		app:      a,
		keys:     defaultKeyMap(),
		help:     help.New(),
		palette:  p,
		accents:  make(map[shelf.Handle]string),
		selected: -1,
	}
}

// waitForChange delivers one wake from the shelf or the presence controller
func waitForChange(changes <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-changes
		return changeMsg{}
	}
}

// Init implements tea.Model
func (m model) Init() tea.Cmd {
	return tea.Batch(
		waitForChange(m.app.changes),
		func() tea.Msg { return changeMsg{} },
	)
}

// Update implements tea.Model
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m.refresh(), nil

	case changeMsg:
		return m.refresh(), waitForChange(m.app.changes)

	case tea.FocusMsg:
		m.app.pres.Request(presence.Expanded)
		return m, nil

	case tea.BlurMsg:
		m.app.pres.Request(presence.Collapsed)
		m.pointer = nil
		m.selected = -1
		m.app.shelf.HandleDrop(context.Background(), shelf.DropEvent{Type: shelf.DropCancelled})
		return m, nil

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.KeyMsg:
		if msg.Paste {
			return m, m.drop(string(msg.Runes))
		}
		return m.handleKey(msg)

	case dropMsg:
		if msg.ok {
			m.status = ""
			m.app.logger.Info("file shelved", zap.Int("slot", int(msg.handle)), zap.Strings("paths", msg.paths))
		} else {
			m.status = "drop rejected"
		}
		return m.refresh(), nil

	case errMsg:
		m.status = msg.err.Error()
		return m, nil

	case closedMsg:
		if msg.err != nil {
			m.app.logger.Warn("slots still open at exit", zap.Error(msg.err))
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	pt := shelf.Point{X: float64(msg.X), Y: float64(msg.Y)}
	m.pointer = &pt
	m.app.pres.Request(presence.Expanded)

	// a press on the title row starts a window drag
	if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft && msg.Y == 0 {
		m.app.pres.BeginMove()
	}

	m.selected = -1
	if h, ok := m.geom.at(pt); ok && m.slotFull(h) {
		m.selected = int(h)
	}
	m.app.shelf.HandleDrop(context.Background(), shelf.DropEvent{Type: shelf.DropOver, Position: pt})
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.closing {
			return m, nil
		}
		m.closing = true
		m.status = "removing files…"
		return m, m.closeAll()

	case key.Matches(msg, m.keys.Close):
		if m.selected >= 0 && m.app.shelf.Close(shelf.Handle(m.selected)) {
			m.status = ""
		}
		return m, nil

	case key.Matches(msg, m.keys.Open):
		if m.selected < 0 {
			return m, nil
		}
		return m, m.openDirectory(shelf.Handle(m.selected))

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m.refresh(), nil
	}
	return m, nil
}

// drop offers pasted text at the last pointer position, or at the first
// empty slot when the pointer was never seen
func (m model) drop(text string) tea.Cmd {
	paths := droppedPaths(text)
	pos, ok := m.dropPoint()
	if !ok {
		return func() tea.Msg { return dropMsg{paths: paths} }
	}
	sh := m.app.shelf
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), dropTimeout)
		defer cancel()
		h, ok := sh.HandleDrop(ctx, shelf.DropEvent{Type: shelf.DropDrop, Position: pos, Paths: paths})
		return dropMsg{handle: h, ok: ok, paths: paths}
	}
}

func (m model) dropPoint() (shelf.Point, bool) {
	if m.pointer != nil {
		return *m.pointer, true
	}
	for _, h := range m.geom.order {
		r := m.geom.rects[h]
		if !m.slotFull(h) && r.X >= 0 {
			return shelf.Point{X: r.X + r.W/2, Y: r.Y + r.H/2}, true
		}
	}
	return shelf.Point{}, false
}

func (m model) closeAll() tea.Cmd {
	sh := m.app.shelf
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		return closedMsg{err: sh.CloseAll(ctx)}
	}
}

func (m model) openDirectory(h shelf.Handle) tea.Cmd {
	sh := m.app.shelf
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), dropTimeout)
		defer cancel()
		if err := sh.OpenDirectory(ctx, h); err != nil {
			return errMsg{fmt.Errorf("open folder: %w", err)}
		}
		return nil
	}
}

func (m model) slotFull(h shelf.Handle) bool {
	return int(h) < len(m.views) && m.views[h].Full
}

// refresh re-reads the shelf, lays the slots out and reports their bounds
// back for hit-testing
func (m model) refresh() model {
	m.views = m.app.shelf.Snapshot()
	m.layout = m.app.shelf.Layout()
	m.state = m.app.pres.Applied()

	top, bottom := 1, lipgloss.Height(m.help.View(m.keys))
	bodyHeight := max(m.height-top-bottom, 0)
	m.geom = slotGeometry(m.views, m.layout, m.width, bodyHeight, top, m.app.config().Alignment)
	for _, h := range m.geom.order {
		m.app.shelf.SetBounds(h, m.geom.rects[h])
	}

	accents := make(map[shelf.Handle]string, len(m.views))
	for _, v := range m.views {
		if c, ok := iconColor(v.Icon); ok {
			accents[v.Handle] = colors.EnsureContrast(c, m.palette.Background, 3.0)
		}
	}
	m.accents = accents

	if m.selected >= 0 && !m.slotFull(shelf.Handle(m.selected)) {
		m.selected = -1
	}
	return m
}

// View implements tea.Model
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	if m.state == presence.Collapsed {
		return renderCollapsed(m.layout.Occupied, m.width, m.height, m.palette)
	}

	title := fmt.Sprintf("shelf %d/%d", m.layout.Occupied, shelf.Capacity)
	if m.status != "" {
		title += "  " + m.status
	}
	header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(m.palette.Text)).Render(fit(title, m.width))

	boxes := make([]string, 0, len(m.geom.order))
	for _, h := range m.geom.order {
		cells := m.geom.cells[h]
		if cells[0] <= 0 || cells[1] <= 0 {
			continue
		}
		boxes = append(boxes, renderSlot(m.views[h], cells[0], cells[1], slotStyle{
			palette:  m.palette,
			selected: m.selected == int(h),
			accent:   m.accents[h],
		}))
	}
	var body string
	if m.app.config().Alignment == config.AlignHorizontal {
		body = lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
	} else {
		body = lipgloss.JoinVertical(lipgloss.Left, boxes...)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.help.View(m.keys))
}
