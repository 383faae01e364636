package monitor

import (
	"sync"

	"go.uber.org/zap"

	"github.com/b/shelf/pkg/tmux"
)

// Window records the widget's geometry. When the widget runs in a tmux
// pane, size changes are applied to that pane; position is bookkeeping only
// since tmux panes cannot be placed freely.
type Window struct {
	mu     sync.Mutex
	pos    [2]int
	valid  bool
	paneID string
	logger *zap.Logger
}

// NewWindow creates a window; paneID may be empty
func NewWindow(paneID string, logger *zap.Logger) *Window {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Window{paneID: paneID, logger: logger}
}

// Resize records the new geometry and resizes the pane if there is one
func (w *Window) Resize(x, y, width, height int) error {
	w.mu.Lock()
	w.pos = [2]int{x, y}
	w.valid = true
	pane := w.paneID
	w.mu.Unlock()

	if pane == "" {
		return nil
	}
	if err := tmux.ResizePane(pane, width, height); err != nil {
		w.logger.Warn("resize pane", zap.String("pane", pane), zap.Error(err))
		return err
	}
	if p, err := tmux.GetPane(pane); err == nil && (p.Width != width || p.Height != height) {
		w.logger.Debug("pane size clamped by layout",
			zap.String("pane", pane),
			zap.Ints("requested", []int{width, height}),
			zap.Ints("actual", []int{p.Width, p.Height}))
	}
	return nil
}

// Position returns the last applied top-left corner
func (w *Window) Position() ([2]int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pos, w.valid
}
