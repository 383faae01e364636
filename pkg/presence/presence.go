// Package presence debounces the widget's expand/collapse requests and
// resizes the window around a fixed anchor point.
package presence

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/b/shelf/pkg/config"
)

// State is the window's visible form
type State int

const (
	Collapsed State = iota
	Expanded
)

func (s State) String() string {
	if s == Expanded {
		return "expanded"
	}
	return "collapsed"
}

// Window is the host's geometry surface
type Window interface {
	Resize(ctx context.Context, x, y, w, h int) error
	WindowPosition(ctx context.Context) (x, y int, ok bool, err error)
}

// ConfigFunc returns the configuration to use for the next resize
type ConfigFunc func() *config.Config

// Controller holds the applied state and the latest requested one. Requests
// never touch the window; Run applies them after the settle delay.
type Controller struct {
	win    Window
	cfg    ConfigFunc
	settle time.Duration
	logger *zap.Logger

	mu               sync.Mutex
	requested        State
	applied          State
	suppressCollapse bool

	wake    chan struct{}
	onApply func(State)
}

// Option configures a Controller
type Option func(*Controller)

// WithSettleDelay sets the debounce interval
func WithSettleDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.settle = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// OnApply registers a callback run after each applied change, used to
// toggle content visibility.
func OnApply(fn func(State)) Option {
	return func(c *Controller) { c.onApply = fn }
}

// New creates a collapsed controller. cfg is consulted at every resize so
// config refreshes take effect on the next change.
func New(win Window, cfg ConfigFunc, opts ...Option) *Controller {
	c := &Controller{
		win:    win,
		cfg:    cfg,
		settle: config.DefaultSettleDelay,
		logger: zap.NewNop(),
		wake:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request records s as the desired state and wakes the settle routine if it
// is not already pending. A collapse right after BeginMove is dropped.
func (c *Controller) Request(s State) {
	c.mu.Lock()
	if s == Collapsed && c.suppressCollapse {
		c.suppressCollapse = false
		c.mu.Unlock()
		c.logger.Debug("collapse suppressed by window move")
		return
	}
	c.requested = s
	c.mu.Unlock()
	c.rearm()
}

func (c *Controller) rearm() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// BeginMove marks a window drag in progress; the next collapse request is
// ignored.
func (c *Controller) BeginMove() {
	c.mu.Lock()
	c.suppressCollapse = true
	c.mu.Unlock()
}

// Applied returns the state whose geometry is on screen
func (c *Controller) Applied() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applied
}

// Init applies the collapsed geometry at the configured position
func (c *Controller) Init(ctx context.Context) error {
	cfg := c.config()
	size := cfg.Collapsed
	x, y := Anchored(
		[2]float64{float64(cfg.Position[0]), float64(cfg.Position[1])},
		[2]float64{0, 0},
		size, cfg.Anchor)
	if err := c.win.Resize(ctx, x, y, size[0], size[1]); err != nil {
		return fmt.Errorf("initial resize: %w", err)
	}

	c.mu.Lock()
	c.applied = Collapsed
	c.requested = Collapsed
	c.mu.Unlock()
	if c.onApply != nil {
		c.onApply(Collapsed)
	}
	return nil
}

// Run is the settle routine. It returns when ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.wake:
		}

		t := time.NewTimer(c.settle)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}

		if err := c.settleOnce(ctx); err != nil {
			c.logger.Warn("apply window state", zap.Error(err))
			// still pending; retry after another settle delay
			c.rearm()
		}
	}
}

// settleOnce applies the requested state if it still differs from the
// applied one
func (c *Controller) settleOnce(ctx context.Context) error {
	c.mu.Lock()
	target, current := c.requested, c.applied
	c.mu.Unlock()
	if target == current {
		return nil
	}

	cfg := c.config()
	oldSize, newSize := sizeFor(cfg, current), sizeFor(cfg, target)

	var origin [2]float64
	x, y, ok, err := c.win.WindowPosition(ctx)
	if err != nil || !ok {
		// Without a live position, the configured position is the anchor
		// point itself.
		origin = [2]float64{
			float64(cfg.Position[0]) - cfg.Anchor[0]*float64(oldSize[0]),
			float64(cfg.Position[1]) - cfg.Anchor[1]*float64(oldSize[1]),
		}
	} else {
		origin = [2]float64{float64(x), float64(y)}
	}

	nx, ny := Anchored(origin, [2]float64{float64(oldSize[0]), float64(oldSize[1])}, newSize, cfg.Anchor)
	if err := c.win.Resize(ctx, nx, ny, newSize[0], newSize[1]); err != nil {
		return fmt.Errorf("resize to %s: %w", target, err)
	}

	c.mu.Lock()
	c.applied = target
	c.mu.Unlock()
	c.logger.Debug("window state applied",
		zap.Stringer("state", target),
		zap.Int("x", nx), zap.Int("y", ny),
		zap.Int("w", newSize[0]), zap.Int("h", newSize[1]))

	if c.onApply != nil {
		c.onApply(target)
	}
	return nil
}

func (c *Controller) config() *config.Config {
	if c.cfg != nil {
		if cfg := c.cfg(); cfg != nil {
			return cfg
		}
	}
	return config.Default()
}

func sizeFor(cfg *config.Config, s State) [2]int {
	if s == Expanded {
		return cfg.Expanded
	}
	return cfg.Collapsed
}

// Anchored returns the top-left corner that keeps the anchor point of a
// window at oldPos/oldSize fixed when it is resized to newSize.
func Anchored(oldPos, oldSize [2]float64, newSize [2]int, anchor [2]float64) (x, y int) {
	px := oldPos[0] + anchor[0]*oldSize[0]
	py := oldPos[1] + anchor[1]*oldSize[1]
	return int(math.Round(px - anchor[0]*float64(newSize[0]))),
		int(math.Round(py - anchor[1]*float64(newSize[1])))
}
