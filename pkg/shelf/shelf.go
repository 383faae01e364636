// Package shelf tracks the files dropped onto the widget's slots.
//
// Each occupied slot runs a tracker goroutine that registers the file with
// the monitor, polls its identity, and tears the slot down once the file can
// no longer be vouched for. Every host call goes through the shared command
// channel so all slots advance on the same tick.
package shelf

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/b/shelf/pkg/channel"
	"github.com/b/shelf/pkg/host"
)

// Capacity is the number of slots on the shelf
const Capacity = 3

const (
	// DefaultAgeLimit is how many consecutive uncertain polls a slot
	// survives; one more evicts it.
	DefaultAgeLimit = 3
	// DefaultReconcileInterval is how often a slot's tag is re-verified
	DefaultReconcileInterval = time.Second
)

// Monitor is the part of the host contract the trackers use
type Monitor interface {
	Register(ctx context.Context, path string) (string, error)
	Update(ctx context.Context, id string) (host.TrackerState, error)
	Unregister(ctx context.Context, id string) error
	FileTag(ctx context.Context, path string) (string, bool, error)
	FileIcon(ctx context.Context, path string) ([]byte, bool, error)
	OpenDirectory(ctx context.Context, path string) error
}

// DropType is the phase of a drag-drop event
type DropType string

const (
	DropOver      DropType = "over"
	DropDrop      DropType = "drop"
	DropCancelled DropType = "cancelled"
)

// DropEvent is one event from the host's drag-drop stream
type DropEvent struct {
	Type     DropType `json:"type"`
	Position Point    `json:"position"`
	Paths    []string `json:"paths"`
}

// Shelf owns the slot arena and the claimed-tag table
type Shelf struct {
	mon    Monitor
	ch     *channel.Channel
	logger *zap.Logger

	ageLimit          int
	reconcileInterval time.Duration

	mu        sync.Mutex
	slots     [Capacity]*slot
	claimed   map[string]Handle // file id -> slot holding it
	nameLimit int
	closed    bool // set by CloseAll; later drops are rejected

	wg sync.WaitGroup

	onChange   func()
	onTeardown func(Handle, Layout)
}

// Option configures a Shelf
type Option func(*Shelf)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Shelf) { s.logger = logger }
}

// WithAgeLimit overrides DefaultAgeLimit
func WithAgeLimit(n int) Option {
	return func(s *Shelf) {
		if n >= 0 {
			s.ageLimit = n
		}
	}
}

// WithReconcileInterval overrides DefaultReconcileInterval
func WithReconcileInterval(d time.Duration) Option {
	return func(s *Shelf) {
		if d > 0 {
			s.reconcileInterval = d
		}
	}
}

// WithNameLimit sets the display name length
func WithNameLimit(n int) Option {
	return func(s *Shelf) { s.nameLimit = n }
}

// OnChange registers a callback fired after any visible slot change. It
// runs on tracker goroutines and must not block.
func OnChange(fn func()) Option {
	return func(s *Shelf) { s.onChange = fn }
}

// OnTeardown registers the callback a slot invokes when it empties, with
// the layout after the slot left.
func OnTeardown(fn func(Handle, Layout)) Option {
	return func(s *Shelf) { s.onTeardown = fn }
}

// New creates a shelf whose host calls go through ch
func New(mon Monitor, ch *channel.Channel, opts ...Option) *Shelf {
	s := &Shelf{
		mon:               mon,
		ch:                ch,
		logger:            zap.NewNop(),
		ageLimit:          DefaultAgeLimit,
		reconcileInterval: DefaultReconcileInterval,
		claimed:           make(map[string]Handle),
		nameLimit:         30,
	}
	for i := range s.slots {
		s.slots[i] = &slot{handle: Handle(i)}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Shelf) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}

func (s *Shelf) slot(h Handle) *slot {
	if h < 0 || int(h) >= Capacity {
		return nil
	}
	return s.slots[h]
}

// SetBounds records where slot h currently sits on screen
func (s *Shelf) SetBounds(h Handle, r Rect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sl := s.slot(h); sl != nil {
		sl.bounds = r
	}
}

// SetNameLimit changes the display name length; names refresh on the next
// confirmed poll.
func (s *Shelf) SetNameLimit(n int) {
	s.mu.Lock()
	s.nameLimit = n
	s.mu.Unlock()
}

// Snapshot returns the current view of every slot
func (s *Shelf) Snapshot() []View {
	s.mu.Lock()
	defer s.mu.Unlock()
	views := make([]View, 0, Capacity)
	for _, sl := range s.slots {
		views = append(views, sl.view())
	}
	return views
}

// Layout returns the occupied/spacer proportions
func (s *Shelf) Layout() Layout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layoutLocked()
}

func (s *Shelf) layoutLocked() Layout {
	occupied := 0
	for _, sl := range s.slots {
		if sl.state != Empty {
			occupied++
		}
	}
	return Layout{Occupied: occupied, Spacer: Capacity - occupied}
}

// Claimed reports whether a live slot holds the given file id
func (s *Shelf) Claimed(tag string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.claimed[tag]
	return ok
}

// HandleDrop routes one drag-drop event. Over events update hover feedback,
// cancelled clears it, and drop tries to place the file on the slot under
// the pointer. It returns the slot that accepted the drop, if any; rejected
// drops are not errors.
func (s *Shelf) HandleDrop(ctx context.Context, ev DropEvent) (Handle, bool) {
	switch ev.Type {
	case DropOver:
		s.Hover(&ev.Position)
		return 0, false
	case DropDrop:
		h, ok := s.Drop(ctx, ev.Position, ev.Paths)
		s.Hover(nil)
		return h, ok
	default:
		s.Hover(nil)
		return 0, false
	}
}

// Hover highlights the empty slot under pos; nil clears every highlight
func (s *Shelf) Hover(pos *Point) {
	s.mu.Lock()
	changed := false
	for _, sl := range s.slots {
		hovered := pos != nil && sl.state == Empty && sl.bounds.Contains(*pos)
		if sl.hovered != hovered {
			sl.hovered = hovered
			changed = true
		}
	}
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// Drop offers paths to the slot under pos. The drop is accepted only for a
// single local path onto an empty slot whose current tag no other slot
// holds. On acceptance the slot's tracker starts.
func (s *Shelf) Drop(ctx context.Context, pos Point, paths []string) (Handle, bool) {
	if len(paths) != 1 || paths[0] == "" || isNetworkPath(paths[0]) {
		s.logger.Debug("drop rejected", zap.Strings("paths", paths))
		return 0, false
	}
	file := paths[0]

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, false
	}
	target := (*slot)(nil)
	for _, sl := range s.slots {
		if sl.bounds.Contains(pos) {
			target = sl
			break
		}
	}
	if target == nil || target.state != Empty {
		s.mu.Unlock()
		return 0, false
	}
	s.mu.Unlock()

	type tagResult struct {
		tag   string
		valid bool
	}
	res, err := channel.Call(ctx, s.ch, func(ctx context.Context) (tagResult, error) {
		tag, valid, err := s.mon.FileTag(ctx, file)
		return tagResult{tag, valid}, err
	})
	if err != nil {
		if ctx.Err() != nil {
			return 0, false
		}
		// An unreachable host cannot vouch for a claim either way.
		s.logger.Debug("tag lookup failed", zap.String("file", file), zap.Error(err))
	}

	s.mu.Lock()
	if s.closed || target.state != Empty {
		s.mu.Unlock()
		return 0, false
	}
	// Claims are only recorded once registration resolves, so two drops of
	// the same file inside that window are both accepted.
	if res.valid {
		if _, taken := s.claimed[res.tag]; taken {
			s.mu.Unlock()
			s.logger.Debug("drop rejected: file already on shelf", zap.String("file", file))
			return 0, false
		}
	}
	target.reset()
	target.state = PendingRegister
	target.storedFile = file
	target.name = DisplayName(file, s.nameLimit)
	target.gen++
	target.done = make(chan struct{})
	gen := target.gen
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("slot occupied", zap.Int("slot", int(target.handle)), zap.String("file", file))
	s.notify()

	s.fetchIcon(target, gen, file)
	go s.track(target, file)
	return target.handle, true
}

// fetchIcon asks for the icon on the next tick without waiting for it
func (s *Shelf) fetchIcon(sl *slot, gen uint64, file string) {
	s.ch.Enqueue(func(ctx context.Context) error {
		data, ok, err := s.mon.FileIcon(ctx, file)
		if err != nil || !ok {
			return err
		}
		s.mu.Lock()
		current := sl.gen == gen && sl.state != Empty
		if current {
			sl.icon = data
		}
		s.mu.Unlock()
		if current {
			s.notify()
		}
		return nil
	})
}

// Close latches slot h closed. The tracker notices at its next loop point.
// It reports whether the slot was occupied.
func (s *Shelf) Close(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := s.slot(h)
	if sl == nil || sl.state == Empty {
		return false
	}
	sl.closeRequested = true
	return true
}

// Wait blocks until slot h is empty again or ctx ends
func (s *Shelf) Wait(ctx context.Context, h Handle) error {
	s.mu.Lock()
	sl := s.slot(h)
	if sl == nil || sl.state == Empty || sl.done == nil {
		s.mu.Unlock()
		return nil
	}
	done := sl.done
	s.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CloseAll latches every slot closed and waits for all of them to finish
// unregistering. Drops still resolving their tag are rejected, as is every
// drop after it. The command channel must keep running until it returns.
func (s *Shelf) CloseAll(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	for _, sl := range s.slots {
		if sl.state != Empty {
			sl.closeRequested = true
		}
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OpenDirectory asks the host to reveal the directory of the file in slot h
func (s *Shelf) OpenDirectory(ctx context.Context, h Handle) error {
	s.mu.Lock()
	sl := s.slot(h)
	file := ""
	if sl != nil {
		file = sl.storedFile
	}
	s.mu.Unlock()
	if file == "" {
		return nil
	}
	return channel.Do(ctx, s.ch, func(ctx context.Context) error {
		return s.mon.OpenDirectory(ctx, file)
	})
}
