// Package monitor is the host side of the file-identity protocol: it tags
// files, follows them through renames and moves, and answers the widget's
// polls.
package monitor

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/b/shelf/pkg/host"
)

type eventKind int

const (
	eventRenamedOld eventKind = iota
	eventRemoved
	eventAdded
)

type fsEvent struct {
	kind eventKind
	path string
}

// tracker is the host's view of one registered file
type tracker struct {
	dir   string // watched directory, released on unregister
	state host.TrackerState
}

// Monitor owns the registered trackers and the directory watches behind
// them. Filesystem events are buffered as they arrive and applied on Tick,
// so a tracker's state only changes at tick boundaries.
type Monitor struct {
	tags   *TagStore
	logger *zap.Logger

	mu       sync.Mutex
	trackers map[string]*tracker
	dirs     map[string]int // watched dir -> tracker count

	watcher *fsnotify.Watcher
	evMu    sync.Mutex
	events  []fsEvent

	stop chan struct{}
	done chan struct{}
}

// Option configures a Monitor
type Option func(*Monitor)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(m *Monitor) { m.logger = logger }
}

// New starts a monitor backed by tags
func New(tags *TagStore, opts ...Option) (*Monitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	m := &Monitor{
		tags:     tags,
		logger:   zap.NewNop(),
		trackers: make(map[string]*tracker),
		dirs:     make(map[string]int),
		watcher:  watcher,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.run()
	return m, nil
}

// Close stops watching and drops every tracker
func (m *Monitor) Close() error {
	select {
	case <-m.stop:
		return nil
	default:
	}
	close(m.stop)
	err := m.watcher.Close()
	<-m.done
	return err
}

func (m *Monitor) run() {
	defer close(m.done)
	for {
		select {
		case <-m.stop:
			return
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			m.record(event)
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (m *Monitor) record(event fsnotify.Event) {
	var kind eventKind
	switch {
	case event.Has(fsnotify.Rename):
		kind = eventRenamedOld
	case event.Has(fsnotify.Remove):
		kind = eventRemoved
	case event.Has(fsnotify.Create):
		kind = eventAdded
	default:
		return
	}
	m.evMu.Lock()
	m.events = append(m.events, fsEvent{kind: kind, path: filepath.Clean(event.Name)})
	m.evMu.Unlock()
}

// Register tags path and starts tracking it. The tag doubles as the
// tracker id.
func (m *Monitor) Register(path string) (string, error) {
	abs, err := absPath(path)
	if err != nil {
		return "", err
	}
	id, err := m.tags.Assign(abs)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(abs)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.watchLocked(dir); err != nil {
		return "", err
	}
	m.trackers[id] = &tracker{
		dir:   dir,
		state: host.TrackerState{Certain: &host.CertainState{ID: id, Path: abs}},
	}
	m.logger.Debug("registered", zap.String("id", id), zap.String("path", abs))
	return id, nil
}

// Update returns the tracker state for id; ok is false for unknown ids
func (m *Monitor) Update(id string) (host.TrackerState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trackers[id]
	if !ok {
		return host.TrackerState{}, false
	}
	return t.state, true
}

// Unregister stops tracking id. It reports whether id was known.
func (m *Monitor) Unregister(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trackers[id]
	if !ok {
		return false
	}
	delete(m.trackers, id)
	m.releaseLocked(t.dir)
	if t.state.Certain != nil {
		m.forgetOwnTag(id, t.state.Certain.Path)
	}
	m.logger.Debug("unregistered", zap.String("id", id))
	return true
}

// forgetOwnTag erases the tag of path if it is still id; a later
// registration of the same file owns it otherwise
func (m *Monitor) forgetOwnTag(id, path string) {
	if tag, ok := m.tags.Tag(path); !ok || tag != id {
		return
	}
	if err := m.tags.Forget(path); err != nil {
		m.logger.Debug("forget tag failed", zap.String("id", id), zap.Error(err))
	}
}

// Tracked returns the number of live trackers
func (m *Monitor) Tracked() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.trackers)
}

// FileTag returns the current tag of path
func (m *Monitor) FileTag(path string) (string, bool) {
	return m.tags.Tag(path)
}

// Tick applies the filesystem events seen since the previous tick, in
// arrival order, to every tracker.
func (m *Monitor) Tick() {
	m.evMu.Lock()
	events := m.events
	m.events = nil
	m.evMu.Unlock()
	if len(events) == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.trackers {
		for _, ev := range events {
			m.apply(t, ev)
		}
	}
}

func (m *Monitor) apply(t *tracker, ev fsEvent) {
	switch ev.kind {
	case eventRenamedOld, eventRemoved:
		if t.state.Certain == nil {
			return
		}
		rel, ok := relative(ev.path, t.state.Certain.Path)
		if !ok {
			return
		}
		partial := &host.PartialState{ID: t.state.Certain.ID, PartialPath: rel}
		if ev.kind == eventRenamedOld {
			t.state = host.TrackerState{Renaming: partial}
		} else {
			t.state = host.TrackerState{Moving: partial}
		}
		m.logger.Debug("file left", zap.String("id", partial.ID), zap.String("state", t.state.Kind()), zap.String("from", ev.path))

	case eventAdded:
		partial := t.state.Renaming
		if partial == nil {
			partial = t.state.Moving
		}
		if partial == nil {
			return
		}
		candidate := ev.path
		if partial.PartialPath != "" {
			candidate = filepath.Join(ev.path, partial.PartialPath)
		}
		if tag, ok := m.tags.Tag(candidate); ok && tag == partial.ID {
			t.state = host.TrackerState{Certain: &host.CertainState{ID: partial.ID, Path: candidate}}
			m.logger.Debug("file found", zap.String("id", partial.ID), zap.String("path", candidate))
		}
	}
}

// relative returns path relative to base when base is path itself or one
// of its ancestors
func relative(base, path string) (string, bool) {
	if base == path {
		return "", true
	}
	prefix := base
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	return strings.TrimPrefix(path, prefix), true
}

func (m *Monitor) watchLocked(dir string) error {
	if m.dirs[dir] == 0 {
		if err := m.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	m.dirs[dir]++
	return nil
}

func (m *Monitor) releaseLocked(dir string) {
	n := m.dirs[dir] - 1
	if n > 0 {
		m.dirs[dir] = n
		return
	}
	delete(m.dirs, dir)
	if err := m.watcher.Remove(dir); err != nil {
		m.logger.Debug("unwatch failed", zap.String("dir", dir), zap.Error(err))
	}
}
