package shelf

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/b/shelf/pkg/channel"
	"github.com/b/shelf/pkg/host"
)

// track drives one occupied slot from registration to teardown. It runs on
// a background context: host calls already issued always complete, and a
// close request only takes effect at the top of the loop.
func (s *Shelf) track(sl *slot, file string) {
	defer s.wg.Done()
	ctx := context.Background()
	logger := s.logger.With(zap.Int("slot", int(sl.handle)))

	id, err := channel.Call(ctx, s.ch, func(ctx context.Context) (string, error) {
		return s.mon.Register(ctx, file)
	})
	if err != nil {
		logger.Warn("register failed", zap.String("file", file), zap.Error(err))
		s.teardown(ctx, sl, logger, nil)
		return
	}

	s.mu.Lock()
	sl.fileID = id
	if id != "" {
		s.claimed[id] = sl.handle
	}
	sl.state = Tracking
	s.mu.Unlock()
	logger.Debug("registered", zap.String("id", id), zap.String("file", file))
	s.notify()

	rec := s.startReconciler(sl)
	for s.poll(ctx, sl, id, logger) {
	}
	s.teardown(ctx, sl, logger, rec)
}

// poll runs one tracking iteration and reports whether the slot is still live
func (s *Shelf) poll(ctx context.Context, sl *slot, id string, logger *zap.Logger) bool {
	s.mu.Lock()
	live := !sl.closeRequested && sl.storedFile != ""
	s.mu.Unlock()
	if !live {
		return false
	}

	state, err := channel.Call(ctx, s.ch, func(ctx context.Context) (host.TrackerState, error) {
		return s.mon.Update(ctx, id)
	})
	if err != nil {
		// Host trouble is indistinguishable from an uncertain answer.
		logger.Debug("update failed", zap.Error(err))
		state = host.TrackerState{}
	}

	s.mu.Lock()
	provisional := sl.confidence == Provisional
	s.mu.Unlock()
	if provisional && s.tagMatches(ctx, sl, id, logger) {
		s.mu.Lock()
		sl.confidence = Confirmed
		s.mu.Unlock()
	}

	s.mu.Lock()
	if state.IsCertain() && sl.confidence == Confirmed {
		sl.age = 0
		if sl.storedFile != state.Certain.Path {
			logger.Info("file moved", zap.String("from", sl.storedFile), zap.String("to", state.Certain.Path))
		}
		sl.storedFile = state.Certain.Path
		sl.name = DisplayName(sl.storedFile, s.nameLimit)
	} else {
		sl.age++
		if sl.age > s.ageLimit {
			logger.Info("evicting", zap.String("file", sl.storedFile), zap.Int("age", sl.age), zap.String("result", state.Kind()))
			sl.storedFile = ""
		}
	}
	s.mu.Unlock()
	s.notify()
	return true
}

// tagMatches re-resolves the slot's current tag and compares it with id. An
// unresolvable tag never matches.
func (s *Shelf) tagMatches(ctx context.Context, sl *slot, id string, logger *zap.Logger) bool {
	tag, err := channel.Call(ctx, s.ch, func(ctx context.Context) (string, error) {
		s.mu.Lock()
		file := sl.storedFile
		s.mu.Unlock()
		if file == "" {
			return "", nil
		}
		tag, valid, err := s.mon.FileTag(ctx, file)
		if err != nil || !valid {
			return "", err
		}
		return tag, nil
	})
	if err != nil {
		logger.Debug("tag check failed", zap.Error(err))
		return false
	}
	if tag == "" || tag != id {
		logger.Debug("tag mismatch", zap.String("id", id), zap.String("tag", tag))
		return false
	}
	return true
}

// reconciler periodically marks a slot's confidence provisional
type reconciler struct {
	stop chan struct{}
	done chan struct{}
}

func (s *Shelf) startReconciler(sl *slot) *reconciler {
	r := &reconciler{stop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(s.reconcileInterval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
				s.mu.Lock()
				if sl.state == Tracking {
					sl.confidence = Provisional
				}
				s.mu.Unlock()
			}
		}
	}()
	return r
}

// halt stops the timer and waits for the goroutine to exit
func (r *reconciler) halt() {
	close(r.stop)
	<-r.done
}

// teardown unregisters the slot's file, resets its visuals, and empties it.
// The slot reports Empty only after the host acknowledged the unregister.
func (s *Shelf) teardown(ctx context.Context, sl *slot, logger *zap.Logger, rec *reconciler) {
	s.mu.Lock()
	sl.state = Closing
	id := sl.fileID
	s.mu.Unlock()
	s.notify()

	if id != "" {
		if err := channel.Do(ctx, s.ch, func(ctx context.Context) error {
			return s.mon.Unregister(ctx, id)
		}); err != nil {
			logger.Warn("unregister failed", zap.String("id", id), zap.Error(err))
		}
	}

	s.mu.Lock()
	if id != "" && s.claimed[id] == sl.handle {
		delete(s.claimed, id)
	}
	sl.icon = nil
	sl.name = ""
	sl.hovered = false
	sl.storedFile = ""
	s.mu.Unlock()

	if rec != nil {
		rec.halt()
	}

	s.mu.Lock()
	sl.reset()
	done := sl.done
	layout := s.layoutLocked()
	s.mu.Unlock()

	if s.onTeardown != nil {
		s.onTeardown(sl.handle, layout)
	}
	logger.Info("slot emptied", zap.Int("occupied", layout.Occupied))
	s.notify()
	if done != nil {
		close(done)
	}
}
