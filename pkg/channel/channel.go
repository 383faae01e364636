// Package channel batches host calls into ticks.
//
// Any number of independent callers enqueue actions. Once per cycle the
// driver swaps out the pending batch, runs every captured action
// concurrently, waits for all of them, and only then sends a single tick to
// the host. Actions enqueued while a batch is draining land in the next
// batch.
package channel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/b/shelf/pkg/perf"
)

// Action is one deferred unit of work. Its error belongs to whoever enqueued
// it; the channel only logs it.
type Action func(ctx context.Context) error

// TickFunc notifies the host that a cycle finished
type TickFunc func(ctx context.Context) error

// DefaultInterval is the pause between cycles
const DefaultInterval = 10 * time.Millisecond

// Stats counts completed work
type Stats struct {
	Cycles  uint64 // drains that sent a tick
	Actions uint64 // actions run across all drains
}

// Channel is the tick-batched command queue
type Channel struct {
	tick     TickFunc
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	pending []Action
	stats   Stats
}

// Option configures a Channel
type Option func(*Channel)

// WithInterval sets the pause between cycles
func WithInterval(d time.Duration) Option {
	return func(c *Channel) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Channel) { c.logger = logger }
}

// New creates a Channel that calls tick after every drain
func New(tick TickFunc, opts ...Option) *Channel {
	c := &Channel{
		tick:     tick,
		interval: DefaultInterval,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetInterval changes the cycle interval; it applies from the next wait
func (c *Channel) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.interval = d
	c.mu.Unlock()
}

// Enqueue appends an action to the batch the next drain will run
func (c *Channel) Enqueue(a Action) {
	c.mu.Lock()
	c.pending = append(c.pending, a)
	c.mu.Unlock()
}

// Pending returns how many actions wait for the next drain
func (c *Channel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Stats returns a snapshot of the counters
func (c *Channel) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Drain runs one cycle: every action pending at the moment of the swap runs
// concurrently, then the tick is sent. The returned error is the tick's;
// action errors are only logged.
func (c *Channel) Drain(ctx context.Context) error {
	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()

	timer := perf.Start("channel.drain")

	// A plain Group: one failing action must not cancel its siblings.
	var g errgroup.Group
	for _, a := range batch {
		g.Go(func() (err error) {
			defer c.recoverAction(&err)
			return a(ctx)
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.Debug("action failed", zap.Error(err))
	}

	err := c.tick(ctx)
	timer.Stop(fmt.Sprintf("actions=%d", len(batch)))

	c.mu.Lock()
	c.stats.Cycles++
	c.stats.Actions += uint64(len(batch))
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("tick: %w", err)
	}
	return nil
}

// recoverAction turns a panicking action into its error
func (c *Channel) recoverAction(err *error) {
	if r := recover(); r != nil {
		c.logger.Error("action panicked", zap.Any("value", r), zap.StackSkip("stack", 1))
		*err = fmt.Errorf("action panicked: %v", r)
	}
}

// Run drains once per interval until ctx is done. Tick failures are logged
// and do not stop the loop.
func (c *Channel) Run(ctx context.Context) error {
	for {
		if err := c.Drain(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Debug("drain failed", zap.Error(err))
		}

		c.mu.Lock()
		interval := c.interval
		c.mu.Unlock()

		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Call enqueues fn and waits for its result. The wait honours ctx; the
// action itself still runs when its batch drains and its result is then
// dropped.
func Call[T any](ctx context.Context, c *Channel, fn func(ctx context.Context) (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	c.Enqueue(func(actx context.Context) error {
		var r result
		func() {
			defer c.recoverAction(&r.err)
			r.val, r.err = fn(actx)
		}()
		done <- r
		return r.err
	})

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Do is Call for actions without a result value
func Do(ctx context.Context, c *Channel, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, c, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
