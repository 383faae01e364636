package main

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/b/shelf/pkg/channel"
	"github.com/b/shelf/pkg/config"
	"github.com/b/shelf/pkg/host"
	"github.com/b/shelf/pkg/logging"
	"github.com/b/shelf/pkg/presence"
	"github.com/b/shelf/pkg/shelf"
)

// configRefresh is how often the widget re-reads its config from the monitor
const configRefresh = time.Second

// app owns the widget's long-lived parts. The command channel outlives the
// presence controller and the config refresh so slots can still unregister
// while the widget shuts down.
type app struct {
	cmds   *host.Commands
	ch     *channel.Channel
	shelf  *shelf.Shelf
	pres   *presence.Controller
	logger *zap.Logger

	cfgMu sync.Mutex
	cfg   *config.Config

	// changes wakes the UI; a pending wake absorbs further ones
	changes chan struct{}

	cancelLoops   context.CancelFunc
	cancelChannel context.CancelFunc
	loops         sync.WaitGroup
	driver        sync.WaitGroup
}

func newApp(cmds *host.Commands, cfg *config.Config, logger *zap.Logger) *app {
	a := &app{
		cmds:    cmds,
		cfg:     cfg,
		logger:  logger,
		changes: make(chan struct{}, 1),
	}
	a.ch = channel.New(cmds.Tick,
		channel.WithInterval(cfg.TickInterval),
		channel.WithLogger(logger.Named("channel")))
	a.shelf = shelf.New(cmds, a.ch,
		shelf.WithLogger(logger.Named("shelf")),
		shelf.WithNameLimit(cfg.NameLimit),
		shelf.OnChange(a.changed))
	a.pres = presence.New(cmds, a.config,
		presence.WithSettleDelay(cfg.SettleDelay),
		presence.WithLogger(logger.Named("presence")),
		presence.OnApply(func(presence.State) { a.changed() }))
	return a
}

func (a *app) config() *config.Config {
	a.cfgMu.Lock()
	defer a.cfgMu.Unlock()
	return a.cfg
}

func (a *app) changed() {
	select {
	case a.changes <- struct{}{}:
	default:
	}
}

// start runs the channel driver, the settle routine and the config refresh
func (a *app) start(ctx context.Context, logs *logging.Loggers) {
	chCtx, cancelChannel := context.WithCancel(context.Background())
	a.cancelChannel = cancelChannel
	a.driver.Add(1)
	go func() {
		defer a.driver.Done()
		defer logs.RecoverAndLog("channel")
		a.ch.Run(chCtx)
	}()

	loopCtx, cancelLoops := context.WithCancel(ctx)
	a.cancelLoops = cancelLoops
	a.loops.Add(2)
	go func() {
		defer a.loops.Done()
		defer logs.RecoverAndLog("presence")
		a.pres.Run(loopCtx)
	}()
	go func() {
		defer a.loops.Done()
		defer logs.RecoverAndLog("config")
		a.refreshConfig(loopCtx)
	}()
}

// stop ends the loops first and the channel driver last
func (a *app) stop() {
	a.cancelLoops()
	a.loops.Wait()
	a.cancelChannel()
	a.driver.Wait()
}

func (a *app) refreshConfig(ctx context.Context) {
	ticker := time.NewTicker(configRefresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		cfg, err := channel.Call(ctx, a.ch, a.cmds.ReadConfig)
		if err != nil {
			if ctx.Err() == nil {
				a.logger.Debug("config refresh failed", zap.Error(err))
			}
			continue
		}
		a.apply(cfg)
	}
}

// apply installs a refreshed config. Sizes and the anchor take effect on
// the next presence change.
func (a *app) apply(cfg *config.Config) {
	a.cfgMu.Lock()
	old := a.cfg
	a.cfg = cfg
	a.cfgMu.Unlock()

	if old.NameLimit != cfg.NameLimit {
		a.shelf.SetNameLimit(cfg.NameLimit)
	}
	if old.TickInterval != cfg.TickInterval {
		a.ch.SetInterval(cfg.TickInterval)
	}
	if old.Alignment != cfg.Alignment {
		a.changed()
	}
}
