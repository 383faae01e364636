package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/b/shelf/pkg/config"
	"github.com/b/shelf/pkg/host"
	"github.com/b/shelf/pkg/logging"
	"github.com/b/shelf/pkg/monitor"
	"github.com/b/shelf/pkg/paths"
	"github.com/b/shelf/pkg/tmux"
)

var (
	sessionID   = flag.String("session", "", "session ID (defaults to $SHELF_SESSION, then \"default\")")
	debugMode   = flag.Bool("debug", false, "Enable debug logging")
	configPath  = flag.String("config", "", "config file (defaults to ~/.config/shelf/config.yaml)")
	paneID      = flag.String("pane", "", "tmux pane the widget runs in (defaults to $TMUX_PANE)")
	idleTimeout = flag.Duration("idle", 30*time.Second, "shut down after this long without clients (0 disables)")
)

func main() {
	flag.Parse()

	if *sessionID == "" {
		*sessionID = os.Getenv("SHELF_SESSION")
	}
	if *configPath == "" {
		*configPath = config.DefaultConfigPath()
	}
	if *paneID == "" && tmux.InTmux() {
		*paneID = tmux.CurrentPaneID()
	}

	logs, err := logging.Setup(logging.Options{Component: "monitor", SessionID: *sessionID, Debug: *debugMode, Stderr: *debugMode})
	if err != nil {
		fmt.Fprintf(os.Stderr, "shelf-monitor: %v\n", err)
		os.Exit(1)
	}
	defer logs.Sync()
	defer logs.RecoverAndLog("main")
	logger := logs.Event

	if err := run(logs); err != nil {
		logger.Error("monitor failed", zap.Error(err))
		logs.Sync()
		fmt.Fprintf(os.Stderr, "shelf-monitor: %v\n", err)
		os.Exit(1)
	}
}

func run(logs *logging.Loggers) error {
	logger := logs.Event

	if _, err := paths.EnsureStateDir(); err != nil {
		return err
	}
	mon, err := monitor.New(monitor.NewTagStore(paths.TagStoreDir()), monitor.WithLogger(logger.Named("tracker")))
	if err != nil {
		return err
	}
	defer mon.Close()

	handler := monitor.NewHandler(mon, monitor.NewIcons(), monitor.NewWindow(*paneID, logger), *configPath, logger)
	server := host.NewServer(*sessionID, handler, host.WithLogger(logger.Named("server")))
	server.OnConnect = func() {
		logger.Info("client connected", zap.Int("clients", server.ClientCount()))
	}
	server.OnDisconnect = func() {
		logger.Info("client disconnected", zap.Int("clients", server.ClientCount()), zap.Int("tracked", mon.Tracked()))
	}

	if err := server.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	defer server.Stop()
	logger.Info("monitor started",
		zap.String("session", *sessionID),
		zap.Int("pid", os.Getpid()),
		zap.String("socket", server.GetSocketPath()),
		zap.String("config", *configPath),
		zap.String("pane", *paneID))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	go func() {
		defer logs.RecoverAndLog("config-watch")
		if err := handler.WatchConfig(ctx); err != nil {
			logger.Warn("config changes will not be picked up", zap.String("config", *configPath), zap.Error(err))
		}
	}()

	reason := make(chan string, 1)
	go func() {
		defer logs.RecoverAndLog("health-monitor")
		if r := watchHealth(ctx, server); r != "" {
			reason <- r
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down", zap.String("reason", "signal"))
	case r := <-reason:
		logger.Info("shutting down", zap.String("reason", r))
	}
	return nil
}

// watchHealth returns a shutdown reason once the monitor has been idle too
// long, its socket disappeared, or another monitor took over the pidfile.
// It returns "" when ctx ends first.
func watchHealth(ctx context.Context, server *host.Server) string {
	idleTicker := time.NewTicker(5 * time.Second)
	socketCheckTicker := time.NewTicker(3 * time.Second)
	defer idleTicker.Stop()
	defer socketCheckTicker.Stop()

	idleStart := time.Time{}
	myPid := os.Getpid()

	for {
		select {
		case <-ctx.Done():
			return ""

		case <-socketCheckTicker.C:
			if _, err := os.Stat(server.GetSocketPath()); os.IsNotExist(err) {
				return "socket_gone"
			}
			if data, err := os.ReadFile(server.GetPidPath()); err == nil {
				if pid, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil && pid != myPid {
					return fmt.Sprintf("pid_replaced new=%d", pid)
				}
			}

		case <-idleTicker.C:
			if *idleTimeout <= 0 {
				continue
			}
			if server.ClientCount() > 0 {
				idleStart = time.Time{}
				continue
			}
			if idleStart.IsZero() {
				idleStart = time.Now()
			} else if time.Since(idleStart) > *idleTimeout {
				return "idle_timeout"
			}
		}
	}
}
