package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/b/shelf/pkg/colors"
	"github.com/b/shelf/pkg/host"
	"github.com/b/shelf/pkg/logging"
)

var (
	sessionID  = flag.String("session", "", "monitor session ID (defaults to $SHELF_SESSION)")
	socketPath = flag.String("socket", "", "monitor socket (overrides -session)")
	debugMode  = flag.Bool("debug", false, "Enable debug logging")
)

// closeTimeout bounds how long quitting waits for slots to unregister
const closeTimeout = 5 * time.Second

func main() {
	flag.Parse()

	if *sessionID == "" {
		*sessionID = os.Getenv("SHELF_SESSION")
	}
	if *socketPath == "" {
		*socketPath = host.SocketPath(*sessionID)
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "shelf: stdout is not a terminal")
		os.Exit(1)
	}

	// stderr belongs to the UI; logs go to files only
	logs, err := logging.Setup(logging.Options{Component: "widget", SessionID: *sessionID, Debug: *debugMode})
	if err != nil {
		fmt.Fprintf(os.Stderr, "shelf: %v\n", err)
		os.Exit(1)
	}
	defer logs.Sync()
	defer logs.RecoverAndLog("main")

	if err := run(logs); err != nil {
		logs.Event.Error("widget failed", zap.Error(err))
		logs.Sync()
		fmt.Fprintf(os.Stderr, "shelf: %v\n", err)
		os.Exit(1)
	}
}

func run(logs *logging.Loggers) error {
	logger := logs.Event

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	client, err := host.Dial(dialCtx, *socketPath)
	cancel()
	if err != nil {
		return fmt.Errorf("is shelf-monitor running? %w", err)
	}
	defer client.Close()
	cmds := host.NewCommands(client)

	cfg, err := cmds.ReadConfig(ctx)
	if err != nil {
		logger.Warn("read config, using defaults", zap.Error(err))
	}

	// Probe the background before the program owns the terminal
	dark := colors.NewBackgroundDetector(colors.ThemeMode(cfg.Theme), os.Stdout).IsDarkBackground()
	lipgloss.SetColorProfile(termenv.NewOutput(os.Stdout).EnvColorProfile())

	a := newApp(cmds, cfg, logger)
	a.start(ctx, logs)
	defer a.stop()

	if err := a.pres.Init(ctx); err != nil {
		logger.Warn("initial window geometry", zap.Error(err))
	}

	m := newModel(a, colors.NewPalette(dark))
	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseAllMotion(),
		tea.WithReportFocus(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return err
	}

	// Already done when the user quit; needed after a signal
	closeCtx, cancelClose := context.WithTimeout(context.Background(), closeTimeout)
	defer cancelClose()
	if err := a.shelf.CloseAll(closeCtx); err != nil {
		logger.Warn("slots still open at exit", zap.Error(err))
	}
	return nil
}
