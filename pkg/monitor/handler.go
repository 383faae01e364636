package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"go.uber.org/zap"

	"github.com/b/shelf/pkg/config"
	"github.com/b/shelf/pkg/host"
)

// Handler serves the host command surface from a Monitor
type Handler struct {
	mon        *Monitor
	icons      *Icons
	window     *Window
	configPath string
	logger     *zap.Logger

	cfgMu sync.RWMutex
	cfg   *config.Config

	// OpenDir reveals a file; replaced in tests
	OpenDir func(path string) error
}

// NewHandler wires mon, icons and window to the host commands. configPath
// is the YAML file served by read_config; it is loaded once here and again
// whenever WatchConfig sees it change.
func NewHandler(mon *Monitor, icons *Icons, window *Window, configPath string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("config unusable, serving defaults", zap.String("path", configPath), zap.Error(err))
	}
	return &Handler{
		mon:        mon,
		icons:      icons,
		window:     window,
		configPath: configPath,
		logger:     logger,
		cfg:        cfg,
		OpenDir:    OpenDirectory,
	}
}

// Config returns the configuration read_config serves
func (h *Handler) Config() *config.Config {
	h.cfgMu.RLock()
	defer h.cfgMu.RUnlock()
	return h.cfg
}

// SetConfig replaces the served configuration
func (h *Handler) SetConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	h.cfgMu.Lock()
	h.cfg = cfg
	h.cfgMu.Unlock()
	h.logger.Info("config reloaded", zap.String("path", h.configPath))
}

// WatchConfig reloads the config file on every change until ctx is done.
// An invalid edit keeps the previous config.
func (h *Handler) WatchConfig(ctx context.Context) error {
	return config.Watch(ctx, h.configPath, h.logger, h.SetConfig)
}

// Handle implements host.Handler
func (h *Handler) Handle(ctx context.Context, cmd host.Command, args json.RawMessage) (any, error) {
	switch cmd {
	case host.CmdMonitor:
		var a host.MonitorArgs
		if err := unmarshal(args, &a); err != nil {
			return nil, err
		}
		return h.monitorCommand(a)

	case host.CmdFileTag:
		var a host.FileArgs
		if err := unmarshal(args, &a); err != nil {
			return nil, err
		}
		tag, ok := h.mon.FileTag(a.File)
		return host.TagResult{Valid: ok, Tag: tag}, nil

	case host.CmdFileIcon:
		var a host.FileArgs
		if err := unmarshal(args, &a); err != nil {
			return nil, err
		}
		data, err := h.icons.Icon(a.File)
		if err != nil {
			h.logger.Debug("no icon", zap.String("file", a.File), zap.Error(err))
			return host.IconResult{}, nil
		}
		return host.IconResult{Valid: true, Data: data}, nil

	case host.CmdResizeWin:
		var a host.ResizeArgs
		if err := unmarshal(args, &a); err != nil {
			return nil, err
		}
		if err := h.window.Resize(a.X, a.Y, a.W, a.H); err != nil {
			return nil, err
		}
		return struct{}{}, nil

	case host.CmdWinPos:
		pos, ok := h.window.Position()
		return host.PosResult{Valid: ok, Pos: pos}, nil

	case host.CmdReadConfig:
		return h.Config(), nil

	case host.CmdOpenDir:
		var a host.FileArgs
		if err := unmarshal(args, &a); err != nil {
			return nil, err
		}
		if a.File == "" {
			return nil, errors.New("open_file_directory: empty path")
		}
		if err := h.OpenDir(a.File); err != nil {
			return nil, err
		}
		return struct{}{}, nil

	case host.CmdPing:
		return struct{}{}, nil
	}
	return nil, fmt.Errorf("unknown command %q", cmd)
}

func (h *Handler) monitorCommand(a host.MonitorArgs) (any, error) {
	switch a.Action {
	case host.ActionRegister:
		id, err := h.mon.Register(a.File)
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", a.File, err)
		}
		return host.RegisterResult{ID: id}, nil
	case host.ActionUpdate:
		state, _ := h.mon.Update(a.File)
		return state, nil
	case host.ActionUnregister:
		h.mon.Unregister(a.File)
		return host.UnregisterResult{Unregistered: a.File}, nil
	case host.ActionTick:
		h.mon.Tick()
		return struct{}{}, nil
	}
	return nil, fmt.Errorf("unknown monitor action %q", a.Action)
}

func unmarshal(args json.RawMessage, v any) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("bad arguments: %w", err)
	}
	return nil
}
