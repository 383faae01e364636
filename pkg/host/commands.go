package host

import (
	"context"
	"encoding/json"

	"github.com/b/shelf/pkg/config"
)

// Commands is the typed view of the host contract. Transport failures are
// returned; a response that does not parse is treated as an empty result.
type Commands struct {
	inv Invoker
}

// NewCommands wraps an Invoker (normally a *Client)
func NewCommands(inv Invoker) *Commands {
	return &Commands{inv: inv}
}

func decode[T any](raw json.RawMessage, err error) (T, error) {
	var out T
	if err != nil {
		return out, err
	}
	if len(raw) == 0 {
		return out, nil
	}
	if json.Unmarshal(raw, &out) != nil {
		var zero T
		return zero, nil
	}
	return out, nil
}

func (c *Commands) monitor(ctx context.Context, action Action, file string) (json.RawMessage, error) {
	return c.inv.Invoke(ctx, CmdMonitor, MonitorArgs{Action: action, File: file})
}

// Register starts tracking path and returns the file id the host issued.
// An empty id means the host answered with something unusable.
func (c *Commands) Register(ctx context.Context, path string) (string, error) {
	res, err := decode[RegisterResult](c.monitor(ctx, ActionRegister, path))
	return res.ID, err
}

// Update polls the tracker state for id
func (c *Commands) Update(ctx context.Context, id string) (TrackerState, error) {
	return decode[TrackerState](c.monitor(ctx, ActionUpdate, id))
}

// Unregister stops tracking id
func (c *Commands) Unregister(ctx context.Context, id string) error {
	_, err := c.monitor(ctx, ActionUnregister, id)
	return err
}

// Tick is the once-per-cycle synchronisation point
func (c *Commands) Tick(ctx context.Context) error {
	_, err := c.monitor(ctx, ActionTick, "")
	return err
}

// FileTag resolves the current identity tag of path
func (c *Commands) FileTag(ctx context.Context, path string) (string, bool, error) {
	res, err := decode[TagResult](c.inv.Invoke(ctx, CmdFileTag, FileArgs{File: path}))
	return res.Tag, res.Valid && res.Tag != "", err
}

// FileIcon fetches PNG bytes for path
func (c *Commands) FileIcon(ctx context.Context, path string) ([]byte, bool, error) {
	res, err := decode[IconResult](c.inv.Invoke(ctx, CmdFileIcon, FileArgs{File: path}))
	return res.Data, res.Valid && len(res.Data) > 0, err
}

// OpenDirectory reveals path's directory in the file manager
func (c *Commands) OpenDirectory(ctx context.Context, path string) error {
	_, err := c.inv.Invoke(ctx, CmdOpenDir, FileArgs{File: path})
	return err
}

// Resize moves the widget window to (x, y) and sets its size
func (c *Commands) Resize(ctx context.Context, x, y, w, h int) error {
	_, err := c.inv.Invoke(ctx, CmdResizeWin, ResizeArgs{X: x, Y: y, W: w, H: h})
	return err
}

// WindowPosition returns the window's top-left, ok=false when unknown
func (c *Commands) WindowPosition(ctx context.Context) (x, y int, ok bool, err error) {
	res, err := decode[PosResult](c.inv.Invoke(ctx, CmdWinPos, struct{}{}))
	return res.Pos[0], res.Pos[1], res.Valid, err
}

// ReadConfig fetches the widget config with defaults merged in
func (c *Commands) ReadConfig(ctx context.Context) (*config.Config, error) {
	raw, err := c.inv.Invoke(ctx, CmdReadConfig, struct{}{})
	if err != nil {
		return config.Default(), err
	}
	return config.Parse(raw), nil
}

// Ping checks that the host answers
func (c *Commands) Ping(ctx context.Context) error {
	_, err := c.inv.Invoke(ctx, CmdPing, nil)
	return err
}
