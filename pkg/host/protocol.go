package host

import (
	"encoding/json"

	"github.com/b/shelf/pkg/paths"
)

// Command identifies a host command
type Command string

const (
	CmdMonitor    Command = "monitor_command"     // file tracker actions, see Action
	CmdFileTag    Command = "get_file_tag"        // current identity tag of a path
	CmdFileIcon   Command = "get_file_icon"       // PNG icon for a path
	CmdResizeWin  Command = "resize_win"          // move + resize the widget window
	CmdWinPos     Command = "get_win_pos"         // current top-left of the widget window
	CmdReadConfig Command = "read_config"         // widget config as JSON
	CmdOpenDir    Command = "open_file_directory" // reveal a file in the file manager
	CmdPing       Command = "ping"
)

// Action is the sub-command of CmdMonitor
type Action string

const (
	ActionRegister   Action = "register"
	ActionUpdate     Action = "update"
	ActionUnregister Action = "unregister"
	ActionTick       Action = "tick"
)

// Request is one client->host call. IDs are chosen by the client and echoed
// back so responses can complete out of order.
type Request struct {
	ID      uint64          `json:"id"`
	Command Command         `json:"command"`
	Args    json.RawMessage `json:"args,omitempty"`
}

// Response answers the Request with the same ID
type Response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// MonitorArgs is the argument of CmdMonitor. File carries a path for
// register, a file id for update/unregister, and is empty for tick.
type MonitorArgs struct {
	Action Action `json:"action"`
	File   string `json:"file"`
}

// FileArgs is the argument of the per-path commands
type FileArgs struct {
	File string `json:"file"`
}

// ResizeArgs is the argument of CmdResizeWin
type ResizeArgs struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// RegisterResult answers ActionRegister
type RegisterResult struct {
	ID string `json:"id"`
}

// UnregisterResult answers ActionUnregister
type UnregisterResult struct {
	Unregistered string `json:"unregistered"`
}

// TagResult answers CmdFileTag
type TagResult struct {
	Valid bool   `json:"valid"`
	Tag   string `json:"tag,omitempty"`
}

// IconResult answers CmdFileIcon
type IconResult struct {
	Valid bool   `json:"valid"`
	Data  []byte `json:"data,omitempty"` // PNG
}

// PosResult answers CmdWinPos
type PosResult struct {
	Valid bool   `json:"valid"`
	Pos   [2]int `json:"pos"`
}

// CertainState is a tracker that knows where its file is
type CertainState struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// PartialState is a tracker that saw its file (or an ancestor directory)
// leave and is waiting for it to reappear. PartialPath is relative to the
// path that moved.
type PartialState struct {
	ID          string `json:"id"`
	PartialPath string `json:"partial_path"`
}

// TrackerState answers ActionUpdate. At most one variant is set; an empty
// value means the host does not know the id.
type TrackerState struct {
	Certain  *CertainState `json:"Certain,omitempty"`
	Renaming *PartialState `json:"Renaming,omitempty"`
	Moving   *PartialState `json:"Moving,omitempty"`
}

// IsCertain reports whether the state resolves to an absolute path
func (s TrackerState) IsCertain() bool {
	return s.Certain != nil && s.Certain.Path != ""
}

// Kind names the variant for logging
func (s TrackerState) Kind() string {
	switch {
	case s.Certain != nil:
		return "certain"
	case s.Renaming != nil:
		return "renaming"
	case s.Moving != nil:
		return "moving"
	default:
		return "unknown"
	}
}

// SocketPath returns the monitor socket path for a session
func SocketPath(sessionID string) string {
	return paths.RuntimePath(sessionID, ".sock")
}

// PidPath returns the pidfile path for a session
func PidPath(sessionID string) string {
	return paths.RuntimePath(sessionID, ".pid")
}
