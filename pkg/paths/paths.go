// Package paths resolves where the shelf keeps its config and state.
//
// Layout (XDG-style):
//
//	Config:  ~/.config/shelf/config.yaml   (override: SHELF_CONFIG_DIR)
//	State:   ~/.local/state/shelf/         (override: SHELF_STATE_DIR)
//	Runtime: /tmp/shelf-monitor-*          (socket, pidfile, logs)
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var (
	configDirOnce   sync.Once
	configDirCached string

	stateDirOnce   sync.Once
	stateDirCached string
)

// ConfigDir resolves the config directory.
// Priority: SHELF_CONFIG_DIR env > ~/.config/shelf/
func ConfigDir() string {
	configDirOnce.Do(func() {
		configDirCached = resolve("SHELF_CONFIG_DIR", ".config", "shelf")
	})
	return configDirCached
}

// StateDir resolves the state directory.
// Priority: SHELF_STATE_DIR env > ~/.local/state/shelf/
func StateDir() string {
	stateDirOnce.Do(func() {
		stateDirCached = resolve("SHELF_STATE_DIR", ".local", "state", "shelf")
	})
	return stateDirCached
}

func resolve(env string, rel ...string) string {
	if v := os.Getenv(env); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(append([]string{home}, rel...)...)
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// StatePath returns the full path to an entry under the state dir (e.g. "tags").
func StatePath(name string) string {
	return filepath.Join(StateDir(), name)
}

// TagStoreDir is where the monitor persists file tags.
func TagStoreDir() string {
	return StatePath("tags")
}

// RuntimePath returns a per-session runtime file such as the socket or pidfile.
func RuntimePath(sessionID, suffix string) string {
	if sessionID == "" {
		sessionID = "default"
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("shelf-monitor-%s%s", sessionID, suffix))
}

// EnsureConfigDir creates the config directory if it doesn't exist and returns its path.
func EnsureConfigDir() (string, error) {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create config dir %s: %w", dir, err)
	}
	return dir, nil
}

// EnsureStateDir creates the state directory if it doesn't exist and returns its path.
func EnsureStateDir() (string, error) {
	dir := StateDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create state dir %s: %w", dir, err)
	}
	return dir, nil
}

// ResetForTest clears cached values so tests can re-run resolution logic.
// Only use in tests.
func ResetForTest() {
	configDirOnce = sync.Once{}
	configDirCached = ""
	stateDirOnce = sync.Once{}
	stateDirCached = ""
}
