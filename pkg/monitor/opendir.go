package monitor

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
)

// OpenDirectory reveals path in the desktop file manager
func OpenDirectory(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", "-R", path)
	case "windows":
		cmd = exec.Command("explorer", "/select,", path)
	default:
		cmd = exec.Command("xdg-open", filepath.Dir(path))
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open directory: %w", err)
	}
	go cmd.Wait()
	return nil
}
