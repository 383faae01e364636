//go:build unix

package monitor

import (
	"fmt"
	"os"
	"syscall"
)

// fileKey identifies a file by device and inode
func fileKey(path string) (string, error) {
	abs, err := absPath(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return pathKey(abs), nil
	}
	return pathKey(fmt.Sprintf("inode:%d:%d", uint64(st.Dev), uint64(st.Ino))), nil
}
