package monitor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/peterbourgon/diskv/v3"
)

// ErrUnknownFile is returned for paths that do not exist
var ErrUnknownFile = errors.New("unknown file")

// TagStore maps a file's identity to the tag last assigned to it. The key
// survives renames and moves within a filesystem, so the tag follows the
// file rather than its path.
type TagStore struct {
	d *diskv.Diskv
}

// NewTagStore opens (or creates) a tag store under dir
func NewTagStore(dir string) *TagStore {
	return &TagStore{d: diskv.New(diskv.Options{
		BasePath:     dir,
		Transform:    shardTransform,
		CacheSizeMax: 256 * 1024,
	})}
}

// shardTransform spreads keys over 256 directories by their first two
// characters
func shardTransform(key string) []string {
	if len(key) < 2 {
		return []string{}
	}
	return []string{key[:2]}
}

// Assign gives path a fresh time-based tag and returns it
func (s *TagStore) Assign(path string) (string, error) {
	key, err := fileKey(path)
	if err != nil {
		return "", err
	}
	id, err := uuid.NewUUID()
	if err != nil {
		return "", fmt.Errorf("generate tag: %w", err)
	}
	tag := id.String()
	if err := s.d.Write(key, []byte(tag)); err != nil {
		return "", fmt.Errorf("store tag: %w", err)
	}
	return tag, nil
}

// Tag returns the tag of path, if it has one
func (s *TagStore) Tag(path string) (string, bool) {
	key, err := fileKey(path)
	if err != nil {
		return "", false
	}
	val, err := s.d.Read(key)
	if err != nil || len(val) == 0 {
		return "", false
	}
	return string(val), true
}

// Forget drops the tag of path
func (s *TagStore) Forget(path string) error {
	key, err := fileKey(path)
	if err != nil {
		return err
	}
	if err := s.d.Erase(key); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func absPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrUnknownFile, path)
		}
		return "", err
	}
	return abs, nil
}
