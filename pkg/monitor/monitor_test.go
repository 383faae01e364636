package monitor

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/b/shelf/pkg/config"
	"github.com/b/shelf/pkg/host"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(name), 0644))
	return path
}

func newMonitor(t *testing.T) *Monitor {
	t.Helper()
	m, err := New(NewTagStore(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

// settle ticks until cond holds
func settle(t *testing.T, m *Monitor, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		m.Tick()
		return cond()
	}, 3*time.Second, 10*time.Millisecond)
}

func TestTagStoreAssignAndRead(t *testing.T) {
	store := NewTagStore(t.TempDir())
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt")
	b := writeFile(t, dir, "b.txt")

	_, ok := store.Tag(a)
	require.False(t, ok, "untagged file has a tag")

	tagA, err := store.Assign(a)
	require.NoError(t, err)
	tagB, err := store.Assign(b)
	require.NoError(t, err)
	require.NotEqual(t, tagA, tagB)

	got, ok := store.Tag(a)
	require.True(t, ok)
	require.Equal(t, tagA, got)

	again, err := store.Assign(a)
	require.NoError(t, err)
	require.NotEqual(t, tagA, again, "reassignment reuses the old tag")

	require.NoError(t, store.Forget(a))
	_, ok = store.Tag(a)
	require.False(t, ok)

	_, err = store.Assign(filepath.Join(dir, "missing"))
	require.ErrorIs(t, err, ErrUnknownFile)
}

func TestTagFollowsRename(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("tags are path-keyed on this platform")
	}
	store := NewTagStore(t.TempDir())
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt")
	tag, err := store.Assign(a)
	require.NoError(t, err)

	b := filepath.Join(dir, "b.txt")
	require.NoError(t, os.Rename(a, b))
	got, ok := store.Tag(b)
	require.True(t, ok)
	require.Equal(t, tag, got)
}

func TestRegisterUpdateUnregister(t *testing.T) {
	m := newMonitor(t)
	path := writeFile(t, t.TempDir(), "a.txt")

	id, err := m.Register(path)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	state, ok := m.Update(id)
	require.True(t, ok)
	require.True(t, state.IsCertain())
	require.Equal(t, path, state.Certain.Path)

	tag, ok := m.FileTag(path)
	require.True(t, ok)
	require.Equal(t, id, tag)

	require.True(t, m.Unregister(id))
	require.False(t, m.Unregister(id))
	state, ok = m.Update(id)
	require.False(t, ok)
	require.Equal(t, "unknown", state.Kind())
	require.Zero(t, m.Tracked())

	_, err = m.Register(filepath.Join(t.TempDir(), "missing"))
	require.ErrorIs(t, err, ErrUnknownFile)
}

func TestRenameIsFollowed(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("tags are path-keyed on this platform")
	}
	m := newMonitor(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt")
	id, err := m.Register(path)
	require.NoError(t, err)

	renamed := filepath.Join(dir, "renamed.txt")
	require.NoError(t, os.Rename(path, renamed))

	settle(t, m, func() bool {
		state, _ := m.Update(id)
		return state.IsCertain() && state.Certain.Path == renamed
	})
}

func TestRemoveLeavesTrackerMoving(t *testing.T) {
	m := newMonitor(t)
	path := writeFile(t, t.TempDir(), "a.txt")
	id, err := m.Register(path)
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	settle(t, m, func() bool {
		state, _ := m.Update(id)
		return state.Moving != nil
	})

	state, _ := m.Update(id)
	require.Equal(t, id, state.Moving.ID)
	require.Empty(t, state.Moving.PartialPath)
}

func TestSharedDirectoryWatch(t *testing.T) {
	m := newMonitor(t)
	dir := t.TempDir()
	a, err := m.Register(writeFile(t, dir, "a.txt"))
	require.NoError(t, err)
	b, err := m.Register(writeFile(t, dir, "b.txt"))
	require.NoError(t, err)
	require.Equal(t, 1, len(m.dirs))
	require.Equal(t, 2, m.dirs[dir])

	m.Unregister(a)
	require.Equal(t, 1, m.dirs[dir])
	m.Unregister(b)
	require.Empty(t, m.dirs)
}

func TestRelative(t *testing.T) {
	sep := string(filepath.Separator)
	tests := []struct {
		base, path string
		want       string
		ok         bool
	}{
		{sep + "a" + sep + "b.txt", sep + "a" + sep + "b.txt", "", true},
		{sep + "a", sep + "a" + sep + "b" + sep + "c.txt", "b" + sep + "c.txt", true},
		{sep + "a" + sep + "b", sep + "a" + sep + "bc.txt", "", false},
		{sep + "x", sep + "a" + sep + "b.txt", "", false},
	}
	for _, tt := range tests {
		got, ok := relative(tt.base, tt.path)
		require.Equal(t, tt.ok, ok, "relative(%q, %q)", tt.base, tt.path)
		require.Equal(t, tt.want, got, "relative(%q, %q)", tt.base, tt.path)
	}
}

func TestIconIsPNG(t *testing.T) {
	icons := NewIcons()
	dir := t.TempDir()
	txt := writeFile(t, dir, "a.txt")

	data, err := icons.Icon(txt)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, IconSize, img.Bounds().Dx())
	require.Equal(t, IconSize, img.Bounds().Dy())

	again, err := icons.Icon(writeFile(t, dir, "b.TXT"))
	require.NoError(t, err)
	require.Equal(t, data, again, "same extension renders differently")

	folder, err := icons.Icon(dir)
	require.NoError(t, err)
	require.NotEqual(t, data, folder)

	_, err = icons.Icon(filepath.Join(dir, "missing.txt"))
	require.ErrorIs(t, err, ErrUnknownFile)
}

// shortDir keeps unix socket paths under the platform length limit
func shortDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "shelfm")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func TestHandlerOverSocket(t *testing.T) {
	m := newMonitor(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("name_limit: 12\nanchor: [1, 0]\n"), 0644))

	h := NewHandler(m, NewIcons(), NewWindow("", nil), cfgPath, nil)
	opened := make(chan string, 1)
	h.OpenDir = func(path string) error {
		opened <- path
		return nil
	}

	sock := shortDir(t)
	srv := host.NewServer("test", h, host.WithSocketPaths(filepath.Join(sock, "m.sock"), filepath.Join(sock, "m.pid")))
	require.NoError(t, srv.Start())
	client, err := host.Dial(context.Background(), srv.GetSocketPath())
	require.NoError(t, err)
	t.Cleanup(func() {
		client.Close()
		srv.Stop()
	})

	cmds := host.NewCommands(client)
	ctx := context.Background()
	path := writeFile(t, t.TempDir(), "doc.md")

	id, err := cmds.Register(ctx, path)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	state, err := cmds.Update(ctx, id)
	require.NoError(t, err)
	require.True(t, state.IsCertain())
	require.Equal(t, path, state.Certain.Path)

	tag, ok, err := cmds.FileTag(ctx, path)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, id, tag)

	icon, ok, err := cmds.FileIcon(ctx, path)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, icon)

	_, ok, err = cmds.FileIcon(ctx, path+".missing")
	require.NoError(t, err)
	require.False(t, ok)

	_, _, ok, err = cmds.WindowPosition(ctx)
	require.NoError(t, err)
	require.False(t, ok, "position valid before any resize")
	require.NoError(t, cmds.Resize(ctx, 5, 7, 20, 20))
	x, y, ok, err := cmds.WindowPosition(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, [2]int{5, 7}, [2]int{x, y})

	cfg, err := cmds.ReadConfig(ctx)
	require.NoError(t, err)
	require.Equal(t, 12, cfg.NameLimit)
	require.Equal(t, [2]float64{1, 0}, cfg.Anchor)
	require.Equal(t, [2]int{100, 300}, cfg.Expanded)

	require.NoError(t, cmds.OpenDirectory(ctx, path))
	require.Equal(t, path, <-opened)

	require.NoError(t, cmds.Tick(ctx))
	require.NoError(t, cmds.Unregister(ctx, id))
	state, err = cmds.Update(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "unknown", state.Kind())

	_, err = cmds.Register(ctx, path+".missing")
	require.Error(t, err)
	require.False(t, errors.Is(err, host.ErrClosed))
}

func TestHandlerServesReloadedConfig(t *testing.T) {
	m := newMonitor(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("name_limit: 12\n"), 0644))

	h := NewHandler(m, NewIcons(), NewWindow("", nil), cfgPath, nil)
	require.Equal(t, 12, h.Config().NameLimit)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.WatchConfig(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	// Rewrite until the watcher picks it up; the first write may race Add.
	require.Eventually(t, func() bool {
		require.NoError(t, os.WriteFile(cfgPath, []byte("name_limit: 7\n"), 0644))
		got, err := h.Handle(ctx, host.CmdReadConfig, nil)
		require.NoError(t, err)
		return got.(*config.Config).NameLimit == 7
	}, 5*time.Second, 50*time.Millisecond)

	// An invalid edit keeps the last good config.
	require.NoError(t, os.WriteFile(cfgPath, []byte("theme: sepia\n"), 0644))
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 7, h.Config().NameLimit)
}

func TestUnregisterForgetsOwnTag(t *testing.T) {
	m := newMonitor(t)
	path := writeFile(t, t.TempDir(), "a.txt")

	first, err := m.Register(path)
	require.NoError(t, err)
	second, err := m.Register(path)
	require.NoError(t, err)

	// The older registration no longer owns the tag and leaves it alone.
	m.Unregister(first)
	tag, ok := m.FileTag(path)
	require.True(t, ok)
	require.Equal(t, second, tag)

	m.Unregister(second)
	_, ok = m.FileTag(path)
	require.False(t, ok)
}
