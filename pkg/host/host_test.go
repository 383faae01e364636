package host

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// shortDir keeps unix socket paths under the platform length limit
func shortDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "shelf")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func startServer(t *testing.T, h Handler) (*Server, *Client) {
	t.Helper()
	dir := shortDir(t)
	srv := NewServer("test", h, WithSocketPaths(filepath.Join(dir, "s.sock"), filepath.Join(dir, "s.pid")))
	require.NoError(t, srv.Start())

	client, err := Dial(context.Background(), srv.GetSocketPath())
	require.NoError(t, err)
	t.Cleanup(func() {
		client.Close()
		srv.Stop()
	})
	return srv, client
}

func TestInvokeRoundTrip(t *testing.T) {
	h := HandlerFunc(func(ctx context.Context, cmd Command, args json.RawMessage) (any, error) {
		if cmd != CmdMonitor {
			return nil, errors.New("unexpected command " + string(cmd))
		}
		var a MonitorArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
		switch a.Action {
		case ActionRegister:
			return RegisterResult{ID: "tag-" + a.File}, nil
		case ActionUpdate:
			return TrackerState{Certain: &CertainState{ID: a.File, Path: "/tmp/a.txt"}}, nil
		}
		return struct{}{}, nil
	})
	_, client := startServer(t, h)
	cmds := NewCommands(client)
	ctx := context.Background()

	id, err := cmds.Register(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "tag-a", id)

	state, err := cmds.Update(ctx, id)
	require.NoError(t, err)
	require.True(t, state.IsCertain())
	require.Equal(t, "/tmp/a.txt", state.Certain.Path)
	require.Equal(t, "certain", state.Kind())

	require.NoError(t, cmds.Tick(ctx))
	require.NoError(t, cmds.Ping(ctx))
}

func TestResponsesMatchOutOfOrder(t *testing.T) {
	release := make(chan struct{})
	h := HandlerFunc(func(ctx context.Context, cmd Command, args json.RawMessage) (any, error) {
		var a FileArgs
		json.Unmarshal(args, &a)
		if a.File == "slow" {
			<-release
		}
		return TagResult{Valid: true, Tag: a.File}, nil
	})
	_, client := startServer(t, h)
	cmds := NewCommands(client)

	var wg sync.WaitGroup
	slowTag := make(chan string, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		tag, _, _ := cmds.FileTag(context.Background(), "slow")
		slowTag <- tag
	}()

	// The fast call completes while the slow one is still blocked.
	tag, ok, err := cmds.FileTag(context.Background(), "fast")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "fast", tag)

	close(release)
	wg.Wait()
	require.Equal(t, "slow", <-slowTag)
}

func TestMalformedResultIsEmpty(t *testing.T) {
	h := HandlerFunc(func(ctx context.Context, cmd Command, args json.RawMessage) (any, error) {
		return "not an object", nil
	})
	_, client := startServer(t, h)
	cmds := NewCommands(client)

	state, err := cmds.Update(context.Background(), "x")
	require.NoError(t, err)
	require.False(t, state.IsCertain())
	require.Equal(t, "unknown", state.Kind())

	tag, ok, err := cmds.FileTag(context.Background(), "/x")
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, tag)

	cfg, err := cmds.ReadConfig(context.Background())
	require.NoError(t, err)
	require.Equal(t, 30, cfg.NameLimit)
}

func TestHandlerErrorPropagates(t *testing.T) {
	h := HandlerFunc(func(ctx context.Context, cmd Command, args json.RawMessage) (any, error) {
		return nil, errors.New("boom")
	})
	_, client := startServer(t, h)

	_, err := client.Invoke(context.Background(), CmdFileTag, FileArgs{File: "/x"})
	require.ErrorContains(t, err, "boom")
}

func TestHandlerPanicRecovered(t *testing.T) {
	h := HandlerFunc(func(ctx context.Context, cmd Command, args json.RawMessage) (any, error) {
		panic("bad handler")
	})
	_, client := startServer(t, h)

	_, err := client.Invoke(context.Background(), CmdReadConfig, nil)
	require.ErrorContains(t, err, "handler panic")
}

func TestInvokeContextAbandonsWait(t *testing.T) {
	block := make(chan struct{})
	h := HandlerFunc(func(ctx context.Context, cmd Command, args json.RawMessage) (any, error) {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return struct{}{}, nil
	})
	_, client := startServer(t, h)
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.Invoke(ctx, CmdReadConfig, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPendingCallsFailOnClose(t *testing.T) {
	h := HandlerFunc(func(ctx context.Context, cmd Command, args json.RawMessage) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	srv, client := startServer(t, h)

	errCh := make(chan error, 1)
	go func() {
		_, err := client.Invoke(context.Background(), CmdReadConfig, nil)
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)
	srv.Stop()

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pending call did not fail after server stop")
	}
	<-client.Done()
	_, err := client.Invoke(context.Background(), CmdPing, nil)
	require.ErrorIs(t, err, ErrClosed)
}

func TestSecondServerRefused(t *testing.T) {
	dir := shortDir(t)
	sock, pid := filepath.Join(dir, "s.sock"), filepath.Join(dir, "s.pid")
	h := HandlerFunc(func(ctx context.Context, cmd Command, args json.RawMessage) (any, error) { return nil, nil })

	first := NewServer("a", h, WithSocketPaths(sock, pid))
	require.NoError(t, first.Start())
	defer first.Stop()

	// Simulate a live foreign pid: our own parent is always alive.
	require.NoError(t, os.WriteFile(pid, []byte(strconv.Itoa(os.Getppid())), 0644))
	second := NewServer("a", h, WithSocketPaths(sock, pid))
	require.ErrorContains(t, second.Start(), "already running")
}
