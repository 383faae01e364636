package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/b/shelf/pkg/config"
	"github.com/b/shelf/pkg/host"
)

// startMonitor serves a canned host and returns its socket path
func startMonitor(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "shelfctl")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	h := host.HandlerFunc(func(ctx context.Context, cmd host.Command, args json.RawMessage) (any, error) {
		switch cmd {
		case host.CmdMonitor:
			var a host.MonitorArgs
			json.Unmarshal(args, &a)
			switch a.Action {
			case host.ActionRegister:
				return host.RegisterResult{ID: "tag-1"}, nil
			case host.ActionUpdate:
				return host.TrackerState{Renaming: &host.PartialState{ID: a.File, PartialPath: "x.txt"}}, nil
			}
		case host.CmdFileTag:
			return host.TagResult{}, nil
		case host.CmdWinPos:
			return host.PosResult{Valid: true, Pos: [2]int{3, 4}}, nil
		case host.CmdReadConfig:
			return map[string]any{"nameLimit": 9}, nil
		}
		return struct{}{}, nil
	})
	srv := host.NewServer("ctl", h, host.WithSocketPaths(filepath.Join(dir, "c.sock"), filepath.Join(dir, "c.pid")))
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(srv.Stop)
	return srv.GetSocketPath()
}

func execute(t *testing.T, socket string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--socket", socket}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	socket := startMonitor(t)

	tests := []struct {
		args    []string
		want    string
		wantErr string
	}{
		{args: []string{"register", "/tmp/a.txt"}, want: "tag-1\n"},
		{args: []string{"update", "tag-1"}, want: `"partial_path": "x.txt"`},
		{args: []string{"unregister", "tag-1"}},
		{args: []string{"tick"}},
		{args: []string{"pos"}, want: "3 4\n"},
		{args: []string{"config"}, want: `"nameLimit": 9`},
		{args: []string{"tag", "/tmp/a.txt"}, wantErr: "has no tag"},
		{args: []string{"resize", "1", "2", "x", "4"}, wantErr: "argument 3"},
		{args: []string{"ping"}, want: "pong"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			out, err := execute(t, socket, tt.args...)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("error: %v", err)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output = %q, want it to contain %q", out, tt.want)
			}
		})
	}
}

func TestConfigWrite(t *testing.T) {
	socket := startMonitor(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	if _, err := execute(t, socket, "config", "--write", path); err != nil {
		t.Fatalf("error: %v", err)
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.NameLimit != 9 {
		t.Errorf("NameLimit = %d, want 9", cfg.NameLimit)
	}
}

func TestNoMonitor(t *testing.T) {
	_, err := execute(t, filepath.Join(t.TempDir(), "missing.sock"), "ping")
	if err == nil || !strings.Contains(err.Error(), "no monitor") {
		t.Fatalf("error = %v, want no monitor", err)
	}
}
