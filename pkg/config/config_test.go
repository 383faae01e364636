package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "anchor: [1, 0.5]\nname_limit: 12\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Anchor != [2]float64{1, 0.5} {
		t.Errorf("Anchor = %v, want [1 0.5]", cfg.Anchor)
	}
	if cfg.NameLimit != 12 {
		t.Errorf("NameLimit = %d, want 12", cfg.NameLimit)
	}
	if cfg.Alignment != AlignVertical {
		t.Errorf("Alignment = %q, want %q", cfg.Alignment, AlignVertical)
	}
	if cfg.Expanded != [2]int{100, 300} {
		t.Errorf("Expanded = %v, want [100 300]", cfg.Expanded)
	}
	if cfg.Collapsed != [2]int{20, 20} {
		t.Errorf("Collapsed = %v, want [20 20]", cfg.Collapsed)
	}
	if cfg.TickInterval != DefaultTickInterval {
		t.Errorf("TickInterval = %v, want %v", cfg.TickInterval, DefaultTickInterval)
	}
}

func TestLoadConfigDurations(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "tick_interval: 1s\nsettle_delay: 250ms\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.TickInterval != time.Second {
		t.Errorf("TickInterval = %v, want 1s", cfg.TickInterval)
	}
	if cfg.SettleDelay != 250*time.Millisecond {
		t.Errorf("SettleDelay = %v, want 250ms", cfg.SettleDelay)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"anchor out of range", "anchor: [1.5, 0]\n"},
		{"negative size", "expanded: [-1, 10]\n"},
		{"unknown alignment", "alignment: diagonal\n"},
		{"unknown theme", "theme: sepia\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.body)
			_, err := LoadConfig(path)
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("LoadConfig() error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("LoadOrDefault() error = nil, want read error")
	}
	if cfg.NameLimit != DefaultNameLimit {
		t.Errorf("NameLimit = %d, want %d", cfg.NameLimit, DefaultNameLimit)
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	want := Default()
	want.Anchor = [2]float64{1, 1}
	want.Alignment = AlignHorizontal

	if err := SaveConfig(path, want); err != nil {
		t.Fatalf("SaveConfig() error: %v", err)
	}
	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if *got != *want {
		t.Errorf("LoadConfig() = %+v, want %+v", got, want)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		anchor    [2]float64
		nameLimit int
		align     string
	}{
		{"malformed", "{not json", [2]float64{0, 0}, DefaultNameLimit, AlignVertical},
		{"empty object", "{}", [2]float64{0, 0}, DefaultNameLimit, AlignVertical},
		{"clamps anchor", `{"anchor":[-1,2]}`, [2]float64{0, 1}, DefaultNameLimit, AlignVertical},
		{"keeps values", `{"anchor":[0.5,1],"nameLimit":10,"alignment":"horizontal"}`, [2]float64{0.5, 1}, 10, AlignHorizontal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Parse([]byte(tt.input))
			if cfg.Anchor != tt.anchor {
				t.Errorf("Anchor = %v, want %v", cfg.Anchor, tt.anchor)
			}
			if cfg.NameLimit != tt.nameLimit {
				t.Errorf("NameLimit = %d, want %d", cfg.NameLimit, tt.nameLimit)
			}
			if cfg.Alignment != tt.align {
				t.Errorf("Alignment = %q, want %q", cfg.Alignment, tt.align)
			}
		})
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "name_limit: 5\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, nil, func(cfg *Config) {
			select {
			case changes <- cfg:
			default:
			}
		})
	}()

	// Rewrite until the watcher picks it up; the first write may race Add.
	deadline := time.After(5 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case cfg := <-changes:
			// A truncating write can surface an intermediate empty file.
			if cfg.NameLimit != 7 {
				continue
			}
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("Watch() error: %v", err)
			}
			return
		case <-ticker.C:
			writeConfig(t, dir, "name_limit: 7\n")
		case <-deadline:
			t.Fatal("timed out waiting for config reload")
		}
	}
}
