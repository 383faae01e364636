// Package logging sets up the per-session event and crash logs of the shelf
// binaries.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Kind of log file
const (
	KindEvents = "events"
	KindCrash  = "crash"
)

// Path returns the log file for a component's session, e.g.
// /tmp/shelf-monitor-<session>-events.log
func Path(component, sessionID, kind string) string {
	if sessionID == "" {
		sessionID = "default"
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("shelf-%s-%s-%s.log", component, sessionID, kind))
}

// Loggers is the pair of loggers a binary writes
type Loggers struct {
	Event *zap.Logger
	Crash *zap.Logger
}

// Options controls Setup
type Options struct {
	Component string
	SessionID string
	Debug     bool // debug level
	Stderr    bool // tee the event log to stderr
}

// Setup opens the event and crash logs. A log file that cannot be opened
// falls back to stderr.
func Setup(opts Options) (*Loggers, error) {
	level := zapcore.InfoLevel
	if opts.Debug {
		level = zapcore.DebugLevel
	}

	eventOut := []string{Path(opts.Component, opts.SessionID, KindEvents)}
	if opts.Stderr {
		eventOut = append(eventOut, "stderr")
	}
	event, err := build(level, eventOut)
	if err != nil {
		event, err = build(level, []string{"stderr"})
		if err != nil {
			return nil, fmt.Errorf("event log: %w", err)
		}
	}

	crash, err := build(zapcore.ErrorLevel, []string{Path(opts.Component, opts.SessionID, KindCrash)})
	if err != nil {
		crash, err = build(zapcore.ErrorLevel, []string{"stderr"})
		if err != nil {
			return nil, fmt.Errorf("crash log: %w", err)
		}
	}

	return &Loggers{
		Event: event.With(zap.String("component", opts.Component)),
		Crash: crash,
	}, nil
}

func build(level zapcore.Level, outputs []string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = outputs
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	cfg.Sampling = nil
	return cfg.Build()
}

// RecoverAndLog logs a panic with its stack to the crash log. Use it
// deferred at the top of long-running goroutines.
func (l *Loggers) RecoverAndLog(where string) {
	if r := recover(); r != nil {
		l.Crash.Error("panic",
			zap.String("in", where),
			zap.Any("value", r),
			zap.StackSkip("stack", 1))
		l.Event.Error("panic recovered", zap.String("in", where), zap.Any("value", r))
	}
}

// Sync flushes both loggers
func (l *Loggers) Sync() {
	_ = l.Event.Sync()
	_ = l.Crash.Sync()
}
