package perf

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	// Set SHELF_PERF=1 to enable performance logging
	enabled  = os.Getenv("SHELF_PERF") == "1"
	logFile  *os.File
	logMutex sync.Mutex
	initOnce sync.Once
)

func open() {
	initOnce.Do(func() {
		if !enabled {
			return
		}
		var err error
		logFile, err = os.OpenFile(filepath.Join(os.TempDir(), "shelf-perf.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			enabled = false
		}
	})
}

// Timer tracks elapsed time for a named operation
type Timer struct {
	name  string
	start time.Time
}

// Start begins timing an operation
func Start(name string) *Timer {
	return &Timer{
		name:  name,
		start: time.Now(),
	}
}

// Stop ends timing and logs the result. Extra detail (action counts, command
// names) is appended after the duration.
func (t *Timer) Stop(detail ...any) time.Duration {
	elapsed := time.Since(t.start)
	if !enabled {
		return elapsed
	}
	open()
	if logFile == nil {
		return elapsed
	}
	logMutex.Lock()
	fmt.Fprintf(logFile, "%s: %s: %v", time.Now().Format("15:04:05.000"), t.name, elapsed)
	for _, d := range detail {
		fmt.Fprintf(logFile, " %v", d)
	}
	fmt.Fprintln(logFile)
	logMutex.Unlock()
	return elapsed
}

// Track is a convenience function that times a function call
func Track(name string, fn func()) time.Duration {
	t := Start(name)
	fn()
	return t.Stop()
}

// IsEnabled returns whether performance logging is enabled
func IsEnabled() bool {
	return enabled
}
