package perf

import (
	"testing"
	"time"
)

func TestTrackMeasuresCall(t *testing.T) {
	elapsed := Track("sleep", func() {
		time.Sleep(5 * time.Millisecond)
	})
	if elapsed < 5*time.Millisecond {
		t.Errorf("Track() = %v, want >= 5ms", elapsed)
	}
}

func TestStopWithDetail(t *testing.T) {
	timer := Start("drain")
	if got := timer.Stop("actions=3"); got < 0 {
		t.Errorf("Stop() = %v, want non-negative", got)
	}
}
