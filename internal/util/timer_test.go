package util

import (
	"testing"
	"time"
)

func TestTimerElapsed(t *testing.T) {
	timer := StartTimer()
	time.Sleep(5 * time.Millisecond)
	if timer.Elapsed() <= 0 {
		t.Fatal("expected positive elapsed duration")
	}
	if timer.ElapsedMs() < 0 {
		t.Fatal("expected non-negative elapsed milliseconds")
	}
}

func TestZeroTimer(t *testing.T) {
	var timer Timer
	if got := timer.Elapsed(); got != 0 {
		t.Fatalf("expected zero elapsed for unstarted timer, got %v", got)
	}
	if got := timer.ElapsedMs(); got != 0 {
		t.Fatalf("expected zero ms for unstarted timer, got %d", got)
	}
}
