package stopwatch

import (
	"fmt"
	"math"
	"time"
)

// FormatTime renders a millisecond duration as MM:SS:CC where CC is
// centiseconds. Negative or non-finite input clamps to zero. Minutes
// grow past two digits without wrapping.
func FormatTime(ms float64) string {
	if math.IsNaN(ms) || math.IsInf(ms, 0) || ms < 0 {
		ms = 0
	}
	total := int64(ms)
	totalSeconds := total / 1000
	minutes := totalSeconds / 60
	seconds := totalSeconds % 60
	centis := (total % 1000) / 10
	return fmt.Sprintf("%02d:%02d:%02d", minutes, seconds, centis)
}

// FormatDuration renders a time.Duration through FormatTime.
func FormatDuration(d time.Duration) string {
	return FormatTime(float64(d.Milliseconds()))
}
