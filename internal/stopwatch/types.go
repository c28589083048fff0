package stopwatch

import "time"

// LapRecord is a snapshot of elapsed time taken while the stopwatch was
// running. Records are immutable once created and cleared on reset.
type LapRecord struct {
	Sequence      int           `json:"sequence"`
	Elapsed       time.Duration `json:"-"`
	ElapsedMs     float64       `json:"elapsed_ms"`
	FormattedTime string        `json:"formatted_time"`
	WallClock     string        `json:"wall_clock"`
}

// LapView is the reduced lap representation exposed by State.
type LapView struct {
	Sequence      int    `json:"sequence"`
	FormattedTime string `json:"formatted_time"`
}

// State is a read-only snapshot of the controller for external
// inspection, independent of rendering.
type State struct {
	SessionID     string    `json:"session_id"`
	Running       bool      `json:"running"`
	ElapsedMs     float64   `json:"elapsed_ms"`
	FormattedTime string    `json:"formatted_time"`
	LapCount      int       `json:"lap_count"`
	Laps          []LapView `json:"laps"`
}

// ControlStates carries the enabled flag for each of the four controls.
type ControlStates struct {
	Start bool `json:"start"`
	Pause bool `json:"pause"`
	Lap   bool `json:"lap"`
	Reset bool `json:"reset"`
}

// DisplaySnapshot is the full display state pushed to the rendering
// surface after every state-affecting operation and on every tick.
// Laps are ordered most recent first.
type DisplaySnapshot struct {
	SessionID     string        `json:"session_id"`
	FormattedTime string        `json:"formatted_time"`
	Running       bool          `json:"running"`
	Controls      ControlStates `json:"controls"`
	Laps          []LapRecord   `json:"laps"`
}

// DisplaySink receives display snapshots. The controller pushes full
// snapshots and never pulls; push failures are logged and swallowed.
type DisplaySink interface {
	Push(DisplaySnapshot) error
}
