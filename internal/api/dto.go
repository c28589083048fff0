package api

import "time"

// SessionResponse describes a freshly created controller instance.
type SessionResponse struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ConfigResponse echoes the static server configuration.
type ConfigResponse struct {
	SessionID    string   `json:"session_id"`
	TickMs       int64    `json:"tick_ms"`
	EmptyLapText string   `json:"empty_lap_text"`
	Origins      []string `json:"allowed_origins,omitempty"`
}
