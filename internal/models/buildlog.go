package models

import "time"

// LogLevel classifies a build log entry.
type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// BuildLog is one append-only audit trail entry for a brief. Every failure
// and stage transition writes one before any state change, so the trail
// always explains why progress stopped.
type BuildLog struct {
	ID        string    `json:"id"`
	BriefID   string    `json:"brief_id"`
	Agent     string    `json:"agent"`
	Action    string    `json:"action"`
	Level     LogLevel  `json:"level"`
	CreatedAt time.Time `json:"created_at"`
}
