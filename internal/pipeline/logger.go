package pipeline

import (
	"context"
	"log/slog"

	"github.com/adaptiveedge/forge/internal/models"
	"github.com/adaptiveedge/forge/internal/store"
)

// BuildLogger is the audit side-channel. Stage logic calls it at defined
// checkpoints; every failure is logged before the state transition it
// explains, so the trail always says why progress stopped.
type BuildLogger interface {
	Log(ctx context.Context, briefID, agent, action string, level models.LogLevel)
}

// StoreLogger writes build logs through the store and mirrors them to slog.
// A failed audit write must never abort a pipeline stage, so store errors
// are reported on the operational log only.
type StoreLogger struct {
	store store.Store
	slog  *slog.Logger
}

// NewStoreLogger creates the default store-backed build logger.
func NewStoreLogger(s store.Store, logger *slog.Logger) *StoreLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreLogger{store: s, slog: logger}
}

func (l *StoreLogger) Log(ctx context.Context, briefID, agent, action string, level models.LogLevel) {
	if level == "" {
		level = models.LogLevelInfo
	}

	switch level {
	case models.LogLevelError:
		l.slog.Error(action, "brief", briefID, "agent", agent)
	case models.LogLevelWarn:
		l.slog.Warn(action, "brief", briefID, "agent", agent)
	default:
		l.slog.Info(action, "brief", briefID, "agent", agent)
	}

	entry := &models.BuildLog{BriefID: briefID, Agent: agent, Action: action, Level: level}
	if err := l.store.AppendBuildLog(ctx, entry); err != nil {
		l.slog.Error("append build log failed", "brief", briefID, "error", err)
	}
}
