package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/adaptiveedge/forge/internal/store"
)

// HistoryProvider renders recent brief history for evaluator prompts, so
// agents can spot patterns (repeat briefs, abandoned builds). It is a pure
// read dependency; failure to load history is never fatal to a pipeline run.
type HistoryProvider struct {
	store store.Store
	limit int
}

// NewHistoryProvider creates a provider returning at most limit entries.
func NewHistoryProvider(s store.Store, limit int) *HistoryProvider {
	if limit <= 0 {
		limit = 20
	}
	return &HistoryProvider{store: s, limit: limit}
}

// Render returns a prompt-ready summary of recent briefs with their latest
// decisions, newest first.
func (h *HistoryProvider) Render(ctx context.Context) (string, error) {
	history, err := h.store.ListBriefHistory(ctx, h.limit)
	if err != nil {
		return "", fmt.Errorf("load brief history: %w", err)
	}

	var sb strings.Builder
	for _, entry := range history {
		b := entry.Brief
		fmt.Fprintf(&sb, "- %q [%s]", b.Title, b.Status)
		if b.OutcomeTier > 0 {
			fmt.Fprintf(&sb, " tier %d", b.OutcomeTier)
		}
		if entry.Decision != nil {
			fmt.Fprintf(&sb, " — %s (score %.1f)", entry.Decision.Decision, entry.Decision.WeightedScore)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
