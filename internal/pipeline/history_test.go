package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adaptiveedge/forge/internal/models"
	"github.com/adaptiveedge/forge/internal/store"
)

func TestHistoryProvider_Render(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "forge.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { _ = s.Close() })

	older := &models.Brief{Title: "Invoice dashboard", Description: "d"}
	require.NoError(t, s.CreateBrief(ctx, older))
	older.Status = models.BriefStatusDone
	older.OutcomeTier = 3
	require.NoError(t, s.UpdateBrief(ctx, older))
	require.NoError(t, s.CreateDecisionReport(ctx, &models.DecisionReport{
		BriefID:       older.ID,
		Decision:      models.DecisionApproved,
		Summary:       "approved",
		WeightedScore: 12.5,
	}))

	newer := &models.Brief{Title: "Vanity metrics page", Description: "d"}
	require.NoError(t, s.CreateBrief(ctx, newer))

	h := NewHistoryProvider(s, 20)
	out, err := h.Render(ctx)
	require.NoError(t, err)

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"Vanity metrics page" [intake]`)
	assert.Contains(t, lines[1], `"Invoice dashboard" [done]`)
	assert.Contains(t, lines[1], "tier 3")
	assert.Contains(t, lines[1], "approved (score 12.5)")
}

func TestHistoryProvider_Empty(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "forge.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { _ = s.Close() })

	h := NewHistoryProvider(s, 5)
	out, err := h.Render(ctx)
	require.NoError(t, err)
	assert.Empty(t, out)
}
