package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adaptiveedge/forge/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "forge.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBriefCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := &models.Brief{Title: "Add newsletter signup", Description: "Signup form on the landing page"}
	require.NoError(t, s.CreateBrief(ctx, b))
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, models.BriefStatusIntake, b.Status)
	assert.Equal(t, models.BriefTypeBuild, b.Type)

	got, err := s.GetBrief(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Title, got.Title)
	assert.Equal(t, models.StageNone, got.Stage)

	got.Status = models.BriefStatusEvaluating
	got.Stage = models.StageGatekeeper
	require.NoError(t, s.UpdateBrief(ctx, got))

	got, err = s.GetBrief(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BriefStatusEvaluating, got.Status)
	assert.Equal(t, models.StageGatekeeper, got.Stage)

	// Clearing the stage stores NULL and round-trips to the empty value.
	got.Stage = models.StageNone
	require.NoError(t, s.UpdateBrief(ctx, got))
	got, err = s.GetBrief(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageNone, got.Stage)
}

func TestGetBrief_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetBrief(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestUpdateBrief_NotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateBrief(context.Background(), &models.Brief{ID: "nope", Title: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListBriefs_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &models.Project{Name: "landing"}
	require.NoError(t, s.CreateProject(ctx, p))

	require.NoError(t, s.CreateBrief(ctx, &models.Brief{Title: "a", ProjectID: p.ID, Status: models.BriefStatusEvaluating}))
	require.NoError(t, s.CreateBrief(ctx, &models.Brief{Title: "b", Status: models.BriefStatusEvaluating, Type: models.BriefTypeRun}))
	require.NoError(t, s.CreateBrief(ctx, &models.Brief{Title: "c", Status: models.BriefStatusDone}))

	all, err := s.ListBriefs(ctx, BriefListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	evaluating, err := s.ListBriefs(ctx, BriefListFilter{Status: models.BriefStatusEvaluating})
	require.NoError(t, err)
	assert.Len(t, evaluating, 2)

	byProject, err := s.ListBriefs(ctx, BriefListFilter{ProjectID: p.ID})
	require.NoError(t, err)
	require.Len(t, byProject, 1)
	assert.Equal(t, "a", byProject[0].Title)

	runs, err := s.ListBriefs(ctx, BriefListFilter{Type: models.BriefTypeRun})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "b", runs[0].Title)
}

func TestProjectCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &models.Project{Name: "landing", RepoURL: "https://github.com/adaptiveedge/landing.git"}
	require.NoError(t, s.CreateProject(ctx, p))
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "main", p.DefaultBranch)

	byName, err := s.GetProjectByName(ctx, "landing")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byName.ID)

	byName.DeploymentNotes = "push to main, vercel deploys"
	require.NoError(t, s.UpdateProject(ctx, byName))

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "push to main, vercel deploys", got.DeploymentNotes)

	list, err := s.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.DeleteProject(ctx, p.ID))
	_, err = s.GetProject(ctx, p.ID)
	assert.Error(t, err)
}

func TestCreateProject_DuplicateName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateProject(ctx, &models.Project{Name: "landing"}))
	err := s.CreateProject(ctx, &models.Project{Name: "landing"})
	assert.Error(t, err)
}

func TestBuildLogs_TailLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := &models.Brief{Title: "x"}
	require.NoError(t, s.CreateBrief(ctx, b))

	for _, action := range []string{"first", "second", "third"} {
		require.NoError(t, s.AppendBuildLog(ctx, &models.BuildLog{
			BriefID: b.ID, Agent: "Pipeline", Action: action,
		}))
	}

	all, err := s.ListBuildLogs(ctx, b.ID, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "first", all[0].Action)
	assert.Equal(t, models.LogLevelInfo, all[0].Level)

	// Limit returns the newest entries, oldest-first.
	tail, err := s.ListBuildLogs(ctx, b.ID, 2)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	assert.Equal(t, "second", tail[0].Action)
	assert.Equal(t, "third", tail[1].Action)
}

func TestEvaluationsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := &models.Brief{Title: "x"}
	require.NoError(t, s.CreateBrief(ctx, b))

	require.NoError(t, s.CreateEvaluation(ctx, &models.AgentEvaluation{
		BriefID:        b.ID,
		AgentSlug:      "gatekeeper",
		EvaluationType: "strategic_filter",
		Verdict:        models.VerdictApprove,
		Reasoning:      "aligned with goals",
		Confidence:     8,
	}))

	evals, err := s.ListEvaluations(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, evals, 1)
	assert.Equal(t, models.VerdictApprove, evals[0].Verdict)
	assert.Equal(t, 8, evals[0].Confidence)
}

func TestDeliberationRounds_RevisedFrom(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := &models.Brief{Title: "x"}
	require.NoError(t, s.CreateBrief(ctx, b))

	require.NoError(t, s.CreateDeliberationRound(ctx, &models.DeliberationRound{
		BriefID: b.ID, AgentSlug: "skeptic", Round: 1,
		Verdict: models.VerdictReject, Reasoning: "too vague", Confidence: 7,
	}))

	from := models.VerdictReject
	require.NoError(t, s.CreateDeliberationRound(ctx, &models.DeliberationRound{
		BriefID: b.ID, AgentSlug: "skeptic", Round: 2,
		Verdict: models.VerdictConcern, Reasoning: "team context helps", Confidence: 6,
		RevisedFrom: &from,
	}))

	rounds, err := s.ListDeliberationRounds(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, rounds, 2)

	assert.Equal(t, 1, rounds[0].Round)
	assert.Nil(t, rounds[0].RevisedFrom)

	assert.Equal(t, 2, rounds[1].Round)
	require.NotNil(t, rounds[1].RevisedFrom)
	assert.Equal(t, models.VerdictReject, *rounds[1].RevisedFrom)
}

func TestDecisionReports(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := &models.Brief{Title: "x"}
	require.NoError(t, s.CreateBrief(ctx, b))

	// No decisions yet: nil, nil.
	latest, err := s.GetLatestDecisionReport(ctx, b.ID)
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, s.CreateDecisionReport(ctx, &models.DecisionReport{
		BriefID: b.ID, Decision: models.DecisionRejected, Summary: "first pass", WeightedScore: -2.5,
		DissentingViews: "skeptic: no",
	}))
	require.NoError(t, s.CreateDecisionReport(ctx, &models.DecisionReport{
		BriefID: b.ID, Decision: models.DecisionApproved, Summary: "second pass", WeightedScore: 10.5,
	}))

	reports, err := s.ListDecisionReports(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, reports, 2)

	latest, err = s.GetLatestDecisionReport(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, models.DecisionApproved, latest.Decision)
	assert.Equal(t, 10.5, latest.WeightedScore)
	assert.Empty(t, latest.DissentingViews)
}

func TestBriefHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b1 := &models.Brief{Title: "first", Status: models.BriefStatusDone}
	require.NoError(t, s.CreateBrief(ctx, b1))
	require.NoError(t, s.CreateDecisionReport(ctx, &models.DecisionReport{
		BriefID: b1.ID, Decision: models.DecisionApproved, WeightedScore: 12,
	}))

	b2 := &models.Brief{Title: "second"}
	require.NoError(t, s.CreateBrief(ctx, b2))

	history, err := s.ListBriefHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)

	var withDecision *BriefHistory
	for _, entry := range history {
		if entry.Brief.ID == b1.ID {
			withDecision = entry
		}
	}
	require.NotNil(t, withDecision)
	require.NotNil(t, withDecision.Decision)
	assert.Equal(t, models.DecisionApproved, withDecision.Decision.Decision)
}

func TestRevisionRequests_Numbering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := &models.Brief{Title: "x"}
	require.NoError(t, s.CreateBrief(ctx, b))

	r1 := &models.RevisionRequest{BriefID: b.ID, Feedback: "make it blue"}
	require.NoError(t, s.CreateRevisionRequest(ctx, r1))
	assert.Equal(t, 1, r1.RevisionNumber)
	assert.Equal(t, models.RevisionStatusPending, r1.Status)

	r2 := &models.RevisionRequest{BriefID: b.ID, Feedback: "actually green"}
	require.NoError(t, s.CreateRevisionRequest(ctx, r2))
	assert.Equal(t, 2, r2.RevisionNumber)

	next, err := s.NextPendingRevision(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, r1.ID, next.ID)

	next.Status = models.RevisionStatusCompleted
	require.NoError(t, s.UpdateRevisionRequest(ctx, next))

	next, err = s.NextPendingRevision(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, r2.ID, next.ID)

	pending, err := s.ListPendingRevisions(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, r2.ID, pending[0].ID)
}

func TestDeleteBriefCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b := &models.Brief{Title: "x"}
	require.NoError(t, s.CreateBrief(ctx, b))
	require.NoError(t, s.AppendBuildLog(ctx, &models.BuildLog{BriefID: b.ID, Agent: "Pipeline", Action: "hello"}))

	_, err := s.db.ExecContext(ctx, "DELETE FROM briefs WHERE id = ?", b.ID)
	require.NoError(t, err)

	logs, err := s.ListBuildLogs(ctx, b.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
}
