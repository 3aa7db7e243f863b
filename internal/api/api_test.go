package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adaptiveedge/forge/internal/models"
	"github.com/adaptiveedge/forge/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "forge.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })

	ts := httptest.NewServer(NewServer(s).Router())
	t.Cleanup(ts.Close)
	return ts, s
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestProjectLifecycle(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/projects", map[string]any{
		"name":     "landing-page",
		"repo_url": "https://github.com/adaptiveedge/landing-page.git",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[models.Project](t, resp)
	assert.NotEmpty(t, created.ID)

	resp = doJSON(t, http.MethodPut, ts.URL+"/api/v1/projects/"+created.ID, map[string]any{
		"deployment_notes": "rsync to prod",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[models.Project](t, resp)
	assert.Equal(t, "rsync to prod", updated.DeploymentNotes)
	assert.Equal(t, "landing-page", updated.Name) // untouched fields survive the patch

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/v1/projects", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	projects := decode[[]models.Project](t, resp)
	assert.Len(t, projects, 1)

	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/v1/projects/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/v1/projects/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestCreateProject_Validation(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/projects", map[string]any{"repo_url": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestCreateBrief(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/briefs", map[string]any{
		"title":       "Add newsletter signup",
		"description": "Signup form on the landing page",
		"fast_track":  true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	b := decode[models.Brief](t, resp)
	assert.Equal(t, models.BriefStatusIntake, b.Status)
	assert.Equal(t, models.BriefTypeBuild, b.Type)
	assert.True(t, b.FastTrack)

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/briefs", map[string]any{"description": "no title"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestStartBrief(t *testing.T) {
	ts, s := newTestServer(t)
	ctx := context.Background()

	b := &models.Brief{Title: "T", Description: "D"}
	require.NoError(t, s.CreateBrief(ctx, b))

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/briefs/"+b.ID+"/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	started := decode[models.Brief](t, resp)
	assert.Equal(t, models.BriefStatusEvaluating, started.Status)

	// Already queued: a second start conflicts.
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/briefs/"+b.ID+"/start", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestStartBrief_ClearsRejection(t *testing.T) {
	ts, s := newTestServer(t)
	ctx := context.Background()

	b := &models.Brief{Title: "T"}
	require.NoError(t, s.CreateBrief(ctx, b))
	b.Status = models.BriefStatusReview
	b.RejectionReason = "builder crashed"
	require.NoError(t, s.UpdateBrief(ctx, b))

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/briefs/"+b.ID+"/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	started := decode[models.Brief](t, resp)
	assert.Equal(t, models.BriefStatusEvaluating, started.Status)
	assert.Empty(t, started.RejectionReason)
}

func TestUpdateBrief_ConflictsWhileInFlight(t *testing.T) {
	ts, s := newTestServer(t)
	ctx := context.Background()

	b := &models.Brief{Title: "T"}
	require.NoError(t, s.CreateBrief(ctx, b))
	b.Status = models.BriefStatusBuilding
	require.NoError(t, s.UpdateBrief(ctx, b))

	resp := doJSON(t, http.MethodPut, ts.URL+"/api/v1/briefs/"+b.ID, map[string]any{"title": "New"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestApprovePlan(t *testing.T) {
	ts, s := newTestServer(t)
	ctx := context.Background()

	b := &models.Brief{Title: "T"}
	require.NoError(t, s.CreateBrief(ctx, b))

	// Not paused at the gate yet.
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/briefs/"+b.ID+"/approve-plan", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	b.Status = models.BriefStatusBuilding
	b.Stage = models.StagePlanApproval
	require.NoError(t, s.UpdateBrief(ctx, b))

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/briefs/"+b.ID+"/approve-plan", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	approved := decode[models.Brief](t, resp)
	assert.Equal(t, models.StagePlanApproved, approved.Stage)
}

func TestRequestRevision(t *testing.T) {
	ts, s := newTestServer(t)
	ctx := context.Background()

	b := &models.Brief{Title: "T"}
	require.NoError(t, s.CreateBrief(ctx, b))

	// Only reviewable briefs accept feedback.
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/briefs/"+b.ID+"/revisions",
		map[string]any{"feedback": "x"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	b.Status = models.BriefStatusReview
	require.NoError(t, s.UpdateBrief(ctx, b))

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/briefs/"+b.ID+"/revisions",
		map[string]any{"feedback": "make the button blue"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	rev := decode[models.RevisionRequest](t, resp)
	assert.Equal(t, 1, rev.RevisionNumber)
	assert.Equal(t, models.RevisionStatusPending, rev.Status)

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/briefs/"+b.ID+"/revisions",
		map[string]any{"feedback": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestListBriefs_Filtered(t *testing.T) {
	ts, s := newTestServer(t)
	ctx := context.Background()

	a := &models.Brief{Title: "A"}
	require.NoError(t, s.CreateBrief(ctx, a))
	b := &models.Brief{Title: "B"}
	require.NoError(t, s.CreateBrief(ctx, b))
	b.Status = models.BriefStatusReview
	require.NoError(t, s.UpdateBrief(ctx, b))

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/v1/briefs?status=review", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	briefs := decode[[]models.Brief](t, resp)
	require.Len(t, briefs, 1)
	assert.Equal(t, "B", briefs[0].Title)
}

func TestBriefTranscripts(t *testing.T) {
	ts, s := newTestServer(t)
	ctx := context.Background()

	b := &models.Brief{Title: "T"}
	require.NoError(t, s.CreateBrief(ctx, b))
	require.NoError(t, s.AppendBuildLog(ctx, &models.BuildLog{
		BriefID: b.ID, Agent: "Pipeline", Action: "started", Level: models.LogLevelInfo,
	}))
	require.NoError(t, s.CreateEvaluation(ctx, &models.AgentEvaluation{
		BriefID: b.ID, AgentSlug: "skeptic", EvaluationType: "devils_advocate",
		Verdict: models.VerdictApprove, Reasoning: "fine", Confidence: 7,
	}))
	require.NoError(t, s.CreateDecisionReport(ctx, &models.DecisionReport{
		BriefID: b.ID, Decision: models.DecisionApproved, Summary: "s", WeightedScore: 9.5,
	}))

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/v1/briefs/"+b.ID+"/logs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	logs := decode[[]models.BuildLog](t, resp)
	assert.Len(t, logs, 1)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/v1/briefs/"+b.ID+"/evaluations", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	evals := decode[[]models.AgentEvaluation](t, resp)
	require.Len(t, evals, 1)
	assert.Equal(t, "skeptic", evals[0].AgentSlug)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/v1/briefs/"+b.ID+"/decisions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decisions := decode[[]models.DecisionReport](t, resp)
	require.Len(t, decisions, 1)
	assert.InDelta(t, 9.5, decisions[0].WeightedScore, 0.001)
}

func TestBriefHistoryEndpoint(t *testing.T) {
	ts, s := newTestServer(t)
	ctx := context.Background()

	b := &models.Brief{Title: "T"}
	require.NoError(t, s.CreateBrief(ctx, b))

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/v1/briefs/history", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := decode[[]store.BriefHistory](t, resp)
	require.Len(t, history, 1)
	assert.Equal(t, "T", history[0].Brief.Title)
	assert.Nil(t, history[0].Decision)
}

func TestCORSPreflight(t *testing.T) {
	ts, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/briefs", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
