// Package api provides the REST surface for briefs, projects, and pipeline
// transcripts. Writes go through the store; pipeline execution itself is
// triggered by status changes the orchestrator polls for, so the API stays
// fast and never blocks on an agent call.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/adaptiveedge/forge/internal/models"
	"github.com/adaptiveedge/forge/internal/store"
)

// Server provides the REST API handlers.
type Server struct {
	store store.Store
}

// NewServer creates a new API server.
func NewServer(s store.Store) *Server {
	return &Server{store: s}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/projects", s.listProjects)
	mux.HandleFunc("POST /api/v1/projects", s.createProject)
	mux.HandleFunc("GET /api/v1/projects/{id}", s.getProject)
	mux.HandleFunc("PUT /api/v1/projects/{id}", s.updateProject)
	mux.HandleFunc("DELETE /api/v1/projects/{id}", s.deleteProject)

	mux.HandleFunc("GET /api/v1/briefs", s.listBriefs)
	mux.HandleFunc("POST /api/v1/briefs", s.createBrief)
	mux.HandleFunc("GET /api/v1/briefs/history", s.briefHistory)
	mux.HandleFunc("GET /api/v1/briefs/{id}", s.getBrief)
	mux.HandleFunc("PUT /api/v1/briefs/{id}", s.updateBrief)

	mux.HandleFunc("POST /api/v1/briefs/{id}/start", s.startBrief)
	mux.HandleFunc("POST /api/v1/briefs/{id}/approve-plan", s.approvePlan)
	mux.HandleFunc("POST /api/v1/briefs/{id}/revisions", s.requestRevision)

	mux.HandleFunc("GET /api/v1/briefs/{id}/logs", s.listBriefLogs)
	mux.HandleFunc("GET /api/v1/briefs/{id}/evaluations", s.listBriefEvaluations)
	mux.HandleFunc("GET /api/v1/briefs/{id}/rounds", s.listBriefRounds)
	mux.HandleFunc("GET /api/v1/briefs/{id}/decisions", s.listBriefDecisions)

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeStoreError(w http.ResponseWriter, err error) {
	if strings.Contains(err.Error(), "not found") {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

// patchString applies a string value from a JSON patch map to the target if the key is present and non-empty.
func patchString(patch map[string]any, key string, target *string) {
	if v, ok := patch[key]; ok {
		if str, ok := v.(string); ok && str != "" {
			*target = str
		}
	}
}

// patchBool applies a bool value from a JSON patch map if the key is present.
func patchBool(patch map[string]any, key string, target *bool) {
	if v, ok := patch[key]; ok {
		if b, ok := v.(bool); ok {
			*target = b
		}
	}
}

func limitParam(r *http.Request, fallback int) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

// --- Projects ---

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.store.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var p models.Project
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if p.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.store.CreateProject(r.Context(), &p); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	existing, err := s.store.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	// Empty strings are treated as "not provided" to avoid wiping existing data.
	patchString(patch, "name", &existing.Name)
	patchString(patch, "repo_url", &existing.RepoURL)
	patchString(patch, "default_branch", &existing.DefaultBranch)
	patchString(patch, "local_path", &existing.LocalPath)
	patchString(patch, "deployment_notes", &existing.DeploymentNotes)
	patchString(patch, "context_notes", &existing.ContextNotes)

	if err := s.store.UpdateProject(r.Context(), existing); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteProject(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Briefs ---

func (s *Server) listBriefs(w http.ResponseWriter, r *http.Request) {
	filter := store.BriefListFilter{
		ProjectID: r.URL.Query().Get("project_id"),
		Status:    models.BriefStatus(r.URL.Query().Get("status")),
		Type:      models.BriefType(r.URL.Query().Get("type")),
	}
	briefs, err := s.store.ListBriefs(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, briefs)
}

func (s *Server) createBrief(w http.ResponseWriter, r *http.Request) {
	var b models.Brief
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if b.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if b.Type == "" {
		b.Type = models.BriefTypeBuild
	}
	b.Status = models.BriefStatusIntake
	b.Stage = models.StageNone

	if err := s.store.CreateBrief(r.Context(), &b); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) getBrief(w http.ResponseWriter, r *http.Request) {
	b, err := s.store.GetBrief(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) updateBrief(w http.ResponseWriter, r *http.Request) {
	existing, err := s.store.GetBrief(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if existing.Status.InFlight() {
		writeError(w, http.StatusConflict, "brief is in the pipeline and cannot be edited")
		return
	}

	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	patchString(patch, "title", &existing.Title)
	patchString(patch, "description", &existing.Description)
	patchString(patch, "project_id", &existing.ProjectID)
	patchBool(patch, "fast_track", &existing.FastTrack)
	patchBool(patch, "auto_deploy", &existing.AutoDeploy)
	patchBool(patch, "require_plan_approval", &existing.RequirePlanApproval)

	if err := s.store.UpdateBrief(r.Context(), existing); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

func (s *Server) briefHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.store.ListBriefHistory(r.Context(), limitParam(r, 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// --- Pipeline triggers ---

// startBrief queues a brief for evaluation. The orchestrator daemon picks
// it up on its next scan.
func (s *Server) startBrief(w http.ResponseWriter, r *http.Request) {
	b, err := s.store.GetBrief(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if b.Status != models.BriefStatusIntake && b.Status != models.BriefStatusReview {
		writeError(w, http.StatusConflict, "brief status is "+string(b.Status)+", expected intake or review")
		return
	}

	b.Status = models.BriefStatusEvaluating
	b.Stage = models.StageNone
	b.RejectionReason = ""
	if err := s.store.UpdateBrief(r.Context(), b); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// approvePlan releases a brief paused at the plan-approval gate. The
// orchestrator resumes the pipeline from the critique stage.
func (s *Server) approvePlan(w http.ResponseWriter, r *http.Request) {
	b, err := s.store.GetBrief(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if b.Stage != models.StagePlanApproval {
		writeError(w, http.StatusConflict, "brief stage is "+string(b.Stage)+", expected plan_approval")
		return
	}

	b.Stage = models.StagePlanApproved
	if err := s.store.UpdateBrief(r.Context(), b); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// requestRevision enqueues reviewer feedback for a brief in review.
func (s *Server) requestRevision(w http.ResponseWriter, r *http.Request) {
	b, err := s.store.GetBrief(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if b.Status != models.BriefStatusReview {
		writeError(w, http.StatusConflict, "brief status is "+string(b.Status)+", expected review")
		return
	}

	var req struct {
		Feedback string `json:"feedback"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Feedback == "" {
		writeError(w, http.StatusBadRequest, "feedback is required")
		return
	}

	revision := &models.RevisionRequest{
		BriefID:  b.ID,
		Feedback: req.Feedback,
		Status:   models.RevisionStatusPending,
	}
	if err := s.store.CreateRevisionRequest(r.Context(), revision); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, revision)
}

// --- Pipeline transcripts ---

func (s *Server) listBriefLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.store.ListBuildLogs(r.Context(), r.PathValue("id"), limitParam(r, 100))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) listBriefEvaluations(w http.ResponseWriter, r *http.Request) {
	evals, err := s.store.ListEvaluations(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, evals)
}

func (s *Server) listBriefRounds(w http.ResponseWriter, r *http.Request) {
	rounds, err := s.store.ListDeliberationRounds(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rounds)
}

func (s *Server) listBriefDecisions(w http.ResponseWriter, r *http.Request) {
	decisions, err := s.store.ListDecisionReports(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, decisions)
}
