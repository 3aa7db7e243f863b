// Package mcp exposes the forge data layer as MCP tools so agent clients
// can create briefs, trigger pipelines, and inspect results.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/adaptiveedge/forge/internal/models"
	"github.com/adaptiveedge/forge/internal/store"
)

// Server wraps the forge data layer and exposes it as MCP tools.
type Server struct {
	store store.Store
}

// NewServer creates the MCP server wrapper.
func NewServer(s store.Store) *Server {
	return &Server{store: s}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("forge", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.listProjectsTool())
	srv.AddTool(s.listBriefsTool())
	srv.AddTool(s.getBriefTool())
	srv.AddTool(s.createBriefTool())
	srv.AddTool(s.startPipelineTool())
	srv.AddTool(s.approvePlanTool())
	srv.AddTool(s.requestRevisionTool())
	srv.AddTool(s.briefLogsTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// forge_list_projects
func (s *Server) listProjectsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("forge_list_projects",
		mcp.WithDescription("List all registered projects. Returns a JSON array with id, name, repo_url, default_branch, and local_path."),
	)
	return tool, s.handleListProjects
}

func (s *Server) handleListProjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list projects: %v", err)), nil
	}

	type projectOut struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		RepoURL       string `json:"repo_url"`
		DefaultBranch string `json:"default_branch"`
		LocalPath     string `json:"local_path"`
	}

	out := make([]projectOut, len(projects))
	for i, p := range projects {
		out[i] = projectOut{
			ID:            p.ID,
			Name:          p.Name,
			RepoURL:       p.RepoURL,
			DefaultBranch: p.DefaultBranch,
			LocalPath:     p.LocalPath,
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal projects: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// forge_list_briefs
func (s *Server) listBriefsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("forge_list_briefs",
		mcp.WithDescription("List briefs, optionally filtered by project, status, and/or type. Statuses: intake, evaluating, building, revising, review, done. Types: build, run."),
		mcp.WithString("project", mcp.Description("Project name to filter by")),
		mcp.WithString("status", mcp.Description("Status filter")),
		mcp.WithString("type", mcp.Description("Type filter: build, run")),
	)
	return tool, s.handleListBriefs
}

func (s *Server) handleListBriefs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := store.BriefListFilter{}

	if projectName := request.GetString("project", ""); projectName != "" {
		p, err := s.resolveProject(ctx, projectName)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", projectName)), nil
		}
		filter.ProjectID = p.ID
	}
	filter.Status = models.BriefStatus(request.GetString("status", ""))
	filter.Type = models.BriefType(request.GetString("type", ""))

	briefs, err := s.store.ListBriefs(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list briefs: %v", err)), nil
	}

	type briefOut struct {
		ID        string `json:"id"`
		ProjectID string `json:"project_id,omitempty"`
		Title     string `json:"title"`
		Type      string `json:"type"`
		Status    string `json:"status"`
		Stage     string `json:"stage,omitempty"`
		PRURL     string `json:"pr_url,omitempty"`
		CreatedAt string `json:"created_at"`
		UpdatedAt string `json:"updated_at"`
	}

	out := make([]briefOut, len(briefs))
	for i, b := range briefs {
		out[i] = briefOut{
			ID:        b.ID,
			ProjectID: b.ProjectID,
			Title:     b.Title,
			Type:      string(b.Type),
			Status:    string(b.Status),
			Stage:     string(b.Stage),
			PRURL:     b.PRURL,
			CreatedAt: b.CreatedAt.Format(time.RFC3339),
			UpdatedAt: b.UpdatedAt.Format(time.RFC3339),
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal briefs: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// forge_get_brief
func (s *Server) getBriefTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("forge_get_brief",
		mcp.WithDescription("Get a brief by id, including its plan, latest decision report, and rejection reason if any."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Brief id")),
	)
	return tool, s.handleGetBrief
}

func (s *Server) handleGetBrief(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}

	b, err := s.store.GetBrief(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("brief not found: %s", id)), nil
	}

	result := map[string]any{
		"id":                    b.ID,
		"project_id":            b.ProjectID,
		"title":                 b.Title,
		"description":           b.Description,
		"type":                  string(b.Type),
		"status":                string(b.Status),
		"stage":                 string(b.Stage),
		"plan":                  b.Plan,
		"pr_url":                b.PRURL,
		"output_path":           b.OutputPath,
		"fast_track":            b.FastTrack,
		"auto_deploy":           b.AutoDeploy,
		"require_plan_approval": b.RequirePlanApproval,
		"rejection_reason":      b.RejectionReason,
	}

	if report, err := s.store.GetLatestDecisionReport(ctx, id); err == nil && report != nil {
		result["decision"] = map[string]any{
			"decision":         string(report.Decision),
			"summary":          report.Summary,
			"weighted_score":   report.WeightedScore,
			"dissenting_views": report.DissentingViews,
		}
	}

	data, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal brief: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// forge_create_brief
func (s *Server) createBriefTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("forge_create_brief",
		mcp.WithDescription("Create a new brief in intake. Use forge_start_pipeline to send it for evaluation."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Brief title")),
		mcp.WithString("description", mcp.Description("What should be built or run, and why")),
		mcp.WithString("project", mcp.Description("Project name")),
		mcp.WithString("type", mcp.Description("Brief type: build (default) or run")),
		mcp.WithBoolean("fast_track", mcp.Description("Skip evaluation and go straight to planning")),
		mcp.WithBoolean("auto_deploy", mcp.Description("Deploy automatically after a successful build")),
		mcp.WithBoolean("require_plan_approval", mcp.Description("Pause for human plan approval before building")),
	)
	return tool, s.handleCreateBrief
}

func (s *Server) handleCreateBrief(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: title"), nil
	}

	b := &models.Brief{
		Title:               title,
		Description:         request.GetString("description", ""),
		Type:                models.BriefType(request.GetString("type", string(models.BriefTypeBuild))),
		Status:              models.BriefStatusIntake,
		FastTrack:           request.GetBool("fast_track", false),
		AutoDeploy:          request.GetBool("auto_deploy", false),
		RequirePlanApproval: request.GetBool("require_plan_approval", false),
	}

	if projectName := request.GetString("project", ""); projectName != "" {
		p, err := s.resolveProject(ctx, projectName)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", projectName)), nil
		}
		b.ProjectID = p.ID
	}

	if err := s.store.CreateBrief(ctx, b); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create brief: %v", err)), nil
	}

	data, _ := json.Marshal(map[string]string{"id": b.ID, "status": string(b.Status)})
	return mcp.NewToolResultText(string(data)), nil
}

// forge_start_pipeline
func (s *Server) startPipelineTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("forge_start_pipeline",
		mcp.WithDescription("Queue a brief for evaluation. The orchestrator daemon picks it up on its next scan."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Brief id")),
	)
	return tool, s.handleStartPipeline
}

func (s *Server) handleStartPipeline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}

	b, err := s.store.GetBrief(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("brief not found: %s", id)), nil
	}
	if b.Status != models.BriefStatusIntake && b.Status != models.BriefStatusReview {
		return mcp.NewToolResultError(fmt.Sprintf("brief status is %s, expected intake or review", b.Status)), nil
	}

	b.Status = models.BriefStatusEvaluating
	b.Stage = models.StageNone
	b.RejectionReason = ""
	if err := s.store.UpdateBrief(ctx, b); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to start pipeline: %v", err)), nil
	}

	data, _ := json.Marshal(map[string]string{"id": b.ID, "status": string(b.Status)})
	return mcp.NewToolResultText(string(data)), nil
}

// forge_approve_plan
func (s *Server) approvePlanTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("forge_approve_plan",
		mcp.WithDescription("Approve the plan of a brief paused at the plan-approval gate. The pipeline resumes from critique."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Brief id")),
	)
	return tool, s.handleApprovePlan
}

func (s *Server) handleApprovePlan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}

	b, err := s.store.GetBrief(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("brief not found: %s", id)), nil
	}
	if b.Stage != models.StagePlanApproval {
		return mcp.NewToolResultError(fmt.Sprintf("brief stage is %s, expected plan_approval", b.Stage)), nil
	}

	b.Stage = models.StagePlanApproved
	if err := s.store.UpdateBrief(ctx, b); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to approve plan: %v", err)), nil
	}

	data, _ := json.Marshal(map[string]string{"id": b.ID, "stage": string(b.Stage)})
	return mcp.NewToolResultText(string(data)), nil
}

// forge_request_revision
func (s *Server) requestRevisionTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("forge_request_revision",
		mcp.WithDescription("Request a revision of a brief in review. The pipeline revises the plan from the feedback and rebuilds, skipping evaluation."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Brief id")),
		mcp.WithString("feedback", mcp.Required(), mcp.Description("Reviewer feedback describing what to change")),
	)
	return tool, s.handleRequestRevision
}

func (s *Server) handleRequestRevision(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	feedback, err := request.RequireString("feedback")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: feedback"), nil
	}

	b, err := s.store.GetBrief(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("brief not found: %s", id)), nil
	}
	if b.Status != models.BriefStatusReview {
		return mcp.NewToolResultError(fmt.Sprintf("brief status is %s, expected review", b.Status)), nil
	}

	revision := &models.RevisionRequest{
		BriefID:  b.ID,
		Feedback: feedback,
		Status:   models.RevisionStatusPending,
	}
	if err := s.store.CreateRevisionRequest(ctx, revision); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create revision request: %v", err)), nil
	}

	data, _ := json.Marshal(map[string]any{"id": revision.ID, "revision_number": revision.RevisionNumber})
	return mcp.NewToolResultText(string(data)), nil
}

// forge_brief_logs
func (s *Server) briefLogsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("forge_brief_logs",
		mcp.WithDescription("Tail the build log of a brief: each entry has agent, action, level, and timestamp."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Brief id")),
		mcp.WithNumber("limit", mcp.Description("Maximum entries to return (default 50)")),
	)
	return tool, s.handleBriefLogs
}

func (s *Server) handleBriefLogs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	limit := request.GetInt("limit", 50)

	logs, err := s.store.ListBuildLogs(ctx, id, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list logs: %v", err)), nil
	}

	type logOut struct {
		Agent     string `json:"agent"`
		Action    string `json:"action"`
		Level     string `json:"level"`
		CreatedAt string `json:"created_at"`
	}

	out := make([]logOut, len(logs))
	for i, entry := range logs {
		out[i] = logOut{
			Agent:     entry.Agent,
			Action:    entry.Action,
			Level:     string(entry.Level),
			CreatedAt: entry.CreatedAt.Format(time.RFC3339),
		}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal logs: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// resolveProject finds a project by name, falling back to id lookup.
func (s *Server) resolveProject(ctx context.Context, name string) (*models.Project, error) {
	if p, err := s.store.GetProjectByName(ctx, name); err == nil {
		return p, nil
	}
	return s.store.GetProject(ctx, name)
}
