package store

import (
	"context"

	"github.com/adaptiveedge/forge/internal/models"
)

// BriefListFilter specifies filters for listing briefs.
type BriefListFilter struct {
	ProjectID string
	Status    models.BriefStatus
	Type      models.BriefType
}

// BriefHistory pairs a brief with its most recent decision report, if any.
// Used to give evaluators pattern context from past work.
type BriefHistory struct {
	Brief    *models.Brief          `json:"brief"`
	Decision *models.DecisionReport `json:"decision,omitempty"`
}

// Store defines the persistence interface for forge.
type Store interface {
	// Briefs
	CreateBrief(ctx context.Context, b *models.Brief) error
	GetBrief(ctx context.Context, id string) (*models.Brief, error)
	ListBriefs(ctx context.Context, filter BriefListFilter) ([]*models.Brief, error)
	UpdateBrief(ctx context.Context, b *models.Brief) error
	ListBriefHistory(ctx context.Context, limit int) ([]*BriefHistory, error)

	// Projects
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	GetProjectByName(ctx context.Context, name string) (*models.Project, error)
	ListProjects(ctx context.Context) ([]*models.Project, error)
	UpdateProject(ctx context.Context, p *models.Project) error
	DeleteProject(ctx context.Context, id string) error

	// Audit trail (append-only)
	AppendBuildLog(ctx context.Context, entry *models.BuildLog) error
	ListBuildLogs(ctx context.Context, briefID string, limit int) ([]*models.BuildLog, error)

	// Evaluations (append-only)
	CreateEvaluation(ctx context.Context, e *models.AgentEvaluation) error
	ListEvaluations(ctx context.Context, briefID string) ([]*models.AgentEvaluation, error)

	// Deliberation rounds (append-only)
	CreateDeliberationRound(ctx context.Context, r *models.DeliberationRound) error
	ListDeliberationRounds(ctx context.Context, briefID string) ([]*models.DeliberationRound, error)

	// Decision reports (append-only)
	CreateDecisionReport(ctx context.Context, d *models.DecisionReport) error
	ListDecisionReports(ctx context.Context, briefID string) ([]*models.DecisionReport, error)
	GetLatestDecisionReport(ctx context.Context, briefID string) (*models.DecisionReport, error)

	// Revision queue
	CreateRevisionRequest(ctx context.Context, r *models.RevisionRequest) error
	NextPendingRevision(ctx context.Context, briefID string) (*models.RevisionRequest, error)
	ListPendingRevisions(ctx context.Context) ([]*models.RevisionRequest, error)
	UpdateRevisionRequest(ctx context.Context, r *models.RevisionRequest) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
