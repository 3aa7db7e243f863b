package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/adaptiveedge/forge/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single
	// connection serializes all DB access through Go's connection pool, so
	// concurrent evaluator writes never hit "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	// Set busy timeout so concurrent writes wait instead of failing immediately
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// boolToInt converts a bool to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// nullStage maps an empty stage to NULL and back.
func nullStage(s models.PipelineStage) sql.NullString {
	if s == models.StageNone {
		return sql.NullString{}
	}
	return sql.NullString{String: string(s), Valid: true}
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	// Create migrations tracking table
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	// Sort by filename
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		// Check if already applied
		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Briefs ---

const briefColumns = `id, project_id, title, description, brief_type, status, pipeline_stage,
	plan, pr_url, output_path, fast_track, auto_deploy, require_plan_approval,
	outcome_tier, outcome_type, impact_score, rejection_reason, created_at, updated_at`

func (s *SQLiteStore) CreateBrief(ctx context.Context, b *models.Brief) error {
	if b.ID == "" {
		b.ID = newULID()
	}
	if b.Status == "" {
		b.Status = models.BriefStatusIntake
	}
	if b.Type == "" {
		b.Type = models.BriefTypeBuild
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO briefs (`+briefColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.ProjectID, b.Title, b.Description, string(b.Type), string(b.Status), nullStage(b.Stage),
		b.Plan, b.PRURL, b.OutputPath, boolToInt(b.FastTrack), boolToInt(b.AutoDeploy), boolToInt(b.RequirePlanApproval),
		b.OutcomeTier, b.OutcomeType, b.ImpactScore, b.RejectionReason, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create brief: %w", err)
	}
	return nil
}

func scanBrief(scan func(dest ...any) error) (*models.Brief, error) {
	b := &models.Brief{}
	var briefType, status string
	var stage sql.NullString

	err := scan(&b.ID, &b.ProjectID, &b.Title, &b.Description, &briefType, &status, &stage,
		&b.Plan, &b.PRURL, &b.OutputPath, &b.FastTrack, &b.AutoDeploy, &b.RequirePlanApproval,
		&b.OutcomeTier, &b.OutcomeType, &b.ImpactScore, &b.RejectionReason, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}

	b.Type = models.BriefType(briefType)
	b.Status = models.BriefStatus(status)
	if stage.Valid {
		b.Stage = models.PipelineStage(stage.String)
	}
	return b, nil
}

func (s *SQLiteStore) GetBrief(ctx context.Context, id string) (*models.Brief, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+briefColumns+` FROM briefs WHERE id = ?`, id)
	b, err := scanBrief(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("brief not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get brief: %w", err)
	}
	return b, nil
}

func (s *SQLiteStore) ListBriefs(ctx context.Context, filter BriefListFilter) ([]*models.Brief, error) {
	query := `SELECT ` + briefColumns + ` FROM briefs`
	var conditions []string
	var args []any

	if filter.ProjectID != "" {
		conditions = append(conditions, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Type != "" {
		conditions = append(conditions, "brief_type = ?")
		args = append(args, string(filter.Type))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list briefs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var briefs []*models.Brief
	for rows.Next() {
		b, err := scanBrief(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan brief: %w", err)
		}
		briefs = append(briefs, b)
	}
	return briefs, rows.Err()
}

func (s *SQLiteStore) UpdateBrief(ctx context.Context, b *models.Brief) error {
	b.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE briefs SET project_id=?, title=?, description=?, brief_type=?, status=?, pipeline_stage=?,
		plan=?, pr_url=?, output_path=?, fast_track=?, auto_deploy=?, require_plan_approval=?,
		outcome_tier=?, outcome_type=?, impact_score=?, rejection_reason=?, updated_at=?
		WHERE id=?`,
		b.ProjectID, b.Title, b.Description, string(b.Type), string(b.Status), nullStage(b.Stage),
		b.Plan, b.PRURL, b.OutputPath, boolToInt(b.FastTrack), boolToInt(b.AutoDeploy), boolToInt(b.RequirePlanApproval),
		b.OutcomeTier, b.OutcomeType, b.ImpactScore, b.RejectionReason, b.UpdatedAt, b.ID,
	)
	if err != nil {
		return fmt.Errorf("update brief: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("brief not found: %s", b.ID)
	}
	return nil
}

func (s *SQLiteStore) ListBriefHistory(ctx context.Context, limit int) ([]*BriefHistory, error) {
	if limit <= 0 {
		limit = 20
	}
	briefs, err := s.ListBriefs(ctx, BriefListFilter{})
	if err != nil {
		return nil, err
	}
	if len(briefs) > limit {
		briefs = briefs[:limit]
	}

	var history []*BriefHistory
	for _, b := range briefs {
		entry := &BriefHistory{Brief: b}
		decision, err := s.GetLatestDecisionReport(ctx, b.ID)
		if err != nil {
			return nil, err
		}
		entry.Decision = decision
		history = append(history, entry)
	}
	return history, nil
}

// --- Projects ---

const projectColumns = `id, name, repo_url, default_branch, local_path, deployment_notes, context_notes, created_at, updated_at`

func (s *SQLiteStore) CreateProject(ctx context.Context, p *models.Project) error {
	if p.ID == "" {
		p.ID = newULID()
	}
	if p.DefaultBranch == "" {
		p.DefaultBranch = "main"
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.RepoURL, p.DefaultBranch, p.LocalPath, p.DeploymentNotes, p.ContextNotes, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func scanProject(scan func(dest ...any) error) (*models.Project, error) {
	p := &models.Project{}
	err := scan(&p.ID, &p.Name, &p.RepoURL, &p.DefaultBranch, &p.LocalPath, &p.DeploymentNotes, &p.ContextNotes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) GetProjectByName(ctx context.Context, name string) (*models.Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE name = ?`, name)
	p, err := scanProject(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project not found: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("get project by name: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) ListProjects(ctx context.Context) ([]*models.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []*models.Project
	for rows.Next() {
		p, err := scanProject(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *SQLiteStore) UpdateProject(ctx context.Context, p *models.Project) error {
	p.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE projects SET name=?, repo_url=?, default_branch=?, local_path=?, deployment_notes=?, context_notes=?, updated_at=?
		WHERE id=?`,
		p.Name, p.RepoURL, p.DefaultBranch, p.LocalPath, p.DeploymentNotes, p.ContextNotes, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("project not found: %s", p.ID)
	}
	return nil
}

func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("project not found: %s", id)
	}
	return nil
}

// --- Build logs ---

func (s *SQLiteStore) AppendBuildLog(ctx context.Context, entry *models.BuildLog) error {
	if entry.ID == "" {
		entry.ID = newULID()
	}
	if entry.Level == "" {
		entry.Level = models.LogLevelInfo
	}
	entry.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO build_logs (id, brief_id, agent, action, log_level, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.BriefID, entry.Agent, entry.Action, string(entry.Level), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append build log: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListBuildLogs(ctx context.Context, briefID string, limit int) ([]*models.BuildLog, error) {
	query := `SELECT id, brief_id, agent, action, log_level, created_at FROM build_logs WHERE brief_id = ? ORDER BY created_at, id`
	args := []any{briefID}
	if limit > 0 {
		// Tail: newest N, returned oldest-first
		query = `SELECT id, brief_id, agent, action, log_level, created_at FROM (
			SELECT id, brief_id, agent, action, log_level, created_at FROM build_logs
			WHERE brief_id = ? ORDER BY created_at DESC, id DESC LIMIT ?
		) ORDER BY created_at, id`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list build logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var logs []*models.BuildLog
	for rows.Next() {
		entry := &models.BuildLog{}
		var level string
		if err := rows.Scan(&entry.ID, &entry.BriefID, &entry.Agent, &entry.Action, &level, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan build log: %w", err)
		}
		entry.Level = models.LogLevel(level)
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

// --- Evaluations ---

func (s *SQLiteStore) CreateEvaluation(ctx context.Context, e *models.AgentEvaluation) error {
	if e.ID == "" {
		e.ID = newULID()
	}
	e.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_evaluations (id, brief_id, agent_slug, evaluation_type, verdict, reasoning, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.BriefID, e.AgentSlug, e.EvaluationType, string(e.Verdict), e.Reasoning, e.Confidence, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create evaluation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListEvaluations(ctx context.Context, briefID string) ([]*models.AgentEvaluation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, brief_id, agent_slug, evaluation_type, verdict, reasoning, confidence, created_at
		FROM agent_evaluations WHERE brief_id = ? ORDER BY created_at, id`, briefID)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var evals []*models.AgentEvaluation
	for rows.Next() {
		e := &models.AgentEvaluation{}
		var verdict string
		if err := rows.Scan(&e.ID, &e.BriefID, &e.AgentSlug, &e.EvaluationType, &verdict, &e.Reasoning, &e.Confidence, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		e.Verdict = models.Verdict(verdict)
		evals = append(evals, e)
	}
	return evals, rows.Err()
}

// --- Deliberation rounds ---

func (s *SQLiteStore) CreateDeliberationRound(ctx context.Context, r *models.DeliberationRound) error {
	if r.ID == "" {
		r.ID = newULID()
	}
	r.CreatedAt = time.Now().UTC()

	var revisedFrom sql.NullString
	if r.RevisedFrom != nil {
		revisedFrom = sql.NullString{String: string(*r.RevisedFrom), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deliberation_rounds (id, brief_id, agent_slug, round, verdict, reasoning, confidence, revised_from, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.BriefID, r.AgentSlug, r.Round, string(r.Verdict), r.Reasoning, r.Confidence, revisedFrom, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create deliberation round: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListDeliberationRounds(ctx context.Context, briefID string) ([]*models.DeliberationRound, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, brief_id, agent_slug, round, verdict, reasoning, confidence, revised_from, created_at
		FROM deliberation_rounds WHERE brief_id = ? ORDER BY round, agent_slug`, briefID)
	if err != nil {
		return nil, fmt.Errorf("list deliberation rounds: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rounds []*models.DeliberationRound
	for rows.Next() {
		r := &models.DeliberationRound{}
		var verdict string
		var revisedFrom sql.NullString
		if err := rows.Scan(&r.ID, &r.BriefID, &r.AgentSlug, &r.Round, &verdict, &r.Reasoning, &r.Confidence, &revisedFrom, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan deliberation round: %w", err)
		}
		r.Verdict = models.Verdict(verdict)
		if revisedFrom.Valid {
			v := models.Verdict(revisedFrom.String)
			r.RevisedFrom = &v
		}
		rounds = append(rounds, r)
	}
	return rounds, rows.Err()
}

// --- Decision reports ---

func (s *SQLiteStore) CreateDecisionReport(ctx context.Context, d *models.DecisionReport) error {
	if d.ID == "" {
		d.ID = newULID()
	}
	d.CreatedAt = time.Now().UTC()

	var dissent sql.NullString
	if d.DissentingViews != "" {
		dissent = sql.NullString{String: d.DissentingViews, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decision_reports (id, brief_id, decision, summary, weighted_score, dissenting_views, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.BriefID, string(d.Decision), d.Summary, d.WeightedScore, dissent, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create decision report: %w", err)
	}
	return nil
}

func scanDecisionReport(scan func(dest ...any) error) (*models.DecisionReport, error) {
	d := &models.DecisionReport{}
	var decision string
	var dissent sql.NullString
	err := scan(&d.ID, &d.BriefID, &decision, &d.Summary, &d.WeightedScore, &dissent, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	d.Decision = models.Decision(decision)
	if dissent.Valid {
		d.DissentingViews = dissent.String
	}
	return d, nil
}

func (s *SQLiteStore) ListDecisionReports(ctx context.Context, briefID string) ([]*models.DecisionReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, brief_id, decision, summary, weighted_score, dissenting_views, created_at
		FROM decision_reports WHERE brief_id = ? ORDER BY created_at, id`, briefID)
	if err != nil {
		return nil, fmt.Errorf("list decision reports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var reports []*models.DecisionReport
	for rows.Next() {
		d, err := scanDecisionReport(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan decision report: %w", err)
		}
		reports = append(reports, d)
	}
	return reports, rows.Err()
}

func (s *SQLiteStore) GetLatestDecisionReport(ctx context.Context, briefID string) (*models.DecisionReport, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, brief_id, decision, summary, weighted_score, dissenting_views, created_at
		FROM decision_reports WHERE brief_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, briefID)
	d, err := scanDecisionReport(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil // no decision yet is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("get latest decision report: %w", err)
	}
	return d, nil
}

// --- Revision requests ---

func (s *SQLiteStore) CreateRevisionRequest(ctx context.Context, r *models.RevisionRequest) error {
	if r.ID == "" {
		r.ID = newULID()
	}
	if r.Status == "" {
		r.Status = models.RevisionStatusPending
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	// Assign the next revision number for this brief
	if r.RevisionNumber == 0 {
		var maxNum sql.NullInt64
		err := s.db.QueryRowContext(ctx,
			"SELECT MAX(revision_number) FROM revision_requests WHERE brief_id = ?", r.BriefID).Scan(&maxNum)
		if err != nil {
			return fmt.Errorf("next revision number: %w", err)
		}
		r.RevisionNumber = int(maxNum.Int64) + 1
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO revision_requests (id, brief_id, feedback, revision_number, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.BriefID, r.Feedback, r.RevisionNumber, string(r.Status), r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create revision request: %w", err)
	}
	return nil
}

func scanRevision(scan func(dest ...any) error) (*models.RevisionRequest, error) {
	r := &models.RevisionRequest{}
	var status string
	err := scan(&r.ID, &r.BriefID, &r.Feedback, &r.RevisionNumber, &status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Status = models.RevisionStatus(status)
	return r, nil
}

func (s *SQLiteStore) NextPendingRevision(ctx context.Context, briefID string) (*models.RevisionRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, brief_id, feedback, revision_number, status, created_at, updated_at
		FROM revision_requests WHERE brief_id = ? AND status = ? ORDER BY revision_number LIMIT 1`,
		briefID, string(models.RevisionStatusPending))
	r, err := scanRevision(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next pending revision: %w", err)
	}
	return r, nil
}

func (s *SQLiteStore) ListPendingRevisions(ctx context.Context) ([]*models.RevisionRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, brief_id, feedback, revision_number, status, created_at, updated_at
		FROM revision_requests WHERE status = ? ORDER BY created_at, id`,
		string(models.RevisionStatusPending))
	if err != nil {
		return nil, fmt.Errorf("list pending revisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var revisions []*models.RevisionRequest
	for rows.Next() {
		r, err := scanRevision(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan revision request: %w", err)
		}
		revisions = append(revisions, r)
	}
	return revisions, rows.Err()
}

func (s *SQLiteStore) UpdateRevisionRequest(ctx context.Context, r *models.RevisionRequest) error {
	r.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE revision_requests SET feedback=?, revision_number=?, status=?, updated_at=? WHERE id=?`,
		r.Feedback, r.RevisionNumber, string(r.Status), r.UpdatedAt, r.ID,
	)
	if err != nil {
		return fmt.Errorf("update revision request: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("revision request not found: %s", r.ID)
	}
	return nil
}
