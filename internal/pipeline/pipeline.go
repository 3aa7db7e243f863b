// Package pipeline is the orchestration core: the stage state machine, the
// two-round deliberation protocol, confidence-weighted voting, and the
// plan-critique loop. The pipeline is the only writer of brief state;
// evaluators and the plan loop return results that the pipeline records.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/adaptiveedge/forge/internal/eval"
	"github.com/adaptiveedge/forge/internal/models"
	"github.com/adaptiveedge/forge/internal/oracle"
	"github.com/adaptiveedge/forge/internal/store"
)

// Config holds pipeline tuning. Models follow the original split: a cheap
// model for evaluation verdicts, a stronger one for planning and building.
type Config struct {
	EvaluatorModel string
	PlannerModel   string
	BuilderModel   string

	// RepoBasePath is where repos are assumed checked out when a project
	// has no explicit local path.
	RepoBasePath string

	// PlannerTools is the read-only allow-list granted to planning calls.
	PlannerTools []string
	// BuilderTools is the full allow-list granted to build/run/deploy calls.
	BuilderTools []string

	HistoryLimit int
	CallTimeout  time.Duration
}

// DefaultConfig returns the default pipeline config, reading from viper
// when available.
func DefaultConfig() Config {
	cfg := Config{
		EvaluatorModel: viper.GetString("pipeline.evaluator_model"),
		PlannerModel:   viper.GetString("pipeline.planner_model"),
		BuilderModel:   viper.GetString("pipeline.builder_model"),
		RepoBasePath:   viper.GetString("pipeline.repo_base_path"),
		HistoryLimit:   viper.GetInt("pipeline.history_limit"),
	}
	if cfg.EvaluatorModel == "" {
		cfg.EvaluatorModel = "haiku"
	}
	if cfg.PlannerModel == "" {
		cfg.PlannerModel = "sonnet"
	}
	if cfg.BuilderModel == "" {
		cfg.BuilderModel = "sonnet"
	}
	if cfg.RepoBasePath == "" {
		cfg.RepoBasePath = "/var/www"
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	cfg.PlannerTools = []string{"Read", "Glob", "Grep"}
	cfg.BuilderTools = []string{"Read", "Write", "Edit", "Bash", "Glob", "Grep"}
	return cfg
}

// Pipeline advances briefs through the approval-and-build stages.
type Pipeline struct {
	store   store.Store
	oracle  oracle.Oracle
	logs    BuildLogger
	history *HistoryProvider
	cfg     Config
}

// New creates a pipeline with the given dependencies.
func New(s store.Store, o oracle.Oracle, logs BuildLogger, cfg Config) *Pipeline {
	return &Pipeline{
		store:   s,
		oracle:  o,
		logs:    logs,
		history: NewHistoryProvider(s, cfg.HistoryLimit),
		cfg:     cfg,
	}
}

var prURLPattern = regexp.MustCompile(`https://github\.com/[^\s)]+/pull/\d+`)

// Advance runs the full pipeline for a brief from the evaluation trigger.
// It returns nil when the pipeline handled the brief (including rejection
// and stage failure, which leave the brief in a stable inspectable state);
// an error means the brief could not be loaded or was not ready.
func (p *Pipeline) Advance(ctx context.Context, briefID string) error {
	b, err := p.store.GetBrief(ctx, briefID)
	if err != nil {
		return err
	}

	// Guarded re-entry: only act on briefs still waiting for evaluation.
	if b.Status != models.BriefStatusEvaluating {
		p.logs.Log(ctx, briefID, "Pipeline",
			fmt.Sprintf("Brief status is %q, not %q — skipping", b.Status, models.BriefStatusEvaluating),
			models.LogLevelWarn)
		return nil
	}

	if b.FastTrack {
		p.logs.Log(ctx, briefID, "Pipeline", "Fast track enabled — skipping evaluation", models.LogLevelInfo)
		if _, err := p.transition(ctx, briefID, func(b *models.Brief) {
			b.Status = models.BriefStatusBuilding
			b.Stage = models.StagePlanning
		}); err != nil {
			return err
		}
	} else {
		approved, err := p.runEvaluation(ctx, briefID)
		if err != nil {
			p.failStage(ctx, briefID, "Pipeline", fmt.Sprintf("Evaluation failed: %v", err))
			return nil
		}
		if !approved {
			return nil
		}
	}

	proceed, paused := p.runPlanning(ctx, briefID)
	if !proceed || paused {
		return nil
	}

	p.continueToCompletion(ctx, briefID)
	return nil
}

// Resume continues a brief that was paused for plan approval. The external
// actor must have moved the stage to plan_approved; resumption re-enters at
// critique, never at evaluation.
func (p *Pipeline) Resume(ctx context.Context, briefID string) error {
	b, err := p.store.GetBrief(ctx, briefID)
	if err != nil {
		return err
	}
	if b.Stage != models.StagePlanApproved {
		return fmt.Errorf("brief %s stage is %q, not %q — cannot resume", briefID, b.Stage, models.StagePlanApproved)
	}

	p.logs.Log(ctx, briefID, "Pipeline", "Plan approved — resuming pipeline", models.LogLevelInfo)
	p.continueToCompletion(ctx, briefID)
	return nil
}

// Revise is the post-review entry point: revise the plan from human
// feedback and rebuild, skipping evaluation and critique entirely.
func (p *Pipeline) Revise(ctx context.Context, briefID, feedback string, revisionNumber int) error {
	b, err := p.transition(ctx, briefID, func(b *models.Brief) {
		b.Status = models.BriefStatusRevising
		b.Stage = models.StagePlanning
	})
	if err != nil {
		return err
	}

	if b.Plan == "" {
		p.logs.Log(ctx, briefID, "Pipeline", "No existing plan to revise — running full planning", models.LogLevelWarn)
		proceed, paused := p.runPlanning(ctx, briefID)
		if !proceed || paused {
			return nil
		}
	} else {
		project := p.loadProject(ctx, b)
		p.logs.Log(ctx, briefID, "Architect", fmt.Sprintf("Revising plan based on feedback (revision %d)...", revisionNumber), models.LogLevelInfo)

		res, err := p.oracle.Invoke(ctx, eval.ArchitectFeedbackPrompt(b, b.Plan, feedback, revisionNumber), p.plannerOptions(project))
		if err != nil {
			p.failStage(ctx, briefID, "Architect", fmt.Sprintf("Revision planning failed: %v", err))
			return nil
		}

		if _, err := p.transition(ctx, briefID, func(b *models.Brief) {
			b.Plan = res.Text
		}); err != nil {
			return err
		}
		p.logs.Log(ctx, briefID, "Architect", fmt.Sprintf("Plan revised (v%d) addressing reviewer feedback", revisionNumber+1), models.LogLevelInfo)
	}

	// Straight to execution — revisions never re-litigate approval.
	if b.Type == models.BriefTypeRun {
		p.runExecute(ctx, briefID)
		return nil
	}
	if !p.runBuild(ctx, briefID) {
		return nil
	}
	p.runBrandReview(ctx, briefID)
	p.finishBuild(ctx, briefID)
	return nil
}

// continueToCompletion drives a planned brief through its remaining stages.
func (p *Pipeline) continueToCompletion(ctx context.Context, briefID string) {
	b, err := p.store.GetBrief(ctx, briefID)
	if err != nil {
		p.failStage(ctx, briefID, "Pipeline", fmt.Sprintf("Load brief: %v", err))
		return
	}

	// Run-type briefs substitute a single execution stage for the whole
	// critique/build/brand/deploy tail.
	if b.Type == models.BriefTypeRun {
		p.runExecute(ctx, briefID)
		return
	}

	if !p.runCritic(ctx, briefID) {
		return
	}
	if !p.runBuild(ctx, briefID) {
		return
	}
	p.runBrandReview(ctx, briefID)
	p.finishBuild(ctx, briefID)
}

// runEvaluation executes deliberation and voting. It returns false without
// error when the brief was rejected or lost quorum (both route the brief
// back to intake).
func (p *Pipeline) runEvaluation(ctx context.Context, briefID string) (bool, error) {
	b, err := p.store.GetBrief(ctx, briefID)
	if err != nil {
		return false, err
	}
	project := p.loadProject(ctx, b)

	history, err := p.history.Render(ctx)
	if err != nil {
		p.logs.Log(ctx, briefID, "Pipeline", "Could not load brief history, proceeding without it", models.LogLevelWarn)
		history = ""
	}

	votes, err := p.deliberate(ctx, b, project, history)
	if errors.Is(err, ErrInsufficientQuorum) {
		if _, terr := p.transition(ctx, briefID, func(b *models.Brief) {
			b.Status = models.BriefStatusIntake
			b.Stage = models.StageNone
		}); terr != nil {
			return false, terr
		}
		return false, nil
	}
	if err != nil {
		return false, err
	}

	// --- Confidence-weighted voting ---
	p.setStage(ctx, briefID, models.StageVoting)

	tallied := make([]Vote, 0, len(votes))
	for _, v := range votes {
		tallied = append(tallied, Vote{AgentSlug: v.Role.Slug, Result: v.Result})
	}
	outcome := Tally(tallied)

	level := models.LogLevelInfo
	if !outcome.Approved {
		level = models.LogLevelWarn
	}
	p.logs.Log(ctx, briefID, "Pipeline", outcome.VoteLine, level)

	if err := p.store.CreateDecisionReport(ctx, &models.DecisionReport{
		BriefID:         briefID,
		Decision:        decisionFor(outcome.Approved),
		Summary:         outcome.Summary,
		WeightedScore:   outcome.Score,
		DissentingViews: outcome.Dissent,
	}); err != nil {
		return false, fmt.Errorf("write decision report: %w", err)
	}

	if !outcome.Approved {
		var reasons []string
		for _, v := range votes {
			if v.Result.Verdict == models.VerdictReject {
				reasons = append(reasons, v.Result.Reasoning)
			}
		}
		if _, err := p.transition(ctx, briefID, func(b *models.Brief) {
			b.Status = models.BriefStatusIntake
			b.Stage = models.StageNone
			b.RejectionReason = strings.Join(reasons, " | ")
		}); err != nil {
			return false, err
		}
		return false, nil
	}

	// The gatekeeper also classifies: its suggested outcome tier and impact
	// score carry onto the approved brief.
	var tier, impact int
	for _, v := range votes {
		if v.Role.Slug == "gatekeeper" {
			tier = v.Result.SuggestedTier
			impact = v.Result.SuggestedImpact
		}
	}

	if _, err := p.transition(ctx, briefID, func(b *models.Brief) {
		b.Status = models.BriefStatusBuilding
		if tier > 0 {
			b.OutcomeTier = tier
		}
		if impact > 0 {
			b.ImpactScore = impact
		}
	}); err != nil {
		return false, err
	}
	return true, nil
}

// runPlanning drafts the implementation plan. It returns proceed=false on
// stage failure and paused=true when the plan-approval gate engaged.
func (p *Pipeline) runPlanning(ctx context.Context, briefID string) (proceed, paused bool) {
	p.setStage(ctx, briefID, models.StagePlanning)

	b, err := p.store.GetBrief(ctx, briefID)
	if err != nil {
		p.failStage(ctx, briefID, "Architect", fmt.Sprintf("Load brief: %v", err))
		return false, false
	}
	project := p.loadProject(ctx, b)

	p.logs.Log(ctx, briefID, "Architect", "Designing implementation plan...", models.LogLevelInfo)

	res, err := p.oracle.Invoke(ctx, eval.ArchitectPrompt(b, project), p.plannerOptions(project))
	if err != nil {
		p.failStage(ctx, briefID, "Architect", fmt.Sprintf("Planning failed: %v", err))
		return false, false
	}

	if _, err := p.transition(ctx, briefID, func(b *models.Brief) {
		b.Plan = res.Text
	}); err != nil {
		p.failStage(ctx, briefID, "Architect", fmt.Sprintf("Save plan: %v", err))
		return false, false
	}

	firstLine := "Plan created"
	for _, line := range strings.Split(res.Text, "\n") {
		if strings.TrimSpace(line) != "" {
			firstLine = line
			break
		}
	}
	if len(firstLine) > 100 {
		firstLine = firstLine[:100]
	}
	p.logs.Log(ctx, briefID, "Architect", "Plan complete: "+firstLine, models.LogLevelInfo)

	if b.RequirePlanApproval {
		p.setStage(ctx, briefID, models.StagePlanApproval)
		p.logs.Log(ctx, briefID, "Pipeline", "Plan awaiting approval — pipeline paused", models.LogLevelInfo)
		return true, true
	}
	return true, false
}

// runBuild executes the approved plan and expects a PR at the end.
func (p *Pipeline) runBuild(ctx context.Context, briefID string) bool {
	p.setStage(ctx, briefID, models.StageBuilding)

	b, err := p.store.GetBrief(ctx, briefID)
	if err != nil {
		p.failStage(ctx, briefID, "Builder", fmt.Sprintf("Load brief: %v", err))
		return false
	}
	if b.Plan == "" {
		p.failStage(ctx, briefID, "Builder", "No architect plan found — cannot build")
		return false
	}

	project := p.loadProject(ctx, b)
	dir := p.workDir(project)
	if dir == "" {
		p.failStage(ctx, briefID, "Builder", "No repository path for project — cannot build")
		return false
	}

	p.logs.Log(ctx, briefID, "Builder", "Starting build in "+dir+"...", models.LogLevelInfo)

	res, err := p.oracle.Invoke(ctx, eval.BuilderPrompt(b, b.Plan, branchName(b.Title)), oracle.Options{
		Model:        p.cfg.BuilderModel,
		Dir:          dir,
		AllowedTools: p.cfg.BuilderTools,
		Timeout:      p.cfg.CallTimeout,
	})
	if err != nil {
		p.failStage(ctx, briefID, "Builder", fmt.Sprintf("Build failed: %v", err))
		return false
	}

	if prURL := prURLPattern.FindString(res.Text); prURL != "" {
		if _, err := p.transition(ctx, briefID, func(b *models.Brief) {
			b.PRURL = prURL
		}); err != nil {
			p.failStage(ctx, briefID, "Builder", fmt.Sprintf("Save PR URL: %v", err))
			return false
		}
		p.logs.Log(ctx, briefID, "Builder", "PR created: "+prURL, models.LogLevelInfo)
	}

	p.logs.Log(ctx, briefID, "Builder", "Build complete", models.LogLevelInfo)
	return true
}

// runBrandReview is the advisory post-build compliance pass. Its verdict is
// recorded and logged but never blocks the pipeline.
func (p *Pipeline) runBrandReview(ctx context.Context, briefID string) {
	p.setStage(ctx, briefID, models.StageBrandReview)

	b, err := p.store.GetBrief(ctx, briefID)
	if err != nil {
		p.logs.Log(ctx, briefID, "BrandReviewer", fmt.Sprintf("Review skipped: %v", err), models.LogLevelWarn)
		return
	}
	project := p.loadProject(ctx, b)

	p.logs.Log(ctx, briefID, "BrandReviewer", "Reviewing build for brand consistency...", models.LogLevelInfo)

	res, err := p.oracle.Invoke(ctx, eval.BrandPrompt(b, project), oracle.Options{
		Model:        p.cfg.PlannerModel,
		Dir:          p.workDir(project),
		AllowedTools: p.cfg.PlannerTools,
		Timeout:      p.cfg.CallTimeout,
	})
	if err != nil {
		p.logs.Log(ctx, briefID, "BrandReviewer", fmt.Sprintf("Review failed: %v — proceeding anyway", err), models.LogLevelWarn)
		return
	}

	result, err := eval.Parse(res.Text)
	if err != nil {
		p.logs.Log(ctx, briefID, "BrandReviewer", fmt.Sprintf("Unparseable review: %v — proceeding anyway", err), models.LogLevelWarn)
		return
	}

	if err := p.store.CreateEvaluation(ctx, &models.AgentEvaluation{
		BriefID:        briefID,
		AgentSlug:      "brand_reviewer",
		EvaluationType: "brand_review",
		Verdict:        result.Verdict,
		Reasoning:      result.Reasoning,
		Confidence:     result.Confidence,
	}); err != nil {
		p.logs.Log(ctx, briefID, "BrandReviewer", fmt.Sprintf("Record review: %v", err), models.LogLevelWarn)
	}

	level := models.LogLevelInfo
	if result.Verdict != models.VerdictApprove {
		level = models.LogLevelWarn
	}
	p.logs.Log(ctx, briefID, "BrandReviewer", fmt.Sprintf("Brand review %s — %s", verdictPastTense(result.Verdict), result.Reasoning), level)
}

// finishBuild closes out a successful build: deploy when enabled, otherwise
// park the brief in review for the human.
func (p *Pipeline) finishBuild(ctx context.Context, briefID string) {
	b, err := p.store.GetBrief(ctx, briefID)
	if err != nil {
		p.failStage(ctx, briefID, "Pipeline", fmt.Sprintf("Load brief: %v", err))
		return
	}

	if b.AutoDeploy {
		p.runDeploy(ctx, briefID)
		return
	}

	if _, err := p.transition(ctx, briefID, func(b *models.Brief) {
		b.Status = models.BriefStatusReview
		b.Stage = models.StageBuildComplete
	}); err != nil {
		p.failStage(ctx, briefID, "Pipeline", fmt.Sprintf("Finish build: %v", err))
	}
}

// runDeploy ships a built brief following the project's deployment notes.
func (p *Pipeline) runDeploy(ctx context.Context, briefID string) {
	p.setStage(ctx, briefID, models.StageDeploying)

	b, err := p.store.GetBrief(ctx, briefID)
	if err != nil {
		p.failStage(ctx, briefID, "Deployer", fmt.Sprintf("Load brief: %v", err))
		return
	}
	project := p.loadProject(ctx, b)

	p.logs.Log(ctx, briefID, "Deployer", "Deploying build...", models.LogLevelInfo)

	_, err = p.oracle.Invoke(ctx, eval.DeployPrompt(b, project), oracle.Options{
		Model:        p.cfg.BuilderModel,
		Dir:          p.workDir(project),
		AllowedTools: p.cfg.BuilderTools,
		Timeout:      p.cfg.CallTimeout,
	})
	if err != nil {
		p.failStage(ctx, briefID, "Deployer", fmt.Sprintf("Deploy failed: %v", err))
		return
	}

	if _, err := p.transition(ctx, briefID, func(b *models.Brief) {
		b.Status = models.BriefStatusDone
		b.Stage = models.StageDeployComplete
	}); err != nil {
		p.failStage(ctx, briefID, "Deployer", fmt.Sprintf("Finish deploy: %v", err))
		return
	}
	p.logs.Log(ctx, briefID, "Deployer", "Deploy complete", models.LogLevelInfo)
}

// runExecute handles run-type briefs: a single execution stage producing
// output files instead of a pull request.
func (p *Pipeline) runExecute(ctx context.Context, briefID string) {
	p.setStage(ctx, briefID, models.StageRunning)

	b, err := p.store.GetBrief(ctx, briefID)
	if err != nil {
		p.failStage(ctx, briefID, "Runner", fmt.Sprintf("Load brief: %v", err))
		return
	}
	project := p.loadProject(ctx, b)

	p.logs.Log(ctx, briefID, "Runner", "Executing task...", models.LogLevelInfo)

	res, err := p.oracle.Invoke(ctx, eval.RunnerPrompt(b, b.Plan), oracle.Options{
		Model:        p.cfg.BuilderModel,
		Dir:          p.workDir(project),
		AllowedTools: p.cfg.BuilderTools,
		Timeout:      p.cfg.CallTimeout,
	})
	if err != nil {
		p.failStage(ctx, briefID, "Runner", fmt.Sprintf("Execution failed: %v", err))
		return
	}

	outputs := extractOutputs(res.Text)
	if _, err := p.transition(ctx, briefID, func(b *models.Brief) {
		b.Status = models.BriefStatusReview
		b.Stage = models.StageTaskComplete
		b.OutputPath = strings.Join(outputs, "\n")
	}); err != nil {
		p.failStage(ctx, briefID, "Runner", fmt.Sprintf("Finish execution: %v", err))
		return
	}

	p.logs.Log(ctx, briefID, "Runner", fmt.Sprintf("Task complete — %d output file(s)", len(outputs)), models.LogLevelInfo)
}

// --- helpers ---

// failStage is the universal failure funnel: log the reason, then park the
// brief in review with the stage cleared so it never sticks in a transient
// stage value.
func (p *Pipeline) failStage(ctx context.Context, briefID, agent, reason string) {
	p.logs.Log(ctx, briefID, agent, reason, models.LogLevelError)
	if _, err := p.transition(ctx, briefID, func(b *models.Brief) {
		b.Status = models.BriefStatusReview
		b.Stage = models.StageNone
		b.RejectionReason = reason
	}); err != nil {
		p.logs.Log(ctx, briefID, agent, fmt.Sprintf("Failed to park brief in review: %v", err), models.LogLevelError)
	}
}

// transition applies a mutation to the current persisted brief.
func (p *Pipeline) transition(ctx context.Context, briefID string, fn func(*models.Brief)) (*models.Brief, error) {
	b, err := p.store.GetBrief(ctx, briefID)
	if err != nil {
		return nil, err
	}
	fn(b)
	if err := p.store.UpdateBrief(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// setStage updates only the pipeline stage, best-effort.
func (p *Pipeline) setStage(ctx context.Context, briefID string, stage models.PipelineStage) {
	if _, err := p.transition(ctx, briefID, func(b *models.Brief) {
		b.Stage = stage
	}); err != nil {
		p.logs.Log(ctx, briefID, "Pipeline", fmt.Sprintf("Set stage %s: %v", stage, err), models.LogLevelError)
	}
}

// loadProject resolves the brief's project; briefs without one are legal.
func (p *Pipeline) loadProject(ctx context.Context, b *models.Brief) *models.Project {
	if b.ProjectID == "" {
		return nil
	}
	project, err := p.store.GetProject(ctx, b.ProjectID)
	if err != nil {
		return nil
	}
	return project
}

// workDir picks the directory granted to building calls: the project's
// local checkout, else a conventional path derived from the repo URL.
func (p *Pipeline) workDir(project *models.Project) string {
	if project == nil {
		return ""
	}
	if project.LocalPath != "" {
		return project.LocalPath
	}
	if project.RepoURL == "" {
		return ""
	}
	repoName := strings.TrimSuffix(path.Base(project.RepoURL), ".git")
	return path.Join(p.cfg.RepoBasePath, repoName)
}

func (p *Pipeline) evaluatorOptions() oracle.Options {
	return oracle.Options{Model: p.cfg.EvaluatorModel, Timeout: p.cfg.CallTimeout}
}

func (p *Pipeline) plannerOptions(project *models.Project) oracle.Options {
	opts := oracle.Options{Model: p.cfg.PlannerModel, Timeout: p.cfg.CallTimeout}
	if dir := p.workDir(project); dir != "" {
		opts.Dir = dir
		opts.AllowedTools = p.cfg.PlannerTools
	}
	return opts
}

func decisionFor(approved bool) models.Decision {
	if approved {
		return models.DecisionApproved
	}
	return models.DecisionRejected
}

var branchPattern = regexp.MustCompile(`[^a-z0-9]+`)

// branchName derives a git branch from a brief title.
func branchName(title string) string {
	slug := branchPattern.ReplaceAllString(strings.ToLower(title), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "brief"
	}
	return "forge/" + slug
}

// extractOutputs collects "OUTPUT: <path>" lines from runner output.
func extractOutputs(text string) []string {
	var outputs []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "OUTPUT:"); ok {
			if path := strings.TrimSpace(rest); path != "" {
				outputs = append(outputs, path)
			}
		}
	}
	return outputs
}
