package models

import "time"

// BriefStatus represents the lifecycle state of a brief.
type BriefStatus string

const (
	BriefStatusIntake     BriefStatus = "intake"
	BriefStatusEvaluating BriefStatus = "evaluating"
	BriefStatusBuilding   BriefStatus = "building"
	BriefStatusRevising   BriefStatus = "revising"
	BriefStatusReview     BriefStatus = "review"
	BriefStatusDone       BriefStatus = "done"
)

// BriefType distinguishes briefs that produce code (a PR) from briefs that
// execute a task and produce output files.
type BriefType string

const (
	BriefTypeBuild BriefType = "build"
	BriefTypeRun   BriefType = "run"
)

// PipelineStage is the fine-grained position of a brief within the pipeline.
// A brief only carries a stage while its status is in-flight; the empty value
// is stored as NULL.
type PipelineStage string

const (
	StageGatekeeper     PipelineStage = "gatekeeper"
	StageDeliberating   PipelineStage = "deliberating"
	StageVoting         PipelineStage = "voting"
	StagePlanning       PipelineStage = "planning"
	StagePlanApproval   PipelineStage = "plan_approval"
	StagePlanApproved   PipelineStage = "plan_approved"
	StageCriticReview   PipelineStage = "critic_review"
	StageBuilding       PipelineStage = "building"
	StageBrandReview    PipelineStage = "brand_review"
	StageBuildComplete  PipelineStage = "build_complete"
	StageRunning        PipelineStage = "running"
	StageTaskComplete   PipelineStage = "task_complete"
	StageDeploying      PipelineStage = "deploying"
	StageDeployComplete PipelineStage = "deploy_complete"
)

// StageNone clears the pipeline stage (terminal and paused transitions).
const StageNone PipelineStage = ""

// Brief is the unit of work moving through the pipeline.
type Brief struct {
	ID          string        `json:"id"`
	ProjectID   string        `json:"project_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Type        BriefType     `json:"type"`
	Status      BriefStatus   `json:"status"`
	Stage       PipelineStage `json:"stage"` // empty while not in-flight

	Plan       string `json:"plan"`        // accumulated architect plan
	PRURL      string `json:"pr_url"`      // pull request created by the builder
	OutputPath string `json:"output_path"` // newline-separated output files for run-type briefs

	FastTrack           bool `json:"fast_track"`
	AutoDeploy          bool `json:"auto_deploy"`
	RequirePlanApproval bool `json:"require_plan_approval"`

	OutcomeTier     int    `json:"outcome_tier"` // 1-4, lower is more fundamental
	OutcomeType     string `json:"outcome_type"`
	ImpactScore     int    `json:"impact_score"` // 1-10
	RejectionReason string `json:"rejection_reason"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InFlight reports whether the brief is currently owned by a pipeline run.
func (s BriefStatus) InFlight() bool {
	return s == BriefStatusEvaluating || s == BriefStatusBuilding || s == BriefStatusRevising
}
