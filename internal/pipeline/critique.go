package pipeline

import (
	"context"
	"fmt"

	"github.com/adaptiveedge/forge/internal/eval"
	"github.com/adaptiveedge/forge/internal/models"
)

// maxPlanRevisions caps how many times the critic reviews the plan. Each
// non-approving review except the last sends the plan back to the architect,
// so the budget allows maxPlanRevisions critiques and maxPlanRevisions-1
// revisions before the pipeline proceeds with the latest draft.
const maxPlanRevisions = 2

// runCritic runs the plan-critique loop: the critic reviews the current
// plan, and anything short of approval sends it back to the architect for
// revision while the budget lasts. The loop fails open — an unavailable or
// unparseable critic, a failed revision, or an exhausted budget all let the
// latest plan through. Only a missing plan returns false.
func (p *Pipeline) runCritic(ctx context.Context, briefID string) bool {
	p.setStage(ctx, briefID, models.StageCriticReview)

	b, err := p.store.GetBrief(ctx, briefID)
	if err != nil {
		p.failStage(ctx, briefID, "Critic", fmt.Sprintf("Load brief: %v", err))
		return false
	}
	if b.Plan == "" {
		p.failStage(ctx, briefID, "Critic", "No plan to review")
		return false
	}
	project := p.loadProject(ctx, b)

	for revision := 0; revision < maxPlanRevisions; revision++ {
		p.logs.Log(ctx, briefID, "Critic", "Reviewing implementation plan...", models.LogLevelInfo)

		result, err := p.critiquePlan(ctx, b)
		if err != nil {
			p.logs.Log(ctx, briefID, "Critic", fmt.Sprintf("Critique failed: %v — proceeding with current plan", err), models.LogLevelWarn)
			return true
		}

		if result.Verdict == models.VerdictApprove {
			p.logs.Log(ctx, briefID, "Critic", "Plan approved — "+result.Reasoning, models.LogLevelInfo)
			return true
		}

		p.logs.Log(ctx, briefID, "Critic",
			fmt.Sprintf("Plan %s — %s", verdictPastTense(result.Verdict), result.Reasoning),
			models.LogLevelWarn)

		if revision >= maxPlanRevisions-1 {
			break
		}

		p.logs.Log(ctx, briefID, "Architect", fmt.Sprintf("Revising plan (attempt %d)...", revision+1), models.LogLevelInfo)

		res, err := p.oracle.Invoke(ctx, eval.ArchitectRevisionPrompt(b, b.Plan, result.Reasoning), p.plannerOptions(project))
		if err != nil {
			p.logs.Log(ctx, briefID, "Architect", fmt.Sprintf("Plan revision failed: %v — proceeding with current plan", err), models.LogLevelWarn)
			return true
		}

		b, err = p.transition(ctx, briefID, func(b *models.Brief) {
			b.Plan = res.Text
		})
		if err != nil {
			p.logs.Log(ctx, briefID, "Architect", fmt.Sprintf("Save revised plan: %v — proceeding with current plan", err), models.LogLevelWarn)
			return true
		}
	}

	p.logs.Log(ctx, briefID, "Critic",
		fmt.Sprintf("Plan still unapproved after %d review(s) — proceeding with latest plan", maxPlanRevisions),
		models.LogLevelWarn)
	return true
}

// critiquePlan invokes the critic once and records its verdict.
func (p *Pipeline) critiquePlan(ctx context.Context, b *models.Brief) (*models.EvaluationResult, error) {
	res, err := p.oracle.Invoke(ctx, eval.CriticPrompt(b, b.Plan), p.evaluatorOptions())
	if err != nil {
		return nil, err
	}

	result, err := eval.Parse(res.Text)
	if err != nil {
		return nil, err
	}

	if err := p.store.CreateEvaluation(ctx, &models.AgentEvaluation{
		BriefID:        b.ID,
		AgentSlug:      "critic",
		EvaluationType: "plan_review",
		Verdict:        result.Verdict,
		Reasoning:      result.Reasoning,
		Confidence:     result.Confidence,
	}); err != nil {
		return nil, fmt.Errorf("record critique: %w", err)
	}

	return result, nil
}
