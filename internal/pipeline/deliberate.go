package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/adaptiveedge/forge/internal/eval"
	"github.com/adaptiveedge/forge/internal/models"
)

// quorum is the minimum number of round-1 successes needed to hold a vote.
const quorum = 2

// ErrInsufficientQuorum indicates too few evaluators produced a result to
// form a decision. The brief is returned to intake.
var ErrInsufficientQuorum = errors.New("insufficient evaluator quorum")

// AgentVote is one evaluator's final position after deliberation.
// RevisedFrom is set when round 2 changed the round-1 verdict.
type AgentVote struct {
	Role        eval.Role
	Result      *models.EvaluationResult
	RevisedFrom *models.Verdict
}

// deliberate runs both evaluation rounds for a brief and returns the final
// voter set. Round 1 fans out all roles concurrently and swallows individual
// failures; round 2 re-invokes only round-1 successes and falls back to the
// round-1 result on failure, so the voter set never shrinks between rounds.
func (p *Pipeline) deliberate(ctx context.Context, b *models.Brief, project *models.Project, history string) ([]AgentVote, error) {
	roster := eval.Roster()

	// --- Round 1: all roles evaluate independently, in parallel ---
	p.setStage(ctx, b.ID, models.StageGatekeeper)
	p.logs.Log(ctx, b.ID, "Pipeline", fmt.Sprintf("Round 1: %d agents evaluating independently...", len(roster)), models.LogLevelInfo)

	round1 := make([]*models.EvaluationResult, len(roster))
	var wg sync.WaitGroup
	for i, role := range roster {
		wg.Add(1)
		go func(i int, role eval.Role) {
			defer wg.Done()
			result, err := p.evaluateRole(ctx, b, project, history, role)
			if err != nil {
				p.logs.Log(ctx, b.ID, role.Name, fmt.Sprintf("Evaluation failed: %v", err), models.LogLevelError)
				return
			}
			round1[i] = result
		}(i, role)
	}
	wg.Wait()

	var succeeded []int
	for i := range roster {
		if round1[i] != nil {
			succeeded = append(succeeded, i)
		}
	}

	if len(succeeded) < quorum {
		p.logs.Log(ctx, b.ID, "Pipeline",
			fmt.Sprintf("Only %d agent(s) completed Round 1 — need at least %d to proceed", len(succeeded), quorum),
			models.LogLevelError)
		return nil, ErrInsufficientQuorum
	}

	if err := p.persistRounds(ctx, b.ID, 1, roster, succeeded, round1, nil); err != nil {
		return nil, err
	}

	// --- Round 2: agents see each other's verdicts and can revise ---
	p.setStage(ctx, b.ID, models.StageDeliberating)
	p.logs.Log(ctx, b.ID, "Pipeline", "Round 2: agents deliberating after seeing team verdicts...", models.LogLevelInfo)

	peers := make([]eval.PeerVerdict, 0, len(succeeded))
	for _, i := range succeeded {
		peers = append(peers, eval.PeerVerdict{
			AgentSlug:  roster[i].Slug,
			Verdict:    round1[i].Verdict,
			Confidence: round1[i].Confidence,
			Reasoning:  round1[i].Reasoning,
		})
	}

	round2 := make([]*models.EvaluationResult, len(roster))
	revised := make([]*models.Verdict, len(roster))
	var wg2 sync.WaitGroup
	for _, i := range succeeded {
		wg2.Add(1)
		go func(i int, role eval.Role) {
			defer wg2.Done()
			result, err := p.deliberateRole(ctx, b, project, role, peers)
			if err != nil {
				// Fall back to the round-1 result: deliberation failure must
				// never shrink the voter set below round 1's successes.
				p.logs.Log(ctx, b.ID, role.Name, fmt.Sprintf("Deliberation failed: %v — using Round 1 verdict", err), models.LogLevelError)
				round2[i] = round1[i]
				return
			}
			round2[i] = result
			if result.Verdict != round1[i].Verdict {
				from := round1[i].Verdict
				revised[i] = &from
				p.logs.Log(ctx, b.ID, role.Name,
					fmt.Sprintf("Revised verdict: %s → %s — %s", from, result.Verdict, result.Reasoning),
					models.LogLevelInfo)
			} else {
				p.logs.Log(ctx, b.ID, role.Name,
					fmt.Sprintf("Held firm: %s — %s", result.Verdict, result.Reasoning),
					models.LogLevelInfo)
			}
		}(i, roster[i])
	}
	wg2.Wait()

	if err := p.persistRounds(ctx, b.ID, 2, roster, succeeded, round2, revised); err != nil {
		return nil, err
	}

	votes := make([]AgentVote, 0, len(succeeded))
	for _, i := range succeeded {
		votes = append(votes, AgentVote{Role: roster[i], Result: round2[i], RevisedFrom: revised[i]})
	}
	return votes, nil
}

// evaluateRole invokes one role, parses its verdict, and durably logs it.
func (p *Pipeline) evaluateRole(ctx context.Context, b *models.Brief, project *models.Project, history string, role eval.Role) (*models.EvaluationResult, error) {
	p.logs.Log(ctx, b.ID, role.Name, "Evaluating brief...", models.LogLevelInfo)

	res, err := p.oracle.Invoke(ctx, role.Prompt(b, project, history), p.evaluatorOptions())
	if err != nil {
		return nil, err
	}

	result, err := eval.Parse(res.Text)
	if err != nil {
		return nil, err
	}

	if err := p.store.CreateEvaluation(ctx, &models.AgentEvaluation{
		BriefID:        b.ID,
		AgentSlug:      role.Slug,
		EvaluationType: role.EvalType,
		Verdict:        result.Verdict,
		Reasoning:      result.Reasoning,
		Confidence:     result.Confidence,
	}); err != nil {
		return nil, fmt.Errorf("record evaluation: %w", err)
	}

	level := models.LogLevelInfo
	if result.Verdict == models.VerdictReject {
		level = models.LogLevelWarn
	}
	p.logs.Log(ctx, b.ID, role.Name, fmt.Sprintf("Brief %s — %s", verdictPastTense(result.Verdict), result.Reasoning), level)

	return result, nil
}

// deliberateRole re-invokes one role with the full round-1 verdict set.
func (p *Pipeline) deliberateRole(ctx context.Context, b *models.Brief, project *models.Project, role eval.Role, peers []eval.PeerVerdict) (*models.EvaluationResult, error) {
	res, err := p.oracle.Invoke(ctx, eval.DeliberationPrompt(role, b, project, peers), p.evaluatorOptions())
	if err != nil {
		return nil, err
	}
	return eval.Parse(res.Text)
}

// persistRounds writes one round's results as immutable rows before voting.
func (p *Pipeline) persistRounds(ctx context.Context, briefID string, round int, roster []eval.Role, succeeded []int, results []*models.EvaluationResult, revised []*models.Verdict) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, i := range succeeded {
		row := &models.DeliberationRound{
			BriefID:    briefID,
			AgentSlug:  roster[i].Slug,
			Round:      round,
			Verdict:    results[i].Verdict,
			Reasoning:  results[i].Reasoning,
			Confidence: results[i].Confidence,
		}
		if revised != nil {
			row.RevisedFrom = revised[i]
		}
		g.Go(func() error {
			return p.store.CreateDeliberationRound(ctx, row)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("persist round %d: %w", round, err)
	}
	return nil
}

func verdictPastTense(v models.Verdict) string {
	switch v {
	case models.VerdictApprove:
		return "approved"
	case models.VerdictReject:
		return "rejected"
	default:
		return "flagged with concern"
	}
}
