package pipeline

import (
	"fmt"
	"strings"

	"github.com/adaptiveedge/forge/internal/models"
)

// concernWeight is the fraction of confidence a concern vote contributes.
// Concern is a soft positive: it counts toward approval, but weakly.
const concernWeight = 0.3

// Vote is one evaluator's final verdict entering the tally.
type Vote struct {
	AgentSlug string
	Result    *models.EvaluationResult
}

// Outcome is the deterministic result of a weighted vote.
type Outcome struct {
	Approved bool
	Score    float64
	Summary  string // counts-based summary for the decision report
	VoteLine string // per-voter contributions for the audit log
	Dissent  string // concatenated reject reasoning, empty = none
}

// Tally aggregates final verdicts into a single decision. Per voter:
// approve contributes +confidence, concern +confidence*0.3, reject
// -confidence. The brief is approved iff the sum is strictly greater than
// zero — a tie rejects.
func Tally(votes []Vote) Outcome {
	var score float64
	var approves, concerns, rejects int
	var lines []string
	var dissent []string

	for _, v := range votes {
		var contribution float64
		switch v.Result.Verdict {
		case models.VerdictApprove:
			contribution = float64(v.Result.Confidence)
			approves++
		case models.VerdictConcern:
			contribution = float64(v.Result.Confidence) * concernWeight
			concerns++
		case models.VerdictReject:
			contribution = -float64(v.Result.Confidence)
			rejects++
			dissent = append(dissent, fmt.Sprintf("%s: %s", v.AgentSlug, v.Result.Reasoning))
		}
		score += contribution

		sign := ""
		if contribution > 0 {
			sign = "+"
		}
		lines = append(lines, fmt.Sprintf("%s: %s (conf %d, score %s%.1f)",
			v.AgentSlug, v.Result.Verdict, v.Result.Confidence, sign, contribution))
	}

	approved := score > 0

	var summary string
	if approved {
		summary = fmt.Sprintf("Brief approved with weighted score %.1f. %d approvals, %d concerns, %d rejections.",
			score, approves, concerns, rejects)
	} else {
		summary = fmt.Sprintf("Brief rejected with weighted score %.1f. The team's concerns outweighed support.", score)
	}

	decision := "REJECTED"
	if approved {
		decision = "APPROVED"
	}
	voteLine := fmt.Sprintf("Weighted vote: %.1f → %s | %s", score, decision, strings.Join(lines, ", "))

	return Outcome{
		Approved: approved,
		Score:    score,
		Summary:  summary,
		VoteLine: voteLine,
		Dissent:  strings.Join(dissent, " | "),
	}
}
