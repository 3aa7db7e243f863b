package models

import "time"

// Verdict is the three-state judgment an evaluator returns. Concern is a
// soft positive: it counts toward approval in voting but at reduced weight.
type Verdict string

const (
	VerdictApprove Verdict = "approve"
	VerdictReject  Verdict = "reject"
	VerdictConcern Verdict = "concern"
)

// Valid reports whether v is one of the three allowed verdicts.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictApprove, VerdictReject, VerdictConcern:
		return true
	}
	return false
}

// EvaluationResult is one evaluator's structured judgment of a brief.
// Immutable once recorded.
type EvaluationResult struct {
	Verdict         Verdict
	Reasoning       string
	Confidence      int // 1-10, clamped on parse
	SuggestedTier   int // 0 = none
	SuggestedImpact int // 0 = none
}

// AgentEvaluation is a durably logged evaluation, one row per agent verdict.
type AgentEvaluation struct {
	ID             string    `json:"id"`
	BriefID        string    `json:"brief_id"`
	AgentSlug      string    `json:"agent_slug"`
	EvaluationType string    `json:"evaluation_type"`
	Verdict        Verdict   `json:"verdict"`
	Reasoning      string    `json:"reasoning"`
	Confidence     int       `json:"confidence"`
	CreatedAt      time.Time `json:"created_at"`
}

// DeliberationRound records one evaluator's verdict in one round.
// RevisedFrom is set only on round-2 rows where the agent changed its
// round-1 verdict; nil means it held firm.
type DeliberationRound struct {
	ID          string    `json:"id"`
	BriefID     string    `json:"brief_id"`
	AgentSlug   string    `json:"agent_slug"`
	Round       int       `json:"round"` // 1 or 2
	Verdict     Verdict   `json:"verdict"`
	Reasoning   string    `json:"reasoning"`
	Confidence  int       `json:"confidence"`
	RevisedFrom *Verdict  `json:"revised_from,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Decision is the binary outcome of a weighted vote.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// DecisionReport summarizes one completed evaluation phase. Append-only; a
// brief accumulates one per evaluation it goes through.
type DecisionReport struct {
	ID              string    `json:"id"`
	BriefID         string    `json:"brief_id"`
	Decision        Decision  `json:"decision"`
	Summary         string    `json:"summary"`
	WeightedScore   float64   `json:"weighted_score"`
	DissentingViews string    `json:"dissenting_views"` // concatenated reject reasoning, empty = none
	CreatedAt       time.Time `json:"created_at"`
}
