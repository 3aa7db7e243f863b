package eval

import "github.com/adaptiveedge/forge/internal/models"

// Role is one judging perspective. Each role converts the same brief (plus
// optional history) into a verdict; the criteria live entirely in the prompt.
type Role struct {
	Name     string
	Slug     string
	EvalType string
	Prompt   func(b *models.Brief, project *models.Project, history string) string
}

// Roster returns the four independent evaluator roles, in dispatch order.
func Roster() []Role {
	return []Role{
		{Name: "Gatekeeper", Slug: "gatekeeper", EvalType: "strategic_filter", Prompt: GatekeeperPrompt},
		{Name: "Skeptic", Slug: "skeptic", EvalType: "devils_advocate", Prompt: SkepticPrompt},
		{Name: "Cynic", Slug: "cynic", EvalType: "failure_modes", Prompt: CynicPrompt},
		{Name: "Accountant", Slug: "accountant", EvalType: "cost_benefit", Prompt: AccountantPrompt},
	}
}

// PeerVerdict is one round-1 result rendered into a deliberation prompt.
type PeerVerdict struct {
	AgentSlug  string
	Verdict    models.Verdict
	Confidence int
	Reasoning  string
}
