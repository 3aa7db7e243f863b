package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/adaptiveedge/forge/internal/models"
)

func vote(slug string, verdict models.Verdict, confidence int, reasoning string) Vote {
	return Vote{
		AgentSlug: slug,
		Result: &models.EvaluationResult{
			Verdict:    verdict,
			Confidence: confidence,
			Reasoning:  reasoning,
		},
	}
}

func TestTally_MixedVerdictsApprove(t *testing.T) {
	// +8 +0.3*5 -6 +7 = 10.5
	outcome := Tally([]Vote{
		vote("gatekeeper", models.VerdictApprove, 8, "worth building"),
		vote("skeptic", models.VerdictConcern, 5, "scope is a bit loose"),
		vote("cynic", models.VerdictReject, 6, "will rot"),
		vote("accountant", models.VerdictApprove, 7, "cheap win"),
	})

	assert.True(t, outcome.Approved)
	assert.InDelta(t, 10.5, outcome.Score, 0.001)
	assert.Contains(t, outcome.Summary, "2 approvals, 1 concerns, 1 rejections")
	assert.Contains(t, outcome.VoteLine, "APPROVED")
	assert.Contains(t, outcome.VoteLine, "gatekeeper: approve (conf 8, score +8.0)")
	assert.Contains(t, outcome.VoteLine, "skeptic: concern (conf 5, score +1.5)")
	assert.Contains(t, outcome.VoteLine, "cynic: reject (conf 6, score -6.0)")
	assert.Equal(t, "cynic: will rot", outcome.Dissent)
}

func TestTally_TieRejects(t *testing.T) {
	outcome := Tally([]Vote{
		vote("gatekeeper", models.VerdictApprove, 5, "fine"),
		vote("skeptic", models.VerdictReject, 5, "not fine"),
	})

	assert.False(t, outcome.Approved)
	assert.InDelta(t, 0.0, outcome.Score, 0.001)
	assert.Contains(t, outcome.VoteLine, "REJECTED")
}

func TestTally_AllReject(t *testing.T) {
	outcome := Tally([]Vote{
		vote("skeptic", models.VerdictReject, 9, "no ROI"),
		vote("cynic", models.VerdictReject, 7, "will be abandoned"),
	})

	assert.False(t, outcome.Approved)
	assert.InDelta(t, -16.0, outcome.Score, 0.001)
	assert.Equal(t, "skeptic: no ROI | cynic: will be abandoned", outcome.Dissent)
	assert.Contains(t, outcome.Summary, "rejected")
}

func TestTally_ConcernsAloneApprove(t *testing.T) {
	// Concerns are weak positives: with no rejections the score stays
	// above zero and the brief passes.
	outcome := Tally([]Vote{
		vote("gatekeeper", models.VerdictConcern, 5, "tier looks inflated"),
		vote("skeptic", models.VerdictConcern, 5, "scope wobbly"),
	})

	assert.True(t, outcome.Approved)
	assert.InDelta(t, 3.0, outcome.Score, 0.001)
	assert.Empty(t, outcome.Dissent)
}
