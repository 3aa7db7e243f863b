package eval

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adaptiveedge/forge/internal/models"
)

func TestParse_PlainJSON(t *testing.T) {
	result, err := Parse(`{"verdict": "approve", "reasoning": "clear scope", "confidence": 8}`)
	require.NoError(t, err)
	assert.Equal(t, models.VerdictApprove, result.Verdict)
	assert.Equal(t, "clear scope", result.Reasoning)
	assert.Equal(t, 8, result.Confidence)
}

func TestParse_SurroundingCommentary(t *testing.T) {
	text := "Sure! Here is my evaluation:\n```json\n" +
		`{"verdict": "concern", "reasoning": "scope creep risk", "confidence": 6}` +
		"\n```\nLet me know if you need more detail."
	result, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, models.VerdictConcern, result.Verdict)
	assert.Equal(t, 6, result.Confidence)
}

func TestParse_SuggestedFields(t *testing.T) {
	result, err := Parse(`{"verdict": "approve", "reasoning": "r", "suggested_tier": 2, "suggested_impact": 7, "confidence": 9}`)
	require.NoError(t, err)
	assert.Equal(t, 2, result.SuggestedTier)
	assert.Equal(t, 7, result.SuggestedImpact)
}

func TestParse_ConfidenceClamping(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"missing defaults to 5", `{"verdict": "approve", "reasoning": "r"}`, 5},
		{"below range", `{"verdict": "approve", "reasoning": "r", "confidence": -3}`, 1},
		{"above range", `{"verdict": "approve", "reasoning": "r", "confidence": 42}`, 10},
		{"in range", `{"verdict": "approve", "reasoning": "r", "confidence": 1}`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Confidence)
		})
	}
}

func TestParse_NoJSON(t *testing.T) {
	_, err := Parse("I think this brief is great, ship it!")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestParse_BadJSON(t *testing.T) {
	_, err := Parse(`{"verdict": "approve", "reasoning":`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestParse_InvalidVerdict(t *testing.T) {
	_, err := Parse(`{"verdict": "maybe", "reasoning": "r", "confidence": 5}`)
	require.Error(t, err)

	var invalid *InvalidVerdictError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "maybe", invalid.Verdict)
}

func TestRoster_Stable(t *testing.T) {
	roster := Roster()
	require.Len(t, roster, 4)

	slugs := make([]string, len(roster))
	for i, r := range roster {
		slugs[i] = r.Slug
		assert.NotNil(t, r.Prompt)
	}
	assert.Equal(t, []string{"gatekeeper", "skeptic", "cynic", "accountant"}, slugs)
}
