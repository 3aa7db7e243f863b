// Package eval holds the evaluator roles, their prompts, and the decoder
// that turns free-text oracle output into structured verdicts. All "the
// oracle didn't follow instructions" handling lives here.
package eval

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/adaptiveedge/forge/internal/models"
)

// ErrMalformedResponse indicates no JSON-shaped substring was found in the
// oracle's response, or the substring would not decode.
var ErrMalformedResponse = errors.New("malformed oracle response")

// InvalidVerdictError indicates the decoded verdict is not one of the three
// allowed values.
type InvalidVerdictError struct {
	Verdict string
}

func (e *InvalidVerdictError) Error() string {
	return fmt.Sprintf("invalid verdict: %q", e.Verdict)
}

var jsonPattern = regexp.MustCompile(`(?s)\{.*\}`)

// rawEvaluation mirrors the JSON shape the prompts request.
type rawEvaluation struct {
	Verdict         string `json:"verdict"`
	Reasoning       string `json:"reasoning"`
	SuggestedTier   int    `json:"suggested_tier"`
	SuggestedImpact int    `json:"suggested_impact"`
	Confidence      int    `json:"confidence"`
}

// Parse decodes an oracle response into an EvaluationResult. It tolerates
// commentary and markdown fencing around the JSON object, clamps confidence
// to [1,10], and defaults a missing confidence to 5.
func Parse(text string) (*models.EvaluationResult, error) {
	match := jsonPattern.FindString(text)
	if match == "" {
		return nil, fmt.Errorf("%w: no JSON object found", ErrMalformedResponse)
	}

	var raw rawEvaluation
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	verdict := models.Verdict(raw.Verdict)
	if !verdict.Valid() {
		return nil, &InvalidVerdictError{Verdict: raw.Verdict}
	}

	return &models.EvaluationResult{
		Verdict:         verdict,
		Reasoning:       raw.Reasoning,
		Confidence:      clampConfidence(raw.Confidence),
		SuggestedTier:   raw.SuggestedTier,
		SuggestedImpact: raw.SuggestedImpact,
	}, nil
}

// clampConfidence forces confidence into [1,10]; zero means the oracle
// omitted it and defaults to 5.
func clampConfidence(c int) int {
	if c == 0 {
		return 5
	}
	if c < 1 {
		return 1
	}
	if c > 10 {
		return 10
	}
	return c
}
