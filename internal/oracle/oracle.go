// Package oracle wraps the external reasoning capability behind a single
// request/response interface. Implementations supply timeout and
// cancellation; they never retry — retry is a decision for the calling stage.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable indicates the oracle could not be reached at all
// (binary missing, transport down). Always retriable by the caller.
var ErrUnavailable = errors.New("oracle unavailable")

// ExitError indicates the oracle ran but signalled failure.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("oracle exited with code %d: %s", e.Code, e.Stderr)
}

// Result is a completed oracle invocation.
type Result struct {
	Text         string
	InputTokens  int
	OutputTokens int
	Model        string
}

// Options tune a single invocation.
type Options struct {
	Model string

	// Dir is the working directory granted to the call. If it does not
	// exist the client degrades to a context-free invocation instead of
	// failing: evaluation and planning can proceed without file access,
	// only with reduced quality.
	Dir string

	// AllowedTools is the allow-list of side-effecting capabilities
	// granted to the call. Empty means read-nothing, touch-nothing.
	AllowedTools []string

	Timeout time.Duration
}

// Oracle is the reasoning capability consumed by the pipeline.
type Oracle interface {
	Invoke(ctx context.Context, prompt string, opts Options) (*Result, error)
}
