package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// CLI invokes the claude command-line tool in print mode.
type CLI struct {
	// Binary is the executable name, "claude" by default.
	Binary string

	// DefaultModel is used when Options.Model is empty.
	DefaultModel string

	// DefaultTimeout bounds calls that don't specify their own.
	DefaultTimeout time.Duration
}

// NewCLI creates a CLI oracle with the given default model.
func NewCLI(defaultModel string) *CLI {
	return &CLI{
		Binary:         "claude",
		DefaultModel:   defaultModel,
		DefaultTimeout: 10 * time.Minute,
	}
}

// cliEnvelope is the JSON result envelope printed by `claude --output-format json`.
type cliEnvelope struct {
	Result string `json:"result"`
	Model  string `json:"model"`
	Usage  struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Invoke runs the claude CLI with the prompt on stdin and decodes the result.
func (c *CLI) Invoke(ctx context.Context, prompt string, opts Options) (*Result, error) {
	model := opts.Model
	if model == "" {
		model = c.DefaultModel
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"-p", "--model", model, "--output-format", "json"}
	if len(opts.AllowedTools) > 0 {
		args = append(args, "--allowedTools")
		args = append(args, opts.AllowedTools...)
	}

	cmd := exec.CommandContext(ctx, c.Binary, args...)
	cmd.Dir = c.resolveDir(opts.Dir)
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &ExitError{Code: exitErr.ExitCode(), Stderr: strings.TrimSpace(stderr.String())}
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return decodeCLIOutput(stdout.String(), model), nil
}

// resolveDir returns the working directory for the call. A missing directory
// degrades to a context-free invocation rather than failing the call.
func (c *CLI) resolveDir(dir string) string {
	if dir == "" {
		return os.TempDir()
	}
	if _, err := os.Stat(dir); err != nil {
		return os.TempDir()
	}
	return dir
}

// decodeCLIOutput parses the JSON envelope, falling back to treating the
// whole output as plain text when the CLI printed something else.
func decodeCLIOutput(out, model string) *Result {
	out = strings.TrimSpace(out)

	var env cliEnvelope
	if err := json.Unmarshal([]byte(out), &env); err == nil && env.Result != "" {
		if env.Model == "" {
			env.Model = model
		}
		return &Result{
			Text:         strings.TrimSpace(env.Result),
			InputTokens:  env.Usage.InputTokens,
			OutputTokens: env.Usage.OutputTokens,
			Model:        env.Model,
		}
	}

	return &Result{Text: out, Model: model}
}
