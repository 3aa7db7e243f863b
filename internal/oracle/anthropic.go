package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic invokes the Messages API directly. It has no filesystem access,
// so Options.Dir and Options.AllowedTools are ignored — suitable for the
// evaluation and deliberation roles, which only read the prompt.
type Anthropic struct {
	api            *anthropic.Client
	defaultModel   anthropic.Model
	defaultTimeout time.Duration
	maxTokens      int64
}

// NewAnthropic creates an API-backed oracle with the given key and model.
func NewAnthropic(apiKey, defaultModel string) *Anthropic {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Anthropic{
		api:            &client,
		defaultModel:   anthropic.Model(defaultModel),
		defaultTimeout: 5 * time.Minute,
		maxTokens:      4096,
	}
}

// Invoke sends the prompt as a single user message and returns the first
// text block with token usage.
func (a *Anthropic) Invoke(ctx context.Context, prompt string, opts Options) (*Result, error) {
	model := a.defaultModel
	if opts.Model != "" {
		model = anthropic.Model(opts.Model)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = a.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msg, err := a.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, &ExitError{Code: 1, Stderr: "no text content in API response"}
	}

	return &Result{
		Text:         text,
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
		Model:        string(msg.Model),
	}, nil
}
