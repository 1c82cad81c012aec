// Package claude is the completion adapter for the Anthropic Messages API.
package claude

import (
	"context"
	"fmt"
	"strings"

	"data-agent/internal/application/port/output"
	"data-agent/internal/domain/entity"
	"data-agent/internal/infrastructure/llm/stopseq"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

var _ output.CompletionPort = (*Adapter)(nil)

const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultMaxTokens = 4096
)

type Config struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int64
	Logger    output.LoggerPort
}

type Adapter struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	logger    output.LoggerPort
}

func NewAdapter(cfg Config) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	model := anthropic.Model(cfg.Model)
	if cfg.Model == "" {
		model = anthropic.ModelClaudeSonnet4_5_20250929
	}

	return &Adapter{
		client: anthropic.NewClient(
			option.WithBaseURL(cfg.BaseURL),
			option.WithAPIKey(cfg.APIKey),
		),
		model:     model,
		maxTokens: cfg.MaxTokens,
		logger:    cfg.Logger,
	}
}

func (a *Adapter) Complete(ctx context.Context, req output.CompletionRequest) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
		StopSequences: req.Stop,
		Temperature:   anthropic.Float(req.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("%w: anthropic messages request failed: %v", entity.ErrCompletionService, err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}

	if a.logger != nil {
		a.logger.Debug("Completion received",
			"model", string(a.model),
			"inputTokens", msg.Usage.InputTokens,
			"outputTokens", msg.Usage.OutputTokens,
			"stopReason", string(msg.StopReason))
	}

	return stopseq.Truncate(text.String(), req.Stop), nil
}
