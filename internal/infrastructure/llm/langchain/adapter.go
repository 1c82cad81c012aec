// Package langchain adapts langchaingo models (Gemini, Ollama and the
// scripted fake) to the completion port.
package langchain

import (
	"context"
	"fmt"

	"data-agent/internal/application/port/output"
	"data-agent/internal/domain/entity"
	"data-agent/internal/infrastructure/llm/stopseq"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/fake"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
)

var _ output.CompletionPort = (*Adapter)(nil)

const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderFake   = "fake"
)

type Config struct {
	Provider string
	APIKey   string
	Model    string
	// BaseURL is the Ollama server URL.
	BaseURL string
	// Responses are replayed in order by the fake provider.
	Responses []string
	Logger    output.LoggerPort
}

type Adapter struct {
	model    llms.Model
	provider string
	logger   output.LoggerPort
}

func NewAdapter(ctx context.Context, cfg Config) (*Adapter, error) {
	var (
		model llms.Model
		err   error
	)

	switch cfg.Provider {
	case ProviderGemini:
		opts := []googleai.Option{googleai.WithAPIKey(cfg.APIKey)}
		if cfg.Model != "" {
			opts = append(opts, googleai.WithDefaultModel(cfg.Model))
		}
		model, err = googleai.New(ctx, opts...)
	case ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		model, err = ollama.New(opts...)
	case ProviderFake:
		if len(cfg.Responses) == 0 {
			return nil, fmt.Errorf("%w: fake provider needs at least one scripted response", entity.ErrConfiguration)
		}
		model = fake.NewFakeLLM(cfg.Responses)
	default:
		return nil, fmt.Errorf("%w: unknown langchain provider %q", entity.ErrConfiguration, cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: create %s client: %v", entity.ErrConfiguration, cfg.Provider, err)
	}

	return NewFromModel(model, cfg.Provider, cfg.Logger), nil
}

// NewFromModel wraps an already constructed model.
func NewFromModel(model llms.Model, provider string, logger output.LoggerPort) *Adapter {
	return &Adapter{model: model, provider: provider, logger: logger}
}

func (a *Adapter) Complete(ctx context.Context, req output.CompletionRequest) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, a.model, req.Prompt,
		llms.WithStopWords(req.Stop),
		llms.WithTemperature(req.Temperature),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %s completion failed: %v", entity.ErrCompletionService, a.provider, err)
	}

	if a.logger != nil {
		a.logger.Debug("Completion received", "provider", a.provider, "len", len(out))
	}
	return stopseq.Truncate(out, req.Stop), nil
}
