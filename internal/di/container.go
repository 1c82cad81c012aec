// Package di wires configuration into a ready chat service.
package di

import (
	"context"
	"fmt"

	"data-agent/internal/adapter/httpapi"
	"data-agent/internal/adapter/tool"
	"data-agent/internal/application/port/output"
	"data-agent/internal/application/service"
	"data-agent/internal/domain/entity"
	"data-agent/internal/infrastructure/chart"
	"data-agent/internal/infrastructure/history"
	"data-agent/internal/infrastructure/llm/claude"
	"data-agent/internal/infrastructure/llm/langchain"
	"data-agent/internal/infrastructure/llm/openaicompat"
	"data-agent/internal/infrastructure/logger"
	"data-agent/internal/infrastructure/prompts"
	"data-agent/internal/infrastructure/sandbox"
	"data-agent/internal/usecase/chat"
	"data-agent/internal/usecase/executor"
)

type Container struct {
	Config  Config
	Logger  output.LoggerPort
	LLM     output.CompletionPort
	Session *sandbox.Session
	Tools   *service.ToolRegistryImpl
	Runner  *executor.UseCase
	History *history.SQLiteStore
	Chat    *chat.Service
}

// NewContainer validates cfg and builds every component around ds. progress
// may be nil when nobody watches turns live.
func NewContainer(ctx context.Context, cfg Config, ds *entity.Dataset, progress output.ProgressPort) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if ds == nil {
		return nil, &ConfigurationError{Problems: []string{"a dataset is required"}}
	}

	log, err := logger.NewLoggerAdapter(logger.Config{
		Level:   cfg.LogLevel,
		Console: cfg.LogConsole,
		Dir:     cfg.LogDir,
		Name:    "agent",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	c := &Container{Config: cfg, Logger: log}
	if err := c.build(ctx, ds, progress); err != nil {
		c.Close()
		return nil, err
	}

	log.Info("Container ready",
		"provider", cfg.LLMProvider,
		"dataset", ds.Summary(),
		"maxIterations", cfg.MaxIterations,
		"chartMode", cfg.ChartMode)
	return c, nil
}

func (c *Container) build(ctx context.Context, ds *entity.Dataset, progress output.ProgressPort) error {
	cfg := c.Config

	llm, err := newCompletion(ctx, cfg, c.Logger)
	if err != nil {
		return err
	}
	c.LLM = llm

	c.Session, err = sandbox.NewSession(ds, sandbox.Config{MaxSteps: uint64(cfg.SandboxMaxSteps)}, c.Logger.WithField("component", "sandbox"))
	if err != nil {
		return fmt.Errorf("failed to create sandbox: %w", err)
	}

	store, err := chart.NewStore(cfg.ChartMode, cfg.ChartDir)
	if err != nil {
		return err
	}
	renderer := chart.NewRenderer(c.Session, store, chart.Config{
		Width:  cfg.ChartWidth,
		Height: cfg.ChartHeight,
	}, c.Logger.WithField("component", "chart"))

	c.Tools = service.NewToolRegistry()
	if err := registerTools(c.Tools, c.Session, renderer, c.Logger); err != nil {
		return err
	}

	generator, err := prompts.NewDefaultGenerator()
	if err != nil {
		return fmt.Errorf("failed to load prompts: %w", err)
	}

	c.Runner = executor.New(llm, c.Tools, generator, c.Session, progress, c.Logger.WithField("component", "executor"), executor.Config{
		MaxIterations:     cfg.MaxIterations,
		MaxObservationLen: cfg.MaxObservationLen,
		EarlyStopping:     cfg.EarlyStopping,
		MaxDuration:       cfg.MaxDuration,
		LimitMessage:      cfg.LimitMessage,
		Temperature:       cfg.LLMTemperature,
	})

	c.History, err = history.Open(ctx, cfg.HistoryDB)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}

	c.Chat = chat.NewService(c.Runner, c.History, c.Session, c.Logger.WithField("component", "chat"), cfg.ChatLimitNotice)
	return nil
}

func newCompletion(ctx context.Context, cfg Config, log output.LoggerPort) (output.CompletionPort, error) {
	log = log.WithField("provider", cfg.LLMProvider)

	switch cfg.LLMProvider {
	case openaicompat.ProviderOpenAI, openaicompat.ProviderGroq, openaicompat.ProviderOpenRouter:
		llmCfg, err := openaicompat.DefaultConfig(cfg.LLMProvider, cfg.LLMAPIKey, cfg.LLMModel)
		if err != nil {
			return nil, err
		}
		if cfg.LLMBaseURL != "" {
			llmCfg.BaseURL = cfg.LLMBaseURL
		}
		llmCfg.Logger = log
		return openaicompat.NewAdapter(llmCfg), nil
	case ProviderAnthropic:
		return claude.NewAdapter(claude.Config{
			APIKey:  cfg.LLMAPIKey,
			Model:   cfg.LLMModel,
			BaseURL: cfg.LLMBaseURL,
			Logger:  log,
		}), nil
	default:
		adapter, err := langchain.NewAdapter(ctx, langchain.Config{
			Provider:  cfg.LLMProvider,
			APIKey:    cfg.LLMAPIKey,
			Model:     cfg.LLMModel,
			BaseURL:   cfg.LLMBaseURL,
			Responses: cfg.LLMFakeResponses,
			Logger:    log,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create %s client: %w", cfg.LLMProvider, err)
		}
		return adapter, nil
	}
}

func registerTools(registry *service.ToolRegistryImpl, session *sandbox.Session, renderer *chart.Renderer, log output.LoggerPort) error {
	tools := []output.ToolPort{
		tool.NewPythonExecutorTool(session, log),
		tool.NewChartGeneratorTool(renderer, log),
	}
	for _, t := range tools {
		if err := registry.Register(t); err != nil {
			return fmt.Errorf("failed to register tool: %w", err)
		}
	}
	return nil
}

// HTTPServer exposes the chat service over HTTP. Charts are served from the
// chart directory only in file mode.
func (c *Container) HTTPServer() *httpapi.Server {
	chartDir := ""
	if c.Config.ChartMode == entity.ChartFile {
		chartDir = c.Config.ChartDir
	}
	return httpapi.NewServer(c.Chat, c.History, chartDir, c.Logger.WithField("component", "http"))
}

func (c *Container) Close() {
	if c.History != nil {
		if err := c.History.Close(); err != nil {
			c.Logger.Warn("Failed to close history", "error", err)
		}
	}
	if c.Logger != nil {
		c.Logger.Close()
	}
}
