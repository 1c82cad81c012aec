package di

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"data-agent/internal/application/port/output"
	"data-agent/internal/domain/entity"
	"data-agent/internal/infrastructure/chart"
	"data-agent/internal/infrastructure/llm/langchain"
	"data-agent/internal/infrastructure/llm/openaicompat"
	"data-agent/internal/usecase/executor"
)

const (
	ProviderAnthropic = "anthropic"

	// FakeResponseSeparator splits LLM_FAKE_RESPONSES into scripted replies.
	FakeResponseSeparator = "||"
)

type Config struct {
	LLMProvider      string
	LLMAPIKey        string
	LLMModel         string
	LLMBaseURL       string
	LLMTemperature   float64
	LLMFakeResponses []string

	MaxIterations     int
	EarlyStopping     executor.EarlyStopping
	MaxDuration       time.Duration
	MaxObservationLen int
	LimitMessage      string
	ChatLimitNotice   string

	SandboxMaxSteps int

	ChartMode   entity.ChartKind
	ChartDir    string
	ChartWidth  int
	ChartHeight int

	HistoryDB string

	LogLevel   string
	LogDir     string
	LogConsole bool

	HTTPAddr string
}

// ConfigurationError lists every problem found in a Config.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

func (e *ConfigurationError) Unwrap() error {
	return entity.ErrConfiguration
}

// LoadConfig reads every setting, collecting unparseable values instead of
// stopping at the first one.
func LoadConfig(env output.ConfigPort) (Config, error) {
	var problems []string
	note := func(err error) {
		if err != nil {
			problems = append(problems, err.Error())
		}
	}

	cfg := Config{
		LLMProvider:     strings.ToLower(env.GetOr("LLM_PROVIDER", openaicompat.ProviderOpenRouter)),
		LLMAPIKey:       env.Get("LLM_API_KEY"),
		LLMModel:        env.Get("LLM_MODEL"),
		LLMBaseURL:      env.Get("LLM_BASE_URL"),
		EarlyStopping:   executor.EarlyStopping(strings.ToLower(env.GetOr("AGENT_EARLY_STOPPING", string(executor.EarlyStopForce)))),
		LimitMessage:    env.Get("AGENT_LIMIT_MESSAGE"),
		ChatLimitNotice: env.Get("CHAT_LIMIT_NOTICE"),
		ChartMode:       entity.ChartKind(strings.ToLower(env.GetOr("CHART_MODE", string(entity.ChartFile)))),
		ChartDir:        env.GetOr("CHART_DIR", "charts"),
		HistoryDB:       env.GetOr("HISTORY_DB", "data/history.db"),
		LogLevel:        env.GetOr("LOG_LEVEL", "info"),
		LogDir:          env.GetOr("LOG_DIR", "logs"),
		LogConsole:      true,
		HTTPAddr:        env.GetOr("HTTP_ADDR", ":8080"),
	}

	if raw := env.Get("LLM_FAKE_RESPONSES"); raw != "" {
		for _, r := range strings.Split(raw, FakeResponseSeparator) {
			cfg.LLMFakeResponses = append(cfg.LLMFakeResponses, strings.TrimSpace(r))
		}
	}

	var err error
	cfg.LLMTemperature, err = env.GetFloat("LLM_TEMPERATURE", 0)
	note(err)
	cfg.MaxIterations, err = env.GetInt("AGENT_MAX_ITERATIONS", executor.DefaultMaxIterations)
	note(err)
	cfg.MaxDuration, err = env.GetDuration("AGENT_MAX_DURATION", 0)
	note(err)
	cfg.MaxObservationLen, err = env.GetInt("AGENT_MAX_OBSERVATION", executor.DefaultMaxObservationLen)
	note(err)
	cfg.SandboxMaxSteps, err = env.GetInt("SANDBOX_MAX_STEPS", 0)
	note(err)
	cfg.ChartWidth, err = env.GetInt("CHART_WIDTH", chart.DefaultWidth)
	note(err)
	cfg.ChartHeight, err = env.GetInt("CHART_HEIGHT", chart.DefaultHeight)
	note(err)

	if len(problems) > 0 {
		return cfg, &ConfigurationError{Problems: problems}
	}
	return cfg, nil
}

// Validate reports every problem at once; nothing is built from a Config
// that fails it.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch c.LLMProvider {
	case openaicompat.ProviderOpenAI, openaicompat.ProviderGroq, openaicompat.ProviderOpenRouter,
		ProviderAnthropic, langchain.ProviderGemini:
		if c.LLMAPIKey == "" {
			add("LLM_API_KEY is required for provider %q", c.LLMProvider)
		}
		if c.LLMModel == "" && c.LLMProvider != ProviderAnthropic {
			add("LLM_MODEL is required for provider %q", c.LLMProvider)
		}
	case langchain.ProviderOllama:
		if c.LLMModel == "" {
			add("LLM_MODEL is required for provider %q", c.LLMProvider)
		}
	case langchain.ProviderFake:
		if len(c.LLMFakeResponses) == 0 {
			add("LLM_FAKE_RESPONSES is required for provider %q", c.LLMProvider)
		}
	default:
		add("unknown LLM_PROVIDER %q", c.LLMProvider)
	}

	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		add("LLM_TEMPERATURE must be between 0 and 2, got %v", c.LLMTemperature)
	}
	if c.MaxIterations < 1 || c.MaxIterations > executor.MaxAllowedIterations {
		add("AGENT_MAX_ITERATIONS must be between 1 and %d, got %d", executor.MaxAllowedIterations, c.MaxIterations)
	}
	if c.EarlyStopping != executor.EarlyStopForce && c.EarlyStopping != executor.EarlyStopGenerate {
		add("AGENT_EARLY_STOPPING must be %q or %q, got %q", executor.EarlyStopForce, executor.EarlyStopGenerate, c.EarlyStopping)
	}
	if c.MaxDuration < 0 {
		add("AGENT_MAX_DURATION must not be negative")
	}
	if c.MaxObservationLen < 1 {
		add("AGENT_MAX_OBSERVATION must be positive, got %d", c.MaxObservationLen)
	}
	if c.SandboxMaxSteps < 0 {
		add("SANDBOX_MAX_STEPS must not be negative")
	}
	switch c.ChartMode {
	case entity.ChartFile:
		if c.ChartDir == "" {
			add("CHART_DIR is required when CHART_MODE is %q", entity.ChartFile)
		}
	case entity.ChartEmbedded:
	default:
		add("CHART_MODE must be %q or %q, got %q", entity.ChartFile, entity.ChartEmbedded, c.ChartMode)
	}
	if c.ChartWidth < 100 || c.ChartHeight < 100 {
		add("CHART_WIDTH and CHART_HEIGHT must be at least 100, got %dx%d", c.ChartWidth, c.ChartHeight)
	}
	if c.HistoryDB == "" {
		add("HISTORY_DB is required")
	}

	if len(problems) > 0 {
		return &ConfigurationError{Problems: problems}
	}
	return nil
}

// IsConfigurationError reports whether err came from configuration checks.
func IsConfigurationError(err error) bool {
	return errors.Is(err, entity.ErrConfiguration)
}
