package di

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"data-agent/internal/domain/entity"
	"data-agent/internal/infrastructure/env"
	"data-agent/internal/usecase/executor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeEnv(t *testing.T, extra map[string]string) *env.EnvService {
	t.Helper()
	dir := t.TempDir()
	values := map[string]string{
		"LLM_PROVIDER":       "fake",
		"LLM_FAKE_RESPONSES": "Final Answer: hello || Final Answer: again",
		"CHART_DIR":          filepath.Join(dir, "charts"),
		"HISTORY_DB":         filepath.Join(dir, "history.db"),
	}
	for k, v := range extra {
		values[k] = v
	}
	return env.NewMapEnv(values)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(env.NewMapEnv(nil))
	require.NoError(t, err)

	assert.Equal(t, "openrouter", cfg.LLMProvider)
	assert.Equal(t, executor.DefaultMaxIterations, cfg.MaxIterations)
	assert.Equal(t, executor.EarlyStopForce, cfg.EarlyStopping)
	assert.Equal(t, entity.ChartFile, cfg.ChartMode)
	assert.Equal(t, "charts", cfg.ChartDir)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Zero(t, cfg.MaxDuration)
}

func TestLoadConfig_Values(t *testing.T) {
	cfg, err := LoadConfig(fakeEnv(t, map[string]string{
		"AGENT_MAX_ITERATIONS": "7",
		"AGENT_EARLY_STOPPING": "Generate",
		"AGENT_MAX_DURATION":   "90",
		"CHART_MODE":           "embedded",
		"LLM_TEMPERATURE":      "0.2",
	}))
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.MaxIterations)
	assert.Equal(t, executor.EarlyStopGenerate, cfg.EarlyStopping)
	assert.Equal(t, 90*time.Second, cfg.MaxDuration)
	assert.Equal(t, entity.ChartEmbedded, cfg.ChartMode)
	assert.InDelta(t, 0.2, cfg.LLMTemperature, 1e-9)
	assert.Equal(t, []string{"Final Answer: hello", "Final Answer: again"}, cfg.LLMFakeResponses)
}

func TestLoadConfig_CollectsParseErrors(t *testing.T) {
	_, err := LoadConfig(env.NewMapEnv(map[string]string{
		"AGENT_MAX_ITERATIONS": "many",
		"CHART_WIDTH":          "wide",
	}))
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrConfiguration)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Len(t, cfgErr.Problems, 2)
}

func TestValidate(t *testing.T) {
	base, err := LoadConfig(fakeEnv(t, nil))
	require.NoError(t, err)
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"iterations too low", func(c *Config) { c.MaxIterations = 0 }, "AGENT_MAX_ITERATIONS"},
		{"iterations too high", func(c *Config) { c.MaxIterations = 51 }, "AGENT_MAX_ITERATIONS"},
		{"unknown provider", func(c *Config) { c.LLMProvider = "carrier-pigeon" }, "LLM_PROVIDER"},
		{"missing key", func(c *Config) { c.LLMProvider = "openai"; c.LLMModel = "gpt-4o" }, "LLM_API_KEY"},
		{"missing fake responses", func(c *Config) { c.LLMFakeResponses = nil }, "LLM_FAKE_RESPONSES"},
		{"bad early stopping", func(c *Config) { c.EarlyStopping = "panic" }, "AGENT_EARLY_STOPPING"},
		{"bad chart mode", func(c *Config) { c.ChartMode = "svg" }, "CHART_MODE"},
		{"tiny chart", func(c *Config) { c.ChartWidth = 10 }, "CHART_WIDTH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, IsConfigurationError(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg, err := LoadConfig(fakeEnv(t, nil))
	require.NoError(t, err)
	cfg.MaxIterations = 0
	cfg.ChartMode = "svg"

	var cfgErr *ConfigurationError
	require.ErrorAs(t, cfg.Validate(), &cfgErr)
	assert.Len(t, cfgErr.Problems, 2)
}

func TestNewContainer(t *testing.T) {
	cfg, err := LoadConfig(fakeEnv(t, nil))
	require.NoError(t, err)
	cfg.LogConsole = false
	cfg.LogDir = ""

	ds, err := entity.NewDataset("t.csv", []string{"a"}, [][]string{{"1"}, {"2"}})
	require.NoError(t, err)

	c, err := NewContainer(context.Background(), cfg, ds, nil)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, []string{"python_code_executor", "chart_generator"}, c.Tools.Names())

	reply, err := c.Chat.Ask(context.Background(), "s1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", reply.Result.FinalText)
	assert.Equal(t, entity.StopAnswered, reply.Result.StoppedReason)

	msgs, err := c.Chat.History(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestNewContainer_RequiresDataset(t *testing.T) {
	cfg, err := LoadConfig(fakeEnv(t, nil))
	require.NoError(t, err)
	cfg.LogConsole = false
	cfg.LogDir = ""

	_, err = NewContainer(context.Background(), cfg, nil, nil)
	assert.ErrorIs(t, err, entity.ErrConfiguration)
}

func TestNewContainer_InvalidConfig(t *testing.T) {
	_, err := NewContainer(context.Background(), Config{}, nil, nil)
	assert.ErrorIs(t, err, entity.ErrConfiguration)
}
