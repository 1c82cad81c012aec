package tool

import (
	"context"
	"errors"
	"testing"

	"data-agent/internal/application/port/output"
	"data-agent/internal/application/service"
	"data-agent/internal/domain/entity"
	"data-agent/internal/infrastructure/chart"
	"data-agent/internal/infrastructure/logger"
	"data-agent/internal/infrastructure/sandbox"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ output.ToolPort = (*PythonExecutorTool)(nil)
	_ output.ToolPort = (*ChartGeneratorTool)(nil)
)

func newTools(t *testing.T) (*PythonExecutorTool, *ChartGeneratorTool) {
	t.Helper()
	ds, err := entity.NewDataset("t.csv", []string{"x", "y"}, [][]string{{"1", "2"}, {"2", "4"}, {"3", "9"}})
	require.NoError(t, err)
	session, err := sandbox.NewSession(ds, sandbox.Config{}, logger.NewNop())
	require.NoError(t, err)
	renderer := chart.NewRenderer(session, chart.NewFileStore(t.TempDir()), chart.Config{}, logger.NewNop())
	return NewPythonExecutorTool(session, logger.NewNop()), NewChartGeneratorTool(renderer, logger.NewNop())
}

func TestTools_Register(t *testing.T) {
	py, ch := newTools(t)
	registry := service.NewToolRegistry()
	require.NoError(t, registry.Register(py))
	require.NoError(t, registry.Register(ch))

	assert.Equal(t, []string{"python_code_executor", "chart_generator"}, registry.Names())
	assert.Contains(t, py.Description(), "print()")
	assert.Contains(t, ch.Description(), "plt.bar")
}

func TestTools_SharedNamespace(t *testing.T) {
	py, ch := newTools(t)
	ctx := context.Background()

	obs, err := py.Invoke(ctx, `ys = df["y"].tolist()
print(len(ys))`)
	require.NoError(t, err)
	assert.Equal(t, "3", obs.Text)

	obs, err = ch.Invoke(ctx, `plt.plot(df["x"].tolist(), ys)`)
	require.NoError(t, err)
	require.False(t, obs.Failed(), obs.Text)
	require.NotNil(t, obs.Chart)
	assert.Contains(t, obs.Text, "[CHART:")
}

func TestTools_SnippetFailureIsObservation(t *testing.T) {
	py, _ := newTools(t)

	obs, err := py.Invoke(context.Background(), "print(undefined_name)")
	require.NoError(t, err)
	assert.True(t, obs.Failed())
	assert.True(t, errors.Is(obs.Err, entity.ErrToolExecution))
	assert.Contains(t, obs.Text, "undefined_name")
}

func TestTools_PlotFromExecutorPointsToChartTool(t *testing.T) {
	py, _ := newTools(t)

	obs, err := py.Invoke(context.Background(), "plt.plot([1, 2], [3, 4])")
	require.NoError(t, err)
	assert.True(t, obs.Failed())
	assert.Contains(t, obs.Text, "chart_generator")
}
