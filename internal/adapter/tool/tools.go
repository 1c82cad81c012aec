package tool

import (
	"context"
	"time"

	"data-agent/internal/application/port/output"
	"data-agent/internal/domain/entity"
	"data-agent/internal/infrastructure/chart"
)

// CodeRunner executes a snippet in the shared analysis namespace.
type CodeRunner interface {
	Execute(ctx context.Context, code string) entity.Observation
}

type PythonExecutorTool struct {
	runner CodeRunner
	logger output.LoggerPort
}

func NewPythonExecutorTool(runner CodeRunner, logger output.LoggerPort) *PythonExecutorTool {
	return &PythonExecutorTool{runner: runner, logger: logger}
}

func (t *PythonExecutorTool) Name() entity.ToolName { return entity.ToolPythonExecutor }
func (t *PythonExecutorTool) Description() string {
	return "Runs Python-style code to explore and analyse the loaded table. Use it to answer ANY question about the data. " +
		"The table is already loaded in the variable `df` (df.shape, df.columns, df.head(), df[\"col\"].mean(), df.describe(), " +
		"df.value_counts(\"col\"), df.groupby(\"col\").sum(\"other\"), df.filter(lambda r: ...), df.sort_values(\"col\")). " +
		"Modules `math`, `json` and `stats` are available. Variables persist between calls. " +
		"The code MUST use print() so the result comes back as an observation. Example: print(df.describe())"
}

func (t *PythonExecutorTool) Invoke(ctx context.Context, input string) (entity.Observation, error) {
	start := time.Now()
	obs := t.runner.Execute(ctx, input)
	t.logger.Debug("Snippet executed",
		"tool", t.Name(),
		"inputLen", len(input),
		"failed", obs.Failed(),
		"duration", time.Since(start))
	return obs, nil
}

type ChartGeneratorTool struct {
	renderer *chart.Renderer
	logger   output.LoggerPort
}

func NewChartGeneratorTool(renderer *chart.Renderer, logger output.LoggerPort) *ChartGeneratorTool {
	return &ChartGeneratorTool{renderer: renderer, logger: logger}
}

func (t *ChartGeneratorTool) Name() entity.ToolName { return entity.ToolChartGenerator }
func (t *ChartGeneratorTool) Description() string {
	return "Draws exactly one chart from the data in `df` and saves it as an image. The input is code that calls the `plt` module: " +
		"plt.plot(x, y, label=...), plt.scatter(x, y), plt.bar(labels, values), plt.hist(values, bins=10), plt.pie(labels, values), " +
		"plt.title(s), plt.xlabel(s), plt.ylabel(s). Line and scatter plots may share one chart; bar, hist and pie must be alone. " +
		"Variables from earlier python_code_executor calls are visible. " +
		"The observation contains a [CHART:...] marker; copy it unchanged into your Final Answer to show the chart."
}

func (t *ChartGeneratorTool) Invoke(ctx context.Context, input string) (entity.Observation, error) {
	start := time.Now()
	obs, err := t.renderer.Render(ctx, input)
	if err != nil {
		return entity.Observation{}, err
	}
	t.logger.Debug("Chart snippet executed",
		"tool", t.Name(),
		"inputLen", len(input),
		"failed", obs.Failed(),
		"duration", time.Since(start))
	return obs, nil
}
