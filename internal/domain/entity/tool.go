package entity

type ToolName string

const (
	ToolPythonExecutor ToolName = "python_code_executor"
	ToolChartGenerator ToolName = "chart_generator"
)

func (t ToolName) String() string {
	return string(t)
}
