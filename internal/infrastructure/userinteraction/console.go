package userinteraction

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"data-agent/internal/application/port/output"
	"data-agent/internal/domain/entity"
	"data-agent/internal/usecase/assembler"

	"github.com/fatih/color"
)

var _ output.ProgressPort = (*ConsoleUserInteraction)(nil)

type ConsoleUserInteraction struct {
	reader *bufio.Reader
	out    io.Writer
}

func NewConsoleUserInteraction() *ConsoleUserInteraction {
	return NewConsole(os.Stdin, color.Output)
}

func NewConsole(in io.Reader, out io.Writer) *ConsoleUserInteraction {
	return &ConsoleUserInteraction{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// ReadLine prints prompt and returns the next trimmed input line. io.EOF is
// returned once input is exhausted.
func (u *ConsoleUserInteraction) ReadLine(ctx context.Context, prompt string) (string, error) {
	color.New(color.FgMagenta, color.Bold).Fprint(u.out, prompt)

	line, err := u.reader.ReadString('\n')
	if err != nil {
		if err == io.EOF && strings.TrimSpace(line) != "" {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (u *ConsoleUserInteraction) ShowIteration(ctx context.Context, iteration, maxIterations int) {
	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Fprintf(u.out, "\n━━━ Step %d/%d ━━━\n", iteration, maxIterations)
}

func (u *ConsoleUserInteraction) ShowThinking(ctx context.Context, content string) {
	if content == "" {
		return
	}

	color.New(color.FgBlue).Fprint(u.out, "💭 Thought: ")
	color.New(color.Faint).Fprintln(u.out, truncate(content, 500))
}

func (u *ConsoleUserInteraction) ShowToolStart(ctx context.Context, toolName, input string) {
	icon, name := getToolDisplay(toolName)

	yellow := color.New(color.FgYellow, color.Bold)
	yellow.Fprintf(u.out, "%s %s\n", icon, name)

	dim := color.New(color.Faint)
	for _, line := range strings.Split(truncate(strings.TrimSpace(input), 400), "\n") {
		dim.Fprintf(u.out, "   %s\n", line)
	}
}

func (u *ConsoleUserInteraction) ShowToolResult(ctx context.Context, toolName, result string, isError bool) {
	if isError {
		color.New(color.FgRed).Fprint(u.out, "❌ Error: ")
		color.New(color.Faint).Fprintln(u.out, truncate(result, 300))
		return
	}

	color.New(color.FgGreen).Fprintf(u.out, "✓ %s\n", formatToolResult(toolName, result))
}

// ShowAnswer renders the final answer segment by segment.
func (u *ConsoleUserInteraction) ShowAnswer(resp assembler.Response, reason entity.StopReason) {
	fmt.Fprintln(u.out)
	if !reason.Finished() {
		color.New(color.FgYellow).Fprintln(u.out, "⚠ The analysis did not finish in time. Here is the last step of the reasoning:")
	}

	for _, seg := range resp.Segments {
		switch seg.Kind {
		case entity.SegmentChart:
			color.New(color.FgGreen, color.Bold).Fprintf(u.out, "📊 %s\n", describeChart(seg))
		default:
			fmt.Fprintln(u.out, seg.Value)
		}
	}
}

func (u *ConsoleUserInteraction) ShowError(err error) {
	color.New(color.FgRed, color.Bold).Fprintf(u.out, "Error: %v\n", err)
}

func (u *ConsoleUserInteraction) ShowInfo(format string, args ...any) {
	color.New(color.Faint).Fprintf(u.out, format+"\n", args...)
}

// ShowSteps prints the transcript of the last turn.
func (u *ConsoleUserInteraction) ShowSteps(steps []entity.Step) {
	if len(steps) == 0 {
		u.ShowInfo("No tool steps in the last turn.")
		return
	}
	for i, s := range steps {
		color.New(color.FgCyan).Fprintf(u.out, "Step %d: %s\n", i+1, s.ActionName)
		fmt.Fprintf(u.out, "  input:\n%s\n", indent(s.ActionInput))
		fmt.Fprintf(u.out, "  observation:\n%s\n", indent(truncate(s.Observation.Text, 1000)))
	}
}

func (u *ConsoleUserInteraction) ShowHistory(messages []entity.ChatMessage) {
	if len(messages) == 0 {
		u.ShowInfo("No messages yet.")
		return
	}
	for _, m := range messages {
		label := color.New(color.FgMagenta, color.Bold)
		if m.Role == entity.RoleAssistant {
			label = color.New(color.FgGreen, color.Bold)
		}
		label.Fprintf(u.out, "%s: ", m.Role)
		fmt.Fprintln(u.out, m.Content)
	}
}

func describeChart(seg entity.Segment) string {
	if seg.Chart != nil && seg.Chart.Kind == entity.ChartEmbedded {
		return fmt.Sprintf("chart (embedded PNG, %d bytes)", len(seg.Chart.Data))
	}
	return "chart saved to " + seg.Value
}

func getToolDisplay(toolName string) (string, string) {
	displays := map[entity.ToolName][2]string{
		entity.ToolPythonExecutor: {"🐍", "Running code"},
		entity.ToolChartGenerator: {"📊", "Drawing chart"},
	}

	if display, ok := displays[entity.ToolName(toolName)]; ok {
		return display[0], display[1]
	}
	return "🔧", toolName
}

func formatToolResult(toolName, result string) string {
	switch entity.ToolName(toolName) {
	case entity.ToolChartGenerator:
		if i := strings.Index(result, entity.ChartMarker); i >= 0 {
			return "Chart created " + result[i:]
		}
	}

	lines := strings.Split(strings.TrimSpace(result), "\n")
	if len(lines) > 1 {
		return fmt.Sprintf("%s (+%d lines)", truncate(lines[0], 100), len(lines)-1)
	}
	return truncate(result, 100)
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
