package prompts

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"data-agent/internal/application/port/output"
	"data-agent/internal/domain/entity"
)

type ToolInfo struct {
	Name        string
	Description string
}

type ReactPromptData struct {
	Dataset       string
	MaxIterations int
	Tools         []ToolInfo
	ToolNames     string
	ChatHistory   string
	Input         string
	Scratchpad    string
}

// Generator renders the ReAct prompt. Templates are parsed once; trailing
// newlines are dropped so the model continues right after the last cue.
type Generator struct {
	react *template.Template
	final *template.Template
}

func NewGenerator(reactTemplate, finalTemplate string) (*Generator, error) {
	react, err := template.New("react").Parse(strings.TrimRight(reactTemplate, "\n"))
	if err != nil {
		return nil, fmt.Errorf("parse react prompt: %w", err)
	}
	final, err := template.New("final").Parse(strings.TrimRight(finalTemplate, "\n"))
	if err != nil {
		return nil, fmt.Errorf("parse final answer prompt: %w", err)
	}
	return &Generator{react: react, final: final}, nil
}

// NewDefaultGenerator uses the embedded templates.
func NewDefaultGenerator() (*Generator, error) {
	return NewGenerator(ReactPrompt, FinalAnswerPrompt)
}

// ReactData collects the template fields for one completion request. Tools
// keep registry order so the prompt is stable across iterations.
func ReactData(tools []output.ToolPort, history []entity.ChatMessage, question string, steps []entity.Step) ReactPromptData {
	infos := make([]ToolInfo, 0, len(tools))
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		infos = append(infos, ToolInfo{Name: t.Name().String(), Description: t.Description()})
		names = append(names, t.Name().String())
	}

	return ReactPromptData{
		Tools:       infos,
		ToolNames:   strings.Join(names, ", "),
		ChatHistory: FormatHistory(history),
		Input:       question,
		Scratchpad:  FormatScratchpad(steps),
	}
}

func (g *Generator) Render(data ReactPromptData) (string, error) {
	var buf bytes.Buffer
	if err := g.react.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render react prompt: %w", err)
	}
	return buf.String(), nil
}

// RenderFinal renders the prompt followed by the request for a final answer.
func (g *Generator) RenderFinal(data ReactPromptData, instruction string) (string, error) {
	prompt, err := g.Render(data)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	buf.WriteString(prompt)
	if err := g.final.Execute(&buf, struct{ Instruction string }{instruction}); err != nil {
		return "", fmt.Errorf("render final answer prompt: %w", err)
	}
	return buf.String(), nil
}

// FormatScratchpad renders the transcript as the model wrote it, each step
// followed by its observation and a fresh Thought cue.
func FormatScratchpad(steps []entity.Step) string {
	var b strings.Builder
	for _, s := range steps {
		b.WriteString(s.RawModelText)
		b.WriteString("\nObservation: ")
		b.WriteString(s.Observation.Text)
		b.WriteString("\nThought: ")
	}
	return b.String()
}

func FormatHistory(history []entity.ChatMessage) string {
	if len(history) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for i, m := range history {
		if i > 0 {
			b.WriteString("\n")
		}
		switch m.Role {
		case entity.RoleUser:
			b.WriteString("User: ")
		case entity.RoleAssistant:
			b.WriteString("Assistant: ")
		default:
			b.WriteString(string(m.Role) + ": ")
		}
		b.WriteString(m.Content)
	}
	return b.String()
}
