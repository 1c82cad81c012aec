// Package executor runs the reason/act loop for one question: it prompts
// the model, interprets its reply, invokes tools and stops on a final answer
// or when a bound is reached.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"data-agent/internal/application/port/input"
	"data-agent/internal/application/port/output"
	"data-agent/internal/domain/entity"
	"data-agent/internal/infrastructure/prompts"
	"data-agent/internal/usecase/interpreter"
)

var _ input.TurnRunner = (*UseCase)(nil)

type EarlyStopping string

const (
	EarlyStopForce    EarlyStopping = "force"
	EarlyStopGenerate EarlyStopping = "generate"
)

const (
	DefaultMaxIterations     = 3
	MaxAllowedIterations     = 50
	DefaultMaxObservationLen = 20000
	DefaultLimitMessage      = "The analysis did not finish within the step limit. Here is the last step of the reasoning:"

	truncatedSuffix   = "\n... (truncated)"
	finalInstruction  = "You have used all of your steps. Do not call any more tools; answer with what you already know."
	completionFailure = "Sorry, the language model service could not be reached, so the question was not answered. Details: %v"
	promptFailure     = "Sorry, the agent could not prepare its request, so the question was not answered. Details: %v"
	toolFailure       = "Sorry, the %s tool could not run, so the question was not answered. Details: %v"
)

type Config struct {
	MaxIterations     int
	MaxObservationLen int
	EarlyStopping     EarlyStopping
	MaxDuration       time.Duration
	LimitMessage      string
	Temperature       float64
}

func (c Config) withDefaults() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.MaxObservationLen <= 0 {
		c.MaxObservationLen = DefaultMaxObservationLen
	}
	if c.EarlyStopping == "" {
		c.EarlyStopping = EarlyStopForce
	}
	if c.LimitMessage == "" {
		c.LimitMessage = DefaultLimitMessage
	}
	return c
}

// DatasetSource exposes the table currently bound to the tools.
type DatasetSource interface {
	Dataset() *entity.Dataset
}

type UseCase struct {
	llm      output.CompletionPort
	tools    output.ToolRegistry
	prompts  *prompts.Generator
	dataset  DatasetSource
	progress output.ProgressPort
	logger   output.LoggerPort
	cfg      Config
	now      func() time.Time
}

func New(
	llm output.CompletionPort,
	tools output.ToolRegistry,
	generator *prompts.Generator,
	dataset DatasetSource,
	progress output.ProgressPort,
	logger output.LoggerPort,
	cfg Config,
) *UseCase {
	if progress == nil {
		progress = nopProgress{}
	}
	return &UseCase{
		llm:      llm,
		tools:    tools,
		prompts:  generator,
		dataset:  dataset,
		progress: progress,
		logger:   logger,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}
}

func (uc *UseCase) Config() Config {
	return uc.cfg
}

// turn is the state of one RunTurn call.
type turn struct {
	question string
	history  []entity.ChatMessage
	steps    []entity.Step
	charts   []entity.ChartRef
	started  time.Time
}

func (uc *UseCase) RunTurn(ctx context.Context, question string, history []entity.ChatMessage) entity.TurnResult {
	t := &turn{question: question, history: history, started: uc.now()}
	uc.logger.Info("Turn started", "questionLen", len(question), "historyLen", len(history), "maxIterations", uc.cfg.MaxIterations)

	for iteration := 1; ; iteration++ {
		if uc.cfg.MaxDuration > 0 && uc.now().Sub(t.started) >= uc.cfg.MaxDuration {
			uc.logger.Warn("Turn time limit reached", "elapsed", uc.now().Sub(t.started), "steps", len(t.steps))
			return uc.stopAtLimit(ctx, t, entity.StopTimeLimit)
		}

		uc.progress.ShowIteration(ctx, iteration, uc.cfg.MaxIterations)
		uc.logger.Debug("Starting iteration", "iteration", iteration)

		prompt, err := uc.prompts.Render(uc.promptData(t))
		if err != nil {
			uc.logger.Error("Prompt rendering failed", "iteration", iteration, "error", err)
			return uc.fail(t, fmt.Sprintf(promptFailure, err), fmt.Errorf("render prompt: %w", err))
		}

		raw, err := uc.llm.Complete(ctx, output.CompletionRequest{
			Prompt:      prompt,
			Stop:        []string{interpreter.StopSequence},
			Temperature: uc.cfg.Temperature,
		})
		if err != nil {
			uc.logger.Error("Completion failed", "iteration", iteration, "error", err)
			return uc.fail(t, fmt.Sprintf(completionFailure, err), wrapAs(err, entity.ErrCompletionService))
		}

		decision := interpreter.Parse(raw)
		if thought := thoughtOf(raw); thought != "" {
			uc.progress.ShowThinking(ctx, thought)
		}

		if decision.IsFinal() {
			uc.logger.Info("Turn answered", "iterations", iteration, "steps", len(t.steps))
			return uc.finish(t, decision.Text, entity.StopAnswered, nil)
		}

		obs, err := uc.executeTool(ctx, decision)
		if err != nil {
			obs = entity.ErrorObservation(err.Error(), err)
			t.record(decision, raw, obs)
			return uc.fail(t, fmt.Sprintf(toolFailure, decision.Tool, err), wrapAs(err, entity.ErrToolInfrastructure))
		}
		t.record(decision, raw, uc.truncate(obs))

		if len(t.steps) >= uc.cfg.MaxIterations {
			uc.logger.Warn("Iteration limit reached", "steps", len(t.steps))
			return uc.stopAtLimit(ctx, t, entity.StopIterationLimit)
		}
	}
}

func (t *turn) record(d interpreter.Decision, raw string, obs entity.Observation) {
	t.steps = append(t.steps, entity.Step{
		ActionName:   d.Tool,
		ActionInput:  d.Input,
		Observation:  obs,
		RawModelText: raw,
	})
	if obs.Chart != nil {
		t.charts = append(t.charts, *obs.Chart)
	}
}

func (uc *UseCase) promptData(t *turn) prompts.ReactPromptData {
	data := prompts.ReactData(uc.tools.List(), t.history, t.question, t.steps)
	data.MaxIterations = uc.cfg.MaxIterations
	if uc.dataset != nil {
		if ds := uc.dataset.Dataset(); ds != nil {
			data.Dataset = ds.Summary()
		}
	}
	return data
}

// executeTool resolves and invokes the requested tool. Problems with the
// snippet or the tool name come back as observations; the error return is
// reserved for tools that could not run at all.
func (uc *UseCase) executeTool(ctx context.Context, d interpreter.Decision) (entity.Observation, error) {
	tool, ok := uc.tools.Resolve(d.Tool)
	if !ok {
		uc.logger.Warn("Unknown tool called", "name", d.Tool)
		uc.progress.ShowToolResult(ctx, d.Tool, "unknown tool", true)
		return entity.ErrorObservation(
			fmt.Sprintf("no such tool %q; available tools: %s", d.Tool, strings.Join(uc.toolNames(), ", ")),
			fmt.Errorf("%w: %s", entity.ErrUnknownTool, d.Tool),
		), nil
	}

	uc.progress.ShowToolStart(ctx, d.Tool, d.Input)
	uc.logger.Info("Executing tool", "name", d.Tool, "inputLen", len(d.Input))

	start := uc.now()
	obs, err := tool.Invoke(ctx, d.Input)
	if err != nil {
		uc.logger.Error("Tool could not run", "name", d.Tool, "error", err)
		uc.progress.ShowToolResult(ctx, d.Tool, err.Error(), true)
		return entity.Observation{}, err
	}

	uc.logger.Debug("Tool completed",
		"name", d.Tool,
		"resultLen", len(obs.Text),
		"failed", obs.Failed(),
		"duration", uc.now().Sub(start))
	uc.progress.ShowToolResult(ctx, d.Tool, obs.Text, obs.Failed())
	return obs, nil
}

func (uc *UseCase) toolNames() []string {
	tools := uc.tools.List()
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name().String()
	}
	return names
}

func (uc *UseCase) truncate(obs entity.Observation) entity.Observation {
	if len(obs.Text) > uc.cfg.MaxObservationLen {
		cut := uc.cfg.MaxObservationLen
		for cut > 0 && !utf8.RuneStart(obs.Text[cut]) {
			cut--
		}
		obs.Text = obs.Text[:cut] + truncatedSuffix
	}
	return obs
}

// stopAtLimit ends a turn that ran out of steps or time, keeping the work
// already done in the final text.
func (uc *UseCase) stopAtLimit(ctx context.Context, t *turn, reason entity.StopReason) entity.TurnResult {
	if uc.cfg.EarlyStopping == EarlyStopGenerate {
		if text, ok := uc.generateFinal(ctx, t); ok {
			return uc.finish(t, text, reason, nil)
		}
	}
	return uc.finish(t, uc.forcedFinal(t), reason, nil)
}

func (uc *UseCase) generateFinal(ctx context.Context, t *turn) (string, bool) {
	prompt, err := uc.prompts.RenderFinal(uc.promptData(t), finalInstruction)
	if err != nil {
		uc.logger.Warn("Final answer prompt failed", "error", err)
		return "", false
	}

	raw, err := uc.llm.Complete(ctx, output.CompletionRequest{
		Prompt:      prompt,
		Stop:        []string{interpreter.StopSequence},
		Temperature: uc.cfg.Temperature,
	})
	if err != nil {
		uc.logger.Warn("Final answer completion failed", "error", err)
		return "", false
	}

	// The prompt already ends with the final answer cue, so a reply without
	// tool directives is the answer itself.
	if !strings.Contains(raw, interpreter.FinalAnswerMarker) && !strings.Contains(raw, interpreter.ActionMarker) {
		raw = interpreter.FinalAnswerMarker + " " + raw
	}
	d, err := interpreter.ParseStrict(raw)
	if err != nil || !d.IsFinal() || d.Text == "" {
		uc.logger.Warn("Final answer completion was not an answer", "rawLen", len(raw))
		return "", false
	}
	return d.Text, true
}

func (uc *UseCase) forcedFinal(t *turn) string {
	var b strings.Builder
	b.WriteString(uc.cfg.LimitMessage)

	last, ok := lastStep(t.steps)
	if !ok {
		return b.String()
	}
	if thought := thoughtOf(last.RawModelText); thought != "" {
		b.WriteString("\n\n")
		b.WriteString(thought)
	}
	b.WriteString("\n\n")
	b.WriteString(last.Observation.Text)
	return b.String()
}

func (uc *UseCase) finish(t *turn, text string, reason entity.StopReason, err error) entity.TurnResult {
	uc.logger.Info("Turn finished", "reason", reason, "steps", len(t.steps), "elapsed", uc.now().Sub(t.started), "failed", err != nil)
	return entity.TurnResult{
		FinalText:     entity.ExpandHandles(text, t.charts),
		Steps:         t.steps,
		StoppedReason: reason,
		Err:           err,
	}
}

func (uc *UseCase) fail(t *turn, text string, err error) entity.TurnResult {
	return uc.finish(t, text, entity.StopAnswered, err)
}

func wrapAs(err, sentinel error) error {
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}

func lastStep(steps []entity.Step) (entity.Step, bool) {
	if len(steps) == 0 {
		return entity.Step{}, false
	}
	return steps[len(steps)-1], true
}

// thoughtOf returns the reasoning that precedes the first directive.
func thoughtOf(raw string) string {
	end := len(raw)
	for _, marker := range []string{interpreter.ActionMarker, interpreter.FinalAnswerMarker} {
		if i := strings.Index(raw, marker); i >= 0 && i < end {
			end = i
		}
	}
	thought := strings.TrimSpace(raw[:end])
	return strings.TrimSpace(strings.TrimPrefix(thought, interpreter.ThoughtMarker))
}

type nopProgress struct{}

func (nopProgress) ShowIteration(context.Context, int, int)             {}
func (nopProgress) ShowThinking(context.Context, string)                {}
func (nopProgress) ShowToolStart(context.Context, string, string)       {}
func (nopProgress) ShowToolResult(context.Context, string, string, bool) {}
