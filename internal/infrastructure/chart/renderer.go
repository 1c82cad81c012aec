// Package chart renders plotting snippets to PNG images headlessly.
package chart

import (
	"context"
	"fmt"
	"strings"

	"data-agent/internal/application/port/output"
	"data-agent/internal/domain/entity"
	"data-agent/internal/infrastructure/sandbox"
)

const (
	DefaultWidth    = 800
	DefaultHeight   = 500
	DefaultMaxWidth = 1024
)

// FigureExecutor runs a snippet with plt bound to a figure. The sandbox
// session implements it.
type FigureExecutor interface {
	ExecuteWithFigure(ctx context.Context, code string, fig *sandbox.Figure) entity.Observation
}

type Config struct {
	Width    int
	Height   int
	MaxWidth int
}

type Renderer struct {
	exec   FigureExecutor
	store  Store
	cfg    Config
	logger output.LoggerPort
}

func NewRenderer(exec FigureExecutor, store Store, cfg Config, logger output.LoggerPort) *Renderer {
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = DefaultHeight
	}
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = DefaultMaxWidth
	}
	return &Renderer{exec: exec, store: store, cfg: cfg, logger: logger}
}

// Render runs code on a fresh figure and persists the single chart it
// draws. Snippet and data problems come back as failed observations; the
// error return is reserved for storage faults.
func (r *Renderer) Render(ctx context.Context, code string) (entity.Observation, error) {
	fig := sandbox.NewFigure()
	defer fig.Close()

	obs := r.exec.ExecuteWithFigure(ctx, code, fig)
	if obs.Failed() {
		return obs, nil
	}

	if err := fig.Validate(); err != nil {
		return chartFailure(err), nil
	}

	png, err := rasterize(fig, r.cfg.Width, r.cfg.Height)
	if err != nil {
		return chartFailure(err), nil
	}
	if png, err = fitWidth(png, r.cfg.MaxWidth); err != nil {
		return chartFailure(err), nil
	}

	ref, err := r.store.Save(ctx, png)
	if err != nil {
		r.logger.Error("Chart storage failed", "error", err)
		return entity.Observation{}, fmt.Errorf("%w: %v", entity.ErrToolInfrastructure, err)
	}

	r.logger.Info("Chart rendered", "kind", ref.Kind, "path", ref.Path, "bytes", len(png))

	var text strings.Builder
	if obs.Text != sandbox.NoOutputMessage {
		text.WriteString(obs.Text)
		text.WriteString("\n")
	}
	fmt.Fprintf(&text, "Chart created. To show it, include this marker in your final answer exactly as written: %s", ref.Handle())

	return entity.Observation{Text: text.String(), Chart: &ref}, nil
}

func chartFailure(err error) entity.Observation {
	execErr := &sandbox.ExecError{Kind: sandbox.KindRuntime, Message: err.Error()}
	return entity.ErrorObservation("ChartError: "+err.Error(), execErr)
}
