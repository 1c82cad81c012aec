package sandbox

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

type PlotKind string

const (
	PlotLine    PlotKind = "line"
	PlotScatter PlotKind = "scatter"
	PlotBar     PlotKind = "bar"
	PlotHist    PlotKind = "hist"
	PlotPie     PlotKind = "pie"
)

const defaultBins = 10

// Plot is one call recorded on a figure. X/Y hold line and scatter data,
// Labels/Values hold bar and pie data, Values/Bins hold histogram data.
type Plot struct {
	Kind   PlotKind
	Label  string
	X      []float64
	Y      []float64
	Labels []string
	Values []float64
	Bins   int
}

var openFigures atomic.Int64

// Figure is the drawing surface of one chart request. It only records plot
// calls; rasterizing is left to the chart renderer.
type Figure struct {
	mu     sync.Mutex
	closed bool

	Title  string
	XLabel string
	YLabel string
	Plots  []Plot
}

func NewFigure() *Figure {
	openFigures.Add(1)
	return &Figure{}
}

// OpenFigures reports how many figures have been allocated and not closed.
func OpenFigures() int {
	return int(openFigures.Load())
}

// Close releases the surface. Plot calls made afterwards fail, so a plt
// reference kept in the namespace cannot draw on a finished chart.
func (f *Figure) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	openFigures.Add(-1)
}

func (f *Figure) add(p Plot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errFigureClosed
	}
	f.Plots = append(f.Plots, p)
	return nil
}

func (f *Figure) set(apply func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errFigureClosed
	}
	apply()
	return nil
}

// Validate checks that the figure describes exactly one chart: at least one
// plot, and either line/scatter series sharing axes or a single bar,
// histogram or pie plot.
func (f *Figure) Validate() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.Plots) == 0 {
		return errors.New("the code did not draw anything; call plt.plot, plt.scatter, plt.bar, plt.hist or plt.pie")
	}
	for _, p := range f.Plots {
		for _, xs := range [][]float64{p.X, p.Y, p.Values} {
			if err := requireFinite(string(p.Kind), xs); err != nil {
				return err
			}
		}
		switch p.Kind {
		case PlotLine, PlotScatter:
			continue
		default:
			if len(f.Plots) > 1 {
				return fmt.Errorf("a %s plot must be the only plot in the chart, got %d plots; produce exactly one chart", p.Kind, len(f.Plots))
			}
		}
	}
	return nil
}

var (
	errFigureClosed = errors.New("plt: this figure is already closed")
	errNoFigure     = errors.New("plt is only available inside the chart_generator tool; send plotting code there")
)

// pltModule binds the plotting surface to fig. A nil figure yields a module
// whose drawing functions all fail with a pointer to the chart tool.
func pltModule(fig *Figure) *starlarkstruct.Module {
	members := starlark.StringDict{
		"plot":    pltBuiltin("plot", fig, pltLine, "x", "y", "label"),
		"line":    pltBuiltin("line", fig, pltLine, "x", "y", "label"),
		"scatter": pltBuiltin("scatter", fig, pltScatter, "x", "y", "label"),
		"bar":     pltBuiltin("bar", fig, pltBar, "labels", "values", "label"),
		"hist":    pltBuiltin("hist", fig, pltHist, "values", "bins", "label"),
		"pie":     pltBuiltin("pie", fig, pltPie, "labels", "values", "label"),
		"title":   pltBuiltin("title", fig, pltText(func(f *Figure, s string) { f.Title = s })),
		"xlabel":  pltBuiltin("xlabel", fig, pltText(func(f *Figure, s string) { f.XLabel = s })),
		"ylabel":  pltBuiltin("ylabel", fig, pltText(func(f *Figure, s string) { f.YLabel = s })),
		"figure":  pltNoop("figure"),
		"show":    pltNoop("show"),
		"savefig": pltNoop("savefig"),
		"close":   pltNoop("close"),
	}
	return &starlarkstruct.Module{Name: "plt", Members: members}
}

type pltFunc func(fig *Figure, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) error

// pltBuiltin drops keyword arguments outside known, so styling options
// copied from matplotlib code (color=, alpha=, fontsize=) are ignored
// instead of failing the chart.
func pltBuiltin(name string, fig *Figure, fn pltFunc, known ...string) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if fig == nil {
			return nil, errNoFigure
		}
		if err := fn(fig, b, args, filterKwargs(kwargs, known)); err != nil {
			return nil, err
		}
		return starlark.None, nil
	})
}

func filterKwargs(kwargs []starlark.Tuple, known []string) []starlark.Tuple {
	var out []starlark.Tuple
	for _, kv := range kwargs {
		name, _ := starlark.AsString(kv[0])
		for _, k := range known {
			if k == name {
				out = append(out, kv)
				break
			}
		}
	}
	return out
}

// pltNoop accepts matplotlib calls that have no meaning here: the surface
// is allocated per request and saved by the renderer.
func pltNoop(name string) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
		return starlark.None, nil
	})
}

func pltXY(b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (Plot, error) {
	var xv, yv starlark.Value
	var label string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "x", &xv, "y?", &yv, "label?", &label); err != nil {
		return Plot{}, err
	}
	if yv == nil {
		xv, yv = nil, xv
	}
	y, err := plotFloats(b.Name(), yv)
	if err != nil {
		return Plot{}, err
	}
	x := make([]float64, len(y))
	for i := range x {
		x[i] = float64(i)
	}
	if xv != nil {
		if x, err = plotFloats(b.Name(), xv); err != nil {
			return Plot{}, fmt.Errorf("%w (use plt.bar for categorical x values)", err)
		}
	}
	if len(x) != len(y) {
		return Plot{}, fmt.Errorf("%s: x and y must have the same length, got %d and %d", b.Name(), len(x), len(y))
	}
	if len(y) == 0 {
		return Plot{}, fmt.Errorf("%s: no data to plot", b.Name())
	}
	return Plot{Label: label, X: x, Y: y}, nil
}

func pltLine(fig *Figure, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) error {
	p, err := pltXY(b, args, kwargs)
	if err != nil {
		return err
	}
	if len(p.Y) < 2 {
		return fmt.Errorf("%s: a line needs at least two points", b.Name())
	}
	p.Kind = PlotLine
	return fig.add(p)
}

func pltScatter(fig *Figure, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) error {
	p, err := pltXY(b, args, kwargs)
	if err != nil {
		return err
	}
	p.Kind = PlotScatter
	return fig.add(p)
}

func pltCategorical(kind PlotKind) pltFunc {
	return func(fig *Figure, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) error {
		var lv, vv starlark.Value
		var label string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "labels", &lv, "values", &vv, "label?", &label); err != nil {
			return err
		}
		labels, err := labelsOf(b.Name(), lv)
		if err != nil {
			return err
		}
		values, err := plotFloats(b.Name(), vv)
		if err != nil {
			return err
		}
		if len(labels) != len(values) {
			return fmt.Errorf("%s: labels and values must have the same length, got %d and %d", b.Name(), len(labels), len(values))
		}
		if len(values) == 0 {
			return fmt.Errorf("%s: no data to plot", b.Name())
		}
		return fig.add(Plot{Kind: kind, Label: label, Labels: labels, Values: values})
	}
}

var (
	pltBar = pltCategorical(PlotBar)
	pltPie = pltCategorical(PlotPie)
)

func pltHist(fig *Figure, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) error {
	var vv starlark.Value
	bins := defaultBins
	var label string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "values", &vv, "bins?", &bins, "label?", &label); err != nil {
		return err
	}
	var values []float64
	var err error
	if s, ok := vv.(*Series); ok {
		if values, err = s.numeric(b.Name()); err == nil {
			err = requireFinite(b.Name(), values)
		}
	} else {
		values, err = plotFloats(b.Name(), vv)
	}
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return fmt.Errorf("%s: no data to plot", b.Name())
	}
	if bins < 1 {
		return fmt.Errorf("%s: bins must be positive, got %d", b.Name(), bins)
	}
	return fig.add(Plot{Kind: PlotHist, Label: label, Values: values, Bins: bins})
}

func pltText(apply func(f *Figure, s string)) pltFunc {
	return func(fig *Figure, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) error {
		var s string
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &s); err != nil {
			return err
		}
		return fig.set(func() { apply(fig, s) })
	}
}
