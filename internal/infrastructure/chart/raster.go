package chart

import (
	"bytes"
	"fmt"
	"math"

	"data-agent/internal/infrastructure/sandbox"

	"github.com/disintegration/imaging"
	gochart "github.com/wcharczuk/go-chart/v2"
)

const maxBars = 60

// rasterize draws a validated figure as PNG bytes without any display.
func rasterize(fig *sandbox.Figure, width, height int) ([]byte, error) {
	var buf bytes.Buffer
	first := fig.Plots[0]

	var err error
	switch first.Kind {
	case sandbox.PlotBar:
		err = barChart(fig.Title, fig.YLabel, first.Labels, first.Values, width, height).Render(gochart.PNG, &buf)
	case sandbox.PlotHist:
		var labels []string
		var counts []float64
		if labels, counts, err = histogram(first.Values, first.Bins); err == nil {
			err = barChart(fig.Title, fig.YLabel, labels, counts, width, height).Render(gochart.PNG, &buf)
		}
	case sandbox.PlotPie:
		var pie gochart.PieChart
		if pie, err = pieChart(fig.Title, first, width, height); err == nil {
			err = pie.Render(gochart.PNG, &buf)
		}
	default:
		err = seriesChart(fig, width, height).Render(gochart.PNG, &buf)
	}
	if err != nil {
		return nil, fmt.Errorf("render %s chart: %w", first.Kind, err)
	}
	return buf.Bytes(), nil
}

func seriesChart(fig *sandbox.Figure, width, height int) gochart.Chart {
	series := make([]gochart.Series, 0, len(fig.Plots))
	var xs, ys []float64
	for _, p := range fig.Plots {
		style := gochart.Style{}
		if p.Kind == sandbox.PlotScatter {
			style = gochart.Style{StrokeWidth: gochart.Disabled, DotWidth: 3}
		}
		series = append(series, gochart.ContinuousSeries{
			Name:    p.Label,
			Style:   style,
			XValues: p.X,
			YValues: p.Y,
		})
		xs = append(xs, p.X...)
		ys = append(ys, p.Y...)
	}

	graph := gochart.Chart{
		Title:  fig.Title,
		Width:  width,
		Height: height,
		XAxis:  gochart.XAxis{Name: fig.XLabel, Range: paddedRange(xs)},
		YAxis:  gochart.YAxis{Name: fig.YLabel, Range: paddedRange(ys)},
		Series: series,
	}
	if hasLabels(fig.Plots) {
		graph.Background = gochart.Style{Padding: gochart.Box{Top: 20, Left: 20}}
		graph.Elements = []gochart.Renderable{gochart.Legend(&graph)}
	}
	return graph
}

// paddedRange returns nil for data with spread, leaving go-chart to pick
// the range, and widens a single value so the axis is not degenerate.
func paddedRange(values []float64) gochart.Range {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi > lo {
		return nil
	}
	pad := math.Max(math.Abs(lo)*0.1, 1)
	return &gochart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}

func hasLabels(plots []sandbox.Plot) bool {
	for _, p := range plots {
		if p.Label != "" {
			return true
		}
	}
	return false
}

func barChart(title, yLabel string, labels []string, values []float64, width, height int) barRenderer {
	if len(values) > maxBars {
		return barRenderer{err: fmt.Errorf("%d bars is too many to read; aggregate to at most %d categories", len(values), maxBars)}
	}

	if err := checkFinite(values); err != nil {
		return barRenderer{err: err}
	}

	bars := make([]gochart.Value, len(values))
	lo, hi := 0.0, 0.0
	for i, v := range values {
		bars[i] = gochart.Value{Label: labels[i], Value: v}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		hi = lo + 1
	}

	slot := (width - 120) / len(bars)
	barWidth := int(float64(slot) * 0.7)
	if barWidth < 2 {
		barWidth = 2
	}

	return barRenderer{chart: gochart.BarChart{
		Title:      title,
		Width:      width,
		Height:     height,
		BarWidth:   barWidth,
		BarSpacing: max(slot-barWidth, 1),
		Background: gochart.Style{Padding: gochart.Box{Top: 40}},
		XAxis:      gochart.Style{TextRotationDegrees: rotationFor(len(bars))},
		YAxis: gochart.YAxis{
			Name:  yLabel,
			Range: &gochart.ContinuousRange{Min: lo, Max: hi},
		},
		Bars: bars,
	}}
}

// barRenderer lets barChart report input problems through Render, keeping
// the switch in rasterize uniform.
type barRenderer struct {
	chart gochart.BarChart
	err   error
}

func (b barRenderer) Render(rp gochart.RendererProvider, w *bytes.Buffer) error {
	if b.err != nil {
		return b.err
	}
	return b.chart.Render(rp, w)
}

func rotationFor(bars int) float64 {
	if bars > 8 {
		return 45
	}
	return 0
}

func pieChart(title string, p sandbox.Plot, width, height int) (gochart.PieChart, error) {
	values := make([]gochart.Value, len(p.Values))
	var total float64
	for i, v := range p.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return gochart.PieChart{}, fmt.Errorf("pie slice %q is not a finite number (%v)", p.Labels[i], v)
		}
		if v < 0 {
			return gochart.PieChart{}, fmt.Errorf("pie slice %q is negative (%v)", p.Labels[i], v)
		}
		total += v
		values[i] = gochart.Value{Label: p.Labels[i], Value: v}
	}
	if total == 0 {
		return gochart.PieChart{}, fmt.Errorf("pie chart needs at least one non-zero value")
	}
	return gochart.PieChart{
		Title:  title,
		Width:  width,
		Height: height,
		Values: values,
	}, nil
}

// histogram buckets values into bins of equal width between min and max.
func histogram(values []float64, bins int) ([]string, []float64, error) {
	if len(values) == 0 || bins < 1 {
		return nil, nil, fmt.Errorf("histogram needs values and at least one bin")
	}
	if err := checkFinite(values); err != nil {
		return nil, nil, err
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		return []string{formatEdge(lo)}, []float64{float64(len(values))}, nil
	}

	step := (hi - lo) / float64(bins)
	counts := make([]float64, bins)
	for _, v := range values {
		i := int((v - lo) / step)
		i = min(max(i, 0), bins-1)
		counts[i]++
	}

	labels := make([]string, bins)
	for i := range labels {
		labels[i] = formatEdge(lo+float64(i)*step) + "-" + formatEdge(lo+float64(i+1)*step)
	}
	return labels, counts, nil
}

// checkFinite keeps NaN and infinities away from go-chart, which cannot
// lay them out.
func checkFinite(values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("value %d is %v; only finite numbers can be drawn", i, v)
		}
	}
	return nil
}

func formatEdge(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

// fitWidth caps the image width and re-encodes as PNG.
func fitWidth(data []byte, maxWidth int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("image decode failed: %w", err)
	}

	if maxWidth > 0 && img.Bounds().Dx() > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}

	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("png encode failed: %w", err)
	}
	return buf.Bytes(), nil
}
