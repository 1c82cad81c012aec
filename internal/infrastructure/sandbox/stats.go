package sandbox

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

var errEmpty = errors.New("no numeric values")

func sum(xs []float64) float64 {
	var total float64
	for _, x := range xs {
		total += x
	}
	return total
}

func mean(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return 0, errEmpty
	}
	return sum(xs) / float64(len(xs)), nil
}

func minMax(xs []float64) (float64, float64, error) {
	if len(xs) == 0 {
		return 0, 0, errEmpty
	}
	lo, hi := xs[0], xs[0]
	for _, x := range xs[1:] {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return lo, hi, nil
}

// variance is the sample variance (ddof=1), NaN for fewer than two values.
func variance(xs []float64) (float64, error) {
	m, err := mean(xs)
	if err != nil {
		return 0, err
	}
	if len(xs) < 2 {
		return math.NaN(), nil
	}
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return ss / float64(len(xs)-1), nil
}

func stddev(xs []float64) (float64, error) {
	v, err := variance(xs)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(v), nil
}

// quantile uses linear interpolation between closest ranks.
func quantile(xs []float64, q float64) (float64, error) {
	if len(xs) == 0 {
		return 0, errEmpty
	}
	if !(q >= 0 && q <= 1) {
		return 0, fmt.Errorf("quantile %v outside [0, 1]", q)
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac, nil
}

func median(xs []float64) (float64, error) {
	return quantile(xs, 0.5)
}

func pearson(xs, ys []float64) (float64, error) {
	if len(xs) != len(ys) {
		return 0, fmt.Errorf("length mismatch: %d vs %d", len(xs), len(ys))
	}
	mx, err := mean(xs)
	if err != nil {
		return 0, err
	}
	my, _ := mean(ys)

	var sxy, sxx, syy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return math.NaN(), nil
	}
	return sxy / math.Sqrt(sxx*syy), nil
}

// statsModule exposes the helpers above to snippets, accepting lists,
// tuples and Series.
var statsModule = &starlarkstruct.Module{
	Name: "stats",
	Members: starlark.StringDict{
		"sum":      reducer("sum", func(xs []float64) (float64, error) { return sum(xs), nil }),
		"mean":     reducer("mean", mean),
		"median":   reducer("median", median),
		"variance": reducer("variance", variance),
		"stdev":    reducer("stdev", stddev),
		"min": reducer("min", func(xs []float64) (float64, error) {
			lo, _, err := minMax(xs)
			return lo, err
		}),
		"max": reducer("max", func(xs []float64) (float64, error) {
			_, hi, err := minMax(xs)
			return hi, err
		}),
		"quantile": starlark.NewBuiltin("quantile", statsQuantile),
		"corr":     starlark.NewBuiltin("corr", statsCorr),
	},
}

func reducer(name string, fn func([]float64) (float64, error)) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var values starlark.Value
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &values); err != nil {
			return nil, err
		}
		xs, err := numericArg(b.Name(), values)
		if err != nil {
			return nil, err
		}
		r, err := fn(xs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		return starlark.Float(r), nil
	})
}

// numericArg skips missing values in a Series, mirroring the Series methods.
func numericArg(fnname string, v starlark.Value) ([]float64, error) {
	if s, ok := v.(*Series); ok {
		return s.numeric(fnname)
	}
	return floatsOf(fnname, v)
}

func statsQuantile(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var values, q starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "values", &values, "q", &q); err != nil {
		return nil, err
	}
	xs, err := numericArg(b.Name(), values)
	if err != nil {
		return nil, err
	}
	qf, ok := starlark.AsFloat(q)
	if !ok {
		return nil, fmt.Errorf("%s: q must be a number, got %s", b.Name(), q.Type())
	}
	r, err := quantile(xs, qf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return starlark.Float(r), nil
}

func statsCorr(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x, y starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &x, &y); err != nil {
		return nil, err
	}
	xs, err := floatsOf(b.Name(), x)
	if err != nil {
		return nil, err
	}
	ys, err := floatsOf(b.Name(), y)
	if err != nil {
		return nil, err
	}
	r, err := pearson(xs, ys)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return starlark.Float(r), nil
}
