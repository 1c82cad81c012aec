package sandbox

import (
	"fmt"
	"sort"
	"strings"

	"data-agent/internal/domain/entity"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

const seriesPreviewRows = 20

// Series is one column of the dataset as seen from a snippet. Values are
// shared with the dataset and never mutated.
type Series struct {
	name   string
	typ    entity.ColumnType
	values []any
}

var (
	_ starlark.Value     = (*Series)(nil)
	_ starlark.Indexable = (*Series)(nil)
	_ starlark.Sequence  = (*Series)(nil)
	_ starlark.HasAttrs  = (*Series)(nil)
)

func newSeries(col entity.Column) *Series {
	return &Series{name: col.Name, typ: col.Type, values: col.Values}
}

func (s *Series) Type() string         { return "Series" }
func (s *Series) Freeze()              {}
func (s *Series) Truth() starlark.Bool { return len(s.values) > 0 }
func (s *Series) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: Series")
}
func (s *Series) Len() int                  { return len(s.values) }
func (s *Series) Index(i int) starlark.Value { return toValue(s.values[i]) }
func (s *Series) Iterate() starlark.Iterator {
	return &cellIterator{values: s.values}
}

func (s *Series) String() string {
	var b strings.Builder
	writeRows := func(from, to int) {
		for i := from; i < to; i++ {
			fmt.Fprintf(&b, "%-6d %s\n", i, formatCell(s.values[i]))
		}
	}
	n := len(s.values)
	if n > seriesPreviewRows {
		writeRows(0, seriesPreviewRows/2)
		b.WriteString("...\n")
		writeRows(n-seriesPreviewRows/2, n)
	} else {
		writeRows(0, n)
	}
	fmt.Fprintf(&b, "Name: %s, Length: %d, dtype: %s", s.name, n, s.typ)
	return b.String()
}

func (s *Series) Attr(name string) (starlark.Value, error) {
	switch name {
	case "name":
		return starlark.String(s.name), nil
	case "dtype":
		return starlark.String(string(s.typ)), nil
	case "size":
		return starlark.MakeInt(len(s.values)), nil
	}
	if b, ok := seriesMethods[name]; ok {
		return b.BindReceiver(s), nil
	}
	return nil, nil
}

func (s *Series) AttrNames() []string {
	names := []string{"name", "dtype", "size"}
	for name := range seriesMethods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// numeric returns the non-missing values as floats. Text columns are an
// error so that the model learns which columns it can aggregate.
func (s *Series) numeric(fnname string) ([]float64, error) {
	if s.typ == entity.ColumnString {
		return nil, fmt.Errorf("%s: column %q has dtype string, not numeric", fnname, s.name)
	}
	out := make([]float64, 0, len(s.values))
	for _, cell := range s.values {
		if f, ok := toFloat(cell); ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *Series) present() []any {
	out := make([]any, 0, len(s.values))
	for _, cell := range s.values {
		if cell != nil {
			out = append(out, cell)
		}
	}
	return out
}

func (s *Series) withValues(values []any) *Series {
	return &Series{name: s.name, typ: s.typ, values: values}
}

// valueCounts returns distinct values ordered by descending count, ties in
// first-seen order.
func (s *Series) valueCounts() *starlark.Dict {
	counts := make(map[any]int)
	var order []any
	for _, cell := range s.present() {
		if _, seen := counts[cell]; !seen {
			order = append(order, cell)
		}
		counts[cell]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	d := starlark.NewDict(len(order))
	for _, cell := range order {
		_ = d.SetKey(toValue(cell), starlark.MakeInt(counts[cell]))
	}
	return d
}

func (s *Series) unique() []any {
	seen := make(map[any]bool)
	var out []any
	for _, cell := range s.present() {
		if !seen[cell] {
			seen[cell] = true
			out = append(out, cell)
		}
	}
	return out
}

func (s *Series) describe() (*starlark.Dict, error) {
	d := starlark.NewDict(8)
	present := s.present()
	_ = d.SetKey(starlark.String("count"), starlark.MakeInt(len(present)))

	if s.typ == entity.ColumnString || s.typ == entity.ColumnBool {
		counts := s.valueCounts()
		_ = d.SetKey(starlark.String("unique"), starlark.MakeInt(counts.Len()))
		if items := counts.Items(); len(items) > 0 {
			_ = d.SetKey(starlark.String("top"), items[0][0])
			_ = d.SetKey(starlark.String("freq"), items[0][1])
		}
		return d, nil
	}

	xs, err := s.numeric("describe")
	if err != nil {
		return nil, err
	}
	if len(xs) == 0 {
		return d, nil
	}
	m, _ := mean(xs)
	sd, _ := stddev(xs)
	lo, hi, _ := minMax(xs)
	q1, _ := quantile(xs, 0.25)
	q2, _ := quantile(xs, 0.5)
	q3, _ := quantile(xs, 0.75)
	for _, kv := range []struct {
		k string
		v float64
	}{{"mean", m}, {"std", sd}, {"min", lo}, {"25%", q1}, {"50%", q2}, {"75%", q3}, {"max", hi}} {
		_ = d.SetKey(starlark.String(kv.k), starlark.Float(kv.v))
	}
	return d, nil
}

type cellIterator struct {
	values []any
	i      int
}

func (it *cellIterator) Next(p *starlark.Value) bool {
	if it.i >= len(it.values) {
		return false
	}
	*p = toValue(it.values[it.i])
	it.i++
	return true
}

func (it *cellIterator) Done() {}

var seriesMethods = map[string]*starlark.Builtin{
	"mean":         starlark.NewBuiltin("mean", seriesReduce(mean)),
	"sum":          starlark.NewBuiltin("sum", seriesReduce(func(xs []float64) (float64, error) { return sum(xs), nil })),
	"std":          starlark.NewBuiltin("std", seriesReduce(stddev)),
	"median":       starlark.NewBuiltin("median", seriesReduce(median)),
	"min":          starlark.NewBuiltin("min", seriesExtreme(syntax.LT)),
	"max":          starlark.NewBuiltin("max", seriesExtreme(syntax.GT)),
	"count":        starlark.NewBuiltin("count", seriesCount),
	"null_count":   starlark.NewBuiltin("null_count", seriesNullCount),
	"nunique":      starlark.NewBuiltin("nunique", seriesNunique),
	"unique":       starlark.NewBuiltin("unique", seriesUnique),
	"value_counts": starlark.NewBuiltin("value_counts", seriesValueCounts),
	"tolist":       starlark.NewBuiltin("tolist", seriesToList),
	"describe":     starlark.NewBuiltin("describe", seriesDescribe),
	"quantile":     starlark.NewBuiltin("quantile", seriesQuantile),
	"head":         starlark.NewBuiltin("head", seriesHead),
	"sort":         starlark.NewBuiltin("sort", seriesSort),
}

func seriesReduce(fn func([]float64) (float64, error)) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
			return nil, err
		}
		s := b.Receiver().(*Series)
		xs, err := s.numeric(b.Name())
		if err != nil {
			return nil, err
		}
		if len(xs) == 0 {
			return starlark.None, nil
		}
		r, err := fn(xs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		return starlark.Float(r), nil
	}
}

// seriesExtreme works on any ordered column, text included.
func seriesExtreme(op syntax.Token) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
			return nil, err
		}
		s := b.Receiver().(*Series)
		var best starlark.Value = starlark.None
		for _, cell := range s.present() {
			v := toValue(cell)
			if best == starlark.None {
				best = v
				continue
			}
			better, err := starlark.Compare(op, v, best)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", b.Name(), err)
			}
			if better {
				best = v
			}
		}
		return best, nil
	}
}

func seriesCount(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return starlark.MakeInt(len(b.Receiver().(*Series).present())), nil
}

func seriesNullCount(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	s := b.Receiver().(*Series)
	return starlark.MakeInt(len(s.values) - len(s.present())), nil
}

func seriesNunique(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return starlark.MakeInt(len(b.Receiver().(*Series).unique())), nil
}

func seriesUnique(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	cells := b.Receiver().(*Series).unique()
	elems := make([]starlark.Value, len(cells))
	for i, cell := range cells {
		elems[i] = toValue(cell)
	}
	return starlark.NewList(elems), nil
}

func seriesValueCounts(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return b.Receiver().(*Series).valueCounts(), nil
}

func seriesToList(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	s := b.Receiver().(*Series)
	elems := make([]starlark.Value, len(s.values))
	for i, cell := range s.values {
		elems[i] = toValue(cell)
	}
	return starlark.NewList(elems), nil
}

func seriesDescribe(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return b.Receiver().(*Series).describe()
}

func seriesQuantile(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var q starlark.Value = starlark.Float(0.5)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "q?", &q); err != nil {
		return nil, err
	}
	qf, ok := starlark.AsFloat(q)
	if !ok {
		return nil, fmt.Errorf("%s: q must be a number, got %s", b.Name(), q.Type())
	}
	xs, err := b.Receiver().(*Series).numeric(b.Name())
	if err != nil {
		return nil, err
	}
	if len(xs) == 0 {
		return starlark.None, nil
	}
	r, err := quantile(xs, qf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return starlark.Float(r), nil
}

func seriesHead(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	n := 5
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "n?", &n); err != nil {
		return nil, err
	}
	s := b.Receiver().(*Series)
	if n < 0 {
		n = 0
	}
	if n > len(s.values) {
		n = len(s.values)
	}
	return s.withValues(s.values[:n]), nil
}

// seriesSort orders values with missing cells last.
func seriesSort(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	ascending := true
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "ascending?", &ascending); err != nil {
		return nil, err
	}
	s := b.Receiver().(*Series)
	values := append([]any(nil), s.values...)
	var sortErr error
	sort.SliceStable(values, func(i, j int) bool {
		less, err := cellLess(values[i], values[j], ascending)
		if err != nil && sortErr == nil {
			sortErr = err
		}
		return less
	})
	if sortErr != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), sortErr)
	}
	return s.withValues(values), nil
}

// cellLess orders two cells, placing missing values last regardless of
// direction.
func cellLess(a, b any, ascending bool) (bool, error) {
	switch {
	case a == nil:
		return false, nil
	case b == nil:
		return true, nil
	}
	op := syntax.LT
	if !ascending {
		op = syntax.GT
	}
	return starlark.Compare(op, toValue(a), toValue(b))
}
