package sandbox

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"text/tabwriter"

	"data-agent/internal/domain/entity"

	"go.starlark.net/starlark"
)

const framePreviewRows = 5

// Frame is the read-only table bound to df. Selections and sorts return new
// frames that share column storage with the original.
type Frame struct {
	columns []entity.Column
	rows    int
}

var (
	_ starlark.Value    = (*Frame)(nil)
	_ starlark.Mapping  = (*Frame)(nil)
	_ starlark.Sequence = (*Frame)(nil)
	_ starlark.HasAttrs = (*Frame)(nil)
)

func newFrame(ds *entity.Dataset) *Frame {
	return &Frame{columns: ds.Columns, rows: ds.NumRows()}
}

func (f *Frame) Type() string         { return "DataFrame" }
func (f *Frame) Freeze()              {}
func (f *Frame) Truth() starlark.Bool { return f.rows > 0 }
func (f *Frame) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: DataFrame")
}

// Len is the row count, as len(df) is in pandas.
func (f *Frame) Len() int { return f.rows }

// Iterate yields column names, as iterating a pandas frame does.
func (f *Frame) Iterate() starlark.Iterator {
	names := make([]any, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.Name
	}
	return &cellIterator{values: names}
}

func (f *Frame) String() string {
	if f.rows > 2*framePreviewRows {
		head := f.take(seq(0, framePreviewRows))
		tail := f.take(seq(f.rows-framePreviewRows, f.rows))
		return f.render(head, tail) + fmt.Sprintf("\n\n[%d rows x %d columns]", f.rows, len(f.columns))
	}
	return f.render(f, nil)
}

func (f *Frame) render(head, tail *Frame) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)

	header := make([]string, 0, len(f.columns)+1)
	header = append(header, "")
	for _, c := range f.columns {
		header = append(header, c.Name)
	}
	fmt.Fprintln(w, strings.Join(header, "\t")+"\t")

	writeRows := func(part *Frame, offset int) {
		for r := 0; r < part.rows; r++ {
			cells := make([]string, 0, len(part.columns)+1)
			cells = append(cells, fmt.Sprint(offset+r))
			for _, c := range part.columns {
				cells = append(cells, formatCell(c.Values[r]))
			}
			fmt.Fprintln(w, strings.Join(cells, "\t")+"\t")
		}
	}
	writeRows(head, 0)
	if tail != nil {
		dots := make([]string, len(f.columns)+1)
		for i := range dots {
			dots[i] = "..."
		}
		fmt.Fprintln(w, strings.Join(dots, "\t")+"\t")
		writeRows(tail, f.rows-tail.rows)
	}
	_ = w.Flush()
	return strings.TrimRight(b.String(), "\n")
}

// Get implements df["col"], df[["a", "b"]] and df[i].
func (f *Frame) Get(key starlark.Value) (starlark.Value, bool, error) {
	switch k := key.(type) {
	case starlark.String:
		s, err := f.series(string(k))
		if err != nil {
			return nil, false, err
		}
		return s, true, nil
	case starlark.Int:
		i, err := starlark.AsInt32(k)
		if err != nil {
			return nil, false, err
		}
		if i < 0 {
			i += f.rows
		}
		if i < 0 || i >= f.rows {
			return nil, false, fmt.Errorf("row index %s out of range for %d rows", k, f.rows)
		}
		return f.row(i), true, nil
	case *starlark.List, starlark.Tuple:
		names, err := labelsOf("DataFrame selection", key)
		if err != nil {
			return nil, false, err
		}
		sub, err := f.selectColumns(names)
		if err != nil {
			return nil, false, err
		}
		return sub, true, nil
	}
	return nil, false, fmt.Errorf("DataFrame index must be a column name, list of names or row number, got %s", key.Type())
}

func (f *Frame) Attr(name string) (starlark.Value, error) {
	switch name {
	case "shape":
		return starlark.Tuple{starlark.MakeInt(f.rows), starlark.MakeInt(len(f.columns))}, nil
	case "columns":
		return stringList(f.columnNames()), nil
	case "dtypes":
		d := starlark.NewDict(len(f.columns))
		for _, c := range f.columns {
			_ = d.SetKey(starlark.String(c.Name), starlark.String(string(c.Type)))
		}
		return d, nil
	case "size":
		return starlark.MakeInt(f.rows * len(f.columns)), nil
	}
	if b, ok := frameMethods[name]; ok {
		return b.BindReceiver(f), nil
	}
	return nil, nil
}

func (f *Frame) AttrNames() []string {
	names := []string{"shape", "columns", "dtypes", "size"}
	for name := range frameMethods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (f *Frame) columnNames() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.Name
	}
	return names
}

func (f *Frame) column(name string) (entity.Column, error) {
	for _, c := range f.columns {
		if c.Name == name {
			return c, nil
		}
	}
	return entity.Column{}, fmt.Errorf("column %q not found; available columns: %s", name, strings.Join(f.columnNames(), ", "))
}

func (f *Frame) series(name string) (*Series, error) {
	c, err := f.column(name)
	if err != nil {
		return nil, err
	}
	return newSeries(c), nil
}

func (f *Frame) selectColumns(names []string) (*Frame, error) {
	cols := make([]entity.Column, 0, len(names))
	for _, name := range names {
		c, err := f.column(name)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return &Frame{columns: cols, rows: f.rows}, nil
}

func (f *Frame) row(i int) *starlark.Dict {
	d := starlark.NewDict(len(f.columns))
	for _, c := range f.columns {
		_ = d.SetKey(starlark.String(c.Name), toValue(c.Values[i]))
	}
	return d
}

// take builds a frame from the given row positions, in that order.
func (f *Frame) take(idx []int) *Frame {
	cols := make([]entity.Column, len(f.columns))
	for ci, c := range f.columns {
		values := make([]any, len(idx))
		for i, r := range idx {
			values[i] = c.Values[r]
		}
		cols[ci] = entity.Column{Name: c.Name, Type: c.Type, Values: values}
	}
	return &Frame{columns: cols, rows: len(idx)}
}

func seq(from, to int) []int {
	if to < from {
		return nil
	}
	out := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}

func clampRows(n, rows int) int {
	if n < 0 {
		return 0
	}
	if n > rows {
		return rows
	}
	return n
}

func (f *Frame) describe() *Frame {
	stats := []string{"count", "mean", "std", "min", "25%", "50%", "75%", "max"}
	cols := []entity.Column{{Name: "stat", Type: entity.ColumnString, Values: make([]any, len(stats))}}
	for i, s := range stats {
		cols[0].Values[i] = s
	}

	for _, c := range f.columns {
		if c.Type != entity.ColumnInt && c.Type != entity.ColumnFloat {
			continue
		}
		xs, _ := newSeries(c).numeric("describe")
		values := make([]any, len(stats))
		values[0] = float64(len(xs))
		if len(xs) > 0 {
			m, _ := mean(xs)
			sd, _ := stddev(xs)
			lo, hi, _ := minMax(xs)
			q1, _ := quantile(xs, 0.25)
			q2, _ := quantile(xs, 0.5)
			q3, _ := quantile(xs, 0.75)
			for i, v := range []float64{m, sd, lo, q1, q2, q3, hi} {
				if math.IsNaN(v) {
					continue
				}
				values[i+1] = v
			}
		}
		cols = append(cols, entity.Column{Name: c.Name, Type: entity.ColumnFloat, Values: values})
	}
	return &Frame{columns: cols, rows: len(stats)}
}

func (f *Frame) info() string {
	var b strings.Builder
	fmt.Fprintf(&b, "DataFrame: %d entries, %d columns\n", f.rows, len(f.columns))
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tColumn\tNon-Null Count\tDtype")
	for i, c := range f.columns {
		nonNull := 0
		for _, v := range c.Values {
			if v != nil {
				nonNull++
			}
		}
		fmt.Fprintf(w, "%d\t%s\t%d non-null\t%s\n", i, c.Name, nonNull, c.Type)
	}
	_ = w.Flush()
	return strings.TrimRight(b.String(), "\n")
}

var frameMethods = map[string]*starlark.Builtin{
	"head":         starlark.NewBuiltin("head", frameHead),
	"tail":         starlark.NewBuiltin("tail", frameTail),
	"describe":     starlark.NewBuiltin("describe", frameDescribe),
	"info":         starlark.NewBuiltin("info", frameInfo),
	"value_counts": starlark.NewBuiltin("value_counts", frameValueCounts),
	"groupby":      starlark.NewBuiltin("groupby", frameGroupBy),
	"sort_values":  starlark.NewBuiltin("sort_values", frameSortValues),
	"filter":       starlark.NewBuiltin("filter", frameFilter),
	"rows":         starlark.NewBuiltin("rows", frameRows),
	"null_counts":  starlark.NewBuiltin("null_counts", frameNullCounts),
	"corr":         starlark.NewBuiltin("corr", frameCorr),
}

func frameHead(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	n := 5
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "n?", &n); err != nil {
		return nil, err
	}
	f := b.Receiver().(*Frame)
	return f.take(seq(0, clampRows(n, f.rows))), nil
}

func frameTail(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	n := 5
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "n?", &n); err != nil {
		return nil, err
	}
	f := b.Receiver().(*Frame)
	return f.take(seq(f.rows-clampRows(n, f.rows), f.rows)), nil
}

func frameDescribe(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return b.Receiver().(*Frame).describe(), nil
}

// frameInfo prints its report like pandas does and returns None.
func frameInfo(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	report := b.Receiver().(*Frame).info()
	if thread.Print != nil {
		thread.Print(thread, report)
	}
	return starlark.None, nil
}

func frameValueCounts(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var col string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &col); err != nil {
		return nil, err
	}
	s, err := b.Receiver().(*Frame).series(col)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return s.valueCounts(), nil
}

func frameGroupBy(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var col string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &col); err != nil {
		return nil, err
	}
	g, err := newGroupBy(b.Receiver().(*Frame), col)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return g, nil
}

func frameSortValues(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var by string
	ascending := true
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "by", &by, "ascending?", &ascending); err != nil {
		return nil, err
	}
	f := b.Receiver().(*Frame)
	c, err := f.column(by)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}

	idx := seq(0, f.rows)
	var sortErr error
	sort.SliceStable(idx, func(i, j int) bool {
		less, err := cellLess(c.Values[idx[i]], c.Values[idx[j]], ascending)
		if err != nil && sortErr == nil {
			sortErr = err
		}
		return less
	})
	if sortErr != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), sortErr)
	}
	return f.take(idx), nil
}

// frameFilter keeps the rows for which fn(row) is truthy.
func frameFilter(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var fn starlark.Callable
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &fn); err != nil {
		return nil, err
	}
	f := b.Receiver().(*Frame)
	var keep []int
	for r := 0; r < f.rows; r++ {
		v, err := starlark.Call(thread, fn, starlark.Tuple{f.row(r)}, nil)
		if err != nil {
			return nil, err
		}
		if v.Truth() {
			keep = append(keep, r)
		}
	}
	return f.take(keep), nil
}

func frameRows(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	f := b.Receiver().(*Frame)
	rows := make([]starlark.Value, f.rows)
	for r := range rows {
		rows[r] = f.row(r)
	}
	return starlark.NewList(rows), nil
}

func frameNullCounts(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	f := b.Receiver().(*Frame)
	d := starlark.NewDict(len(f.columns))
	for _, c := range f.columns {
		s := newSeries(c)
		_ = d.SetKey(starlark.String(c.Name), starlark.MakeInt(len(s.values)-len(s.present())))
	}
	return d, nil
}

// frameCorr is the Pearson correlation over rows where both columns are
// present.
func frameCorr(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var colA, colB string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &colA, &colB); err != nil {
		return nil, err
	}
	f := b.Receiver().(*Frame)
	a, err := f.column(colA)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	c, err := f.column(colB)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	var xs, ys []float64
	for r := 0; r < f.rows; r++ {
		x, okX := toFloat(a.Values[r])
		y, okY := toFloat(c.Values[r])
		if okX && okY {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}
	r, err := pearson(xs, ys)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return starlark.Float(r), nil
}
