package sandbox

import (
	"fmt"
	"sort"

	"go.starlark.net/starlark"
)

// GroupBy partitions frame rows by the value of one column. Group order
// follows first appearance; rows with a missing key are dropped as pandas
// does by default.
type GroupBy struct {
	frame *Frame
	by    string
	keys  []any
	rows  map[any][]int
}

var (
	_ starlark.Value    = (*GroupBy)(nil)
	_ starlark.HasAttrs = (*GroupBy)(nil)
)

func newGroupBy(f *Frame, by string) (*GroupBy, error) {
	c, err := f.column(by)
	if err != nil {
		return nil, err
	}
	g := &GroupBy{frame: f, by: by, rows: make(map[any][]int)}
	for r, cell := range c.Values {
		if cell == nil {
			continue
		}
		if _, seen := g.rows[cell]; !seen {
			g.keys = append(g.keys, cell)
		}
		g.rows[cell] = append(g.rows[cell], r)
	}
	return g, nil
}

func (g *GroupBy) String() string {
	return fmt.Sprintf("<GroupBy by %q: %d groups>", g.by, len(g.keys))
}
func (g *GroupBy) Type() string         { return "GroupBy" }
func (g *GroupBy) Freeze()              {}
func (g *GroupBy) Truth() starlark.Bool { return len(g.keys) > 0 }
func (g *GroupBy) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: GroupBy")
}

func (g *GroupBy) Attr(name string) (starlark.Value, error) {
	if b, ok := groupByMethods[name]; ok {
		return b.BindReceiver(g), nil
	}
	return nil, nil
}

func (g *GroupBy) AttrNames() []string {
	names := make([]string, 0, len(groupByMethods))
	for name := range groupByMethods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// aggregate applies fn to column col within each group. Groups where fn
// has nothing to work on map to None.
func (g *GroupBy) aggregate(fnname, col string, fn func([]float64) (float64, error)) (*starlark.Dict, error) {
	c, err := g.frame.column(col)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fnname, err)
	}
	s := newSeries(c)
	if _, err := s.numeric(fnname); err != nil {
		return nil, err
	}

	d := starlark.NewDict(len(g.keys))
	for _, key := range g.keys {
		var xs []float64
		for _, r := range g.rows[key] {
			if f, ok := toFloat(c.Values[r]); ok {
				xs = append(xs, f)
			}
		}
		var v starlark.Value = starlark.None
		if len(xs) > 0 {
			r, err := fn(xs)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", fnname, err)
			}
			v = starlark.Float(r)
		}
		if err := d.SetKey(toValue(key), v); err != nil {
			return nil, err
		}
	}
	return d, nil
}

var groupByMethods = map[string]*starlark.Builtin{
	"count": starlark.NewBuiltin("count", groupCount),
	"size":  starlark.NewBuiltin("size", groupCount),
	"sum":   starlark.NewBuiltin("sum", groupAgg(func(xs []float64) (float64, error) { return sum(xs), nil })),
	"mean":  starlark.NewBuiltin("mean", groupAgg(mean)),
	"min": starlark.NewBuiltin("min", groupAgg(func(xs []float64) (float64, error) {
		lo, _, err := minMax(xs)
		return lo, err
	})),
	"max": starlark.NewBuiltin("max", groupAgg(func(xs []float64) (float64, error) {
		_, hi, err := minMax(xs)
		return hi, err
	})),
	"groups": starlark.NewBuiltin("groups", groupGroups),
}

func groupCount(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	g := b.Receiver().(*GroupBy)
	d := starlark.NewDict(len(g.keys))
	for _, key := range g.keys {
		if err := d.SetKey(toValue(key), starlark.MakeInt(len(g.rows[key]))); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func groupAgg(fn func([]float64) (float64, error)) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var col string
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &col); err != nil {
			return nil, err
		}
		return b.Receiver().(*GroupBy).aggregate(b.Name(), col, fn)
	}
}

// groupGroups returns each key mapped to its sub-frame.
func groupGroups(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	g := b.Receiver().(*GroupBy)
	d := starlark.NewDict(len(g.keys))
	for _, key := range g.keys {
		if err := d.SetKey(toValue(key), g.frame.take(g.rows[key])); err != nil {
			return nil, err
		}
	}
	return d, nil
}
