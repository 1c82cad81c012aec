package sandbox

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
)

// toValue converts a dataset cell into a Starlark value.
func toValue(cell any) starlark.Value {
	switch v := cell.(type) {
	case nil:
		return starlark.None
	case int64:
		return starlark.MakeInt64(v)
	case int:
		return starlark.MakeInt(v)
	case float64:
		return starlark.Float(v)
	case bool:
		return starlark.Bool(v)
	case string:
		return starlark.String(v)
	default:
		return starlark.String(fmt.Sprint(v))
	}
}

// toFloat accepts ints, floats and bools. ok is false for anything else,
// including None.
func toFloat(cell any) (float64, bool) {
	switch v := cell.(type) {
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	case float64:
		return v, !math.IsNaN(v)
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// valueToCell is the inverse of toValue for the scalar types a column holds.
func valueToCell(v starlark.Value) any {
	switch v := v.(type) {
	case starlark.NoneType:
		return nil
	case starlark.Int:
		if i, ok := v.Int64(); ok {
			return i
		}
		f, _ := starlark.AsFloat(v)
		return f
	case starlark.Float:
		return float64(v)
	case starlark.Bool:
		return bool(v)
	case starlark.String:
		return string(v)
	default:
		return v.String()
	}
}

// floatsOf reads a list, tuple or Series of numbers. None entries are
// rejected so charts and statistics never silently shift positions.
func floatsOf(fnname string, v starlark.Value) ([]float64, error) {
	if s, ok := v.(*Series); ok {
		out := make([]float64, 0, len(s.values))
		for i, cell := range s.values {
			f, ok := toFloat(cell)
			if !ok {
				return nil, fmt.Errorf("%s: element %d of series %q is not a number (%s)", fnname, i, s.name, formatCell(cell))
			}
			out = append(out, f)
		}
		return out, nil
	}

	iterable, ok := v.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("%s: got %s, want a list of numbers", fnname, v.Type())
	}
	iter := iterable.Iterate()
	defer iter.Done()

	var out []float64
	var elem starlark.Value
	for i := 0; iter.Next(&elem); i++ {
		f, ok := starlark.AsFloat(elem)
		if !ok {
			if b, isBool := elem.(starlark.Bool); isBool {
				f, ok = 0, true
				if b {
					f = 1
				}
			}
		}
		if !ok {
			return nil, fmt.Errorf("%s: element %d is %s, want a number", fnname, i, elem.Type())
		}
		out = append(out, f)
	}
	return out, nil
}

// plotFloats is floatsOf for chart data, which must be finite to be drawn.
func plotFloats(fnname string, v starlark.Value) ([]float64, error) {
	xs, err := floatsOf(fnname, v)
	if err != nil {
		return nil, err
	}
	return xs, requireFinite(fnname, xs)
}

func requireFinite(fnname string, xs []float64) error {
	for i, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%s: element %d is %v; drop or replace NaN and infinite values before plotting", fnname, i, x)
		}
	}
	return nil
}

// labelsOf reads any iterable and renders each element as a label.
func labelsOf(fnname string, v starlark.Value) ([]string, error) {
	if s, ok := v.(*Series); ok {
		out := make([]string, len(s.values))
		for i, cell := range s.values {
			out[i] = formatCell(cell)
		}
		return out, nil
	}

	iterable, ok := v.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("%s: got %s, want a list of labels", fnname, v.Type())
	}
	iter := iterable.Iterate()
	defer iter.Done()

	var out []string
	var elem starlark.Value
	for iter.Next(&elem) {
		if s, ok := starlark.AsString(elem); ok {
			out = append(out, s)
			continue
		}
		out = append(out, elem.String())
	}
	return out, nil
}

func formatCell(cell any) string {
	switch v := cell.(type) {
	case nil:
		return "NaN"
	case float64:
		return formatFloat(v)
	case bool:
		if v {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprint(v)
	}
}

func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 0) || math.Abs(f) >= 1e15 || (f != 0 && math.Abs(f) < 1e-4) {
		return strconv.FormatFloat(f, 'g', 6, 64)
	}
	s := strings.TrimRight(strconv.FormatFloat(f, 'f', 6, 64), "0")
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	return s
}

func stringList(items []string) *starlark.List {
	elems := make([]starlark.Value, len(items))
	for i, s := range items {
		elems[i] = starlark.String(s)
	}
	return starlark.NewList(elems)
}
