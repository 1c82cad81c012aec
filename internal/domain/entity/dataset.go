package entity

import (
	"fmt"
	"strconv"
	"strings"
)

type ColumnType string

const (
	ColumnInt    ColumnType = "int"
	ColumnFloat  ColumnType = "float"
	ColumnBool   ColumnType = "bool"
	ColumnString ColumnType = "string"
)

// Column holds one typed column. Values are int64, float64, bool or string;
// nil marks a missing cell.
type Column struct {
	Name   string
	Type   ColumnType
	Values []any
}

// Dataset is the table a session analyses. It is never mutated after
// construction; loading another file produces a new Dataset.
type Dataset struct {
	Name    string
	Columns []Column
	rows    int
}

// NewDataset builds a dataset from text cells, inferring one type per column.
// Short rows are padded with missing values, extra cells are dropped.
func NewDataset(name string, header []string, records [][]string) (*Dataset, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("dataset %q has no columns", name)
	}

	names := normalizeHeader(header)
	ds := &Dataset{Name: name, Columns: make([]Column, len(names)), rows: len(records)}

	for c, colName := range names {
		cells := make([]string, len(records))
		for r, rec := range records {
			if c < len(rec) {
				cells[r] = rec[c]
			}
		}
		typ := inferType(cells)
		values := make([]any, len(cells))
		for r, cell := range cells {
			values[r] = convertCell(cell, typ)
		}
		ds.Columns[c] = Column{Name: colName, Type: typ, Values: values}
	}

	return ds, nil
}

func (d *Dataset) NumRows() int { return d.rows }

func (d *Dataset) NumCols() int { return len(d.Columns) }

func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

func (d *Dataset) Column(name string) (Column, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Summary describes the table for prompts, for example
// "sales.csv: 5 rows x 2 columns (region string, units int)".
func (d *Dataset) Summary() string {
	cols := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		cols[i] = c.Name + " " + string(c.Type)
	}
	return fmt.Sprintf("%s: %d rows x %d columns (%s)", d.Name, d.rows, len(d.Columns), strings.Join(cols, ", "))
}

func normalizeHeader(header []string) []string {
	seen := make(map[string]int, len(header))
	names := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		if n, ok := seen[h]; ok {
			seen[h] = n + 1
			h = fmt.Sprintf("%s_%d", h, n+1)
		} else {
			seen[h] = 0
		}
		names[i] = h
	}
	return names
}

func isMissing(cell string) bool {
	switch strings.ToLower(strings.TrimSpace(cell)) {
	case "", "na", "nan", "null", "none", "n/a":
		return true
	}
	return false
}

func inferType(cells []string) ColumnType {
	isInt, isFloat, isBool := true, true, true
	present := 0
	for _, cell := range cells {
		if isMissing(cell) {
			continue
		}
		present++
		cell = strings.TrimSpace(cell)
		if isInt {
			if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				isFloat = false
			}
		}
		if isBool {
			if _, ok := parseBool(cell); !ok {
				isBool = false
			}
		}
	}
	switch {
	case present == 0:
		return ColumnString
	case isInt:
		return ColumnInt
	case isFloat:
		return ColumnFloat
	case isBool:
		return ColumnBool
	default:
		return ColumnString
	}
}

func convertCell(cell string, typ ColumnType) any {
	if isMissing(cell) {
		if typ == ColumnString && cell != "" {
			return cell
		}
		return nil
	}
	trimmed := strings.TrimSpace(cell)
	switch typ {
	case ColumnInt:
		v, _ := strconv.ParseInt(trimmed, 10, 64)
		return v
	case ColumnFloat:
		v, _ := strconv.ParseFloat(trimmed, 64)
		return v
	case ColumnBool:
		v, _ := parseBool(trimmed)
		return v
	default:
		return cell
	}
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true", "yes":
		return true, true
	case "false", "no":
		return false, true
	}
	return false, false
}
