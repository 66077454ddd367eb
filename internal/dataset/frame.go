package dataset

import (
	"fmt"
	"sort"
)

// Frame is an immutable typed table parsed from one CSV dataset.
// Values are stored columnar; cell types follow the declared schema,
// falling back to string when coercion failed for the whole dataset.
type Frame struct {
	Key  string
	cols []Column
	data map[string][]interface{}
	rows int
}

// NewFrame builds a frame from columnar data. Rows beyond the shortest
// column read as "n/a".
func NewFrame(key string, cols []Column, data map[string][]interface{}, rows int) *Frame {
	return &Frame{Key: key, cols: cols, data: data, rows: rows}
}

func (f *Frame) NumRows() int { return f.rows }

func (f *Frame) Columns() []Column {
	out := make([]Column, len(f.cols))
	copy(out, f.cols)
	return out
}

func (f *Frame) ColumnNames() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name
	}
	return names
}

func (f *Frame) HasColumn(name string) bool {
	_, ok := f.data[name]
	return ok
}

// Value returns the cell at (row, column), or nil when out of range.
func (f *Frame) Value(row int, column string) interface{} {
	col, ok := f.data[column]
	if !ok || row < 0 || row >= len(col) {
		return nil
	}
	return col[row]
}

// CategoricalColumns lists string-typed columns in declaration order.
func (f *Frame) CategoricalColumns() []string {
	var out []string
	for _, c := range f.cols {
		if c.Type == TypeString {
			out = append(out, c.Name)
		}
	}
	return out
}

// NumericColumns lists int- and float-typed columns in declaration order.
func (f *Frame) NumericColumns() []string {
	var out []string
	for _, c := range f.cols {
		if c.Type == TypeInt || c.Type == TypeFloat {
			out = append(out, c.Name)
		}
	}
	return out
}

// Strings renders a column as display strings.
func (f *Frame) Strings(column string) []string {
	col, ok := f.data[column]
	if !ok {
		return nil
	}
	out := make([]string, len(col))
	for i, v := range col {
		out[i] = cellString(v)
	}
	return out
}

// Floats returns a numeric column widened to float64. The second
// return is false for missing or non-numeric columns.
func (f *Frame) Floats(column string) ([]float64, bool) {
	col, ok := f.data[column]
	if !ok {
		return nil, false
	}
	out := make([]float64, len(col))
	for i, v := range col {
		switch n := v.(type) {
		case int32:
			out[i] = float64(n)
		case float32:
			out[i] = float64(n)
		case float64:
			out[i] = n
		default:
			return nil, false
		}
	}
	return out, true
}

// Sum adds a numeric column; ok is false when the column is absent or
// not numeric.
func (f *Frame) Sum(column string) (float64, bool) {
	vals, ok := f.Floats(column)
	if !ok {
		return 0, false
	}
	var total float64
	for _, v := range vals {
		total += v
	}
	return total, true
}

// Mean averages a numeric column over its rows.
func (f *Frame) Mean(column string) (float64, bool) {
	vals, ok := f.Floats(column)
	if !ok || len(vals) == 0 {
		return 0, false
	}
	var total float64
	for _, v := range vals {
		total += v
	}
	return total / float64(len(vals)), true
}

// CountTrue counts true cells of a boolean service-flag column.
func (f *Frame) CountTrue(column string) (int, bool) {
	col, ok := f.data[column]
	if !ok {
		return 0, false
	}
	count := 0
	for _, v := range col {
		if b, isBool := v.(bool); isBool && b {
			count++
		}
	}
	return count, true
}

// DistinctStrings returns the sorted distinct values of a column.
func (f *Frame) DistinctStrings(column string) []string {
	col, ok := f.data[column]
	if !ok {
		return nil
	}
	seen := make(map[string]struct{})
	for _, v := range col {
		seen[cellString(v)] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func cellString(v interface{}) string {
	switch n := v.(type) {
	case string:
		return n
	case nil:
		return "n/a"
	default:
		return fmt.Sprintf("%v", n)
	}
}
