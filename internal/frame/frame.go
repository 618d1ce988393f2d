// Package frame implements the small in-process table the normalization
// engine runs on: ordered, named columns of equal length holding untyped
// cells. It supports the handful of operations the pipeline needs — rename,
// select, per-column transforms, row filtering, concatenation, and a keyed
// left join — and nothing else.
//
// Cells are `any` and by convention hold nil, string, bool, int64, or
// float64. Readers are expected to tolerate all five.
package frame

import (
	"fmt"
	"math"
	"strconv"
)

// Frame is an ordered collection of equally sized named columns.
// The zero value is not usable; construct with New or FromColumns.
type Frame struct {
	order []string
	cols  map[string][]any
	rows  int
}

// New returns an empty Frame with a fixed row count. Columns added later
// must match this length.
func New(rows int) *Frame {
	return &Frame{cols: map[string][]any{}, rows: rows}
}

// FromColumns builds a Frame from an ordered list of names and their data.
// All columns must have equal length.
func FromColumns(names []string, data map[string][]any) (*Frame, error) {
	if len(names) == 0 {
		return New(0), nil
	}
	rows := -1
	f := &Frame{cols: make(map[string][]any, len(names))}
	for _, n := range names {
		col, ok := data[n]
		if !ok {
			return nil, fmt.Errorf("frame: column %q has no data", n)
		}
		if rows == -1 {
			rows = len(col)
		} else if len(col) != rows {
			return nil, fmt.Errorf("frame: column %q has %d rows, want %d", n, len(col), rows)
		}
		if _, dup := f.cols[n]; dup {
			return nil, fmt.Errorf("frame: duplicate column %q", n)
		}
		f.order = append(f.order, n)
		f.cols[n] = col
	}
	f.rows = rows
	return f, nil
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.rows }

// Columns returns the column names in order. The slice is a copy.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Has reports whether a column exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.cols[name]
	return ok
}

// Column returns the backing slice for a column, or nil when absent.
// Callers mutating the slice mutate the frame.
func (f *Frame) Column(name string) []any { return f.cols[name] }

// Set installs a column, replacing data in place when the name exists and
// appending to the column order when it does not.
func (f *Frame) Set(name string, col []any) error {
	if len(col) != f.rows {
		return fmt.Errorf("frame: column %q has %d rows, want %d", name, len(col), f.rows)
	}
	if _, ok := f.cols[name]; !ok {
		f.order = append(f.order, name)
	}
	f.cols[name] = col
	return nil
}

// SetConst installs a column where every cell holds v.
func (f *Frame) SetConst(name string, v any) {
	col := make([]any, f.rows)
	for i := range col {
		col[i] = v
	}
	// Length always matches; Set cannot fail here.
	_ = f.Set(name, col)
}

// Drop removes a column if present.
func (f *Frame) Drop(name string) {
	if _, ok := f.cols[name]; !ok {
		return
	}
	delete(f.cols, name)
	for i, n := range f.order {
		if n == name {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

// Rename changes a column's name, keeping its position. Renaming onto an
// existing name replaces that column's data and drops the old position.
func (f *Frame) Rename(old, new string) error {
	col, ok := f.cols[old]
	if !ok {
		return fmt.Errorf("frame: rename: no column %q", old)
	}
	if old == new {
		return nil
	}
	if _, exists := f.cols[new]; exists {
		f.Drop(new)
	}
	delete(f.cols, old)
	f.cols[new] = col
	for i, n := range f.order {
		if n == old {
			f.order[i] = new
			break
		}
	}
	return nil
}

// Select returns a new Frame restricted to the given columns, in the given
// order. Column data is shared, not copied.
func (f *Frame) Select(names []string) (*Frame, error) {
	out := New(f.rows)
	for _, n := range names {
		col, ok := f.cols[n]
		if !ok {
			return nil, fmt.Errorf("frame: select: no column %q", n)
		}
		if err := out.Set(n, col); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Clone returns a deep-ish copy: column slices are copied, cells are shared.
func (f *Frame) Clone() *Frame {
	out := New(f.rows)
	for _, n := range f.order {
		col := make([]any, f.rows)
		copy(col, f.cols[n])
		_ = out.Set(n, col)
	}
	return out
}

// Apply replaces each cell of a column with fn(cell).
func (f *Frame) Apply(name string, fn func(any) any) error {
	col, ok := f.cols[name]
	if !ok {
		return fmt.Errorf("frame: apply: no column %q", name)
	}
	for i, v := range col {
		col[i] = fn(v)
	}
	return nil
}

// FilterRows returns a new Frame holding only the rows for which keep
// returns true. Column order is preserved.
func (f *Frame) FilterRows(keep func(row int) bool) *Frame {
	idx := make([]int, 0, f.rows)
	for i := 0; i < f.rows; i++ {
		if keep(i) {
			idx = append(idx, i)
		}
	}
	out := New(len(idx))
	for _, n := range f.order {
		src := f.cols[n]
		col := make([]any, len(idx))
		for j, i := range idx {
			col[j] = src[i]
		}
		_ = out.Set(n, col)
	}
	return out
}

// Append concatenates other below f and returns the result. The output
// column set is the union, in f-then-other order; cells missing on either
// side become nil.
func (f *Frame) Append(other *Frame) *Frame {
	order := f.Columns()
	for _, n := range other.order {
		if !f.Has(n) {
			order = append(order, n)
		}
	}
	out := New(f.rows + other.rows)
	for _, n := range order {
		col := make([]any, out.rows)
		if src := f.cols[n]; src != nil {
			copy(col, src)
		}
		if src := other.cols[n]; src != nil {
			copy(col[f.rows:], src)
		}
		_ = out.Set(n, col)
	}
	return out
}

// CellString renders a cell the way the date assembler and join keys need
// it: integers without a decimal point (an int-valued 9 must become "9",
// never "9.0"), floats in their shortest form, nil as the empty string.
func CellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// CellFloat interprets a cell as a float64 where possible.
func CellFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case string:
		fv, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return fv, true
	default:
		return 0, false
	}
}

// IsNull reports whether a cell counts as missing: nil or an empty string.
func IsNull(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
