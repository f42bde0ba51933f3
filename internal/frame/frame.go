// Package frame provides the in-memory table the ETL stages pass between
// each other.
//
// A Frame is an ordered set of equally long named columns. Cells are stored
// as any; a nil cell is missing. Each column carries a Kind that decides how
// its values are compared and which PostgreSQL type it is loaded as.
package frame

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrColumnNotFound  = errors.New("column not found")
	ErrDuplicateColumn = errors.New("duplicate column")
	ErrLengthMismatch  = errors.New("column length mismatch")
)

// Kind is the value type held by a column.
type Kind int

const (
	KindText  Kind = iota // string
	KindInt               // int64
	KindFloat             // float64
	KindTime              // time.Time
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindTime:
		return "time"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Numeric reports whether the kind holds numbers.
func (k Kind) Numeric() bool {
	return k == KindInt || k == KindFloat
}

// Column is a named, typed vector of cells.
type Column struct {
	Name   string
	Kind   Kind
	Values []any
}

// NewColumn creates a column. Values are used as given, not copied.
func NewColumn(name string, kind Kind, values []any) *Column {
	return &Column{Name: name, Kind: kind, Values: values}
}

// Len returns the number of cells.
func (c *Column) Len() int {
	return len(c.Values)
}

// IsMissing reports whether cell i is missing.
func (c *Column) IsMissing(i int) bool {
	return c.Values[i] == nil
}

// MissingCount returns the number of missing cells.
func (c *Column) MissingCount() int {
	n := 0
	for _, v := range c.Values {
		if v == nil {
			n++
		}
	}
	return n
}

// Observed returns the non-missing values in row order.
func (c *Column) Observed() []any {
	out := make([]any, 0, len(c.Values))
	for _, v := range c.Values {
		if v != nil {
			out = append(out, v)
		}
	}
	return out
}

// InferKind converts a text column to int when every observed value parses
// as an integer, or to float when every observed value parses as a number.
// Columns with no observed values, or of any other kind, are left alone.
func (c *Column) InferKind() {
	if c.Kind != KindText {
		return
	}

	observed := 0
	allInt, allFloat := true, true
	for _, v := range c.Values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		observed++
		s = strings.TrimSpace(s)
		if allInt {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				allInt = false
			}
		}
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			allFloat = false
			break
		}
	}
	if observed == 0 || !allFloat {
		return
	}

	for i, v := range c.Values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if allInt {
			n, _ := strconv.ParseInt(s, 10, 64)
			c.Values[i] = n
		} else {
			f, _ := strconv.ParseFloat(s, 64)
			c.Values[i] = f
		}
	}
	if allInt {
		c.Kind = KindInt
	} else {
		c.Kind = KindFloat
	}
}

// Frame is an ordered collection of equally long columns.
type Frame struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// New builds a frame from columns. All columns must have the same length and
// distinct names.
func New(cols ...*Column) (*Frame, error) {
	f := &Frame{index: make(map[string]int, len(cols))}
	for _, c := range cols {
		if err := f.Append(c); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Append adds a column at the end of the frame.
func (f *Frame) Append(c *Column) error {
	if _, exists := f.index[c.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateColumn, c.Name)
	}
	if len(f.cols) == 0 {
		f.rows = c.Len()
	} else if c.Len() != f.rows {
		return fmt.Errorf("%w: %q has %d rows, frame has %d", ErrLengthMismatch, c.Name, c.Len(), f.rows)
	}
	f.index[c.Name] = len(f.cols)
	f.cols = append(f.cols, c)
	return nil
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return f.rows
}

// Width returns the number of columns.
func (f *Frame) Width() int {
	return len(f.cols)
}

// Names returns the column names in order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name
	}
	return names
}

// Columns returns the frame's columns in order. The slice is shared.
func (f *Frame) Columns() []*Column {
	return f.cols
}

// Column returns the named column.
func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.cols[i], true
}

// MustColumn returns the named column or an error wrapping ErrColumnNotFound.
func (f *Frame) MustColumn(name string) (*Column, error) {
	c, ok := f.Column(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	return c, nil
}

// Drop removes the named columns. Every name must exist.
func (f *Frame) Drop(names ...string) error {
	for _, name := range names {
		if _, ok := f.index[name]; !ok {
			return fmt.Errorf("drop: %w: %q", ErrColumnNotFound, name)
		}
	}
	drop := make(map[string]bool, len(names))
	for _, name := range names {
		drop[name] = true
	}
	f.DropFunc(func(name string) bool { return drop[name] })
	return nil
}

// DropFunc removes every column whose name satisfies pred and returns the
// removed names.
func (f *Frame) DropFunc(pred func(name string) bool) []string {
	var dropped []string
	kept := f.cols[:0]
	for _, c := range f.cols {
		if pred(c.Name) {
			dropped = append(dropped, c.Name)
			continue
		}
		kept = append(kept, c)
	}
	f.cols = kept
	f.reindex()
	return dropped
}

func (f *Frame) reindex() {
	f.index = make(map[string]int, len(f.cols))
	for i, c := range f.cols {
		f.index[c.Name] = i
	}
}

// Row returns the cells of row i in column order.
func (f *Frame) Row(i int) []any {
	row := make([]any, len(f.cols))
	for j, c := range f.cols {
		row[j] = c.Values[i]
	}
	return row
}

// Filter returns a new frame with only the rows for which keep returns true.
func (f *Frame) Filter(keep func(row int) bool) *Frame {
	var rows []int
	for i := 0; i < f.rows; i++ {
		if keep(i) {
			rows = append(rows, i)
		}
	}
	return f.Take(rows)
}

// Take returns a new frame made of the given rows, in the given order.
func (f *Frame) Take(rows []int) *Frame {
	out := &Frame{index: make(map[string]int, len(f.cols)), rows: len(rows)}
	for j, c := range f.cols {
		vals := make([]any, len(rows))
		for k, r := range rows {
			vals[k] = c.Values[r]
		}
		out.cols = append(out.cols, &Column{Name: c.Name, Kind: c.Kind, Values: vals})
		out.index[c.Name] = j
	}
	return out
}

// MissingCount returns the number of missing cells across all columns.
func (f *Frame) MissingCount() int {
	n := 0
	for _, c := range f.cols {
		n += c.MissingCount()
	}
	return n
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	default:
		return 0, false
	}
}

// Compare orders two cells: missing sorts last, numbers numerically, times
// chronologically and everything else by its string form.
func Compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}

	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}

	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}

	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
