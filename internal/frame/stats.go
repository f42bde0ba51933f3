package frame

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// Aggregate reduces the observed values of a group to a single fill value.
// It returns false when no value can be produced.
type Aggregate func(observed []any) (any, bool)

// Median returns the median of xs, averaging the two middle values for even
// lengths. It returns false for an empty input.
func Median(xs []float64) (float64, bool) {
	if len(xs) == 0 {
		return 0, false
	}
	sorted := slices.Clone(xs)
	slices.Sort(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], true
	}
	return stat.Mean(sorted[mid-1:mid+1], nil), true
}

// Mode returns the most frequent value. Ties go to the smallest value as
// ordered by Compare.
func Mode(vals []any) (any, bool) {
	if len(vals) == 0 {
		return nil, false
	}

	counts := make(map[string]int, len(vals))
	first := make(map[string]any, len(vals))
	for _, v := range vals {
		k := keyOf([]any{v})
		if _, ok := first[k]; !ok {
			first[k] = v
		}
		counts[k]++
	}

	var (
		best  any
		bestN int
	)
	for k, n := range counts {
		v := first[k]
		if n > bestN || (n == bestN && Compare(v, best) < 0) {
			best, bestN = v, n
		}
	}
	return best, true
}

// MedianAggregate is an Aggregate returning the float64 median.
func MedianAggregate(observed []any) (any, bool) {
	xs := make([]float64, 0, len(observed))
	for _, v := range observed {
		if f, ok := toFloat(v); ok {
			xs = append(xs, f)
		}
	}
	m, ok := Median(xs)
	if !ok {
		return nil, false
	}
	return m, true
}

// ModeAggregate is an Aggregate returning the most frequent value.
func ModeAggregate(observed []any) (any, bool) {
	return Mode(observed)
}

// FillByGroup replaces missing cells of col with agg applied to the observed
// cells of col sharing the same groupCol value. Rows whose group key is
// missing are left untouched, as are groups without any observed value.
// An int column receiving a float fill is promoted to float.
// It returns the number of cells filled.
func FillByGroup(f *Frame, groupCol, col string, agg Aggregate) (int, error) {
	gc, err := f.MustColumn(groupCol)
	if err != nil {
		return 0, fmt.Errorf("fill by group: %w", err)
	}
	c, err := f.MustColumn(col)
	if err != nil {
		return 0, fmt.Errorf("fill by group: %w", err)
	}
	if c.MissingCount() == 0 {
		return 0, nil
	}

	groups, members := groupRows(f, []*Column{gc})
	filled := 0
	for _, g := range groups {
		rows := members[g.key]
		var observed []any
		hasGap := false
		for _, r := range rows {
			if c.Values[r] == nil {
				hasGap = true
				continue
			}
			observed = append(observed, c.Values[r])
		}
		if !hasGap {
			continue
		}
		fill, ok := agg(observed)
		if !ok {
			continue
		}
		if _, isFloat := fill.(float64); isFloat && c.Kind == KindInt {
			c.promoteFloat()
		}
		for _, r := range rows {
			if c.Values[r] == nil {
				c.Values[r] = fill
				filled++
			}
		}
	}
	return filled, nil
}

func (c *Column) promoteFloat() {
	for i, v := range c.Values {
		if f, ok := toFloat(v); ok {
			c.Values[i] = f
		}
	}
	c.Kind = KindFloat
}
