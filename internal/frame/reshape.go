package frame

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Melt unpivots every column not listed in idVars into two columns: varName
// holds the source column name and valueName the cell. Rows are emitted
// column by column, matching the usual melt ordering.
func Melt(f *Frame, idVars []string, varName, valueName string) (*Frame, error) {
	ids := make([]*Column, len(idVars))
	isID := make(map[string]bool, len(idVars))
	for i, name := range idVars {
		c, err := f.MustColumn(name)
		if err != nil {
			return nil, fmt.Errorf("melt: %w", err)
		}
		ids[i] = c
		isID[name] = true
	}

	var valueCols []*Column
	for _, c := range f.cols {
		if !isID[c.Name] {
			valueCols = append(valueCols, c)
		}
	}
	kind := commonKind(valueCols)

	n := f.rows * len(valueCols)
	idVals := make([][]any, len(ids))
	for i := range ids {
		idVals[i] = make([]any, 0, n)
	}
	vars := make([]any, 0, n)
	vals := make([]any, 0, n)

	for _, vc := range valueCols {
		for r := 0; r < f.rows; r++ {
			for i, ic := range ids {
				idVals[i] = append(idVals[i], ic.Values[r])
			}
			vars = append(vars, vc.Name)
			vals = append(vals, coerce(vc.Values[r], kind))
		}
	}

	out := &Frame{index: make(map[string]int)}
	for i, ic := range ids {
		if err := out.Append(NewColumn(ic.Name, ic.Kind, idVals[i])); err != nil {
			return nil, fmt.Errorf("melt: %w", err)
		}
	}
	if err := out.Append(NewColumn(varName, KindText, vars)); err != nil {
		return nil, fmt.Errorf("melt: %w", err)
	}
	if err := out.Append(NewColumn(valueName, kind, vals)); err != nil {
		return nil, fmt.Errorf("melt: %w", err)
	}
	out.rows = n
	return out, nil
}

// commonKind picks the kind a melted value column can hold: the shared kind
// when all columns agree, float when they are all numeric, text otherwise.
// Columns without any observed value have no say.
func commonKind(cols []*Column) Kind {
	kind := Kind(-1)
	numeric, mixed := true, false
	for _, c := range cols {
		if c.MissingCount() == c.Len() {
			continue
		}
		if !c.Kind.Numeric() {
			numeric = false
		}
		if kind < 0 {
			kind = c.Kind
		} else if c.Kind != kind {
			mixed = true
		}
	}
	switch {
	case kind < 0:
		return KindText
	case !mixed:
		return kind
	case numeric:
		return KindFloat
	default:
		return KindText
	}
}

func coerce(v any, kind Kind) any {
	if v == nil {
		return nil
	}
	switch kind {
	case KindFloat:
		if f, ok := toFloat(v); ok {
			return f
		}
	case KindText:
		if _, ok := v.(string); !ok {
			return fmt.Sprint(v)
		}
	}
	return v
}

type groupKey struct {
	key  string
	vals []any
}

func keyOf(vals []any) string {
	var b strings.Builder
	for i, v := range vals {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		fmt.Fprintf(&b, "%T:%v", v, v)
	}
	return b.String()
}

// groupRows buckets rows by the values of the key columns, skipping rows
// with a missing key. Groups are returned in first-seen order.
func groupRows(f *Frame, keys []*Column) ([]groupKey, map[string][]int) {
	var order []groupKey
	members := make(map[string][]int)
	for r := 0; r < f.rows; r++ {
		vals := make([]any, len(keys))
		skip := false
		for i, kc := range keys {
			if kc.Values[r] == nil {
				skip = true
				break
			}
			vals[i] = kc.Values[r]
		}
		if skip {
			continue
		}
		k := keyOf(vals)
		if _, seen := members[k]; !seen {
			order = append(order, groupKey{key: k, vals: vals})
		}
		members[k] = append(members[k], r)
	}
	return order, members
}

func sortGroups(groups []groupKey) {
	sort.SliceStable(groups, func(i, j int) bool {
		for k := range groups[i].vals {
			if c := Compare(groups[i].vals[k], groups[j].vals[k]); c != 0 {
				return c < 0
			}
		}
		return false
	})
}

// Pivot spreads the long frame back to wide form: one row per distinct
// index tuple and one column per distinct value of columns, filled with the
// first non-missing cell of values.
//
// Rows with a missing index key are ignored. Rows and category columns that
// end up entirely missing are dropped. Output rows are sorted by index and
// category columns by name.
func Pivot(f *Frame, index []string, columns, values string) (*Frame, error) {
	keys := make([]*Column, len(index))
	for i, name := range index {
		c, err := f.MustColumn(name)
		if err != nil {
			return nil, fmt.Errorf("pivot: %w", err)
		}
		keys[i] = c
	}
	catCol, err := f.MustColumn(columns)
	if err != nil {
		return nil, fmt.Errorf("pivot: %w", err)
	}
	valCol, err := f.MustColumn(values)
	if err != nil {
		return nil, fmt.Errorf("pivot: %w", err)
	}

	groups, members := groupRows(f, keys)
	sortGroups(groups)

	cells := make(map[string]map[string]any, len(groups))
	seenCat := make(map[string]bool)
	for _, g := range groups {
		row := make(map[string]any)
		for _, r := range members[g.key] {
			if catCol.Values[r] == nil || valCol.Values[r] == nil {
				continue
			}
			cat := fmt.Sprint(catCol.Values[r])
			if _, set := row[cat]; set {
				continue
			}
			row[cat] = valCol.Values[r]
			seenCat[cat] = true
		}
		cells[g.key] = row
	}

	cats := make([]string, 0, len(seenCat))
	for cat := range seenCat {
		cats = append(cats, cat)
	}
	slices.Sort(cats)

	kept := groups[:0]
	for _, g := range groups {
		if len(cells[g.key]) > 0 {
			kept = append(kept, g)
		}
	}

	out := &Frame{index: make(map[string]int)}
	for i, kc := range keys {
		vals := make([]any, len(kept))
		for r, g := range kept {
			vals[r] = g.vals[i]
		}
		if err := out.Append(NewColumn(kc.Name, kc.Kind, vals)); err != nil {
			return nil, fmt.Errorf("pivot: %w", err)
		}
	}
	for _, cat := range cats {
		vals := make([]any, len(kept))
		for r, g := range kept {
			vals[r] = cells[g.key][cat]
		}
		if err := out.Append(NewColumn(cat, valCol.Kind, vals)); err != nil {
			return nil, fmt.Errorf("pivot: %w", err)
		}
	}
	out.rows = len(kept)
	return out, nil
}

// Rollup collapses rows sharing the same key columns into one. Numeric
// columns are summed over their non-missing cells (a group with none stays
// missing); other columns keep their first non-missing cell. Output rows are
// sorted by key.
func Rollup(f *Frame, keys ...string) (*Frame, error) {
	keyCols := make([]*Column, len(keys))
	isKey := make(map[string]bool, len(keys))
	for i, name := range keys {
		c, err := f.MustColumn(name)
		if err != nil {
			return nil, fmt.Errorf("rollup: %w", err)
		}
		keyCols[i] = c
		isKey[name] = true
	}

	groups, members := groupRows(f, keyCols)
	sortGroups(groups)

	out := &Frame{index: make(map[string]int)}
	for _, c := range f.cols {
		vals := make([]any, len(groups))
		for g, grp := range groups {
			rows := members[grp.key]
			switch {
			case isKey[c.Name]:
				vals[g] = c.Values[rows[0]]
			case c.Kind.Numeric():
				vals[g] = sumCells(c, rows)
			default:
				vals[g] = firstCell(c, rows)
			}
		}
		if err := out.Append(NewColumn(c.Name, c.Kind, vals)); err != nil {
			return nil, fmt.Errorf("rollup: %w", err)
		}
	}
	out.rows = len(groups)
	return out, nil
}

func sumCells(c *Column, rows []int) any {
	var (
		xs   []float64
		isum int64
	)
	for _, r := range rows {
		switch v := c.Values[r].(type) {
		case int64:
			isum += v
			xs = append(xs, float64(v))
		case float64:
			xs = append(xs, v)
		}
	}
	if len(xs) == 0 {
		return nil
	}
	if c.Kind == KindInt {
		return isum
	}
	return floats.Sum(xs)
}

func firstCell(c *Column, rows []int) any {
	for _, r := range rows {
		if c.Values[r] != nil {
			return c.Values[r]
		}
	}
	return nil
}
