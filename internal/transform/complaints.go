package transform

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/JonMunkholm/complaints-etl/internal/frame"
)

// Complaint column names as they appear in the CFPB export.
const (
	ColDateReceived    = "Date received"
	ColProduct         = "Product"
	ColSubProduct      = "Sub-product"
	ColIssue           = "Issue"
	ColSubIssue        = "Sub-issue"
	ColState           = "State"
	ColZIPCode         = "ZIP code"
	ColTags            = "Tags"
	ColSubmittedVia    = "Submitted via"
	ColCompanyResponse = "Company response to consumer"
	ColTimelyResponse  = "Timely response?"
	ColDisputed        = "Consumer disputed?"
)

var (
	// ComplaintDropColumns are free-text columns removed before cleaning.
	ComplaintDropColumns = []string{ColTags, ColZIPCode}

	// ComplaintSampleColumns get their gaps filled from their own observed
	// values before the date window is applied.
	ComplaintSampleColumns = []string{
		ColState, ColDisputed, ColCompanyResponse, ColTimelyResponse, ColSubmittedVia,
	}

	// ComplaintCombinationColumns identify a complaint category. Gaps in these
	// columns are filled from the distinct combinations seen in the data.
	ComplaintCombinationColumns = []string{ColProduct, ColSubProduct, ColIssue, ColSubIssue}

	// ComplaintFlagColumns hold Yes/No answers loaded as 1/0.
	ComplaintFlagColumns = []string{ColTimelyResponse, ColDisputed}

	// ComplaintWindowStart and ComplaintWindowEnd bound Date received,
	// both inclusive.
	ComplaintWindowStart = time.Date(2011, 1, 1, 0, 0, 0, 0, time.UTC)
	ComplaintWindowEnd   = time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC)
)

// ComplaintsReport summarises what CleanComplaints did.
type ComplaintsReport struct {
	RowsIn         int
	RowsOut        int
	UnparsedDates  int
	OutOfWindow    int
	Imputed        map[string]int
	DroppedColumns []string
}

func (r *ComplaintsReport) imputed(col string, n int) {
	if n > 0 {
		r.Imputed[col] += n
	}
}

// CleanComplaints turns the raw complaints frame into the loadable table:
// free-text columns dropped, dates parsed and windowed, gaps imputed and
// flag columns converted to 1/0. The input frame is modified. All random
// draws come from rng.
func CleanComplaints(f *frame.Frame, rng *rand.Rand) (*frame.Frame, ComplaintsReport, error) {
	rep := ComplaintsReport{RowsIn: f.Len(), Imputed: make(map[string]int)}

	if err := f.Drop(ComplaintDropColumns...); err != nil {
		return nil, rep, fmt.Errorf("clean complaints: %w", err)
	}

	date, err := f.MustColumn(ColDateReceived)
	if err != nil {
		return nil, rep, fmt.Errorf("clean complaints: %w", err)
	}
	rep.UnparsedDates = parseDates(date)

	for _, name := range ComplaintSampleColumns {
		c, err := f.MustColumn(name)
		if err != nil {
			return nil, rep, fmt.Errorf("clean complaints: %w", err)
		}
		rep.imputed(name, fillFromValues(c, c.Observed(), rng))
	}

	f, rep.OutOfWindow = filterWindow(f, date.Name, ComplaintWindowStart, ComplaintWindowEnd)

	if err := fillFromCombinations(f, rng, &rep); err != nil {
		return nil, rep, fmt.Errorf("clean complaints: %w", err)
	}

	for _, name := range ComplaintFlagColumns {
		c, _ := f.Column(name)
		if c == nil {
			continue
		}
		toFlags(c)
		rep.imputed(name, fillFromValues(c, c.Observed(), rng))
	}

	// Whatever is still missing has nothing to be drawn from.
	for _, c := range f.Columns() {
		if c.MissingCount() > 0 {
			rep.DroppedColumns = append(rep.DroppedColumns, c.Name)
		}
	}
	if len(rep.DroppedColumns) > 0 {
		slog.Warn("dropping complaint columns without observed values", "columns", rep.DroppedColumns)
		if err := f.Drop(rep.DroppedColumns...); err != nil {
			return nil, rep, fmt.Errorf("clean complaints: %w", err)
		}
	}

	rep.RowsOut = f.Len()
	return f, rep, nil
}

// parseDates converts the column to time values in place. Cells that do not
// parse become missing; the count of such cells is returned.
func parseDates(c *frame.Column) int {
	bad := 0
	for i, v := range c.Values {
		switch x := v.(type) {
		case nil:
			continue
		case time.Time:
			continue
		case string:
			if t, ok := ParseDate(x); ok {
				c.Values[i] = t
				continue
			}
		default:
			if t, ok := ParseDate(fmt.Sprint(x)); ok {
				c.Values[i] = t
				continue
			}
		}
		c.Values[i] = nil
		bad++
	}
	c.Kind = frame.KindTime
	return bad
}

// filterWindow keeps rows whose time in col lies in [from, to]. Rows with a
// missing time are dropped. It returns the filtered frame and the number of
// rows removed.
func filterWindow(f *frame.Frame, col string, from, to time.Time) (*frame.Frame, int) {
	c, _ := f.Column(col)
	out := f.Filter(func(r int) bool {
		t, ok := c.Values[r].(time.Time)
		return ok && !t.Before(from) && !t.After(to)
	})
	return out, f.Len() - out.Len()
}

// fillFromValues replaces each missing cell of c with a uniform draw, with
// replacement, from pool. It returns the number of cells filled; nothing is
// filled when pool is empty.
func fillFromValues(c *frame.Column, pool []any, rng *rand.Rand) int {
	if len(pool) == 0 {
		return 0
	}
	n := 0
	for i, v := range c.Values {
		if v == nil {
			c.Values[i] = pool[rng.IntN(len(pool))]
			n++
		}
	}
	return n
}

// fillFromCombinations fills the remaining gaps. Cells of a combination
// column are drawn from that column's values across the distinct
// (Product, Sub-product, Issue, Sub-issue) combinations, one column at a
// time, so a drawn value need not belong to the row's other keys. Cells of
// any other column are drawn from the column's own observed values.
func fillFromCombinations(f *frame.Frame, rng *rand.Rand, rep *ComplaintsReport) error {
	keyCols := make([]*frame.Column, len(ComplaintCombinationColumns))
	for i, name := range ComplaintCombinationColumns {
		c, err := f.MustColumn(name)
		if err != nil {
			return err
		}
		keyCols[i] = c
	}
	combos := distinctRows(f, keyCols)

	isKey := make(map[string]int, len(keyCols))
	for i, c := range keyCols {
		isKey[c.Name] = i
	}

	for _, c := range f.Columns() {
		if c.MissingCount() == 0 {
			continue
		}
		var pool []any
		if k, ok := isKey[c.Name]; ok {
			for _, combo := range combos {
				if combo[k] != nil {
					pool = append(pool, combo[k])
				}
			}
		} else {
			pool = c.Observed()
		}
		rep.imputed(c.Name, fillFromValues(c, pool, rng))
	}
	return nil
}

// distinctRows returns the distinct value tuples of cols in first-seen order.
// Missing cells take part in the comparison.
func distinctRows(f *frame.Frame, cols []*frame.Column) [][]any {
	seen := make(map[string]bool)
	var out [][]any
	for r := 0; r < f.Len(); r++ {
		tuple := make([]any, len(cols))
		for i, c := range cols {
			tuple[i] = c.Values[r]
		}
		k := fmt.Sprintf("%#v", tuple)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, tuple)
	}
	return out
}

// toFlags converts yes/no cells to int64 1/0 in place. Unrecognised answers
// become missing.
func toFlags(c *frame.Column) {
	for i, v := range c.Values {
		switch x := v.(type) {
		case nil:
		case int64:
			if x != 0 && x != 1 {
				c.Values[i] = nil
			}
		case string:
			if n, ok := ParseFlag(x); ok {
				c.Values[i] = n
			} else {
				c.Values[i] = nil
			}
		default:
			c.Values[i] = nil
		}
	}
	c.Kind = frame.KindInt
}
