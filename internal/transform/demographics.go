package transform

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/JonMunkholm/complaints-etl/internal/frame"
)

const (
	ColDemoState    = "state"
	ColDemoCounty   = "county"
	ColDemoYear     = "year"
	ColDemoCategory = "category"
	ColDemoValue    = "population"
)

// CategoryRenames maps nested category paths to flat column names.
var CategoryRenames = map[string]string{
	"unemployment.employed":   "unemployment_employed",
	"unemployment.unemployed": "unemployment_unemployed",
}

// DemographicsReport summarises what CleanDemographics did.
type DemographicsReport struct {
	RowsIn        int
	RowsOut       int
	CountyRows    int
	CensusDropped []string
	Filled        map[string]int
}

// CleanDemographics reshapes the flattened demographics documents into one
// row per (state, year) with a column per category.
//
// Census columns are dropped, year-suffixed columns are melted and split
// into category and year, the table is pivoted back to wide form per
// (state, county, year), gaps are filled from the county group and counties
// are then summed into their state.
func CleanDemographics(f *frame.Frame) (*frame.Frame, DemographicsReport, error) {
	rep := DemographicsReport{RowsIn: f.Len(), Filled: make(map[string]int)}

	rep.CensusDropped = f.DropFunc(func(name string) bool {
		return strings.Contains(strings.ToLower(name), "census")
	})

	long, err := frame.Melt(f, []string{ColDemoState, ColDemoCounty}, ColDemoCategory, ColDemoValue)
	if err != nil {
		return nil, rep, fmt.Errorf("clean demographics: %w", err)
	}

	long, err = splitCategoryYear(long)
	if err != nil {
		return nil, rep, fmt.Errorf("clean demographics: %w", err)
	}

	wide, err := frame.Pivot(long,
		[]string{ColDemoState, ColDemoCounty, ColDemoYear}, ColDemoCategory, ColDemoValue)
	if err != nil {
		return nil, rep, fmt.Errorf("clean demographics: %w", err)
	}
	rep.CountyRows = wide.Len()

	for _, c := range wide.Columns() {
		if c.Name == ColDemoCounty {
			continue
		}
		agg := frame.ModeAggregate
		if c.Kind.Numeric() {
			agg = frame.MedianAggregate
		}
		n, err := frame.FillByGroup(wide, ColDemoCounty, c.Name, agg)
		if err != nil {
			return nil, rep, fmt.Errorf("clean demographics: %w", err)
		}
		if n > 0 {
			rep.Filled[c.Name] = n
		}
	}

	if err := wide.Drop(ColDemoCounty); err != nil {
		return nil, rep, fmt.Errorf("clean demographics: %w", err)
	}

	out, err := frame.Rollup(wide, ColDemoState, ColDemoYear)
	if err != nil {
		return nil, rep, fmt.Errorf("clean demographics: %w", err)
	}

	rep.RowsOut = out.Len()
	return out, rep, nil
}

// splitCategoryYear splits every melted label such as
// "unemployment.employed.2015" on its last dot into a category and an
// integer year, applying CategoryRenames to the category.
func splitCategoryYear(long *frame.Frame) (*frame.Frame, error) {
	cat, err := long.MustColumn(ColDemoCategory)
	if err != nil {
		return nil, err
	}

	years := make([]any, long.Len())
	for i, v := range cat.Values {
		label, _ := v.(string)
		dot := strings.LastIndex(label, ".")
		if dot < 0 {
			return nil, fmt.Errorf("column %q has no year suffix", label)
		}
		year, err := strconv.Atoi(label[dot+1:])
		if err != nil {
			return nil, fmt.Errorf("column %q: invalid year %q", label, label[dot+1:])
		}

		name := label[:dot]
		if renamed, ok := CategoryRenames[name]; ok {
			name = renamed
		}
		cat.Values[i] = name
		years[i] = int64(year)
	}

	state, _ := long.Column(ColDemoState)
	county, _ := long.Column(ColDemoCounty)
	value, _ := long.Column(ColDemoValue)
	return frame.New(state, county, cat, frame.NewColumn(ColDemoYear, frame.KindInt, years), value)
}
