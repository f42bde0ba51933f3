package transform

import (
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/JonMunkholm/complaints-etl/internal/extract"
	"github.com/JonMunkholm/complaints-etl/internal/frame"
)

func num(vals ...any) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		if v != nil {
			out[i] = float64(v.(int))
		}
	}
	return out
}

func demographicsFixture(t *testing.T) *frame.Frame {
	t.Helper()
	f, err := frame.New(
		frame.NewColumn("state", frame.KindText, []any{"NY", "NY", "CA"}),
		frame.NewColumn("county", frame.KindText, []any{"Kings", "Queens", "Alameda"}),
		frame.NewColumn("unemployment.employed.2015", frame.KindFloat, num(nil, 30, 5)),
		frame.NewColumn("unemployment.employed.2016", frame.KindFloat, num(100, 40, 6)),
		frame.NewColumn("unemployment.employed.2017", frame.KindFloat, num(200, nil, 7)),
		frame.NewColumn("population_by_age.total.18_over.2015", frame.KindFloat, num(50, 60, 70)),
		frame.NewColumn("Census.total.2010", frame.KindFloat, num(1, 2, 3)),
	)
	require.NoError(t, err)
	return f
}

func TestCleanDemographics(t *testing.T) {
	out, rep, err := CleanDemographics(demographicsFixture(t))
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"state", "year", "population_by_age.total.18_over", "unemployment_employed"},
		out.Names(),
	)
	assert.Equal(t, []string{"Census.total.2010"}, rep.CensusDropped)
	// Queens 2017 has no value in any category, so pivot drops the row.
	assert.Equal(t, 8, rep.CountyRows)
	assert.Equal(t, 6, rep.RowsOut)

	want := [][]any{
		{"CA", int64(2015), 70.0, 5.0},
		{"CA", int64(2016), 70.0, 6.0},
		{"CA", int64(2017), 70.0, 7.0},
		{"NY", int64(2015), 110.0, 180.0}, // Kings 2015 filled with median(100, 200)
		{"NY", int64(2016), 110.0, 140.0},
		{"NY", int64(2017), 50.0, 200.0}, // Kings only
	}
	require.Equal(t, len(want), out.Len())
	for r, row := range want {
		assert.Equal(t, row, out.Row(r), "row %d", r)
	}

	assert.Equal(t, 1, rep.Filled["unemployment_employed"])
	assert.Equal(t, 5, rep.Filled["population_by_age.total.18_over"])
}

func TestCleanDemographics_NaNFilledFromCounty(t *testing.T) {
	doc := bson.D{
		{Key: "state", Value: "NY"},
		{Key: "county", Value: "Kings"},
		{Key: "unemployment", Value: bson.D{
			{Key: "employed", Value: bson.D{
				{Key: "2015", Value: math.NaN()},
				{Key: "2016", Value: 1.0},
				{Key: "2017", Value: 3.0},
			}},
		}},
	}
	f, err := extract.BuildFrame([][]extract.Field{extract.Flatten(doc)})
	require.NoError(t, err)

	out, rep, err := CleanDemographics(f)
	require.NoError(t, err)

	assert.Equal(t, 3, rep.CountyRows)
	assert.Equal(t, 1, rep.Filled["unemployment_employed"])
	emp, _ := out.Column("unemployment_employed")
	assert.Equal(t, []any{2.0, 1.0, 3.0}, emp.Values)
}

func TestCleanDemographics_NoCensusColumns(t *testing.T) {
	out, _, err := CleanDemographics(demographicsFixture(t))
	require.NoError(t, err)

	for _, name := range out.Names() {
		assert.NotContains(t, strings.ToLower(name), "census")
	}
}

func TestCleanDemographics_OneRowPerStateYear(t *testing.T) {
	out, _, err := CleanDemographics(demographicsFixture(t))
	require.NoError(t, err)

	state, _ := out.Column("state")
	year, _ := out.Column("year")
	seen := make(map[string]bool)
	for r := 0; r < out.Len(); r++ {
		key := state.Values[r].(string) + "/" + strconv.FormatInt(year.Values[r].(int64), 10)
		assert.False(t, seen[key], "duplicate row for %s", key)
		seen[key] = true
	}
	_, hasCounty := out.Column("county")
	assert.False(t, hasCounty)
}

func TestCleanDemographics_BadYearSuffix(t *testing.T) {
	f, err := frame.New(
		frame.NewColumn("state", frame.KindText, []any{"NY"}),
		frame.NewColumn("county", frame.KindText, []any{"Kings"}),
		frame.NewColumn("unemployment.employed.latest", frame.KindFloat, []any{1.0}),
	)
	require.NoError(t, err)

	_, _, err = CleanDemographics(f)
	assert.ErrorContains(t, err, "invalid year")
}

func TestCleanDemographics_MissingCounty(t *testing.T) {
	f, err := frame.New(frame.NewColumn("state", frame.KindText, []any{"NY"}))
	require.NoError(t, err)

	_, _, err = CleanDemographics(f)
	assert.ErrorIs(t, err, frame.ErrColumnNotFound)
}
