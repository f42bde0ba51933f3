package transform

import (
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/complaints-etl/internal/extract"
	"github.com/JonMunkholm/complaints-etl/internal/frame"
)

const complaintsFixture = `Date received,Product,Sub-product,Issue,Sub-issue,Consumer complaint narrative,Company,State,ZIP code,Tags,Submitted via,Company response to consumer,Timely response?,Consumer disputed?,Complaint ID
2015-01-10,Mortgage,Conventional,Loan servicing,Escrow,,Acme,NY,10001,,Web,Closed,Yes,No,1
2009-05-01,Mortgage,FHA,Loan servicing,,,Acme,CA,94105,Older American,Phone,Closed,No,Yes,2
2016-02-03,Credit card,,Billing,Late fee,,Bank,,,Servicemember,Web,Closed with relief,Yes,,3
not-a-date,Debt collection,Medical,Attempts to collect,,,Collector,TX,,,,Closed,No,No,4
2020-12-31,Mortgage,Conventional,Loan servicing,,,Acme,FL,33101,,Referral,Closed,Yes,Yes,5
2021-01-01,Mortgage,Conventional,Loan servicing,Escrow,,Acme,NJ,07001,,Web,Closed,Yes,No,6
`

func loadFixture(t *testing.T, data string) *frame.Frame {
	t.Helper()
	f, err := extract.DecodeCSV(strings.NewReader(data))
	require.NoError(t, err)
	return f
}

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func TestCleanComplaints_Properties(t *testing.T) {
	out, rep, err := CleanComplaints(loadFixture(t, complaintsFixture), seeded(1))
	require.NoError(t, err)

	assert.Equal(t, 6, rep.RowsIn)
	assert.Equal(t, 3, rep.RowsOut)
	assert.Equal(t, 3, out.Len())
	assert.Equal(t, 1, rep.UnparsedDates)
	assert.Equal(t, 3, rep.OutOfWindow)

	date, ok := out.Column(ColDateReceived)
	require.True(t, ok)
	assert.Equal(t, frame.KindTime, date.Kind)
	for _, v := range date.Values {
		d := v.(time.Time)
		assert.False(t, d.Before(ComplaintWindowStart), "date %v before window", d)
		assert.False(t, d.After(ComplaintWindowEnd), "date %v after window", d)
	}

	assert.Zero(t, out.MissingCount())

	for _, name := range []string{ColTags, ColZIPCode, "Consumer complaint narrative"} {
		_, ok := out.Column(name)
		assert.False(t, ok, "column %q should be gone", name)
	}
	assert.Equal(t, []string{"Consumer complaint narrative"}, rep.DroppedColumns)
}

func TestCleanComplaints_FlagsAreBinary(t *testing.T) {
	out, _, err := CleanComplaints(loadFixture(t, complaintsFixture), seeded(2))
	require.NoError(t, err)

	for _, name := range ComplaintFlagColumns {
		c, ok := out.Column(name)
		require.True(t, ok)
		assert.Equal(t, frame.KindInt, c.Kind)
		for _, v := range c.Values {
			assert.Contains(t, []any{int64(0), int64(1)}, v)
		}
	}

	timely, _ := out.Column(ColTimelyResponse)
	assert.Equal(t, []any{int64(1), int64(1), int64(1)}, timely.Values)
}

func TestCleanComplaints_CombinationFill(t *testing.T) {
	out, rep, err := CleanComplaints(loadFixture(t, complaintsFixture), seeded(3))
	require.NoError(t, err)

	// Row 2 of the output (Credit card) lacked a sub-product. The only
	// sub-product among the surviving combinations is "Conventional".
	sub, _ := out.Column(ColSubProduct)
	assert.Equal(t, "Conventional", sub.Values[1])

	// Row 3 (2020-12-31) lacked a sub-issue: drawn from the combinations.
	issue, _ := out.Column(ColSubIssue)
	assert.Contains(t, []any{"Escrow", "Late fee"}, issue.Values[2])

	assert.Equal(t, 1, rep.Imputed[ColSubProduct])
	assert.Equal(t, 1, rep.Imputed[ColSubIssue])
	assert.Equal(t, 1, rep.Imputed[ColState])
}

func TestCleanComplaints_SameSeedSameResult(t *testing.T) {
	a, _, err := CleanComplaints(loadFixture(t, complaintsFixture), seeded(42))
	require.NoError(t, err)
	b, _, err := CleanComplaints(loadFixture(t, complaintsFixture), seeded(42))
	require.NoError(t, err)

	require.Equal(t, a.Names(), b.Names())
	for r := 0; r < a.Len(); r++ {
		assert.Equal(t, a.Row(r), b.Row(r))
	}
}

func TestCleanComplaints_DateWindowScenario(t *testing.T) {
	data := `Date received,Product,Sub-product,Issue,Sub-issue,State,ZIP code,Tags,Submitted via,Company response to consumer,Timely response?,Consumer disputed?
2009-06-01,Mortgage,FHA,Servicing,Escrow,NY,10001,,Web,Closed,Yes,No
2015-06-01,Mortgage,FHA,Servicing,Escrow,CA,94105,,Web,Closed,No,Yes
`
	out, _, err := CleanComplaints(loadFixture(t, data), seeded(7))
	require.NoError(t, err)

	require.Equal(t, 1, out.Len())
	date, _ := out.Column(ColDateReceived)
	assert.Equal(t, time.Date(2015, 6, 1, 0, 0, 0, 0, time.UTC), date.Values[0])
	state, _ := out.Column(ColState)
	assert.Equal(t, "CA", state.Values[0])
}

func TestCleanComplaints_MissingDropColumn(t *testing.T) {
	data := "Date received,State\n2015-01-01,NY\n"
	_, _, err := CleanComplaints(loadFixture(t, data), seeded(1))
	assert.ErrorIs(t, err, frame.ErrColumnNotFound)
}

func TestFillFromValues(t *testing.T) {
	c := frame.NewColumn("c", frame.KindText, []any{"a", nil, nil, "b"})
	n := fillFromValues(c, []any{"z"}, seeded(1))
	assert.Equal(t, 2, n)
	assert.Equal(t, []any{"a", "z", "z", "b"}, c.Values)

	empty := frame.NewColumn("e", frame.KindText, []any{nil})
	assert.Zero(t, fillFromValues(empty, nil, seeded(1)))
	assert.Nil(t, empty.Values[0])
}
