package frame

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textCol(name string, vals ...any) *Column {
	return NewColumn(name, KindText, vals)
}

func TestNew_LengthMismatch(t *testing.T) {
	_, err := New(textCol("a", "x", "y"), textCol("b", "z"))
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestNew_DuplicateColumn(t *testing.T) {
	_, err := New(textCol("a", "x"), textCol("a", "y"))
	assert.ErrorIs(t, err, ErrDuplicateColumn)
}

func TestDrop(t *testing.T) {
	f, err := New(textCol("a", "1"), textCol("b", "2"), textCol("c", "3"))
	require.NoError(t, err)

	require.NoError(t, f.Drop("b"))
	assert.Equal(t, []string{"a", "c"}, f.Names())

	c, ok := f.Column("c")
	require.True(t, ok)
	assert.Equal(t, "3", c.Values[0])

	err = f.Drop("missing")
	assert.ErrorIs(t, err, ErrColumnNotFound)
	assert.Equal(t, []string{"a", "c"}, f.Names())
}

func TestDropFunc(t *testing.T) {
	f, err := New(textCol("Census2010", "1"), textCol("state", "NY"), textCol("x.census", "2"))
	require.NoError(t, err)

	dropped := f.DropFunc(func(name string) bool { return name != "state" })
	assert.Equal(t, []string{"Census2010", "x.census"}, dropped)
	assert.Equal(t, []string{"state"}, f.Names())
}

func TestFilter(t *testing.T) {
	f, err := New(
		NewColumn("n", KindInt, []any{int64(1), int64(2), int64(3), int64(4)}),
		textCol("s", "a", nil, "c", "d"),
	)
	require.NoError(t, err)

	even := f.Filter(func(r int) bool { return r%2 == 1 })
	assert.Equal(t, 2, even.Len())
	assert.Equal(t, []any{int64(2), nil}, even.Row(0))
	assert.Equal(t, []any{int64(4), "d"}, even.Row(1))

	// Source frame is untouched.
	assert.Equal(t, 4, f.Len())
	assert.Equal(t, 1, f.MissingCount())
}

func TestInferKind(t *testing.T) {
	tests := []struct {
		name     string
		values   []any
		wantKind Kind
		want     []any
	}{
		{
			name:     "integers with gap",
			values:   []any{"1", nil, " 42 "},
			wantKind: KindInt,
			want:     []any{int64(1), nil, int64(42)},
		},
		{
			name:     "mixed int and float",
			values:   []any{"1", "2.5"},
			wantKind: KindFloat,
			want:     []any{1.0, 2.5},
		},
		{
			name:     "text stays text",
			values:   []any{"1", "Yes"},
			wantKind: KindText,
			want:     []any{"1", "Yes"},
		},
		{
			name:     "all missing stays text",
			values:   []any{nil, nil},
			wantKind: KindText,
			want:     []any{nil, nil},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := textCol("c", tt.values...)
			c.InferKind()
			assert.Equal(t, tt.wantKind, c.Kind)
			assert.Equal(t, tt.want, c.Values)
		})
	}
}

func TestCompare(t *testing.T) {
	d1 := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, -1, Compare(int64(1), 2.5))
	assert.Equal(t, 1, Compare(3.0, int64(2)))
	assert.Equal(t, 0, Compare(int64(2), 2.0))
	assert.Equal(t, -1, Compare(d1, d2))
	assert.Equal(t, -1, Compare("AL", "NY"))
	assert.Equal(t, 1, Compare(nil, "AL"))
	assert.Equal(t, -1, Compare("AL", nil))
}
