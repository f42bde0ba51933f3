package extract

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/complaints-etl/internal/frame"
)

const complaintsCSV = `Date received,Product,State,ZIP code,Complaint ID,Timely response?
2015-03-02,Mortgage,NY,10001,101,Yes
2009-07-15,Debt collection,,,102,No
2019-11-30,Credit card,N/A,94105,103,Yes
`

func TestDecodeCSV(t *testing.T) {
	f, err := DecodeCSV(strings.NewReader(complaintsCSV))
	require.NoError(t, err)

	assert.Equal(t, 3, f.Len())
	assert.Equal(t,
		[]string{"Date received", "Product", "State", "ZIP code", "Complaint ID", "Timely response?"},
		f.Names(),
	)

	state, ok := f.Column("State")
	require.True(t, ok)
	assert.Equal(t, []any{"NY", nil, nil}, state.Values)

	id, _ := f.Column("Complaint ID")
	assert.Equal(t, frame.KindInt, id.Kind)
	assert.Equal(t, []any{int64(101), int64(102), int64(103)}, id.Values)

	date, _ := f.Column("Date received")
	assert.Equal(t, frame.KindText, date.Kind)
	assert.Equal(t, "2009-07-15", date.Values[1])
}

func TestReadCSV_StripsBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "complaints.csv")
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte(complaintsCSV)...)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	f, err := ReadCSV(path)
	require.NoError(t, err)

	_, ok := f.Column("Date received")
	assert.True(t, ok, "first header must not carry the BOM")
}

func TestReadCSV_MissingFile(t *testing.T) {
	_, err := ReadCSV(filepath.Join(t.TempDir(), "nope.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDecodeCSV_HeaderOnly(t *testing.T) {
	f, err := DecodeCSV(strings.NewReader("Date received,State\n"))
	require.NoError(t, err)

	assert.Equal(t, 0, f.Len())
	assert.Equal(t, []string{"Date received", "State"}, f.Names())
	state, _ := f.Column("State")
	assert.Equal(t, frame.KindText, state.Kind)
}

func TestDecodeCSV_Empty(t *testing.T) {
	_, err := DecodeCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestHeadBuffer_Overflow(t *testing.T) {
	h := &headBuffer{max: 4}
	n, err := h.Write([]byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, "abcd", h.buf.String())
	assert.True(t, h.overflow)

	_, ok := headerOnly(h)
	assert.False(t, ok)
}

func TestReadCSV_LogsProgress(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "complaints.csv")
	require.NoError(t, os.WriteFile(path, []byte(complaintsCSV), 0o600))

	_, err := ReadCSV(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "csv loaded", entry["msg"])
	assert.Equal(t, float64(len(complaintsCSV)), entry["bytes"])
	assert.Equal(t, 100.0, entry["percent"])
}
