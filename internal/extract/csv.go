// Package extract reads the two ETL sources into frames: the complaints CSV
// from local disk and the demographics documents from MongoDB.
package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/JonMunkholm/complaints-etl/internal/frame"
)

// NAValues are the cell contents read as missing.
var NAValues = []string{"", "NA", "N/A", "NaN", "nan", "null", "NULL", "<NA>"}

// ReadCSV loads the CSV file at path into a frame. Every column is read as
// text, then narrowed to int or float when all of its observed values are
// numeric. An unreadable or malformed file is an error.
func ReadCSV(path string) (*frame.Frame, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer fh.Close()

	var size int64
	if st, err := fh.Stat(); err == nil {
		size = st.Size()
	}

	src := wrapSource(fh, size)
	f, err := DecodeCSV(src)
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", path, err)
	}

	slog.Debug("csv loaded",
		"path", path,
		"bytes", src.BytesRead,
		"percent", src.Progress(),
		"rows", f.Len(),
		"columns", f.Width(),
	)
	return f, nil
}

// DecodeCSV parses CSV data with a header row into a frame. A header with no
// data rows yields an empty frame with text columns.
func DecodeCSV(r io.Reader) (*frame.Frame, error) {
	head := &headBuffer{max: maxHeaderBytes}
	df := dataframe.ReadCSV(io.TeeReader(r, head),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(NAValues),
	)
	if df.Err != nil {
		if f, ok := headerOnly(head); ok {
			return f, nil
		}
		return nil, df.Err
	}
	return fromDataFrame(df)
}

const maxHeaderBytes = 64 << 10

// headBuffer keeps the first max bytes written to it and drops the rest.
type headBuffer struct {
	buf      bytes.Buffer
	max      int
	overflow bool
}

func (h *headBuffer) Write(p []byte) (int, error) {
	if room := h.max - h.buf.Len(); room > 0 && !h.overflow {
		if len(p) > room {
			h.buf.Write(p[:room])
			h.overflow = true
		} else {
			h.buf.Write(p)
		}
	} else if len(p) > 0 {
		h.overflow = true
	}
	return len(p), nil
}

// headerOnly builds the zero-row frame gota refuses to: it succeeds only
// when the whole input was a single CSV record.
func headerOnly(h *headBuffer) (*frame.Frame, bool) {
	if h.overflow {
		return nil, false
	}
	records, err := csv.NewReader(bytes.NewReader(h.buf.Bytes())).ReadAll()
	if err != nil || len(records) != 1 {
		return nil, false
	}

	cols := make([]*frame.Column, 0, len(records[0]))
	for _, name := range records[0] {
		cols = append(cols, frame.NewColumn(name, frame.KindText, []any{}))
	}
	f, err := frame.New(cols...)
	if err != nil {
		return nil, false
	}
	return f, true
}

func fromDataFrame(df dataframe.DataFrame) (*frame.Frame, error) {
	cols := make([]*frame.Column, 0, df.Ncol())
	for _, name := range df.Names() {
		s := df.Col(name)
		missing := s.IsNaN()
		records := s.Records()

		vals := make([]any, len(records))
		for i, rec := range records {
			if missing[i] {
				continue
			}
			vals[i] = rec
		}

		c := frame.NewColumn(name, frame.KindText, vals)
		c.InferKind()
		cols = append(cols, c)
	}
	return frame.New(cols...)
}
