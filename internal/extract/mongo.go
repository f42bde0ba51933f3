package extract

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/JonMunkholm/complaints-etl/internal/frame"
)

// Collection is the part of *mongo.Collection the extractor needs.
type Collection interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
}

// Field is one flattened document entry.
type Field struct {
	Key   string
	Value any
}

// Projection builds the field projection for the demographics query: state
// and county, every "<field>.<year>" in [fromYear, toYear], and no _id.
func Projection(fields []string, fromYear, toYear int) bson.D {
	proj := bson.D{
		{Key: "state", Value: 1},
		{Key: "county", Value: 1},
		{Key: "_id", Value: 0},
	}
	for _, field := range fields {
		for year := fromYear; year <= toYear; year++ {
			proj = append(proj, bson.E{Key: field + "." + strconv.Itoa(year), Value: 1})
		}
	}
	return proj
}

// ReadDemographics runs the projected query over the whole collection and
// flattens the documents into a frame.
func ReadDemographics(ctx context.Context, coll Collection, projection bson.D) (*frame.Frame, error) {
	cursor, err := coll.Find(ctx, bson.D{}, options.Find().SetProjection(projection))
	if err != nil {
		return nil, fmt.Errorf("find demographics: %w", err)
	}
	defer cursor.Close(ctx)

	var docs [][]Field
	for cursor.Next(ctx) {
		var doc bson.D
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode demographics document: %w", err)
		}
		docs = append(docs, Flatten(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate demographics: %w", err)
	}

	f, err := BuildFrame(docs)
	if err != nil {
		return nil, fmt.Errorf("build demographics frame: %w", err)
	}

	slog.Debug("demographics loaded", "documents", len(docs), "columns", f.Width())
	return f, nil
}

// Flatten turns a nested document into dot-joined key paths, keeping the
// document's key order. Embedded documents are walked; every other value is
// normalised by scalar.
func Flatten(doc bson.D) []Field {
	var out []Field
	flattenInto(&out, "", doc)
	return out
}

func flattenInto(out *[]Field, prefix string, doc bson.D) {
	for _, e := range doc {
		key := e.Key
		if prefix != "" {
			key = prefix + "." + e.Key
		}

		switch v := e.Value.(type) {
		case bson.D:
			flattenInto(out, key, v)
		case bson.M:
			flattenInto(out, key, sortedDoc(v))
		default:
			*out = append(*out, Field{Key: key, Value: scalar(v)})
		}
	}
}

func sortedDoc(m bson.M) bson.D {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	d := make(bson.D, len(keys))
	for i, k := range keys {
		d[i] = bson.E{Key: k, Value: m[k]}
	}
	return d
}

// scalar maps BSON values to frame cells: numbers to float64, dates to
// time.Time, null and NaN to missing and anything else to its string form.
func scalar(v any) any {
	switch x := v.(type) {
	case nil, primitive.Null, primitive.Undefined:
		return nil
	case string:
		return x
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float64:
		return number(x)
	case primitive.Decimal128:
		f, err := strconv.ParseFloat(x.String(), 64)
		if err != nil {
			return nil
		}
		return number(f)
	case primitive.DateTime:
		return x.Time().UTC()
	case time.Time:
		return x.UTC()
	default:
		return fmt.Sprint(x)
	}
}

// number treats NaN as missing, the way pandas-written collections encode it.
func number(f float64) any {
	if math.IsNaN(f) {
		return nil
	}
	return f
}

// BuildFrame lays flattened documents out as columns in first-seen key
// order. A key absent from a document is a missing cell. Columns holding
// only numbers become float, only times become time, anything else text.
func BuildFrame(docs [][]Field) (*frame.Frame, error) {
	var order []string
	cells := make(map[string][]any)
	for i, doc := range docs {
		for _, fld := range doc {
			col, ok := cells[fld.Key]
			if !ok {
				order = append(order, fld.Key)
				col = make([]any, len(docs))
				cells[fld.Key] = col
			}
			col[i] = fld.Value
		}
	}

	cols := make([]*frame.Column, 0, len(order))
	for _, key := range order {
		vals := cells[key]
		cols = append(cols, frame.NewColumn(key, kindOf(vals), vals))
	}
	return frame.New(cols...)
}

func kindOf(vals []any) frame.Kind {
	allFloat, allTime, seen := true, true, false
	for _, v := range vals {
		if v == nil {
			continue
		}
		seen = true
		if _, ok := v.(float64); !ok {
			allFloat = false
		}
		if _, ok := v.(time.Time); !ok {
			allTime = false
		}
	}

	switch {
	case !seen:
		return frame.KindText
	case allFloat:
		return frame.KindFloat
	case allTime:
		return frame.KindTime
	}

	for i, v := range vals {
		if v == nil {
			continue
		}
		if _, ok := v.(string); !ok {
			vals[i] = stringify(v)
		}
	}
	return frame.KindText
}

func stringify(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}
