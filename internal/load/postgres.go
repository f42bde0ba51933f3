// Package load writes cleaned frames into PostgreSQL.
package load

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/complaints-etl/internal/config"
	"github.com/JonMunkholm/complaints-etl/internal/frame"
	"github.com/JonMunkholm/complaints-etl/internal/logging"
)

// Beginner starts transactions. Satisfied by *pgxpool.Pool and *pgx.Conn.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Pinger checks that the server is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DB is what the loader needs from a pool.
type DB interface {
	Beginner
	Pinger
}

// ConnString returns cfg.URL when set, otherwise a postgresql:// URL built
// from the individual fields with the credentials escaped.
func ConnString(cfg config.DatabaseConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Name,
	}
	return u.String()
}

// Connect opens a connection pool sized from cfg. It does not ping.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	return pool, nil
}

// CheckConnectivity pings once and logs the outcome. A failure is reported
// but not returned; the load itself surfaces any real problem.
func CheckConnectivity(ctx context.Context, p Pinger) bool {
	logger := logging.FromContext(ctx)
	if err := p.Ping(ctx); err != nil {
		logger.Error("database connectivity check failed", "error", err)
		return false
	}
	logger.Info("connected to the database")
	return true
}

// ColumnType maps a frame kind to its PostgreSQL column type.
func ColumnType(k frame.Kind) string {
	switch k {
	case frame.KindInt:
		return "BIGINT"
	case frame.KindFloat:
		return "DOUBLE PRECISION"
	case frame.KindTime:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// CreateTableSQL renders the CREATE TABLE statement for f.
func CreateTableSQL(name string, f *frame.Frame) string {
	defs := make([]string, 0, f.Width())
	for _, c := range f.Columns() {
		defs = append(defs, pgx.Identifier{c.Name}.Sanitize()+" "+ColumnType(c.Kind))
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", pgx.Identifier{name}.Sanitize(), strings.Join(defs, ", "))
}

// ReplaceTable drops and recreates table name from f, then copies every
// row in. The three steps share one transaction, so a failure leaves the
// previous table untouched.
func ReplaceTable(ctx context.Context, db Beginner, name string, f *frame.Frame) (int64, error) {
	if f.Width() == 0 {
		return 0, fmt.Errorf("replace table %s: frame has no columns", name)
	}

	start := time.Now()
	tx, err := db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("replace table %s: begin transaction: %w", name, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+pgx.Identifier{name}.Sanitize()); err != nil {
		return 0, fmt.Errorf("replace table %s: drop: %w", name, err)
	}
	if _, err := tx.Exec(ctx, CreateTableSQL(name, f)); err != nil {
		return 0, fmt.Errorf("replace table %s: create: %w", name, err)
	}

	cols := f.Columns()
	n, err := tx.CopyFrom(ctx, pgx.Identifier{name}, f.Names(),
		pgx.CopyFromSlice(f.Len(), func(i int) ([]any, error) {
			row := make([]any, len(cols))
			for j, c := range cols {
				v, err := cell(c.Kind, c.Values[i])
				if err != nil {
					return nil, fmt.Errorf("row %d column %q: %w", i, c.Name, err)
				}
				row[j] = v
			}
			return row, nil
		}))
	if err != nil {
		return 0, fmt.Errorf("replace table %s: copy: %w", name, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("replace table %s: commit: %w", name, err)
	}

	logging.FromContext(ctx).Info("table replaced",
		slog.String("table", name),
		slog.Int64("rows", n),
		slog.Int("columns", len(cols)),
		slog.Duration("duration", time.Since(start)),
	)
	return n, nil
}

// cell coerces v to the Go type COPY expects for a column of kind k.
func cell(k frame.Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch k {
	case frame.KindInt:
		switch x := v.(type) {
		case int64:
			return x, nil
		case int:
			return int64(x), nil
		case float64:
			if x != float64(int64(x)) {
				return nil, fmt.Errorf("non-integer value %v in integer column", x)
			}
			return int64(x), nil
		}
	case frame.KindFloat:
		switch x := v.(type) {
		case float64:
			return x, nil
		case int64:
			return float64(x), nil
		case int:
			return float64(x), nil
		}
	case frame.KindTime:
		if t, ok := v.(time.Time); ok {
			return t, nil
		}
	default:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprint(v), nil
	}
	return nil, fmt.Errorf("unexpected %T in %s column", v, k)
}
