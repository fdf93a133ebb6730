package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

const postgresCommitmentTable = `
	CREATE TABLE IF NOT EXISTS report_blockchain (
		id BIGSERIAL PRIMARY KEY,
		start_date VARCHAR(50) NOT NULL,
		end_date VARCHAR(50) NOT NULL,
		total_revenue DOUBLE PRECISION,
		total_orders BIGINT,
		avg_order_value DOUBLE PRECISION,
		completion_rate DOUBLE PRECISION,
		tx_hash VARCHAR(255) NOT NULL,
		explorer_url VARCHAR(500),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
`

const sqliteCommitmentTable = `
	CREATE TABLE IF NOT EXISTS report_blockchain (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		start_date VARCHAR(50) NOT NULL,
		end_date VARCHAR(50) NOT NULL,
		total_revenue DOUBLE,
		total_orders INTEGER,
		avg_order_value DOUBLE,
		completion_rate DOUBLE,
		tx_hash VARCHAR(255) NOT NULL,
		explorer_url VARCHAR(500),
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
`

const commitmentPeriodIndex = `
	CREATE INDEX IF NOT EXISTS idx_report_blockchain_period
		ON report_blockchain (start_date, end_date, created_at);
`

var bootQueries = map[Dialect][]string{
	Postgres: {postgresCommitmentTable, commitmentPeriodIndex},
	SQLite:   {sqliteCommitmentTable, commitmentPeriodIndex},
}

type Settings struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

func ParseDialect(driver string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(driver))); d {
	case Postgres, SQLite:
		return d, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q (expected postgres or sqlite)", driver)
	}
}

// NewDB opens the database, verifies it is reachable and creates the
// commitment table when missing.
func NewDB(ctx context.Context, settings Settings) (*sql.DB, Dialect, error) {
	dialect, err := ParseDialect(settings.Driver)
	if err != nil {
		return nil, "", err
	}

	db, err := sql.Open(string(dialect), dataSource(dialect, settings.DSN))
	if err != nil {
		return nil, "", fmt.Errorf("open %s database: %w", dialect, err)
	}
	if settings.MaxOpenConns > 0 {
		db.SetMaxOpenConns(settings.MaxOpenConns)
	}
	if settings.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(settings.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("ping %s database: %w", dialect, err)
	}
	if err := Boot(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, "", err
	}
	return db, dialect, nil
}

func Boot(ctx context.Context, db *sql.DB, dialect Dialect) error {
	for _, query := range bootQueries[dialect] {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("boot %s schema: %w", dialect, err)
		}
	}
	return nil
}

// Rebind rewrites ? placeholders into the dialect's positional form.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func dataSource(dialect Dialect, dsn string) string {
	if dialect != SQLite || strings.HasPrefix(dsn, "file:") || dsn == ":memory:" {
		return dsn
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite", dsn)
}
