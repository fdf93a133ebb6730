package commitment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/de-tools/report-ledger/pkg/models/store"
	"github.com/de-tools/report-ledger/pkg/store/sqldb"
	"github.com/rs/zerolog"
)

var ErrNotFound = errors.New("commitment not found")

// Store persists commitment records. Rows are only ever appended.
type Store interface {
	// Insert appends a row and fills in its ID and CreatedAt.
	Insert(ctx context.Context, c *store.Commitment) error
	// LatestByPeriod returns the most recently created row for the period
	// or ErrNotFound.
	LatestByPeriod(ctx context.Context, period store.CommitmentPeriod) (*store.Commitment, error)
}

type commitmentStore struct {
	db      *sql.DB
	dialect sqldb.Dialect
	now     func() time.Time
}

func NewStore(db *sql.DB, dialect sqldb.Dialect) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if _, err := sqldb.ParseDialect(string(dialect)); err != nil {
		return nil, err
	}
	return &commitmentStore{db: db, dialect: dialect, now: time.Now}, nil
}

const insertCommitment = `
	INSERT INTO report_blockchain (
		start_date, end_date, total_revenue, total_orders,
		avg_order_value, completion_rate, tx_hash, explorer_url, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	RETURNING id
`

const selectLatestCommitment = `
	SELECT id, start_date, end_date, total_revenue, total_orders,
		avg_order_value, completion_rate, tx_hash, explorer_url, created_at
	FROM report_blockchain
	WHERE start_date = ? AND end_date = ?
	ORDER BY created_at DESC, id DESC
	LIMIT 1
`

func (s *commitmentStore) Insert(ctx context.Context, c *store.Commitment) error {
	if c == nil {
		return fmt.Errorf("commitment cannot be nil")
	}
	// Postgres keeps microseconds; the returned record matches what is stored.
	createdAt := s.now().UTC().Truncate(time.Microsecond)

	return s.withConn(ctx, func(conn *sql.Conn) error {
		var id int64
		err := conn.QueryRowContext(ctx, s.dialect.Rebind(insertCommitment),
			c.StartDate,
			c.EndDate,
			c.TotalRevenue,
			c.TotalOrders,
			c.AvgOrderValue,
			c.CompletionRate,
			c.TxHash,
			nullable(c.ExplorerURL),
			createdAt,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert commitment for %s..%s: %w", c.StartDate, c.EndDate, err)
		}
		c.ID = id
		c.CreatedAt = createdAt
		return nil
	})
}

func (s *commitmentStore) LatestByPeriod(ctx context.Context, period store.CommitmentPeriod) (*store.Commitment, error) {
	var result *store.Commitment
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		var (
			c           store.Commitment
			revenue     sql.NullFloat64
			orders      sql.NullInt64
			avgOrder    sql.NullFloat64
			completion  sql.NullFloat64
			explorerURL sql.NullString
		)
		err := conn.QueryRowContext(ctx, s.dialect.Rebind(selectLatestCommitment), period.StartDate, period.EndDate).
			Scan(&c.ID, &c.StartDate, &c.EndDate, &revenue, &orders, &avgOrder, &completion,
				&c.TxHash, &explorerURL, &c.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("query latest commitment for %s..%s: %w", period.StartDate, period.EndDate, err)
		}

		c.TotalRevenue = revenue.Float64
		c.TotalOrders = orders.Int64
		c.AvgOrderValue = avgOrder.Float64
		c.CompletionRate = completion.Float64
		c.ExplorerURL = explorerURL.String
		c.CreatedAt = c.CreatedAt.UTC()
		result = &c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// withConn scopes a pooled connection to a single operation and returns it
// on every path.
func (s *commitmentStore) withConn(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to release database connection")
		}
	}()
	return fn(conn)
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
