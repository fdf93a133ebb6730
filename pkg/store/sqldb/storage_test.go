package sqldb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDB_SQLiteCreatesSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, dialect, err := NewDB(context.Background(), Settings{Driver: "sqlite", DSN: dbPath})
	require.NoError(t, err)
	require.NotNil(t, db)

	defer func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close database connection: %v", err)
		}
	}()
	assert.Equal(t, SQLite, dialect)

	_, err = db.Exec(
		`INSERT INTO report_blockchain (start_date, end_date, tx_hash) VALUES (?, ?, ?)`,
		"2024-01-01", "2024-01-31", "0xabc",
	)
	require.NoError(t, err)

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM report_blockchain WHERE start_date = ?", "2024-01-01").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// boot is idempotent
	require.NoError(t, Boot(context.Background(), db, SQLite))
}

func TestNewDB_UnsupportedDriver(t *testing.T) {
	db, _, err := NewDB(context.Background(), Settings{Driver: "mssql", DSN: "x"})
	assert.Error(t, err)
	assert.Nil(t, db)
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect(" Postgres ")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)

	_, err = ParseDialect("duckdb")
	assert.Error(t, err)
}

func TestDialect_Rebind(t *testing.T) {
	q := "SELECT a FROM t WHERE b = ? AND c = ?"
	assert.Equal(t, "SELECT a FROM t WHERE b = $1 AND c = $2", Postgres.Rebind(q))
	assert.Equal(t, q, SQLite.Rebind(q))
}

func TestDataSource(t *testing.T) {
	assert.Equal(t, "postgres://u@h/db", dataSource(Postgres, "postgres://u@h/db"))
	assert.Equal(t, "file:x.db?mode=ro", dataSource(SQLite, "file:x.db?mode=ro"))
	assert.Contains(t, dataSource(SQLite, "x.db"), "file:x.db?")
}
