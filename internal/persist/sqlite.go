package persist

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3/database"
	_ "modernc.org/sqlite"

	"github.com/stellardominion/engine/internal/core/simerr"
)

// SQLiteStore keeps snapshots in a local SQLite database.
type SQLiteStore struct {
	sqlStore
}

// OpenSQLite opens or creates the database at path and migrates it.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w: %w", simerr.ErrIO, err)
	}
	// One writer; avoids SQLITE_BUSY between pooled connections.
	conn.SetMaxOpenConns(1)
	if err := runMigrations(ctx, conn.DB, database.DialectSQLite3, "sqlite"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate sqlite: %w: %w", simerr.ErrIO, err)
	}
	return &SQLiteStore{sqlStore{db: conn}}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
