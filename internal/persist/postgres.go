package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3/database"
	"go.uber.org/zap"

	"github.com/stellardominion/engine/internal/config"
	"github.com/stellardominion/engine/internal/core/simerr"
)

// PostgresStore keeps snapshots in PostgreSQL through a pgx pool.
type PostgresStore struct {
	sqlStore
	pool *pgxpool.Pool
	log  *zap.Logger
}

func OpenPostgres(ctx context.Context, cfg config.PostgresConfig, log *zap.Logger) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w: %w", simerr.ErrIO, err)
	}

	// Verify connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w: %w", simerr.ErrIO, err)
	}

	db := stdlib.OpenDBFromPool(pool)
	if err := runMigrations(ctx, db, database.DialectPostgres, "postgres"); err != nil {
		db.Close()
		pool.Close()
		return nil, fmt.Errorf("migrate postgres: %w: %w", simerr.ErrIO, err)
	}

	log.Info("存檔資料庫已連線", zap.Int32("max_conns", poolCfg.MaxConns))
	return &PostgresStore{
		sqlStore: sqlStore{db: sqlx.NewDb(db, "pgx")},
		pool:     pool,
		log:      log,
	}, nil
}

func (s *PostgresStore) Close() error {
	err := s.db.Close()
	s.pool.Close()
	return err
}
