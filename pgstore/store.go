package pgstore

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// Pool is the subset of pgxpool.Pool the store needs.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store keeps price records in PostgreSQL. It offers the same operations as
// the SQLite database so either can back the collector and the query engine.
type Store struct {
	logger *slog.Logger
	pool   Pool
	now    func() time.Time
}

// Open connects to PostgreSQL and creates the schema when missing.
func Open(ctx context.Context, logger *slog.Logger, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := New(logger, pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func New(logger *slog.Logger, pool Pool) *Store {
	return &Store{logger: logger, pool: pool, now: time.Now}
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create postgres schema: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	if p, ok := s.pool.(interface{ Close() }); ok {
		p.Close()
	}
}

func (s *Store) purge(ctx context.Context, table string, column string, before time.Time) (int64, error) {
	s.logger.Debug(fmt.Sprintf("purging table %s", table), slog.Time("before", before))
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s < $1`, table, column), before.UTC())
	if err != nil {
		return 0, fmt.Errorf("error when purging %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}
