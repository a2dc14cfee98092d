package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	sqlite "modernc.org/sqlite"
)

// Database is the SQLite price record store.
type Database struct {
	logger *slog.Logger
	read   *sql.DB
	write  *sql.DB
	path   string
	now    func() time.Time
}

const initSQL = `
	PRAGMA journal_mode = WAL;
	PRAGMA synchronous = NORMAL;
	PRAGMA temp_store = MEMORY;
	PRAGMA busy_timeout = 5000;
	PRAGMA automatic_index = true;
	PRAGMA foreign_keys = ON;
	PRAGMA analysis_limit = 1000;
	PRAGMA trusted_schema = OFF;
`

var registerHook sync.Once

// New opens the SQLite database at path and brings its schema up to date.
// Reads go through a pool of connections, writes are serialized on one.
func New(ctx context.Context, logger *slog.Logger, path string) (*Database, error) {
	registerHook.Do(func() {
		sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, _ string) error {
			_, err := conn.ExecContext(context.Background(), initSQL, nil)
			return err
		})
	})

	read, err := openPool(path, 10)
	if err != nil {
		return nil, fmt.Errorf("error when opening database (read): %w", err)
	}
	write, err := openPool(path, 1)
	if err != nil {
		read.Close()
		return nil, fmt.Errorf("error when opening database (write): %w", err)
	}

	d := &Database{
		logger: logger,
		read:   read,
		write:  write,
		path:   path,
		now:    time.Now,
	}
	if err := d.migrate(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return d, nil
}

func openPool(path string, maxConns int) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxConns)
	db.SetConnMaxIdleTime(time.Minute)
	return db, nil
}

func (d *Database) Close() {
	d.read.Close()
	d.write.Close()
}

// purgeTable deletes every row whose column holds a time before the given instant.
// Each call is its own statement and commits on its own.
func (d *Database) purgeTable(ctx context.Context, table string, column string, before time.Time) (int64, error) {
	d.logger.Debug(fmt.Sprintf("purging table %s", table), slog.Time("before", before))
	res, err := d.write.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s < ?`, table, column), before.Unix())
	if err != nil {
		return 0, fmt.Errorf("error when purging %s: %w", table, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		d.logger.Warn("can't get rows affected by purge", slog.String("table", table), slog.Any("error", err))
		return 0, nil
	}
	d.logger.Debug(fmt.Sprintf("purged %d rows from %s", rows, table))
	return rows, nil
}

func unix(t time.Time) int64 {
	return t.UTC().Unix()
}

func fromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
