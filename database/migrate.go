package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type migration struct {
	version int
	name    string
}

// migrations lists the embedded scripts ordered by the numeric prefix of
// their file name, e.g. 001_init.sql.
func migrations() ([]migration, error) {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	result := make([]migration, 0, len(names))
	for _, name := range names {
		prefix, _, ok := strings.Cut(strings.TrimPrefix(name, "migrations/"), "_")
		if !ok {
			return nil, fmt.Errorf("migration %s has no version prefix", name)
		}
		v, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("migration %s: bad version: %w", name, err)
		}
		result = append(result, migration{version: v, name: name})
	}
	slices.SortFunc(result, func(a, b migration) int { return a.version - b.version })
	return result, nil
}

// migrate applies every migration newer than PRAGMA user_version, each in its
// own transaction. An existing database is backed up before the first one.
func (d *Database) migrate(ctx context.Context) error {
	var current int
	if err := d.write.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	all, err := migrations()
	if err != nil {
		return err
	}

	pending := slices.DeleteFunc(all, func(m migration) bool { return m.version <= current })
	if len(pending) == 0 {
		return nil
	}
	if current > 0 {
		if err := d.Backup(ctx); err != nil {
			return fmt.Errorf("backup database before migration: %w", err)
		}
	}

	for _, m := range pending {
		d.logger.Debug("applying migration", slog.Int("version", m.version), slog.String("file", m.name))
		if err := d.apply(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (d *Database) apply(ctx context.Context, m migration) error {
	script, err := migrationsFS.ReadFile(m.name)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", m.name, err)
	}

	tx, err := d.write.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("start transaction for migration %d: %w", m.version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(script)); err != nil {
		return fmt.Errorf("apply migration %d: %w", m.version, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
		return fmt.Errorf("update database version for migration %d: %w", m.version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.version, err)
	}
	return nil
}
