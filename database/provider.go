package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/angas/spotprice-go/types"
)

const providerColumns = `id, name, display_name, api_endpoint, country_code, currency, is_active, created_at`

// EnsureProviders inserts missing providers and refreshes metadata of known
// ones. Providers are matched on name.
func (d *Database) EnsureProviders(ctx context.Context, providers []types.Provider) error {
	tx, err := d.write.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := unix(d.now())
	for _, p := range providers {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO providers (name, display_name, api_endpoint, country_code, currency, is_active, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				display_name = excluded.display_name,
				api_endpoint = excluded.api_endpoint,
				country_code = excluded.country_code,
				currency = excluded.currency,
				is_active = excluded.is_active`,
			p.Name, p.DisplayName, p.APIEndpoint, p.CountryCode, p.Currency, boolToInt(p.Active), now)
		if err != nil {
			return fmt.Errorf("saving provider %s: %w", p.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit providers: %w", err)
	}
	return nil
}

func (d *Database) ProviderByName(ctx context.Context, name string) (types.Provider, error) {
	row := d.read.QueryRowContext(ctx, `SELECT `+providerColumns+` FROM providers WHERE name = ?`, name)
	return scanProvider(row)
}

func (d *Database) Provider(ctx context.Context, id int64) (types.Provider, error) {
	row := d.read.QueryRowContext(ctx, `SELECT `+providerColumns+` FROM providers WHERE id = ?`, id)
	return scanProvider(row)
}

func (d *Database) Providers(ctx context.Context, activeOnly bool) ([]types.Provider, error) {
	query := `SELECT ` + providerColumns + ` FROM providers`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY id`

	rows, err := d.read.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("fetching providers: %w", err)
	}
	defer rows.Close()

	providers := make([]types.Provider, 0)
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading provider rows: %w", err)
	}
	return providers, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProvider(s scanner) (types.Provider, error) {
	var p types.Provider
	var active int
	var createdAt int64
	err := s.Scan(&p.ID, &p.Name, &p.DisplayName, &p.APIEndpoint, &p.CountryCode, &p.Currency, &active, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Provider{}, types.ErrNotFound
	}
	if err != nil {
		return types.Provider{}, fmt.Errorf("scanning provider row: %w", err)
	}
	p.Active = active == 1
	p.CreatedAt = fromUnix(createdAt)
	return p, nil
}
