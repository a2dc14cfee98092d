package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/angas/spotprice-go/types"
	"github.com/jackc/pgx/v5"
)

const providerColumns = `id, name, display_name, api_endpoint, country_code, currency, is_active, created_at`

// EnsureProviders inserts missing providers and refreshes metadata of known
// ones. Providers are matched on name.
func (s *Store) EnsureProviders(ctx context.Context, providers []types.Provider) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, p := range providers {
		_, err := tx.Exec(ctx, `
			INSERT INTO providers (name, display_name, api_endpoint, country_code, currency, is_active, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (name) DO UPDATE SET
				display_name = EXCLUDED.display_name,
				api_endpoint = EXCLUDED.api_endpoint,
				country_code = EXCLUDED.country_code,
				currency = EXCLUDED.currency,
				is_active = EXCLUDED.is_active`,
			p.Name, p.DisplayName, p.APIEndpoint, p.CountryCode, p.Currency, p.Active, s.now().UTC())
		if err != nil {
			return fmt.Errorf("saving provider %s: %w", p.Name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit providers: %w", err)
	}
	return nil
}

func (s *Store) ProviderByName(ctx context.Context, name string) (types.Provider, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+providerColumns+` FROM providers WHERE name = $1`, name)
	return scanProvider(row)
}

func (s *Store) Provider(ctx context.Context, id int64) (types.Provider, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+providerColumns+` FROM providers WHERE id = $1`, id)
	return scanProvider(row)
}

func (s *Store) Providers(ctx context.Context, activeOnly bool) ([]types.Provider, error) {
	query := `SELECT ` + providerColumns + ` FROM providers`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY id`

	rows, err := s.pool.Query(ctx, query)
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

func scanProvider(row pgx.Row) (types.Provider, error) {
	var p types.Provider
	err := row.Scan(&p.ID, &p.Name, &p.DisplayName, &p.APIEndpoint, &p.CountryCode, &p.Currency, &p.Active, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Provider{}, types.ErrNotFound
	}
	if err != nil {
		return types.Provider{}, fmt.Errorf("scanning provider row: %w", err)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}
