package types

import (
	"context"
	"errors"
	"time"
)

type Provider struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	APIEndpoint string    `json:"api_endpoint,omitempty"`
	CountryCode string    `json:"country_code"`
	Currency    string    `json:"currency"`
	Active      bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// PriceAdapter fetches raw price data from one external source and turns it
// into price records. Fetch returns the payload untouched so that Normalize
// can be exercised on recorded fixtures.
type PriceAdapter interface {
	Provider() Provider
	PriceType() PriceType
	Fetch(ctx context.Context, w Window) ([]byte, error)
	Normalize(raw []byte) ([]PriceRecord, error)
}

// ErrNotFound is returned by stores when a requested row does not exist.
var ErrNotFound = errors.New("not found")
