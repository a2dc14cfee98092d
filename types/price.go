package types

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

type PriceType string

const (
	PriceTypeSpot     PriceType = "spot"
	PriceTypeDayAhead PriceType = "day_ahead"
	PriceTypeIntraday PriceType = "intraday"
)

type PriceUnit string

const (
	UnitCentsPerKWh PriceUnit = "ct/kWh"
	UnitEURPerMWh   PriceUnit = "€/MWh"
)

// PriceRecord is one observed price for the half-open interval [StartTime, EndTime).
// Prices are in cents (or the minor currency unit) per kWh.
type PriceRecord struct {
	ID            int64           `json:"id"`
	ProviderID    int64           `json:"provider_id"`
	Timestamp     time.Time       `json:"timestamp" validate:"required"`
	StartTime     time.Time       `json:"start_time" validate:"required"`
	EndTime       time.Time       `json:"end_time" validate:"required,gtfield=StartTime"`
	PricePerKWh   float64         `json:"price_per_kwh"`
	PriceUnit     PriceUnit       `json:"price_unit" validate:"required"`
	PriceType     PriceType       `json:"price_type" validate:"oneof=spot day_ahead intraday"`
	Taxes         float64         `json:"taxes"`
	GridFees      float64         `json:"grid_fees"`
	TotalPrice    float64         `json:"total_price"`
	MarketArea    string          `json:"market_area,omitempty"`
	QualityRating string          `json:"quality_rating,omitempty"`
	DataSource    string          `json:"data_source" validate:"required"`
	RawData       json.RawMessage `json:"raw_data,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (r PriceRecord) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// ValidateRecord checks the structural invariants every stored record must satisfy.
func ValidateRecord(r PriceRecord) error {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid price record %s-%s: %w",
			r.StartTime.Format(time.RFC3339), r.EndTime.Format(time.RFC3339), err)
	}
	return nil
}

// Window is a half-open collection window [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) String() string {
	return fmt.Sprintf("%s..%s", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

type PriceField string

const (
	FieldTimestamp PriceField = "timestamp"
	FieldStartTime PriceField = "start_time"
)

// PriceFilter selects price records. From and To are inclusive, zero values are unbounded.
type PriceFilter struct {
	ProviderIDs []int64
	Field       PriceField
	From        time.Time
	To          time.Time
	Descending  bool
	Limit       int
}
