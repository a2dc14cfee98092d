package www

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/angas/spotprice-go/query"
)

func NewPriceRangeHandler(logger *slog.Logger, engine *query.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p query.RangeParams
		var err error
		if p.ProviderIDs, err = idList(r.URL, "provider_ids"); err != nil {
			writeError(logger, w, err)
			return
		}
		if p.Start, err = timeOrZero(r.URL, "start_time"); err != nil {
			writeError(logger, w, err)
			return
		}
		if p.End, err = timeOrZero(r.URL, "end_time"); err != nil {
			writeError(logger, w, err)
			return
		}
		if p.Limit, err = intOrDefault(r.URL, "limit", 0); err != nil {
			writeError(logger, w, err)
			return
		}

		result, err := engine.Range(r.Context(), p)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func NewCurrentPricesHandler(logger *slog.Logger, engine *query.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prices, err := engine.Current(r.Context())
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(w, http.StatusOK, prices)
	}
}

func NewForecastHandler(logger *slog.Logger, engine *query.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, err := optionalID(r.URL, "provider_id")
		if err != nil {
			writeError(logger, w, err)
			return
		}
		if providerID == nil {
			writeError(logger, w, fmt.Errorf("%w: provider_id is required", errBadParameter))
			return
		}
		hours, err := intOrDefault(r.URL, "hours", 0)
		if err != nil {
			writeError(logger, w, err)
			return
		}

		forecast, err := engine.Forecast(r.Context(), *providerID, hours)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(w, http.StatusOK, forecast)
	}
}

type cheapestResponse struct {
	DurationHours int                    `json:"duration_hours"`
	Periods       []query.CheapestWindow `json:"periods"`
}

func NewCheapestHandler(logger *slog.Logger, engine *query.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p query.CheapestParams
		var err error
		if p.DurationHours, err = intOrDefault(r.URL, "duration_hours", 1); err != nil {
			writeError(logger, w, err)
			return
		}
		if p.LookaheadHours, err = intOrDefault(r.URL, "lookahead_hours", 0); err != nil {
			writeError(logger, w, err)
			return
		}
		if p.Limit, err = intOrDefault(r.URL, "limit", 0); err != nil {
			writeError(logger, w, err)
			return
		}
		if p.ProviderIDs, err = idList(r.URL, "provider_ids"); err != nil {
			writeError(logger, w, err)
			return
		}

		periods, err := engine.Cheapest(r.Context(), p)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(w, http.StatusOK, cheapestResponse{DurationHours: p.DurationHours, Periods: periods})
	}
}
