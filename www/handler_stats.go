package www

import (
	"log/slog"
	"net/http"

	"github.com/angas/spotprice-go/query"
)

func NewComparisonHandler(logger *slog.Logger, engine *query.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, err := timeOrZero(r.URL, "start_time")
		if err != nil {
			writeError(logger, w, err)
			return
		}
		end, err := timeOrZero(r.URL, "end_time")
		if err != nil {
			writeError(logger, w, err)
			return
		}
		ids, err := idList(r.URL, "provider_ids")
		if err != nil {
			writeError(logger, w, err)
			return
		}

		comparison, err := engine.Comparison(r.Context(), start, end, ids)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(w, http.StatusOK, comparison)
	}
}

func NewDailyStatsHandler(logger *slog.Logger, engine *query.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days, err := intOrDefault(r.URL, "days", 0)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		providerID, err := optionalID(r.URL, "provider_id")
		if err != nil {
			writeError(logger, w, err)
			return
		}

		stats, err := engine.DailyStats(r.Context(), days, providerID)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}
