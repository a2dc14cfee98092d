package www

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/angas/spotprice-go/query"
	"github.com/go-chi/chi/v5"
)

func NewLivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func NewProvidersHandler(logger *slog.Logger, engine *query.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		activeOnly, err := boolOrDefault(r.URL, "active_only", true)
		if err != nil {
			writeError(logger, w, err)
			return
		}

		providers, err := engine.Providers(r.Context(), activeOnly)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(w, http.StatusOK, providers)
	}
}

func NewProviderHandler(logger *slog.Logger, engine *query.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeError(logger, w, fmt.Errorf("%w: id must be an integer", errBadParameter))
			return
		}

		provider, err := engine.Provider(r.Context(), id)
		if err != nil {
			writeError(logger, w, err)
			return
		}
		writeJSON(w, http.StatusOK, provider)
	}
}
