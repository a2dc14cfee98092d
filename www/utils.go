package www

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/angas/spotprice-go/query"
	"github.com/goccy/go-json"
)

var errBadParameter = errors.New("bad parameter")

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps engine errors to status codes. Unexpected errors are
// logged and hidden behind a 500.
func writeError(logger *slog.Logger, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, query.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, query.ErrInvalidArgument), errors.Is(err, errBadParameter):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		logger.Error("handling request", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func intOrDefault(u *url.URL, key string, defaultValue int) (int, error) {
	v := u.Query().Get(key)
	if v == "" {
		return defaultValue, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errBadParameter, key)
	}
	return i, nil
}

func boolOrDefault(u *url.URL, key string, defaultValue bool) (bool, error) {
	v := u.Query().Get(key)
	if v == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", errBadParameter, key)
	}
	return b, nil
}

// optionalID parses an optional int64 parameter, nil when absent.
func optionalID(u *url.URL, key string) (*int64, error) {
	v := u.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", errBadParameter, key)
	}
	return &id, nil
}

// idList accepts both repeated (?id=1&id=2) and comma separated (?id=1,2) values.
func idList(u *url.URL, key string) ([]int64, error) {
	var ids []int64
	for _, v := range u.Query()[key] {
		for part := range strings.SplitSeq(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s must be a list of integers", errBadParameter, key)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// timeOrZero parses an RFC 3339 parameter, the zero time when absent.
func timeOrZero(u *url.URL, key string) (time.Time, error) {
	v := u.Query().Get(key)
	if v == "" {
		return time.Time{}, nil
	}
	// an unescaped "+" in the offset arrives as a space
	t, err := time.Parse(time.RFC3339, strings.ReplaceAll(v, " ", "+"))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be an RFC 3339 time", errBadParameter, key)
	}
	return t, nil
}
