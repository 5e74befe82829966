package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

// ParseJSON decodes exactly one JSON value from the request body into dest.
// Body size errors from http.MaxBytesReader are wrapped, not replaced.
func ParseJSON(r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return errors.New("invalid JSON: unexpected data after the request object")
	}
	return nil
}

// ParseJSONOrError decodes the body and writes the failure response itself
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := ParseJSON(r, dest); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteErrorMessage(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		WriteBadRequest(w, err.Error())
		return false
	}
	return true
}

// ParsePathInt64 reads a positive id from the mux route variables
func ParsePathInt64(r *http.Request, key string) (int64, error) {
	raw, ok := mux.Vars(r)[key]
	if !ok || raw == "" {
		return 0, fmt.Errorf("missing path parameter: %s", key)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid id for %s: %s", key, raw)
	}
	return id, nil
}

// ParsePathInt64OrError is ParsePathInt64 that answers 400 on failure
func ParsePathInt64OrError(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	id, err := ParsePathInt64(r, key)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return 0, false
	}
	return id, true
}

func queryValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

// ParseQueryInt returns an integer query parameter or def when absent
func ParseQueryInt(r *http.Request, key string, def int) (int, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for query param %s: %s", key, raw)
	}
	return n, nil
}

// ParseQueryInt64 returns nil when the parameter is absent
func ParseQueryInt64(r *http.Request, key string) (*int64, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid integer for query param %s: %s", key, raw)
	}
	return &n, nil
}

// ParseQueryTime accepts an RFC 3339 timestamp or a bare YYYY-MM-DD date
// (midnight UTC). It returns nil when the parameter is absent.
func ParseQueryTime(r *http.Request, key string) (*time.Time, error) {
	raw := queryValue(r, key)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return &ts, nil
		}
	}
	return nil, fmt.Errorf("invalid timestamp for query param %s: %s", key, raw)
}

// ParseQueryString returns the parameter or def when it is blank
func ParseQueryString(r *http.Request, key string, def string) string {
	if raw := queryValue(r, key); raw != "" {
		return raw
	}
	return def
}
