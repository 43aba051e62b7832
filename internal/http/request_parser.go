package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 20

var errEmptyBody = errors.New("request body is empty")

// DecodeJSON reads exactly one JSON value into dst. Unknown fields are
// rejected so that typos in patch bodies do not silently no-op.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid JSON body: trailing data")
	}
	return nil
}

// MonthParams holds a year/month selection.
type MonthParams struct {
	Year  int
	Month int
}

// Time returns the first instant of the month in UTC.
func (m MonthParams) Time() time.Time {
	return time.Date(m.Year, time.Month(m.Month), 1, 0, 0, 0, 0, time.UTC)
}

// ParseMonthParams reads ?year= and ?month=, defaulting each to now's.
func ParseMonthParams(query url.Values, now time.Time) (MonthParams, error) {
	params := MonthParams{Year: now.Year(), Month: int(now.Month())}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1970 || y > 9999 {
			return params, fmt.Errorf("invalid year %q", v)
		}
		params.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return params, fmt.Errorf("invalid month %q", v)
		}
		params.Month = m
	}
	return params, nil
}

// hasMonthFilter reports whether the query selects a month explicitly.
func hasMonthFilter(query url.Values) bool {
	return query.Get("year") != "" || query.Get("month") != ""
}

// WaitRequested reports whether the caller asked to block on remote writes
// with ?wait=true.
func WaitRequested(r *http.Request) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get("wait"))
	return err == nil && v
}
