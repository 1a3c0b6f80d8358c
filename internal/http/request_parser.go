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

	"subtrack/internal/billing"
	"subtrack/internal/core"
)

const (
	maxBodyBytes = 1 << 20
	maxTopN      = 100
)

var windowLayouts = []string{core.WindowLayout, "2006-01-02"}

// ParseWindow reads from/to as YYYY-MM or YYYY-MM-DD. Missing bounds stay zero.
func ParseWindow(query url.Values) (core.Window, error) {
	var w core.Window
	var err error
	if w.From, err = parseMonth(query.Get("from")); err != nil {
		return core.Window{}, fmt.Errorf("invalid from: %w", err)
	}
	if w.To, err = parseMonth(query.Get("to")); err != nil {
		return core.Window{}, fmt.Errorf("invalid to: %w", err)
	}
	return w, nil
}

func parseMonth(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	for _, layout := range windowLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not YYYY-MM or YYYY-MM-DD", v)
}

// ParseTopN reads n. Empty means the configured default (0).
func ParseTopN(query url.Values) (int, error) {
	v := strings.TrimSpace(query.Get("n"))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > maxTopN {
		return 0, fmt.Errorf("invalid n %q: must be between 1 and %d", v, maxTopN)
	}
	return n, nil
}

// ParseMode reads the bucket mode, defaulting to the spending trend.
func ParseMode(query url.Values) (billing.BucketMode, error) {
	v := strings.TrimSpace(query.Get("mode"))
	if v == "" {
		return billing.ModeSpendingTrend, nil
	}
	mode, ok := billing.ParseBucketMode(v)
	if !ok {
		return "", fmt.Errorf("invalid mode %q: must be %s or %s", v, billing.ModeSpendingTrend, billing.ModeGrowthCount)
	}
	return mode, nil
}

// ParseID reads the {id} path segment.
func ParseID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid charge id %q", raw)
	}
	return id, nil
}

// DecodeJSON decodes a bounded request body into v, rejecting unknown
// fields and trailing data.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("decode request body: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// sanitizeInput removes control characters (except tab, newline and
// carriage return) and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
