package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"leandash/internal/core"
	"leandash/internal/services"
	"leandash/internal/storage"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// FlexFloat accepts a JSON number or a numeric string ("8,5" included).
// Edit payloads arrive from spreadsheet-style grids where numbers are often
// typed as text; coercion happens here, at the boundary.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := core.CoerceNumber(raw)
	if err != nil {
		return err
	}
	*f = FlexFloat(v)
	return nil
}

func (f FlexFloat) Float64() float64 { return float64(f) }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps domain errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidPeriodicity),
		errors.Is(err, core.ErrInvalidMode),
		errors.Is(err, core.ErrInvalidHorizon),
		errors.Is(err, core.ErrInvalidNumber),
		errors.Is(err, core.ErrBoundsOrder),
		errors.Is(err, core.ErrNoBuckets),
		errors.Is(err, services.ErrBadHeader):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid id %q", r.PathValue("id"))
	}
	return id, nil
}

// queryMonth resolves the month query parameter (yyyy-MM), defaulting to
// the current month when absent.
func queryMonth(r *http.Request) (year int, month time.Month, err error) {
	v := strings.TrimSpace(r.URL.Query().Get("month"))
	if v == "" {
		now := time.Now()
		return now.Year(), now.Month(), nil
	}
	t, err := core.ParseMonthKey(v)
	if err != nil {
		return 0, 0, err
	}
	return t.Year(), t.Month(), nil
}

func queryHorizon(r *http.Request) (core.Horizon, error) {
	v := strings.TrimSpace(r.URL.Query().Get("horizon"))
	if v == "" {
		return core.ShortTerm, nil
	}
	h := core.Horizon(v)
	if err := h.Validate(); err != nil {
		return "", err
	}
	return h, nil
}

func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
