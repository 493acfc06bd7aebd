package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"chorebank/internal/chore"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// parseDateQuery reads a ?date=YYYY-MM-DD query parameter, defaulting to
// today (UTC) when absent.
func parseDateQuery(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse("2006-01-02", raw)
}

// writeLifecycleError maps service errors onto HTTP statuses. Anything
// unrecognized is treated as a server fault.
func writeLifecycleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chore.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, chore.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid state for this action")
	case errors.Is(err, chore.ErrProofMissing):
		writeError(w, http.StatusUnprocessableEntity, "completion proof is required")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
