package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/alecgard/pasteagent/internal/metering"
)

const (
	timeFormat = time.RFC3339

	defaultCallsLimit = 50
	maxCallsLimit     = 500
)

// callsHandler serves the call log.
type callsHandler struct {
	store CallStore
}

func newCallsHandler(store CallStore) *callsHandler {
	return &callsHandler{store: store}
}

// parseTimeParam parses a date query param in YYYY-MM-DD or RFC3339 format.
func parseTimeParam(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	// Try RFC3339 first.
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	// Fall back to date-only.
	t, err = time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q", s)
	}
	return t, nil
}

// buildCallsQuery constructs a UsageQuery from query params.
func buildCallsQuery(r *http.Request) (metering.UsageQuery, error) {
	params := r.URL.Query()
	q := metering.UsageQuery{
		Option:  params.Get("option"),
		Outcome: params.Get("outcome"),
		Cursor:  params.Get("cursor"),
		Limit:   defaultCallsLimit,
	}

	var err error
	if q.From, err = parseTimeParam(params.Get("from")); err != nil {
		return q, err
	}
	if q.To, err = parseTimeParam(params.Get("to")); err != nil {
		return q, err
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return q, errors.New("to is before from")
	}

	if s := params.Get("limit"); s != "" {
		l, lErr := strconv.Atoi(s)
		if lErr != nil || l < 1 || l > maxCallsLimit {
			return q, fmt.Errorf("limit must be between 1 and %d", maxCallsLimit)
		}
		q.Limit = l
	}
	return q, nil
}

// ListCalls handles GET /api/v1/calls.
func (h *callsHandler) ListCalls(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}
	q, err := buildCallsQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_params", "invalid query parameters: "+err.Error())
		return
	}

	calls, next, err := h.store.ListCalls(r.Context(), q)
	if err != nil {
		if errors.Is(err, metering.ErrInvalidCursor) {
			writeError(w, http.StatusBadRequest, "invalid_params", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list calls")
		return
	}
	if calls == nil {
		calls = []*metering.Call{}
	}

	resp := map[string]any{"calls": calls}
	if next != "" {
		resp["next_cursor"] = next
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetSummary handles GET /api/v1/calls/summary.
func (h *callsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}
	q, err := buildCallsQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_params", "invalid query parameters: "+err.Error())
		return
	}

	summary, err := h.store.GetSummary(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to get call summary")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *callsHandler) enabled(w http.ResponseWriter) bool {
	if h.store != nil {
		return true
	}
	writeError(w, http.StatusServiceUnavailable, "call_log_disabled", "no database configured for the call log")
	return false
}
