package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/alecgard/pasteagent/internal/pastebin"
	"github.com/alecgard/pasteagent/internal/ratelimit"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// statusClientClosed is written when the caller disconnected mid-request.
const statusClientClosed = 499

// errorEnvelope is the standard error response shape.
type errorEnvelope struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes a JSON error response with the given status code.
func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// writeJSON writes a JSON response with the given status code and data.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// readJSON decodes the request body into v, enforcing a size limit.
func readJSON(r *http.Request, v interface{}) error {
	lr := io.LimitReader(r.Body, maxBodySize)
	return json.NewDecoder(lr).Decode(v)
}

// writeAgentError maps an error returned by the Pastebin agent to a gateway
// response.
func writeAgentError(w http.ResponseWriter, r *http.Request, err error) {
	var rlErr *ratelimit.RateLimitError
	switch {
	case errors.As(err, &rlErr):
		secs := int(math.Ceil(rlErr.Remaining.Seconds()))
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		writeError(w, http.StatusTooManyRequests, "rate_limited", err.Error())
	case errors.Is(err, pastebin.ErrInvalidSessionKey):
		writeError(w, http.StatusUnauthorized, "invalid_session_key", err.Error())
	case errors.Is(err, pastebin.ErrInvalidAPIKey):
		writeError(w, http.StatusBadGateway, "invalid_api_key", err.Error())
	case errors.Is(err, pastebin.ErrProvider):
		writeError(w, http.StatusUnprocessableEntity, "provider_error", err.Error())
	case errors.Is(err, pastebin.ErrInvalidPaste):
		writeError(w, http.StatusBadRequest, "invalid_paste", err.Error())
	case errors.Is(err, pastebin.ErrInvalidEndpoint):
		slog.Error("pastebin endpoint misconfigured", "error", err)
		writeError(w, http.StatusInternalServerError, "invalid_endpoint", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		if r.Context().Err() != nil {
			// Client went away; nobody reads this.
			w.WriteHeader(statusClientClosed)
			return
		}
		writeError(w, http.StatusGatewayTimeout, "upstream_timeout", err.Error())
	default:
		slog.Error("pastebin call failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadGateway, "upstream_error", err.Error())
	}
}
