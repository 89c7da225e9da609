package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Metrics is an optional sink for auth outcomes.
type Metrics interface {
	IncAuthFailure()
	IncAuthSuccess()
}

// TokenMiddleware returns middleware that requires a bearer token accepted by
// v. A nil Verifier lets every request through.
func TokenMiddleware(v *Verifier, m Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if v == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				if m != nil {
					m.IncAuthFailure()
				}
				writeUnauthorized(w, "missing or malformed authorization header")
				return
			}

			if !v.Verify(token) {
				if m != nil {
					m.IncAuthFailure()
				}
				writeUnauthorized(w, "invalid token")
				return
			}

			if m != nil {
				m.IncAuthSuccess()
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="pasteagent"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error: errorBody{
			Code:    "unauthorized",
			Message: message,
		},
	})
}
