package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alecgard/pasteagent/internal/pastebin"
	"github.com/alecgard/pasteagent/internal/ratelimit"
	"github.com/go-chi/chi/v5"
)

// pastesHandler groups the handlers that go through the Pastebin agent.
type pastesHandler struct {
	agent    *pastebin.Agent
	sessions SessionStore
}

func newPastesHandler(agent *pastebin.Agent, sessions SessionStore) *pastesHandler {
	return &pastesHandler{agent: agent, sessions: sessions}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /api/v1/login.
func (h *pastesHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "username and password are required")
		return
	}

	key, err := h.agent.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeAgentError(w, r, err)
		return
	}

	persisted := false
	if h.sessions != nil {
		if err := h.sessions.Save(key); err != nil {
			slog.Error("failed to persist session key", "error", err)
		} else {
			persisted = true
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"persisted":     persisted,
	})
}

// Logout handles POST /api/v1/logout.
func (h *pastesHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.agent.Logout()
	if h.sessions != nil {
		if err := h.sessions.Clear(); err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to clear saved session")
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetUser handles GET /api/v1/user.
func (h *pastesHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	if !h.requireSession(w) {
		return
	}
	user, err := h.agent.UserDetails(r.Context())
	if err != nil {
		writeAgentError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// CreatePaste handles POST /api/v1/pastes.
func (h *pastesHandler) CreatePaste(w http.ResponseWriter, r *http.Request) {
	var req pastebin.NewPaste
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	pasteURL, err := h.agent.CreatePaste(r.Context(), req)
	if err != nil {
		writeAgentError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"url": pasteURL})
}

// ListPastes handles GET /api/v1/pastes.
func (h *pastesHandler) ListPastes(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		l, err := strconv.Atoi(s)
		if err != nil || l < 1 || l > pastebin.MaxResultsLimit {
			writeError(w, http.StatusBadRequest, "invalid_params",
				"limit must be between 1 and "+strconv.Itoa(pastebin.MaxResultsLimit))
			return
		}
		limit = l
	}
	if !h.requireSession(w) {
		return
	}

	pastes, err := h.agent.ListPastes(r.Context(), limit)
	if err != nil {
		writeAgentError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pastes": pastes})
}

// DeletePaste handles DELETE /api/v1/pastes/{key}.
func (h *pastesHandler) DeletePaste(w http.ResponseWriter, r *http.Request) {
	if !h.requireSession(w) {
		return
	}
	if err := h.agent.DeletePaste(r.Context(), chi.URLParam(r, "key")); err != nil {
		writeAgentError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RawPaste handles GET /api/v1/pastes/{key}/raw.
func (h *pastesHandler) RawPaste(w http.ResponseWriter, r *http.Request) {
	text, err := h.agent.RawPaste(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeAgentError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

type limiterResponse struct {
	ratelimit.State
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	ResetAt   string `json:"reset_at,omitempty"`
}

// GetLimiter handles GET /api/v1/limiter.
func (h *pastesHandler) GetLimiter(w http.ResponseWriter, r *http.Request) {
	l := h.agent.Limiter()
	limit, remaining, resetAt := l.Quota()
	resp := limiterResponse{
		State:     l.Snapshot(),
		Limit:     limit,
		Remaining: remaining,
	}
	if !resetAt.IsZero() {
		resp.ResetAt = resetAt.UTC().Format(timeFormat)
	}
	writeJSON(w, http.StatusOK, resp)
}

// requireSession rejects session-scoped operations before they spend a
// rate-limit slot.
func (h *pastesHandler) requireSession(w http.ResponseWriter) bool {
	if h.agent.Authenticated() {
		return true
	}
	writeError(w, http.StatusUnauthorized, "no_session", errNoSession.Error())
	return false
}

var errNoSession = errors.New("not logged in to pastebin: POST /api/v1/login first")
