package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alecgard/pasteagent/internal/auth"
	"github.com/alecgard/pasteagent/internal/metering"
	"github.com/alecgard/pasteagent/internal/metrics"
	"github.com/alecgard/pasteagent/internal/pastebin"
	"github.com/alecgard/pasteagent/internal/ratelimit"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeClock never moves on its own; Sleep advances it.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return nil
}

// fakePastebin answers by api_option, or by path for the login endpoint.
type fakePastebin struct {
	mu       sync.Mutex
	replies  map[string]string
	requests int
}

func (f *fakePastebin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++

	key := r.PostForm.Get("api_option")
	if strings.HasSuffix(r.URL.Path, "api_login.php") {
		key = "login"
	}
	_, _ = w.Write([]byte(f.replies[key]))
}

func (f *fakePastebin) set(option, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[option] = body
}

func (f *fakePastebin) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

type fakeSessions struct {
	saved   string
	cleared bool
}

func (s *fakeSessions) Save(key string) error {
	s.saved = key
	return nil
}

func (s *fakeSessions) Clear() error {
	s.cleared = true
	s.saved = ""
	return nil
}

type fakeCallStore struct {
	calls   []*metering.Call
	next    string
	err     error
	lastQ   metering.UsageQuery
	summary metering.UsageSummary
}

func (s *fakeCallStore) ListCalls(_ context.Context, q metering.UsageQuery) ([]*metering.Call, string, error) {
	s.lastQ = q
	return s.calls, s.next, s.err
}

func (s *fakeCallStore) GetSummary(_ context.Context, q metering.UsageQuery) (*metering.UsageSummary, error) {
	s.lastQ = q
	if s.err != nil {
		return nil, s.err
	}
	return &s.summary, nil
}

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(context.Context) error { return f.err }

type testEnv struct {
	handler  http.Handler
	agent    *pastebin.Agent
	upstream *fakePastebin
	sessions *fakeSessions
}

func newTestEnv(t *testing.T, mode ratelimit.Mode, mutate func(*RouterDeps)) *testEnv {
	t.Helper()

	fp := &fakePastebin{replies: map[string]string{
		"login":      "0123456789abcdef",
		"paste":      "https://pastebin.com/abc123",
		"list":       "No pastes found.",
		"delete":     "Paste Removed",
		"show_paste": "raw text",
		"userdetails": "<user><user_name>tester</user_name>" +
			"<user_account_type>0</user_account_type></user>",
	}}
	srv := httptest.NewServer(fp)
	t.Cleanup(srv.Close)

	a, err := pastebin.New(pastebin.Config{
		APIKey:   "devkey",
		Mode:     mode,
		LoginURL: srv.URL + "/api/api_login.php",
		APIURL:   srv.URL + "/api/api_post.php",
		RawURL:   srv.URL + "/api/api_raw.php",
		Client:   srv.Client(),
		Clock:    &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
	})
	if err != nil {
		t.Fatalf("pastebin.New: %v", err)
	}

	sessions := &fakeSessions{}
	deps := RouterDeps{Agent: a, Sessions: sessions}
	if mutate != nil {
		mutate(&deps)
	}
	return &testEnv{handler: NewRouter(deps), agent: a, upstream: fp, sessions: sessions}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorDetail {
	t.Helper()
	var env errorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return env.Error
}

// ---------------------------------------------------------------------------
// Health check
// ---------------------------------------------------------------------------

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		db         Pinger
		wantStatus int
		wantDB     string
	}{
		{"no database", nil, http.StatusOK, "disabled"},
		{"database up", &fakePinger{}, http.StatusOK, "connected"},
		{"database down", &fakePinger{err: errors.New("refused")}, http.StatusServiceUnavailable, "unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, ratelimit.ModeBurst, func(d *RouterDeps) { d.DB = tt.db })
			rec := env.do(http.MethodGet, "/health", "")

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body["database"] != tt.wantDB {
				t.Errorf("expected database=%s, got %q", tt.wantDB, body["database"])
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected Content-Type application/json, got %q", ct)
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Error("expected X-Request-ID to be set")
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Auth and middleware
// ---------------------------------------------------------------------------

func TestAPIRequiresTokenWhenConfigured(t *testing.T) {
	hash, err := auth.HashToken("pagw_test")
	if err != nil {
		t.Fatalf("HashToken: %v", err)
	}
	v, err := auth.NewVerifier(hash)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	env := newTestEnv(t, ratelimit.ModeBurst, func(d *RouterDeps) { d.Verifier = v })

	rec := env.do(http.MethodGet, "/api/v1/limiter", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/limiter", nil)
	req.Header.Set("Authorization", "Bearer pagw_test")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}

	// Health stays public.
	if rec := env.do(http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected public health check, got %d", rec.Code)
	}
}

func TestRateLimitHeaders(t *testing.T) {
	env := newTestEnv(t, ratelimit.ModeBurst, nil)

	rec := env.do(http.MethodGet, "/api/v1/pastes/abc/raw", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = env.do(http.MethodGet, "/api/v1/limiter", "")
	if got := rec.Header().Get("X-RateLimit-Mode"); got != "burst" {
		t.Errorf("expected X-RateLimit-Mode burst, got %q", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "29" {
		t.Errorf("expected X-RateLimit-Remaining 29, got %q", got)
	}
	if rec.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("expected X-RateLimit-Reset once a window is open")
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, ratelimit.ModeBurst, func(d *RouterDeps) {
		d.AllowedOrigins = []string{"https://app.example.com"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/pastes", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("unexpected Access-Control-Allow-Origin %q", got)
	}
	if env.upstream.count() != 0 {
		t.Error("preflight must not reach pastebin")
	}
}

// ---------------------------------------------------------------------------
// Session
// ---------------------------------------------------------------------------

func TestLoginAndLogout(t *testing.T) {
	env := newTestEnv(t, ratelimit.ModeBurst, nil)

	rec := env.do(http.MethodPost, "/api/v1/login", `{"username":"tester","password":"secret"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if env.agent.SessionKey() != "0123456789abcdef" {
		t.Errorf("agent session key not set, got %q", env.agent.SessionKey())
	}
	if env.sessions.saved != "0123456789abcdef" {
		t.Errorf("session key not persisted, got %q", env.sessions.saved)
	}

	rec = env.do(http.MethodPost, "/api/v1/logout", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if env.agent.Authenticated() {
		t.Error("expected agent to drop the session key")
	}
	if !env.sessions.cleared {
		t.Error("expected saved session to be cleared")
	}
}

func TestLoginValidation(t *testing.T) {
	env := newTestEnv(t, ratelimit.ModeBurst, nil)

	for _, body := range []string{`{"username":"tester"}`, `not json`} {
		rec := env.do(http.MethodPost, "/api/v1/login", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
	if env.upstream.count() != 0 {
		t.Errorf("expected no upstream calls, got %d", env.upstream.count())
	}
}

func TestSessionScopedRoutesNeedLogin(t *testing.T) {
	env := newTestEnv(t, ratelimit.ModeBurst, nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/pastes"},
		{http.MethodGet, "/api/v1/user"},
		{http.MethodDelete, "/api/v1/pastes/abc"},
	} {
		rec := env.do(tc.method, tc.path, "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", tc.method, tc.path, rec.Code)
			continue
		}
		if code := decodeError(t, rec).Code; code != "no_session" {
			t.Errorf("%s %s: expected no_session, got %q", tc.method, tc.path, code)
		}
	}
	if env.upstream.count() != 0 {
		t.Errorf("expected no upstream calls, got %d", env.upstream.count())
	}
}

// ---------------------------------------------------------------------------
// Pastes
// ---------------------------------------------------------------------------

func TestCreatePaste(t *testing.T) {
	env := newTestEnv(t, ratelimit.ModeBurst, nil)

	rec := env.do(http.MethodPost, "/api/v1/pastes", `{"code":"hello","name":"greeting","visibility":1,"expire":"1D"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["url"] != "https://pastebin.com/abc123" {
		t.Errorf("unexpected url %q", body["url"])
	}
}

func TestCreatePasteInvalid(t *testing.T) {
	env := newTestEnv(t, ratelimit.ModeBurst, nil)

	rec := env.do(http.MethodPost, "/api/v1/pastes", `{"code":"","visibility":1}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := decodeError(t, rec).Code; code != "invalid_paste" {
		t.Errorf("expected invalid_paste, got %q", code)
	}
	if env.upstream.count() != 0 {
		t.Error("invalid paste must not reach pastebin")
	}
}

func TestListPastes(t *testing.T) {
	env := newTestEnv(t, ratelimit.ModeBurst, nil)
	env.agent.SetSessionKey("userkey")

	rec := env.do(http.MethodGet, "/api/v1/pastes?limit=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Pastes []pastebin.Paste `json:"pastes"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Pastes == nil || len(body.Pastes) != 0 {
		t.Errorf("expected an empty list, got %#v", body.Pastes)
	}

	rec = env.do(http.MethodGet, "/api/v1/pastes?limit=5000", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for out-of-range limit, got %d", rec.Code)
	}
}

func TestDeleteAndRaw(t *testing.T) {
	env := newTestEnv(t, ratelimit.ModeBurst, nil)
	env.agent.SetSessionKey("userkey")

	rec := env.do(http.MethodDelete, "/api/v1/pastes/abc123", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(http.MethodGet, "/api/v1/pastes/abc123/raw", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("expected text/plain, got %q", ct)
	}
	if rec.Body.String() != "raw text" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestGetUser(t *testing.T) {
	env := newTestEnv(t, ratelimit.ModeBurst, nil)
	env.agent.SetSessionKey("userkey")

	rec := env.do(http.MethodGet, "/api/v1/user", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var user pastebin.User
	if err := json.NewDecoder(rec.Body).Decode(&user); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if user.Name != "tester" {
		t.Errorf("expected name tester, got %q", user.Name)
	}
}

// ---------------------------------------------------------------------------
// Error mapping
// ---------------------------------------------------------------------------

func TestProviderErrorMapping(t *testing.T) {
	tests := []struct {
		reply      string
		wantStatus int
		wantCode   string
	}{
		{"Bad API request, invalid api_user_key", http.StatusUnauthorized, "invalid_session_key"},
		{"Bad API request, invalid api_dev_key", http.StatusBadGateway, "invalid_api_key"},
		{"Bad API request, invalid permission to remove paste", http.StatusUnprocessableEntity, "provider_error"},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			env := newTestEnv(t, ratelimit.ModeBurst, nil)
			env.agent.SetSessionKey("userkey")
			env.upstream.set("delete", tt.reply)

			rec := env.do(http.MethodDelete, "/api/v1/pastes/abc123", "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if code := decodeError(t, rec).Code; code != tt.wantCode {
				t.Errorf("expected code %q, got %q", tt.wantCode, code)
			}
		})
	}
}

func TestRateLimitRejectionMapsTo429(t *testing.T) {
	env := newTestEnv(t, ratelimit.ModeNone, nil)

	for i := 0; i < ratelimit.WindowCap; i++ {
		if rec := env.do(http.MethodGet, "/api/v1/pastes/abc/raw", ""); rec.Code != http.StatusOK {
			t.Fatalf("call %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	rec := env.do(http.MethodGet, "/api/v1/pastes/abc/raw", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Errorf("expected Retry-After 60, got %q", got)
	}
	if code := decodeError(t, rec).Code; code != "rate_limited" {
		t.Errorf("expected rate_limited, got %q", code)
	}
	if got := env.upstream.count(); got != ratelimit.WindowCap {
		t.Errorf("expected %d upstream calls, got %d", ratelimit.WindowCap, got)
	}
}

func TestWriteAgentErrorTransport(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/pastes", nil)
	rec := httptest.NewRecorder()
	writeAgentError(rec, req, fmt.Errorf("listing pastes: %w", errors.New("connection refused")))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if code := decodeError(t, rec).Code; code != "upstream_error" {
		t.Errorf("expected upstream_error, got %q", code)
	}
}

func TestWriteAgentErrorInvalidEndpoint(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/pastes", nil)
	rec := httptest.NewRecorder()
	writeAgentError(rec, req, fmt.Errorf("listing pastes: building request: %w", pastebin.ErrInvalidEndpoint))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if code := decodeError(t, rec).Code; code != "invalid_endpoint" {
		t.Errorf("expected invalid_endpoint, got %q", code)
	}
}

func TestWriteAgentErrorRetryAfterRoundsUp(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/pastes", nil)
	rec := httptest.NewRecorder()
	writeAgentError(rec, req, &ratelimit.RateLimitError{Remaining: 17200 * time.Millisecond})

	if got := rec.Header().Get("Retry-After"); got != "18" {
		t.Errorf("expected Retry-After 18, got %q", got)
	}
}

// ---------------------------------------------------------------------------
// Limiter and call log
// ---------------------------------------------------------------------------

func TestGetLimiter(t *testing.T) {
	env := newTestEnv(t, ratelimit.ModePace, nil)

	rec := env.do(http.MethodGet, "/api/v1/limiter", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["mode"] != "pace" {
		t.Errorf("expected mode pace, got %v", body["mode"])
	}
	if body["remaining"] != float64(ratelimit.WindowCap) {
		t.Errorf("expected full quota on an idle limiter, got %v", body["remaining"])
	}
	if _, ok := body["reset_at"]; ok {
		t.Error("expected no reset_at on an idle limiter")
	}
}

func TestCallsDisabledWithoutDatabase(t *testing.T) {
	env := newTestEnv(t, ratelimit.ModeBurst, nil)

	for _, path := range []string{"/api/v1/calls", "/api/v1/calls/summary"} {
		rec := env.do(http.MethodGet, path, "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503, got %d", path, rec.Code)
		}
	}
}

func TestListCalls(t *testing.T) {
	store := &fakeCallStore{
		calls: []*metering.Call{{ID: "c1", Option: "list", Outcome: metering.OutcomeSuccess}},
		next:  "cursor-2",
	}
	env := newTestEnv(t, ratelimit.ModeBurst, func(d *RouterDeps) { d.Calls = store })

	rec := env.do(http.MethodGet, "/api/v1/calls?option=list&from=2025-06-01&limit=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Calls      []metering.Call `json:"calls"`
		NextCursor string          `json:"next_cursor"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Calls) != 1 || body.Calls[0].ID != "c1" {
		t.Errorf("unexpected calls %#v", body.Calls)
	}
	if body.NextCursor != "cursor-2" {
		t.Errorf("expected next_cursor, got %q", body.NextCursor)
	}
	if store.lastQ.Option != "list" || store.lastQ.Limit != 10 {
		t.Errorf("query not forwarded: %+v", store.lastQ)
	}
	if !store.lastQ.From.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected from %v", store.lastQ.From)
	}
}

func TestListCallsBadParams(t *testing.T) {
	store := &fakeCallStore{}
	env := newTestEnv(t, ratelimit.ModeBurst, func(d *RouterDeps) { d.Calls = store })

	for _, path := range []string{
		"/api/v1/calls?limit=0",
		"/api/v1/calls?from=yesterday",
		"/api/v1/calls?from=2025-06-02&to=2025-06-01",
	} {
		if rec := env.do(http.MethodGet, path, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, rec.Code)
		}
	}

	store.err = fmt.Errorf("%w: bad", metering.ErrInvalidCursor)
	if rec := env.do(http.MethodGet, "/api/v1/calls?cursor=zzz", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid cursor, got %d", rec.Code)
	}
}

func TestCallsSummary(t *testing.T) {
	store := &fakeCallStore{summary: metering.UsageSummary{TotalCalls: 7, RateLimited: 2}}
	env := newTestEnv(t, ratelimit.ModeBurst, func(d *RouterDeps) { d.Calls = store })

	rec := env.do(http.MethodGet, "/api/v1/calls/summary?outcome=rate_limited", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var summary metering.UsageSummary
	if err := json.NewDecoder(rec.Body).Decode(&summary); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if summary.TotalCalls != 7 || summary.RateLimited != 2 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if store.lastQ.Outcome != "rate_limited" {
		t.Errorf("expected outcome filter, got %q", store.lastQ.Outcome)
	}
}

// ---------------------------------------------------------------------------
// Metrics
// ---------------------------------------------------------------------------

func TestMetricsEndpoints(t *testing.T) {
	m := metrics.New()
	env := newTestEnv(t, ratelimit.ModeBurst, func(d *RouterDeps) { d.Metrics = m })
	env.agent.SetMetrics(m)

	env.do(http.MethodGet, "/api/v1/pastes/abc/raw", "")

	rec := env.do(http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	text := rec.Body.String()
	for _, want := range []string{
		`pasteagent_http_requests_total{method="GET",path_pattern="/api/v1/pastes/{key}/raw",status_code="200"} 1`,
		"pasteagent_upstream_calls_total",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("expected /metrics to contain %q", want)
		}
	}

	rec = env.do(http.MethodGet, "/api/v1/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from JSON metrics, got %d", rec.Code)
	}
}
