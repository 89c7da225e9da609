package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// --- GenerateToken tests ---

func TestGenerateToken_PrefixAndLength(t *testing.T) {
	plaintext, hash, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}

	if !strings.HasPrefix(plaintext, "pagw_") {
		t.Errorf("token should start with 'pagw_', got %q", plaintext)
	}

	// "pagw_" (5) + 32 random chars = 37
	if len(plaintext) != 37 {
		t.Errorf("expected token length 37, got %d", len(plaintext))
	}

	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("expected a bcrypt hash, got %q", hash)
	}
}

func TestGenerateToken_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		plaintext, _, err := GenerateToken()
		if err != nil {
			t.Fatalf("GenerateToken() error: %v", err)
		}
		if seen[plaintext] {
			t.Fatalf("duplicate token generated: %s", plaintext)
		}
		seen[plaintext] = true
	}
}

func TestHashToken_Empty(t *testing.T) {
	if _, err := HashToken(""); err == nil {
		t.Fatal("expected error for empty token")
	}
}

// --- Verifier tests ---

func newTestVerifier(t *testing.T, token string) *Verifier {
	t.Helper()
	hash, err := HashToken(token)
	if err != nil {
		t.Fatalf("HashToken: %v", err)
	}
	v, err := NewVerifier(hash)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	return v
}

func TestVerifier(t *testing.T) {
	v := newTestVerifier(t, "pagw_right")

	if !v.Verify("pagw_right") {
		t.Error("expected matching token to verify")
	}
	if !v.Verify("pagw_right") {
		t.Error("expected cached token to verify again")
	}
	if v.Verify("pagw_wrong") {
		t.Error("expected other token to fail")
	}
	if v.Verify("") {
		t.Error("expected empty token to fail")
	}
}

func TestNewVerifier(t *testing.T) {
	v, err := NewVerifier("")
	if err != nil || v != nil {
		t.Fatalf("empty hash should disable auth, got %v %v", v, err)
	}

	if _, err := NewVerifier("not-a-bcrypt-hash"); err == nil {
		t.Fatal("expected error for malformed hash")
	}
}

func TestVerifierConcurrent(t *testing.T) {
	v := newTestVerifier(t, "pagw_right")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !v.Verify("pagw_right") {
				t.Error("expected token to verify")
			}
		}()
	}
	wg.Wait()
}

// --- TokenMiddleware tests ---

type countingMetrics struct {
	mu        sync.Mutex
	failures  int
	successes int
}

func (c *countingMetrics) IncAuthFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
}

func (c *countingMetrics) IncAuthSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successes++
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestTokenMiddleware(t *testing.T) {
	v := newTestVerifier(t, "pagw_right")

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic pagw_right", http.StatusUnauthorized},
		{"bearer without token", "Bearer", http.StatusUnauthorized},
		{"wrong token", "Bearer pagw_wrong", http.StatusUnauthorized},
		{"valid token", "Bearer pagw_right", http.StatusOK},
		{"case-insensitive scheme", "bearer pagw_right", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &countingMetrics{}
			h := TokenMiddleware(v, m)(okHandler())

			req := httptest.NewRequest(http.MethodGet, "/api/v1/pastes", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}

			if tt.wantStatus == http.StatusUnauthorized {
				var body errorResponse
				if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
					t.Fatalf("decoding error body: %v", err)
				}
				if body.Error.Code != "unauthorized" {
					t.Errorf("expected code unauthorized, got %q", body.Error.Code)
				}
				if m.failures != 1 {
					t.Errorf("expected one failure recorded, got %d", m.failures)
				}
			} else if m.successes != 1 {
				t.Errorf("expected one success recorded, got %d", m.successes)
			}
		})
	}
}

func TestTokenMiddleware_Disabled(t *testing.T) {
	h := TokenMiddleware(nil, nil)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/pastes", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected pass-through with auth disabled, got %d", rec.Code)
	}
}
