// Package pastebin is the outbound agent for the Pastebin developer API. An
// Agent owns one rate limiter and an optional session key, and every call it
// makes goes through the same check, build, execute and classify pipeline.
package pastebin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/alecgard/pasteagent/internal/metering"
	"github.com/alecgard/pasteagent/internal/ratelimit"
)

// Default endpoints and product identifier.
const (
	DefaultLoginURL  = "https://pastebin.com/api/api_login.php"
	DefaultAPIURL    = "https://pastebin.com/api/api_post.php"
	DefaultRawURL    = "https://pastebin.com/api/api_raw.php"
	DefaultUserAgent = "pasteagent"
)

// CallRecorder receives one record per finished call.
type CallRecorder interface {
	Record(call metering.Call)
}

// MetricsRecorder is an optional interface for recording agent-level metrics.
type MetricsRecorder interface {
	IncUpstreamCalls(option, outcome string)
	ObserveUpstreamDuration(option string, seconds float64)
	IncLimiterDecision(mode, action string)
	ObserveLimiterDelay(mode string, seconds float64)
	IncUpstreamError(errorType string)
}

// Config holds the settings for New. Only APIKey is required.
type Config struct {
	APIKey    string
	Mode      ratelimit.Mode
	LoginURL  string
	APIURL    string
	RawURL    string
	UserAgent string
	Client    *http.Client
	Clock     ratelimit.Clock
}

// Agent issues Pastebin API calls under a rate limiter. It is safe for
// concurrent use.
type Agent struct {
	apiKey    string
	userAgent string
	loginURL  string
	apiURL    string
	rawURL    string
	client    *http.Client
	limiter   *ratelimit.Limiter
	clock     ratelimit.Clock

	mu         sync.RWMutex
	sessionKey string

	recorder CallRecorder
	metrics  MetricsRecorder
}

// New creates an Agent. It fails with ErrMissingAPIKey when no API key is
// set and with ratelimit.ErrUnsupportedMode for an unknown mode.
func New(cfg Config) (*Agent, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	clock := cfg.Clock
	if clock == nil {
		clock = ratelimit.SystemClock()
	}
	limiter, err := ratelimit.New(cfg.Mode, ratelimit.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("creating rate limiter: %w", err)
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}

	return &Agent{
		apiKey:    cfg.APIKey,
		userAgent: withDefault(cfg.UserAgent, DefaultUserAgent),
		loginURL:  withDefault(cfg.LoginURL, DefaultLoginURL),
		apiURL:    withDefault(cfg.APIURL, DefaultAPIURL),
		rawURL:    withDefault(cfg.RawURL, DefaultRawURL),
		client:    client,
		limiter:   limiter,
		clock:     clock,
	}, nil
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// SetRecorder sets the optional call recorder.
func (a *Agent) SetRecorder(r CallRecorder) {
	a.recorder = r
}

// SetMetrics sets the optional metrics recorder.
func (a *Agent) SetMetrics(m MetricsRecorder) {
	a.metrics = m
}

// SessionKey returns the held session key, or "" when logged out.
func (a *Agent) SessionKey() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sessionKey
}

// SetSessionKey replaces the session key attached to later requests.
func (a *Agent) SetSessionKey(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessionKey = key
}

// Authenticated reports whether a session key is held.
func (a *Agent) Authenticated() bool {
	return a.SessionKey() != ""
}

// Logout drops the session key. Nothing is sent to Pastebin.
func (a *Agent) Logout() {
	a.SetSessionKey("")
}

// Limiter returns the agent's rate limiter.
func (a *Agent) Limiter() *ratelimit.Limiter {
	return a.limiter
}

// APIURL returns the endpoint used for api_post.php calls.
func (a *Agent) APIURL() string {
	return a.apiURL
}

// Call runs one request through the limiter and returns the classified body.
// A rejection returns a *ratelimit.RateLimitError before anything is sent.
// A scheduled delay is always waited out and followed by the dispatch,
// unless ctx is done first.
func (a *Agent) Call(ctx context.Context, endpoint, method string, params url.Values) (string, error) {
	rec := metering.Call{
		Timestamp: a.clock.Now(),
		Endpoint:  endpoint,
		Option:    optionLabel(params),
		Method:    method,
	}

	if _, err := parseEndpoint(endpoint); err != nil {
		return "", a.failBuild(rec, err)
	}

	decision, err := a.limiter.Check()
	if err != nil {
		var rlErr *ratelimit.RateLimitError
		if errors.As(err, &rlErr) {
			a.observeDecision("reject", 0)
			slog.Warn("pastebin call rejected by rate limiter",
				"option", rec.Option,
				"retry_in", rlErr.Remaining.String(),
			)
			rec.Outcome = metering.OutcomeRateLimited
			rec.Error = err.Error()
			a.finish(rec)
		}
		return "", err
	}

	if decision.Action == ratelimit.Delay {
		a.observeDecision(decision.Action.String(), decision.Wait)
		slog.Debug("pastebin call delayed by rate limiter",
			"option", rec.Option,
			"mode", a.limiter.Mode().String(),
			"wait", decision.Wait.String(),
		)
		rec.DelayMs = decision.Wait.Milliseconds()
		if err := a.clock.Sleep(ctx, decision.Wait); err != nil {
			rec.Outcome = metering.OutcomeCanceled
			rec.Error = err.Error()
			a.finish(rec)
			return "", err
		}
	} else {
		a.observeDecision(decision.Action.String(), 0)
	}

	req, err := a.newRequest(ctx, endpoint, method, params)
	if err != nil {
		return "", a.failBuild(rec, err)
	}

	start := time.Now()
	body, status, err := a.execute(req)
	elapsed := time.Since(start)

	rec.StatusCode = status
	rec.LatencyMs = elapsed.Milliseconds()
	rec.ResponseSize = int64(len(body))
	if a.metrics != nil {
		a.metrics.ObserveUpstreamDuration(rec.Option, elapsed.Seconds())
	}

	if err != nil {
		errType := classifyTransportError(err)
		if a.metrics != nil {
			a.metrics.IncUpstreamError(errType)
		}
		slog.Error("pastebin call failed", "option", rec.Option, "error_type", errType, "error", err)
		rec.Outcome = metering.OutcomeTransportError
		rec.ErrorKind = errType
		rec.Error = err.Error()
		a.finish(rec)
		return "", err
	}

	result, err := Classify(body)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			rec.ErrorKind = string(apiErr.Kind)
		}
		rec.Outcome = metering.OutcomeProviderError
		rec.Error = err.Error()
		a.finish(rec)
		return "", err
	}

	rec.Outcome = metering.OutcomeSuccess
	a.finish(rec)
	return result, nil
}

// Login exchanges credentials for a session key and keeps it for later calls.
func (a *Agent) Login(ctx context.Context, username, password string) (string, error) {
	params := url.Values{}
	params.Set("api_user_name", username)
	params.Set("api_user_password", password)

	body, err := a.Call(ctx, a.loginURL, http.MethodPost, params)
	if err != nil {
		return "", fmt.Errorf("logging in: %w", err)
	}

	key := strings.TrimSpace(body)
	if key == "" {
		return "", errors.New("logging in: empty session key in response")
	}
	a.SetSessionKey(key)
	slog.Info("pastebin session established", "username", username)
	return key, nil
}

func (a *Agent) observeDecision(action string, wait time.Duration) {
	if a.metrics == nil {
		return
	}
	mode := a.limiter.Mode().String()
	a.metrics.IncLimiterDecision(mode, action)
	if wait > 0 {
		a.metrics.ObserveLimiterDelay(mode, wait.Seconds())
	}
}

// failBuild records a call that could not be turned into a request.
func (a *Agent) failBuild(rec metering.Call, err error) error {
	err = fmt.Errorf("building request: %w", err)
	slog.Error("pastebin request not built", "option", rec.Option, "error", err)
	rec.Outcome = metering.OutcomeInvalidRequest
	rec.Error = err.Error()
	a.finish(rec)
	return err
}

func (a *Agent) finish(rec metering.Call) {
	if a.metrics != nil {
		a.metrics.IncUpstreamCalls(rec.Option, rec.Outcome)
	}
	if a.recorder != nil {
		a.recorder.Record(rec)
	}
}

// optionLabel names a call for logs and metrics. Login requests carry no
// api_option.
func optionLabel(params url.Values) string {
	if opt := params.Get("api_option"); opt != "" {
		return opt
	}
	if params.Has("api_user_name") {
		return "login"
	}
	return "unknown"
}
