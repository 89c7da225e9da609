package metering

import "time"

// Outcomes recorded for a call.
const (
	OutcomeSuccess        = "success"
	OutcomeProviderError  = "provider_error"
	OutcomeTransportError = "transport_error"
	OutcomeRateLimited    = "rate_limited"
	OutcomeCanceled       = "canceled"
	OutcomeInvalidRequest = "invalid_request"
)

// Call is one outbound Pastebin call as seen by the agent.
type Call struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Endpoint     string    `json:"endpoint"`
	Option       string    `json:"option"`
	Method       string    `json:"method"`
	StatusCode   int       `json:"status_code"`
	LatencyMs    int64     `json:"latency_ms"`
	DelayMs      int64     `json:"delay_ms"`
	ResponseSize int64     `json:"response_size"`
	Outcome      string    `json:"outcome"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// UsageSummary holds aggregate metrics for a set of calls.
type UsageSummary struct {
	TotalCalls   int64   `json:"total_calls"`
	SuccessCount int64   `json:"success_count"`
	ErrorCount   int64   `json:"error_count"`
	RateLimited  int64   `json:"rate_limited"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	TotalDelayMs int64   `json:"total_delay_ms"`
	DelayedCalls int64   `json:"delayed_calls"`
}

// UsageQuery defines filters and pagination for querying calls.
type UsageQuery struct {
	Option  string    `json:"option,omitempty"`
	Outcome string    `json:"outcome,omitempty"`
	From    time.Time `json:"from"`
	To      time.Time `json:"to"`
	Cursor  string    `json:"cursor,omitempty"`
	Limit   int       `json:"limit"`
}
