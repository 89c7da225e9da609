package metrics

import (
	"encoding/json"
	"math"
	"net/http"
	"sort"
	"time"

	dto "github.com/prometheus/client_model/go"
)

// Summary is the JSON response for the metrics endpoint.
type Summary struct {
	Gateway   gatewaySummary  `json:"gateway"`
	Upstream  upstreamSummary `json:"upstream"`
	Limiter   limiterSummary  `json:"limiter"`
	Collector collectorInfo   `json:"collector"`
	Auth      authInfo        `json:"auth"`
	DB        dbInfo          `json:"db"`
	Server    serverInfo      `json:"server"`
}

type gatewaySummary struct {
	TotalRequests float64 `json:"totalRequests"`
	ErrorRate     float64 `json:"errorRate"`
	P50Latency    float64 `json:"p50Latency"`
	P95Latency    float64 `json:"p95Latency"`
	P99Latency    float64 `json:"p99Latency"`
}

type upstreamSummary struct {
	TotalCalls     float64 `json:"totalCalls"`
	Successes      float64 `json:"successes"`
	ProviderErrors float64 `json:"providerErrors"`
	TransportErrs  float64 `json:"transportErrors"`
	P50Latency     float64 `json:"p50Latency"`
	P95Latency     float64 `json:"p95Latency"`
}

type limiterSummary struct {
	Proceeded float64 `json:"proceeded"`
	Delayed   float64 `json:"delayed"`
	Rejected  float64 `json:"rejected"`
	P95Delay  float64 `json:"p95DelaySeconds"`
}

type collectorInfo struct {
	BufferSize   float64 `json:"bufferSize"`
	TotalFlushes float64 `json:"totalFlushes"`
	FlushErrors  float64 `json:"flushErrors"`
	Calls        float64 `json:"calls"`
}

type authInfo struct {
	Failures  float64 `json:"failures"`
	Successes float64 `json:"successes"`
}

type serverInfo struct {
	StartTime     float64 `json:"startTime"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

type dbInfo struct {
	TotalConns    float64 `json:"totalConns"`
	IdleConns     float64 `json:"idleConns"`
	AcquiredConns float64 `json:"acquiredConns"`
}

// Handler returns an http.HandlerFunc that serves a JSON digest of the
// registry.
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := m.Summarize()
		if err != nil {
			http.Error(w, "failed to gather metrics", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache, no-store")
		_ = json.NewEncoder(w).Encode(summary)
	}
}

// Summarize gathers the registry and reduces it to a Summary.
func (m *Metrics) Summarize() (*Summary, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}

	fam := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		fam[f.GetName()] = f
	}

	httpTotal := fam["pasteagent_http_requests_total"]
	httpDur := fam["pasteagent_http_request_duration_seconds"]
	calls := fam["pasteagent_upstream_calls_total"]
	upDur := fam["pasteagent_upstream_duration_seconds"]
	decisions := fam["pasteagent_limiter_decisions_total"]
	started := gaugeValue(fam["pasteagent_server_start_time_seconds"])

	return &Summary{
		Gateway: gatewaySummary{
			TotalRequests: sumCounter(httpTotal, nil),
			ErrorRate:     errorRate(httpTotal),
			P50Latency:    histogramPercentile(httpDur, 0.50),
			P95Latency:    histogramPercentile(httpDur, 0.95),
			P99Latency:    histogramPercentile(httpDur, 0.99),
		},
		Upstream: upstreamSummary{
			TotalCalls:     sumCounter(calls, nil),
			Successes:      sumCounter(calls, label("outcome", "success")),
			ProviderErrors: sumCounter(calls, label("outcome", "provider_error")),
			TransportErrs:  sumCounter(calls, label("outcome", "transport_error")),
			P50Latency:     histogramPercentile(upDur, 0.50),
			P95Latency:     histogramPercentile(upDur, 0.95),
		},
		Limiter: limiterSummary{
			Proceeded: sumCounter(decisions, label("action", "proceed")),
			Delayed:   sumCounter(decisions, label("action", "delay")),
			Rejected:  sumCounter(decisions, label("action", "reject")),
			P95Delay:  histogramPercentile(fam["pasteagent_limiter_delay_seconds"], 0.95),
		},
		Collector: collectorInfo{
			BufferSize:   gaugeValue(fam["pasteagent_collector_buffer_size"]),
			TotalFlushes: sumCounter(fam["pasteagent_collector_flushes_total"], nil),
			FlushErrors:  sumCounter(fam["pasteagent_collector_flushes_total"], label("status", "error")),
			Calls:        sumCounter(fam["pasteagent_collector_calls_total"], nil),
		},
		Auth: authInfo{
			Failures:  sumCounter(fam["pasteagent_auth_failures_total"], nil),
			Successes: sumCounter(fam["pasteagent_auth_successes_total"], nil),
		},
		DB: dbInfo{
			TotalConns:    gaugeValue(fam["pasteagent_db_pool_total_conns"]),
			IdleConns:     gaugeValue(fam["pasteagent_db_pool_idle_conns"]),
			AcquiredConns: gaugeValue(fam["pasteagent_db_pool_acquired_conns"]),
		},
		Server: serverInfo{
			StartTime:     started,
			UptimeSeconds: float64(time.Now().Unix()) - started,
		},
	}, nil
}

// --- Prometheus metric helpers ---

type metricFilter func(*dto.Metric) bool

func label(name, value string) metricFilter {
	return func(m *dto.Metric) bool {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == name && lp.GetValue() == value {
				return true
			}
		}
		return false
	}
}

func sumCounter(f *dto.MetricFamily, keep metricFilter) float64 {
	var total float64
	for _, m := range f.GetMetric() {
		if keep != nil && !keep(m) {
			continue
		}
		if c := m.GetCounter(); c != nil {
			total += c.GetValue()
		}
	}
	return total
}

func gaugeValue(f *dto.MetricFamily) float64 {
	ms := f.GetMetric()
	if len(ms) == 0 || ms[0].GetGauge() == nil {
		return 0
	}
	return ms[0].GetGauge().GetValue()
}

// errorRate is the share of requests answered with a 4xx or 5xx status.
func errorRate(f *dto.MetricFamily) float64 {
	var total, failed float64
	for _, m := range f.GetMetric() {
		c := m.GetCounter()
		if c == nil {
			continue
		}
		total += c.GetValue()
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "status_code" && lp.GetValue() >= "4" {
				failed += c.GetValue()
			}
		}
	}
	if total == 0 {
		return 0
	}
	return failed / total
}

// histogramPercentile computes a percentile from the family's aggregated
// buckets using linear interpolation.
func histogramPercentile(f *dto.MetricFamily, q float64) float64 {
	var count uint64
	cumulative := make(map[float64]uint64)
	for _, m := range f.GetMetric() {
		h := m.GetHistogram()
		if h == nil {
			continue
		}
		count += h.GetSampleCount()
		for _, b := range h.GetBucket() {
			cumulative[b.GetUpperBound()] += b.GetCumulativeCount()
		}
	}
	if count == 0 {
		return 0
	}

	bounds := make([]float64, 0, len(cumulative))
	for ub := range cumulative {
		if !math.IsInf(ub, 1) {
			bounds = append(bounds, ub)
		}
	}
	if len(bounds) == 0 {
		return 0
	}
	sort.Float64s(bounds)

	rank := q * float64(count)
	var prevBound float64
	var prevCount uint64
	for _, ub := range bounds {
		c := cumulative[ub]
		if float64(c) >= rank {
			inBucket := c - prevCount
			if inBucket == 0 {
				return ub
			}
			return prevBound + (rank-float64(prevCount))/float64(inBucket)*(ub-prevBound)
		}
		prevBound, prevCount = ub, c
	}
	return bounds[len(bounds)-1]
}
