// Package metrics holds the Prometheus collectors for the ingestion and
// query pipelines. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nikhilbhutani/docchat/internal/llm"
)

type Metrics struct {
	StageDuration *prometheus.HistogramVec
	StageErrors   *prometheus.CounterVec

	IngestDocuments *prometheus.CounterVec
	IngestChunks    prometheus.Counter

	StreamWords prometheus.Counter

	HTTPRequests *prometheus.CounterVec

	LLMTokens *prometheus.CounterVec
	LLMCost   *prometheus.CounterVec
}

// New registers every collector with reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction never collides.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docchat_pipeline_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"stage"},
		),
		StageErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docchat_pipeline_stage_errors_total",
				Help: "Total number of failed pipeline stages",
			},
			[]string{"stage"},
		),
		IngestDocuments: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docchat_ingest_documents_total",
				Help: "Uploaded documents by outcome",
			},
			[]string{"result"},
		),
		IngestChunks: f.NewCounter(
			prometheus.CounterOpts{
				Name: "docchat_ingest_chunks_total",
				Help: "Total number of chunks indexed",
			},
		),
		StreamWords: f.NewCounter(
			prometheus.CounterOpts{
				Name: "docchat_stream_words_total",
				Help: "Total number of answer fragments streamed to clients",
			},
		),
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docchat_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "status"},
		),
		LLMTokens: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docchat_llm_tokens_total",
				Help: "Tokens consumed by model calls",
			},
			[]string{"provider", "model", "kind"},
		),
		LLMCost: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docchat_llm_cost_usd_total",
				Help: "Estimated spend on model calls in USD",
			},
			[]string{"provider", "model"},
		),
	}
}

// ObserveStage records the duration of stage since start, and counts err.
func (m *Metrics) ObserveStage(stage string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	if err != nil {
		m.StageErrors.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) Ingested(result string, chunks int) {
	if m == nil {
		return
	}
	m.IngestDocuments.WithLabelValues(result).Inc()
	m.IngestChunks.Add(float64(chunks))
}

func (m *Metrics) StreamedWord() {
	if m == nil {
		return
	}
	m.StreamWords.Inc()
}

func (m *Metrics) HTTPRequest(method string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, statusClass(status)).Inc()
}

// RecordUsage is an llm.WithUsageHook callback.
func (m *Metrics) RecordUsage(r llm.UsageRecord) {
	if m == nil {
		return
	}
	m.LLMTokens.WithLabelValues(r.Provider, r.Model, "input").Add(float64(r.InputTokens))
	m.LLMTokens.WithLabelValues(r.Provider, r.Model, "output").Add(float64(r.OutputTokens))
	m.LLMCost.WithLabelValues(r.Provider, r.Model).Add(r.CostUSD)
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
