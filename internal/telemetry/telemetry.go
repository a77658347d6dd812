// Package telemetry exports the Prometheus metrics of the scraping
// pipeline: job throughput and duration, article and link counters,
// extraction fallbacks, LLM and embedding outcomes, and HTTP traffic.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all pipeline Prometheus metrics.
type Metrics struct {
	// Job metrics
	JobsProcessed *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec
	QueueDepth    prometheus.Gauge

	// Pipeline metrics
	ArticlesSaved       prometheus.Counter
	LinksSkipped        prometheus.Counter
	ExtractionFallbacks *prometheus.CounterVec

	// External call metrics
	LLMRequests *prometheus.CounterVec
	Embeddings  *prometheus.CounterVec

	// HTTP facade metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// Provider wraps the metric set.
type Provider struct {
	Metrics *Metrics
}

// NewProvider registers all metrics on the default registry.
func NewProvider() *Provider {
	return &Provider{Metrics: initMetrics()}
}

// Handler returns the Prometheus handler for the /metrics endpoint.
func (p *Provider) Handler() http.Handler {
	return promhttp.Handler()
}

func initMetrics() *Metrics {
	m := &Metrics{}
	initJobMetrics(m)
	initPipelineMetrics(m)
	initExternalMetrics(m)
	initHTTPMetrics(m)
	return m
}

func initJobMetrics(m *Metrics) {
	m.JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scraper_jobs_processed_total",
		Help: "Jobs taken to a terminal state, by type and final status",
	}, []string{"type", "status"})

	m.JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scraper_job_duration_seconds",
		Help:    "Wall time from claim to terminal state",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
	}, []string{"type"})

	m.QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scraper_queue_depth",
		Help: "Jobs currently queued",
	})
}

func initPipelineMetrics(m *Metrics) {
	m.ArticlesSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scraper_articles_saved_total",
		Help: "Articles persisted to news_articles",
	})

	m.LinksSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scraper_links_skipped_total",
		Help: "Links skipped as already processed or non-article",
	})

	m.ExtractionFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scraper_extraction_fallback_total",
		Help: "Extractions that fell back to the secondary engine",
	}, []string{"stage"})
}

func initExternalMetrics(m *Metrics) {
	m.LLMRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scraper_llm_requests_total",
		Help: "LLM calls by kind (classify, summarize, date) and outcome",
	}, []string{"kind", "outcome"})

	m.Embeddings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scraper_embeddings_total",
		Help: "Embedding attempts by outcome",
	}, []string{"outcome"})
}

func initHTTPMetrics(m *Metrics) {
	m.HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scraper_http_requests_total",
		Help: "HTTP requests served by the facade",
	}, []string{"method", "path", "status"})

	m.HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scraper_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})
}

// RecordJob records a job reaching a terminal state.
func (p *Provider) RecordJob(jobType, status string, duration time.Duration) {
	p.Metrics.JobsProcessed.WithLabelValues(jobType, status).Inc()
	p.Metrics.JobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}

// SetQueueDepth sets the queued-jobs gauge.
func (p *Provider) SetQueueDepth(depth int) {
	p.Metrics.QueueDepth.Set(float64(depth))
}

// RecordArticlesSaved adds to the saved-articles counter.
func (p *Provider) RecordArticlesSaved(n int) {
	if n > 0 {
		p.Metrics.ArticlesSaved.Add(float64(n))
	}
}

// RecordLinksSkipped adds to the skipped-links counter.
func (p *Provider) RecordLinksSkipped(n int) {
	if n > 0 {
		p.Metrics.LinksSkipped.Add(float64(n))
	}
}

// RecordExtractionFallback records a fall-through to the secondary
// engine for the given stage (article or links).
func (p *Provider) RecordExtractionFallback(stage string) {
	p.Metrics.ExtractionFallbacks.WithLabelValues(stage).Inc()
}

// RecordLLMRequest records one LLM call.
func (p *Provider) RecordLLMRequest(kind string, err error) {
	p.Metrics.LLMRequests.WithLabelValues(kind, outcome(err)).Inc()
}

// RecordEmbedding records one embedding attempt.
func (p *Provider) RecordEmbedding(err error) {
	p.Metrics.Embeddings.WithLabelValues(outcome(err)).Inc()
}

// RecordHTTPRequest records one served HTTP request.
func (p *Provider) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	p.Metrics.HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	p.Metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
