// Package metrics exposes Prometheus collectors for the pipeline service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	articlesTotal           *prometheus.CounterVec
	chunksTotal             prometheus.Counter
	searchQueriesTotal      *prometheus.CounterVec
	fulltextAttemptsTotal   *prometheus.CounterVec
	checkpointCommitsTotal  *prometheus.CounterVec
	checkpointPushesTotal   *prometheus.CounterVec
	stageQueueDepth         *prometheus.GaugeVec
	enrichDurationSeconds   prometheus.Histogram
	httpRequestsTotal       *prometheus.CounterVec
	httpRequestDurationSecs *prometheus.HistogramVec
	dedupIndexSize          *prometheus.GaugeVec
	feedGenerationsTotal    *prometheus.CounterVec
	deadLetterRetriesTotal  *prometheus.CounterVec
	publisherEventsTotal    *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		articlesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pubmed_articles_total",
				Help: "Total articles processed, labeled by stage and outcome.",
			},
			[]string{"stage", "outcome"},
		)

		chunksTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pubmed_chunks_total",
				Help: "Total text chunks emitted.",
			},
		)

		searchQueriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pubmed_search_queries_total",
				Help: "Total discovery search queries, labeled by category and result.",
			},
			[]string{"category", "result"},
		)

		fulltextAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pubmed_fulltext_attempts_total",
				Help: "Total full-text retrieval attempts, labeled by adapter and result.",
			},
			[]string{"adapter", "result"},
		)

		checkpointCommitsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pubmed_checkpoint_commits_total",
				Help: "Total checkpoint commits, labeled by stage and result.",
			},
			[]string{"stage", "result"},
		)

		checkpointPushesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pubmed_checkpoint_pushes_total",
				Help: "Total checkpoint replications, labeled by stage and result.",
			},
			[]string{"stage", "result"},
		)

		stageQueueDepth = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pubmed_stage_queue_depth",
				Help: "Items waiting in each stage channel.",
			},
			[]string{"stage"},
		)

		enrichDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pubmed_enrich_duration_seconds",
				Help:    "Histogram of enrichment latencies.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSecs = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		dedupIndexSize = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pubmed_dedup_index_size",
				Help: "Identifiers held by the dedup index, labeled by set.",
			},
			[]string{"set"},
		)

		feedGenerationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pubmed_feed_generations_total",
				Help: "Total feed/dashboard regenerations, labeled by kind and result.",
			},
			[]string{"kind", "result"},
		)

		deadLetterRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pubmed_dead_letter_retries_total",
				Help: "Total dead-letter re-attempts, labeled by result.",
			},
			[]string{"result"},
		)

		publisherEventsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pubmed_publisher_events_total",
				Help: "Total completion events published, labeled by result.",
			},
			[]string{"result"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveArticle counts one article passing (or failing) a stage.
func ObserveArticle(stage, outcome string) {
	articlesTotal.WithLabelValues(stage, outcome).Inc()
}

// ObserveChunks adds n to the emitted-chunk counter.
func ObserveChunks(n int) {
	if n > 0 {
		chunksTotal.Add(float64(n))
	}
}

// ObserveSearchQuery counts one discovery query.
func ObserveSearchQuery(category, result string) {
	searchQueriesTotal.WithLabelValues(category, result).Inc()
}

// ObserveFulltextAttempt counts one adapter attempt.
func ObserveFulltextAttempt(adapter, result string) {
	fulltextAttemptsTotal.WithLabelValues(adapter, result).Inc()
}

// ObserveCheckpoint counts a commit and, when attempted, a push.
func ObserveCheckpoint(stage string, committed, pushed bool) {
	if committed {
		checkpointCommitsTotal.WithLabelValues(stage, "ok").Inc()
	}
	if pushed {
		checkpointPushesTotal.WithLabelValues(stage, "ok").Inc()
	}
}

// ObserveCheckpointError counts a failed checkpoint attempt.
func ObserveCheckpointError(stage string) {
	checkpointCommitsTotal.WithLabelValues(stage, "error").Inc()
}

// SetQueueDepth records the number of items waiting at a stage.
func SetQueueDepth(stage string, depth int) {
	stageQueueDepth.WithLabelValues(stage).Set(float64(depth))
}

// ObserveEnrichDuration records one enrichment latency.
func ObserveEnrichDuration(d time.Duration) {
	enrichDurationSeconds.Observe(d.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSecs.WithLabelValues(method, route).Observe(duration.Seconds())
}

// SetDedupSize records the current size of one dedup set.
func SetDedupSize(set string, size int) {
	dedupIndexSize.WithLabelValues(set).Set(float64(size))
}

// ObserveFeedGeneration counts one feed or dashboard regeneration.
func ObserveFeedGeneration(kind, result string) {
	feedGenerationsTotal.WithLabelValues(kind, result).Inc()
}

// ObserveDeadLetterRetry counts one dead-letter re-attempt.
func ObserveDeadLetterRetry(result string) {
	deadLetterRetriesTotal.WithLabelValues(result).Inc()
}

// ObservePublish counts one completion-event publish.
func ObservePublish(result string) {
	publisherEventsTotal.WithLabelValues(result).Inc()
}
