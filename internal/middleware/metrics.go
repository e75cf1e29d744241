package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Message metrics
	messagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_bot_messages_received_total",
		Help: "Total number of messages received",
	})

	messagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_bot_messages_processed_total",
		Help: "Total number of messages processed",
	}, []string{"status"})

	messagesBlocked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_bot_messages_blocked_total",
		Help: "Total number of messages blocked by moderation",
	}, []string{"reason"})

	// Command metrics
	commandsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_bot_commands_executed_total",
		Help: "Total number of commands executed",
	}, []string{"command"})

	// AI metrics
	aiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chat_bot_ai_request_duration_seconds",
		Help:    "Duration of AI provider requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint", "status"})

	aiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_bot_ai_requests_total",
		Help: "Total number of AI provider requests",
	}, []string{"endpoint", "model", "status"})

	aiChainExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_bot_ai_chain_exhausted_total",
		Help: "Total number of resolutions where every provider failed",
	})

	// Cache metrics
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_bot_cache_hits_total",
		Help: "Total number of cache hits",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_bot_cache_misses_total",
		Help: "Total number of cache misses",
	})

	// Rate limit metrics
	rateLimitDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_bot_rate_limit_dropped_total",
		Help: "Total number of messages dropped by the per-user rate limit",
	})

	// Reputation metrics
	rankUps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_bot_rank_ups_total",
		Help: "Total number of rank-up transitions",
	})
)

// Metrics provides methods to record metrics
type Metrics struct{}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordMessageReceived records a received message
func (m *Metrics) RecordMessageReceived() {
	messagesReceived.Inc()
}

// RecordMessageProcessed records a processed message
func (m *Metrics) RecordMessageProcessed(status string) {
	messagesProcessed.WithLabelValues(status).Inc()
}

// RecordMessageBlocked records a moderation rejection
func (m *Metrics) RecordMessageBlocked(reason string) {
	messagesBlocked.WithLabelValues(reason).Inc()
}

// RecordCommandExecuted records an executed command
func (m *Metrics) RecordCommandExecuted(command string) {
	commandsExecuted.WithLabelValues(command).Inc()
}

// RecordAIRequest records one provider attempt
func (m *Metrics) RecordAIRequest(endpoint, model, status string, duration time.Duration) {
	aiRequestDuration.WithLabelValues(endpoint, status).Observe(duration.Seconds())
	aiRequestsTotal.WithLabelValues(endpoint, model, status).Inc()
}

// RecordAIChainExhausted records a resolution where no provider answered
func (m *Metrics) RecordAIChainExhausted() {
	aiChainExhausted.Inc()
}

// RecordCacheHit records a cache hit
func (m *Metrics) RecordCacheHit() {
	cacheHits.Inc()
}

// RecordCacheMiss records a cache miss
func (m *Metrics) RecordCacheMiss() {
	cacheMisses.Inc()
}

// RecordRateLimitDrop records a silently dropped message
func (m *Metrics) RecordRateLimitDrop() {
	rateLimitDropped.Inc()
}

// RecordRankUp records a rank-up transition
func (m *Metrics) RecordRankUp() {
	rankUps.Inc()
}

// StartMetricsServer starts the metrics HTTP server
func StartMetricsServer(port int, path string) error {
	router := mux.NewRouter()
	router.Handle(path, promhttp.Handler())

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf(":%d", port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
