package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	analysisStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "speech_analysis_started_total",
		Help: "Total speech analyses started",
	})
	analysisCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "speech_analysis_completed_total",
		Help: "Total speech analyses completed",
	})
	analysisFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_analysis_failed_total",
		Help: "Total speech analyses failed, by phase",
	}, []string{"phase"})
	transcriptionPollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_transcription_polls_total",
		Help: "Transcription job status queries, by observed status",
	}, []string{"status"})
	analysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "speech_analysis_duration_seconds",
		Help:    "Time from upload notification to completed record",
		Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 900},
	})
	queueMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_queue_messages_total",
		Help: "Upload notifications taken from the queue, by outcome",
	}, []string{"outcome"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_http_requests_total",
		Help: "HTTP requests served",
	}, []string{"method", "path", "status"})
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "speech_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// IncAnalysisStarted increments the started counter.
func IncAnalysisStarted() {
	analysisStartedTotal.Inc()
}

// IncAnalysisCompleted increments the completed counter.
func IncAnalysisCompleted() {
	analysisCompletedTotal.Inc()
}

// IncAnalysisFailed increments the failed counter for the phase that failed.
func IncAnalysisFailed(phase string) {
	analysisFailedTotal.WithLabelValues(phase).Inc()
}

// IncTranscriptionPoll counts one job status query.
func IncTranscriptionPoll(status string) {
	transcriptionPollsTotal.WithLabelValues(status).Inc()
}

// ObserveAnalysisDuration records the end-to-end duration of one analysis.
func ObserveAnalysisDuration(d time.Duration) {
	if d < 0 {
		d = 0
	}
	analysisDuration.Observe(d.Seconds())
}

// IncQueueMessage counts one queue message by outcome
// (received, completed, failed, skipped, deleted_unrecoverable).
func IncQueueMessage(outcome string) {
	queueMessagesTotal.WithLabelValues(outcome).Inc()
}

// Middleware records request counts and latency per route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
