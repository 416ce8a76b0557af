package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	Namespace = "listing_tracker"

	QueueSubsystem    = "queue"
	PipelineSubsystem = "pipeline"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"service", "method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "endpoint"},
	)
)

// Метрики очереди задач.
var (
	JobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: QueueSubsystem,
			Name:      "jobs_processed_total",
			Help:      "Total number of processed jobs by type and outcome",
		},
		[]string{"job_type", "outcome"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: QueueSubsystem,
			Name:      "job_duration_seconds",
			Help:      "Job handler duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"job_type"},
	)

	JobsEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: QueueSubsystem,
			Name:      "jobs_enqueued_total",
			Help:      "Total number of enqueue calls by type and result",
		},
		[]string{"job_type", "result"},
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: QueueSubsystem,
			Name:      "depth",
			Help:      "Number of jobs in the queue by state",
		},
		[]string{"state"},
	)
)

// Метрики конвейера объявлений.
var (
	ScrapeRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: PipelineSubsystem,
			Name:      "scrape_request_duration_seconds",
			Help:      "Marketplace request duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation", "status"},
	)

	ScrapeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: PipelineSubsystem,
			Name:      "scrape_requests_total",
			Help:      "Total number of marketplace requests",
		},
		[]string{"operation", "status"},
	)

	NewListingsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: PipelineSubsystem,
			Name:      "new_listings_total",
			Help:      "Total number of listings that passed keyword deduplication",
		},
	)

	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: PipelineSubsystem,
			Name:      "deliveries_total",
			Help:      "Total number of delivery attempts by result",
		},
		[]string{"result"},
	)

	StatusTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: PipelineSubsystem,
			Name:      "status_transitions_total",
			Help:      "Total number of listing status transitions",
		},
		[]string{"status"},
	)

	BotCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "bot_commands_total",
			Help:      "Total number of chat commands by name",
		},
		[]string{"command"},
	)
)

func RecordHTTPRequest(service, method, endpoint string, statusCode int, duration time.Duration) {
	status := "success"
	if statusCode >= 400 {
		status = "error"
	}

	HTTPRequestsTotal.WithLabelValues(service, method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(service, method, endpoint).Observe(duration.Seconds())
}

func RecordJob(jobType, outcome string, duration time.Duration) {
	JobsProcessedTotal.WithLabelValues(jobType, outcome).Inc()
	JobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}

func RecordEnqueue(jobType string, duplicate bool) {
	result := "created"
	if duplicate {
		result = "duplicate"
	}

	JobsEnqueuedTotal.WithLabelValues(jobType, result).Inc()
}

func UpdateQueueDepth(state string, count float64) {
	QueueDepth.WithLabelValues(state).Set(count)
}

func RecordScrapeRequest(operation, status string, duration time.Duration) {
	ScrapeRequestsTotal.WithLabelValues(operation, status).Inc()
	ScrapeRequestDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

func RecordNewListings(count int) {
	NewListingsTotal.Add(float64(count))
}

func RecordDelivery(result string) {
	DeliveriesTotal.WithLabelValues(result).Inc()
}

func RecordStatusTransition(status string) {
	StatusTransitionsTotal.WithLabelValues(status).Inc()
}

func RecordBotCommand(command string) {
	BotCommandsTotal.WithLabelValues(command).Inc()
}
