package observer

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsEnabled = true // Flag to control metric collection

	// Labels for webhook ingestion metrics
	webhookLabels = []string{"provider", "org_id"}
	// Labels for tool-call execution metrics
	toolCallLabels = []string{"tool", "org_id", "status"}
	// Labels for database operation metrics
	dbOperationLabels = []string{"operation", "entity", "org_id", "status"}

	WebhooksReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_processor_webhooks_received_total",
			Help: "Total number of webhook deliveries received, labeled by provider.",
		},
		webhookLabels,
	)
	WebhooksDuplicateTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_processor_webhooks_duplicate_total",
			Help: "Total number of webhook deliveries suppressed by the idempotency gate.",
		},
		webhookLabels,
	)
	WebhooksRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_processor_webhooks_rejected_total",
			Help: "Total number of webhook deliveries rejected at signature verification.",
		},
		[]string{"provider"},
	)
	WebhooksFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_processor_webhooks_failed_total",
			Help: "Total number of webhook deliveries that failed processing.",
		},
		webhookLabels,
	)

	WebhookProcessingDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "intake_processor_webhook_processing_duration_seconds",
			Help:    "Histogram of webhook processing durations.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		webhookLabels,
	)

	ToolCallsExecutedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_processor_tool_calls_executed_total",
			Help: "Total number of tool-call executions, labeled by tool and result status.",
		},
		toolCallLabels,
	)

	LeadDispositionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_processor_lead_dispositions_total",
			Help: "Total number of qualification runs, labeled by resulting disposition.",
		},
		[]string{"disposition", "org_id"},
	)

	DatabaseOperationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "intake_processor_db_operation_duration_seconds",
			Help:    "Histogram of database operation durations.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		},
		dbOperationLabels,
	)
)

// Metrics for the outcome worker pool and the event publisher.
var (
	outcomeTasksSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_processor_outcome_tasks_submitted_total",
			Help: "Total number of outcome records submitted to the worker pool.",
		},
		[]string{"status"},
	)
	outcomeTasksDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intake_processor_outcome_tasks_dropped_total",
		Help: "Total number of outcome records dropped because the pool was saturated.",
	})
	outcomeQueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "intake_processor_outcome_queue_length",
		Help: "Current number of outcome records waiting in the worker pool.",
	})

	eventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_processor_events_published_total",
			Help: "Total number of lifecycle events published to JetStream.",
		},
		[]string{"subject", "status"},
	)
)

// InitMetrics initializes metric collection. Metrics are auto-registered via
// promauto; this only arms or disarms the helpers.
func InitMetrics(enabled bool) {
	metricsEnabled = enabled
}

// IncWebhooksReceived increments the webhooks received counter.
func IncWebhooksReceived(provider, orgID string) {
	if !metricsEnabled {
		return
	}
	WebhooksReceivedTotal.WithLabelValues(provider, sanitizeOrg(orgID)).Inc()
}

// IncWebhooksDuplicate increments the duplicate-suppression counter.
func IncWebhooksDuplicate(provider, orgID string) {
	if !metricsEnabled {
		return
	}
	WebhooksDuplicateTotal.WithLabelValues(provider, sanitizeOrg(orgID)).Inc()
}

// IncWebhooksRejected increments the signature-rejection counter.
func IncWebhooksRejected(provider string) {
	if !metricsEnabled {
		return
	}
	WebhooksRejectedTotal.WithLabelValues(provider).Inc()
}

// IncWebhooksFailed increments the processing-failure counter.
func IncWebhooksFailed(provider, orgID string) {
	if !metricsEnabled {
		return
	}
	WebhooksFailedTotal.WithLabelValues(provider, sanitizeOrg(orgID)).Inc()
}

// ObserveWebhookProcessingDuration records end-to-end webhook handling time.
func ObserveWebhookProcessingDuration(provider, orgID string, duration time.Duration) {
	if !metricsEnabled {
		return
	}
	WebhookProcessingDurationSeconds.WithLabelValues(provider, sanitizeOrg(orgID)).Observe(duration.Seconds())
}

// IncToolCallExecuted records one tool-call execution result.
func IncToolCallExecuted(tool, orgID string, success bool) {
	if !metricsEnabled {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	ToolCallsExecutedTotal.WithLabelValues(tool, sanitizeOrg(orgID), status).Inc()
}

// IncLeadDisposition records one qualification run result.
func IncLeadDisposition(disposition, orgID string) {
	if !metricsEnabled {
		return
	}
	LeadDispositionsTotal.WithLabelValues(disposition, sanitizeOrg(orgID)).Inc()
}

// ObserveDbOperationDuration records the duration for a database operation.
func ObserveDbOperationDuration(operation, entity, orgID string, duration time.Duration, err error) {
	if !metricsEnabled {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseOperationDurationSeconds.WithLabelValues(operation, entity, sanitizeOrg(orgID), status).Observe(duration.Seconds())
}

// IncOutcomeTasksSubmitted increments the counter for submitted outcome tasks.
func IncOutcomeTasksSubmitted(status string) {
	if !metricsEnabled {
		return
	}
	outcomeTasksSubmittedTotal.WithLabelValues(status).Inc()
}

// IncOutcomeTasksDropped increments the counter for dropped outcome tasks.
func IncOutcomeTasksDropped() {
	if !metricsEnabled {
		return
	}
	outcomeTasksDroppedTotal.Inc()
}

// SetOutcomeQueueLength updates the outcome worker queue gauge.
func SetOutcomeQueueLength(length int) {
	if !metricsEnabled {
		return
	}
	outcomeQueueLength.Set(float64(length))
}

// IncEventsPublished records one lifecycle event publish attempt.
func IncEventsPublished(subject string, err error) {
	if !metricsEnabled {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	eventsPublishedTotal.WithLabelValues(subject, status).Inc()
}

// sanitizeOrg ensures the org label is valid or returns a default value.
func sanitizeOrg(orgID string) string {
	if orgID == "" {
		return "unknown"
	}
	return orgID
}

// SanitizeErrorType maps specific errors to a coarse category for labels.
// Keep this simple to avoid high cardinality.
func SanitizeErrorType(errStr string) string {
	if errStr == "" || errStr == "none" {
		return "none"
	}

	switch {
	case strings.Contains(errStr, "database"), strings.Contains(errStr, "SQL"), strings.Contains(errStr, "duplicate key"), strings.Contains(errStr, "constraint"), strings.Contains(errStr, "connection"):
		return "database"
	case strings.Contains(errStr, "validation failed"), strings.Contains(errStr, "bad request"), strings.Contains(errStr, "invalid"), strings.Contains(errStr, "missing field"):
		return "validation"
	case strings.Contains(errStr, "not found"), strings.Contains(errStr, "no rows"):
		return "not_found"
	case strings.Contains(errStr, "nats"), strings.Contains(errStr, "jetstream"):
		return "nats"
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline exceeded"):
		return "timeout"
	case strings.Contains(errStr, "unmarshal"), strings.Contains(errStr, "json"):
		return "unmarshal"
	case strings.Contains(errStr, "panic"):
		return "panic"
	default:
		return "unknown"
	}
}
