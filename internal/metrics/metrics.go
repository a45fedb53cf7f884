// Package metrics provides Prometheus metrics for textbot.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesTotal counts handled inbound messages by action kind and result.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "textbot",
			Name:      "messages_total",
			Help:      "Total number of handled inbound messages",
		},
		[]string{"kind", "result"},
	)

	// ClassifyDuration measures classifier round trips.
	ClassifyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "textbot",
			Name:      "classify_duration_seconds",
			Help:      "Duration of intent classification calls in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// CredentialRefreshTotal counts token endpoint calls by status.
	CredentialRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "textbot",
			Name:      "credential_refresh_total",
			Help:      "Total number of credential refresh attempts",
		},
		[]string{"kind", "status"},
	)

	// NotificationsTotal counts outbound SMS by status.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "textbot",
			Name:      "notifications_total",
			Help:      "Total number of outbound notifications",
		},
		[]string{"status"},
	)
)

// RecordMessage records the result of one dispatched message.
func RecordMessage(kind string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	MessagesTotal.WithLabelValues(kind, result).Inc()
}

// RecordRefresh records one token endpoint call.
func RecordRefresh(kind, status string) {
	CredentialRefreshTotal.WithLabelValues(kind, status).Inc()
}

// RecordNotification records one outbound send.
func RecordNotification(err error) {
	status := "sent"
	if err != nil {
		status = "error"
	}
	NotificationsTotal.WithLabelValues(status).Inc()
}
