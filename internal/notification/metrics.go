package notification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the fan-out counters exported on /metrics.
type Metrics struct {
	Events     *prometheus.CounterVec
	Recipients *prometheus.CounterVec
	Duplicates prometheus.Counter
	Duration   *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "notifier",
			Name:      "events_total",
			Help:      "Action events handled, by action type and disposition.",
		}, []string{"action_type", "disposition"}),
		Recipients: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "notifier",
			Name:      "user_notifications_written_total",
			Help:      "UserNotification rows written by fan-out.",
		}, []string{"action_type"}),
		Duplicates: f.NewCounter(prometheus.CounterOpts{
			Namespace: "notifier",
			Name:      "duplicate_events_total",
			Help:      "Redelivered events acked without processing.",
		}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "notifier",
			Name:      "process_duration_seconds",
			Help:      "Time spent processing one action event.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action_type"}),
	}
}
