package rabbit

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomePublished    = "published"
	outcomePublishFail  = "publish_failed"
	outcomeAcked        = "acked"
	outcomeNacked       = "nacked"
	outcomeDropped      = "dropped"
	outcomeDeadLettered = "dead_lettered"
	outcomeDuplicated   = "duplicated"
)

var (
	eventCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fcg",
		Subsystem: "event_bus",
		Name:      "messages_total",
		Help:      "Integration events handled by the event bus, partitioned by event name and outcome.",
	}, []string{"event", "outcome"})

	handleDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fcg",
		Subsystem: "event_bus",
		Name:      "handle_duration_seconds",
		Help:      "Time spent by event handlers.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event"})

	registerMetricsOnce sync.Once
)

// Register bus metrics to the default prometheus registry, it's safe to call it more than once.
func RegisterMetrics() {
	registerMetricsOnce.Do(func() {
		prometheus.MustRegister(eventCounter, handleDuration)
	})
}

func countEvent(name string, outcome string) {
	eventCounter.WithLabelValues(name, outcome).Inc()
}
