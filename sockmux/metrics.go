package sockmux

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsOnce sync.Once

	sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sockmux",
		Subsystem: "sessions",
		Name:      "active",
		Help:      "Sessions currently alive.",
	})
	sessionsOpened = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sockmux",
		Subsystem: "sessions",
		Name:      "opened_total",
		Help:      "Sessions that reached the open state.",
	})
	sessionsTerminated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sockmux",
		Subsystem: "sessions",
		Name:      "terminated_total",
		Help:      "Sessions terminated, by reason.",
	}, []string{"reason"})
	messagesOut = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sockmux",
		Subsystem: "messages",
		Name:      "out_total",
		Help:      "Outbound messages delivered to transport connections.",
	})
	messagesIn = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sockmux",
		Subsystem: "messages",
		Name:      "in_total",
		Help:      "Inbound messages delivered to application handlers.",
	})
	heartbeats = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sockmux",
		Subsystem: "sessions",
		Name:      "heartbeats_total",
		Help:      "Heartbeat frames sent to waiting connections.",
	})
)

func registerMetrics() {
	metricsOnce.Do(func() {
		prometheus.MustRegister(sessionsActive, sessionsOpened, sessionsTerminated,
			messagesOut, messagesIn, heartbeats)
	})
}
