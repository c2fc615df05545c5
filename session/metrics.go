package session

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the engine-level counters/gauges named in SPEC_FULL.md's
// domain stack, grounded on Aidin1998-finalex's monitoring/metrics.go
// prometheus.NewCounter/NewCounterVec pattern.
var (
	messagesInTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fix_session_messages_in_total",
		Help: "Inbound FIX messages processed, by session.",
	}, []string{"session"})

	messagesOutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fix_session_messages_out_total",
		Help: "Outbound FIX messages sent, by session.",
	}, []string{"session"})

	gapsDetectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fix_session_gaps_detected_total",
		Help: "Inbound sequence gaps that triggered a ResendRequest, by session.",
	}, []string{"session"})

	reconnectsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fix_session_reconnects_total",
		Help: "Initiator reconnection attempts, by session.",
	}, []string{"session"})

	sessionStateGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fix_session_state",
		Help: "Current session state as an enum value, by session.",
	}, []string{"session"})

	registerOnce sync.Once
)

func registerMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(messagesInTotal, messagesOutTotal, gapsDetectedTotal, reconnectsTotal, sessionStateGauge)
	})
}
