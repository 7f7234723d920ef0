package streamer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "k8s_events_streamer_events_total",
			Help: "Watched events by pipeline outcome.",
		},
		[]string{"outcome"},
	)
	watchSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "k8s_events_streamer_watch_sessions_total",
			Help: "Watch subscriptions by how they ended (closed, error, open_error).",
		},
		[]string{"result"},
	)
	stateGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "k8s_events_streamer_state",
			Help: "Current watch loop state: 1 streaming, 0 idle wait.",
		},
	)
)

const (
	outcomeAccepted   = "accepted"
	outcomeMalformed  = "malformed"
	outcomeSendFailed = "send_failed"
)
