package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		remoteCallsTotal,
		remoteCallRetriesTotal,
	)
}

var (
	remoteCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_remote_calls_total",
			Help: "Outbound provider calls by submethod and result (ok/unavailable).",
		},
		[]string{"submethod", "result"},
	)

	remoteCallRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_remote_call_retries_total",
			Help: "Transport-level retries of outbound provider calls.",
		},
		[]string{"submethod"},
	)
)

func IncRemoteCall(submethod, result string) {
	remoteCallsTotal.WithLabelValues(norm(submethod), norm(result)).Inc()
}

func IncRemoteCallRetry(submethod string) {
	remoteCallRetriesTotal.WithLabelValues(norm(submethod)).Inc()
}
