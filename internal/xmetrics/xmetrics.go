// Package xmetrics exposes prometheus counters for the host loop: active
// connection count, packets decoded by kind, and framing-lost/unknown-code
// counts. Purely additive observability — nothing here touches the byte
// stream (SPEC_FULL.md §3).
package xmetrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "xtrace",
		Name:      "connections_active",
		Help:      "Number of currently proxied X11 connections.",
	})

	ConnectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "xtrace",
		Name:      "connections_total",
		Help:      "Total X11 connections accepted.",
	})

	PacketsDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xtrace",
		Name:      "packets_decoded_total",
		Help:      "Packets decoded, labeled by direction and kind.",
	}, []string{"direction", "kind"})

	UnknownCodes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xtrace",
		Name:      "unknown_codes_total",
		Help:      "Requests/events/errors with no matching descriptor, by direction.",
	}, []string{"direction"})

	FramingLost = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "xtrace",
		Name:      "framing_lost_total",
		Help:      "Times a direction's framer transitioned to the lost state.",
	}, []string{"direction"})
)

// Serve starts the /metrics HTTP listener. It blocks until the listener
// fails, so callers run it in its own goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
