package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
)

var (
    once sync.Once

    APILatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "credpulse",
            Subsystem: "api",
            Name:      "latency_seconds",
            Help:      "Latency of read API endpoints",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"endpoint"},
    )

    APIErrors = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "credpulse",
            Subsystem: "api",
            Name:      "errors_total",
            Help:      "Errors by read API endpoint",
        },
        []string{"endpoint"},
    )

    WSConnections = prometheus.NewGauge(
        prometheus.GaugeOpts{
            Namespace: "credpulse",
            Subsystem: "stream",
            Name:      "ws_connections",
            Help:      "Connected WebSocket clients",
        },
    )
)

func Register() {
    once.Do(func() {
        prometheus.MustRegister(APILatency, APIErrors, WSConnections)
    })
}
