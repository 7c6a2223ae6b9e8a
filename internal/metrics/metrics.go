// Package metrics holds the Prometheus collectors of the renderer and the service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Tile fetch metrics
	TileFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "staticmap",
		Subsystem: "tiles",
		Name:      "fetches_total",
		Help:      "Total tile fetches by source and result",
	}, []string{"source", "result"})

	TileFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "staticmap",
		Subsystem: "tiles",
		Name:      "fetch_duration_seconds",
		Help:      "Tile fetch latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"source"})

	TileBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "staticmap",
		Subsystem: "tiles",
		Name:      "bytes_total",
		Help:      "Total encoded tile bytes received",
	}, []string{"source"})

	// Render metrics
	RendersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "staticmap",
		Subsystem: "render",
		Name:      "total",
		Help:      "Total map renders by mode and result",
	}, []string{"mode", "result"})

	RenderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "staticmap",
		Subsystem: "render",
		Name:      "duration_seconds",
		Help:      "End-to-end render latency in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"mode"})

	RenderTiles = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "staticmap",
		Subsystem: "render",
		Name:      "tiles",
		Help:      "Number of tiles assembled per render",
		Buckets:   prometheus.LinearBuckets(1, 4, 10),
	})

	ActiveRenders = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "staticmap",
		Subsystem: "server",
		Name:      "active_renders",
		Help:      "Renders currently in progress",
	})

	RejectedRenders = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "staticmap",
		Subsystem: "server",
		Name:      "rejected_renders_total",
		Help:      "Renders rejected because the concurrency limit was reached",
	})
)

// ObserveFetch records one tile fetch.
func ObserveFetch(source string, elapsed time.Duration, bytes int64, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	TileFetchesTotal.WithLabelValues(source, result).Inc()
	TileFetchDuration.WithLabelValues(source).Observe(elapsed.Seconds())
	if bytes > 0 {
		TileBytesTotal.WithLabelValues(source).Add(float64(bytes))
	}
}

// ObserveRender records one finished render.
func ObserveRender(debug bool, tiles int, elapsed time.Duration, err error) {
	mode := "map"
	if debug {
		mode = "debug"
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	RendersTotal.WithLabelValues(mode, result).Inc()
	RenderDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	if err == nil {
		RenderTiles.Observe(float64(tiles))
	}
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
