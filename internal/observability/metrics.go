package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesSampled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracepipe",
		Name:      "frames_sampled_total",
		Help:      "Total number of frames surviving decoder sub-sampling",
	}, []string{"analysis_id"})

	FramesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracepipe",
		Name:      "frames_processed_total",
		Help:      "Total number of frames the quality gate sent downstream",
	}, []string{"analysis_id"})

	FramesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracepipe",
		Name:      "frames_skipped_total",
		Help:      "Total number of frames the quality gate dropped",
	}, []string{"analysis_id", "reason"})

	TracksFound = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracepipe",
		Name:      "tracks_found_total",
		Help:      "Total number of distinct person tracks created",
	}, []string{"analysis_id"})

	MatchesFound = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracepipe",
		Name:      "matches_found_total",
		Help:      "Total number of retained target matches",
	}, []string{"analysis_id"})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tracepipe",
		Name:      "inference_duration_seconds",
		Help:      "Duration of detection/matching HTTP calls",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"stage"})

	ActiveAnalyses = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tracepipe",
		Name:      "active_analyses",
		Help:      "Number of analyses currently PROCESSING",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tracepipe",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tracepipe",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
