package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	frameCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_frames",
		Help: "The number of ticked frames.",
	})

	frameVisibleObjects = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "engine_frame_visible_objects",
		Help: "The number of objects visible in the last frame.",
	})

	frameReinsertedObjects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_frame_reinserted_objects",
		Help: "The number of moving objects reinserted in the spatial index.",
	})

	frameInterval = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "engine_frame_interval",
		Help:    "The time elapsed between two frames.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	sceneLoadLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "engine_scene_load_latency",
		Help: "The time to generate and add a scene.",
	})
)

func instrumentFrame(f Frame, dt time.Duration) {
	frameCount.Inc()
	frameVisibleObjects.Set(float64(len(f.Visible)))
	frameReinsertedObjects.Add(float64(f.Reinserted))
	frameInterval.Observe(dt.Seconds())
}

func instrumentSceneLoad(d time.Duration) {
	sceneLoadLatency.Observe(d.Seconds())
}
