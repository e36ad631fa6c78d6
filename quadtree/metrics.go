package quadtree

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	stateLabel = "state"
)

var (
	treeNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quadtree_nodes",
		Help: "The number of nodes held by open quadtrees.",
	})

	cullLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quadtree_cull_latency",
		Help:    "The time to cull a quadtree.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 2, 16),
	})

	cullNodes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quadtree_cull_nodes",
		Help: "The number of nodes classified by culling passes.",
	}, []string{stateLabel})

	cullRootFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quadtree_cull_root_fallbacks",
		Help: "The number of culling passes that visited a root found outside the frustum.",
	})

	reinsertedObjects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quadtree_reinserted_objects",
		Help: "The number of objects reinserted from the root after moving.",
	})
)

func instrumentTreeNodes(delta int) {
	treeNodes.Add(float64(delta))
}

func instrumentCull(stats CullStats) {
	cullLatency.Observe(stats.Duration.Seconds())

	for state, count := range map[string]int{
		"all_inside":   stats.Inside,
		"all_outside":  stats.Outside,
		"partially_in": stats.Partial,
		"pruned":       stats.Pruned,
	} {
		cullNodes.
			With(prometheus.Labels{stateLabel: state}).
			Add(float64(count))
	}

	cullRootFallbacks.Add(float64(stats.RootFallbacks))
}

func instrumentReinsert() {
	reinsertedObjects.Inc()
}
