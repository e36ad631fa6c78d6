package models

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	kindLabel = "kind"
)

var (
	objectCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "object_count",
		Help: "The number of scene objects.",
	}, []string{kindLabel})

	objectCountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "object_count_total",
		Help: "The total number of scene objects added.",
	}, []string{kindLabel})
)

func instrumentIncreaseObjectGauge(kind string) {
	objectCount.
		With(prometheus.Labels{kindLabel: kind}).
		Inc()
}

func instrumentDecreaseObjectGauge(kind string) {
	objectCount.
		With(prometheus.Labels{kindLabel: kind}).
		Dec()
}

func instrumentCountObject(kind string) {
	objectCountTotal.
		With(prometheus.Labels{kindLabel: kind}).
		Inc()
}
