package models

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	objectTypeLabel = "type"
)

var (
	sceneObjectCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scene_objects",
		Help: "The number of objects in the scene.",
	}, []string{objectTypeLabel})

	sceneFrameDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scene_frame_duration_seconds",
		Help:    "The time spent running the frame handlers of a scene.",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
	})
)

func instrumentIncreaseObjectGauge(objectType uint32) {
	sceneObjectCount.
		With(prometheus.Labels{objectTypeLabel: ObjectTypeName(objectType)}).
		Inc()
}

func instrumentDecreaseObjectGauge(objectType uint32) {
	sceneObjectCount.
		With(prometheus.Labels{objectTypeLabel: ObjectTypeName(objectType)}).
		Dec()
}

func instrumentFrameDuration(d time.Duration) {
	sceneFrameDuration.Observe(d.Seconds())
}
