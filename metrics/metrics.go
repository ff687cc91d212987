// Package metrics mirrors a trainer's convergence diagnostics into
// Prometheus gauges, grounded in
// hupe1980-vecgo/examples/observability's PrometheusObserver: a struct
// of registered prometheus.Gauge fields updated from one Observe-style
// callback, with exposition left to the caller via promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder implements trainer.Recorder, publishing one gauge per
// convergence-log column except UnixTime.
type Recorder struct {
	epoch             prometheus.Gauge
	radiusMin         prometheus.Gauge
	radiusMax         prometheus.Gauge
	quantizationError prometheus.Gauge
	topographicError  prometheus.Gauge
	gapError          prometheus.Gauge
	diffusionError    prometheus.Gauge
}

// NewRecorder builds and registers a Recorder's gauges against reg. Pass
// prometheus.DefaultRegisterer to expose them on the default handler.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		epoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "semantic_map_epoch",
			Help: "Most recently completed training epoch",
		}),
		radiusMin: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "semantic_map_radius_min",
			Help: "Minimum per-cell neighborhood radius",
		}),
		radiusMax: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "semantic_map_radius_max",
			Help: "Maximum per-cell neighborhood radius",
		}),
		quantizationError: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "semantic_map_quantization_error",
			Help: "Root total distance from each snippet to its best-matching unit, normalized by dataset size",
		}),
		topographicError: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "semantic_map_topographic_error",
			Help: "Number of snippets whose best- and next-best-matching units are not adjacent on the grid, plus one, divided by the number of snippets",
		}),
		gapError: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "semantic_map_gap_error",
			Help: "Fraction of cells that received no best-matching-unit assignment",
		}),
		diffusionError: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "semantic_map_diffusion_error",
			Help: "Mean grid distance between this epoch's and the previous epoch's best-matching unit, over all snippets",
		}),
	}

	reg.MustRegister(r.epoch, r.radiusMin, r.radiusMax, r.quantizationError,
		r.topographicError, r.gapError, r.diffusionError)

	return r
}

// Observe implements trainer.Recorder.
func (r *Recorder) Observe(epoch uint32, radiusMin, radiusMax, quantizationError, topographicError, gapError, diffusionError float32) {
	r.epoch.Set(float64(epoch))
	r.radiusMin.Set(float64(radiusMin))
	r.radiusMax.Set(float64(radiusMax))
	r.quantizationError.Set(float64(quantizationError))
	r.topographicError.Set(float64(topographicError))
	r.gapError.Set(float64(gapError))
	r.diffusionError.Set(float64(diffusionError))
}
