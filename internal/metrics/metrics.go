// Package metrics exposes run instrumentation over Prometheus. The
// server is optional: it only starts when the run is given an address,
// and it reports the run id so scrapes from repeated benchmarks stay
// distinguishable.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arx-os/minimd/internal/logger"
)

// Collector bundles the run gauges and counters.
type Collector struct {
	registry *prometheus.Registry

	steps        prometheus.Counter
	atoms        prometheus.Gauge
	temperature  prometheus.Gauge
	energy       prometheus.Gauge
	pressure     prometheus.Gauge
	phaseSeconds *prometheus.GaugeVec
}

// New creates a collector labeled with the run id.
func New(runID string) *Collector {
	labels := prometheus.Labels{"run_id": runID}
	c := &Collector{registry: prometheus.NewRegistry()}

	c.steps = prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "minimd_steps_total",
		Help:        "Completed integration steps",
		ConstLabels: labels,
	})
	c.atoms = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "minimd_atoms",
		Help:        "Global atom count",
		ConstLabels: labels,
	})
	c.temperature = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "minimd_temperature",
		Help:        "Last sampled temperature",
		ConstLabels: labels,
	})
	c.energy = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "minimd_energy_per_atom",
		Help:        "Last sampled potential energy per atom",
		ConstLabels: labels,
	})
	c.pressure = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "minimd_pressure",
		Help:        "Last sampled pressure",
		ConstLabels: labels,
	})
	c.phaseSeconds = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "minimd_phase_seconds",
		Help:        "Accumulated wall time per phase",
		ConstLabels: labels,
	}, []string{"phase"})

	c.registry.MustRegister(c.steps, c.atoms, c.temperature, c.energy,
		c.pressure, c.phaseSeconds)
	return c
}

// Serve starts the /metrics endpoint in the background.
func (c *Collector) Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Warnf("metrics server on %s stopped: %v", addr, err)
		}
	}()
}

// StepDone advances the step counter.
func (c *Collector) StepDone() {
	c.steps.Inc()
}

// SetAtoms records the global atom count.
func (c *Collector) SetAtoms(n int) {
	c.atoms.Set(float64(n))
}

// ObserveThermo records the latest thermo sample.
func (c *Collector) ObserveThermo(temperature, energy, pressure float64) {
	c.temperature.Set(temperature)
	c.energy.Set(energy)
	c.pressure.Set(pressure)
}

// SetPhaseSeconds records one phase's accumulated wall time.
func (c *Collector) SetPhaseSeconds(phase string, seconds float64) {
	c.phaseSeconds.WithLabelValues(phase).Set(seconds)
}
