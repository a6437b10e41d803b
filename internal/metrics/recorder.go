package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"knapsack/internal/model"
)

// Recorder holds the optimizer's Prometheus metrics on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	GenerationsTotal   prometheus.Counter
	BestFitness        prometheus.Gauge
	MeanFitness        prometheus.Gauge
	PopulationSize     prometheus.Gauge
	FitnessCacheSize   prometheus.Gauge
	RunsTotal          *prometheus.CounterVec
	RunDurationSeconds prometheus.Histogram
}

func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,

		GenerationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "knapsack_generations_total",
			Help: "Total number of generations ranked",
		}),
		BestFitness: factory.NewGauge(prometheus.GaugeOpts{
			Name: "knapsack_best_fitness",
			Help: "Best fitness of the most recently ranked generation",
		}),
		MeanFitness: factory.NewGauge(prometheus.GaugeOpts{
			Name: "knapsack_mean_fitness",
			Help: "Mean fitness of the most recently ranked generation",
		}),
		PopulationSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "knapsack_population_size",
			Help: "Size of the most recently ranked generation",
		}),
		FitnessCacheSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "knapsack_fitness_cache_entries",
			Help: "Distinct genomes memoized by the fitness evaluator",
		}),
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "knapsack_runs_total",
				Help: "Total number of optimizer runs by stop reason",
			},
			[]string{"stop_reason"},
		),
		RunDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "knapsack_run_duration_seconds",
			Help:    "Wall time of optimizer runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
}

// ObserveGeneration implements evo.GenerationObserver.
func (r *Recorder) ObserveGeneration(d model.GenerationDiagnostics) {
	r.GenerationsTotal.Inc()
	r.BestFitness.Set(d.Best)
	r.MeanFitness.Set(d.Mean)
	r.PopulationSize.Set(float64(d.Size))
}

func (r *Recorder) ObserveRun(stopReason string, elapsed time.Duration, cacheEntries int) {
	r.RunsTotal.WithLabelValues(stopReason).Inc()
	r.RunDurationSeconds.Observe(elapsed.Seconds())
	r.FitnessCacheSize.Set(float64(cacheEntries))
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
