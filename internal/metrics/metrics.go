package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "account"

// Recorder holds the account service collectors. It implements account.Metrics.
type Recorder struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	profileRepairs    prometheus.Counter
	compensations     prometheus.Counter
	dependencyHealth  *prometheus.GaugeVec
}

// New registers the collectors on reg. Registering twice on the same registry panics.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of account operations by outcome",
			},
			[]string{"operation", "outcome"}, // outcome: ok or an error kind
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Account operation duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),
		profileRepairs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_repairs_total",
			Help:      "Profiles recreated at sign-in because the document was missing",
		}),
		compensations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signup_compensations_total",
			Help:      "Sign-ups rolled back after the profile write failed",
		}),
		dependencyHealth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dependency_health",
				Help: "Health status of dependencies (1 = healthy, 0 = unhealthy)",
			},
			[]string{"dependency"},
		),
	}

	reg.MustRegister(
		r.operationsTotal,
		r.operationDuration,
		r.profileRepairs,
		r.compensations,
		r.dependencyHealth,
	)
	return r
}

func (r *Recorder) ObserveOperation(op, outcome string, dur time.Duration) {
	r.operationsTotal.WithLabelValues(op, outcome).Inc()
	r.operationDuration.WithLabelValues(op).Observe(dur.Seconds())
}

func (r *Recorder) ProfileRepaired() { r.profileRepairs.Inc() }

func (r *Recorder) CompensatedSignUp() { r.compensations.Inc() }

func (r *Recorder) SetDependencyHealth(dependency string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	r.dependencyHealth.WithLabelValues(dependency).Set(value)
}
