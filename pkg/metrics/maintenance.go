package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Maintenance records scheduled job runs.
type Maintenance struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
}

func NewMaintenance(reg prometheus.Registerer) *Maintenance {
	if reg == nil {
		return &Maintenance{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "maintenance_job_duration_seconds",
		Help:      "Duration of maintenance job runs in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "maintenance_job_runs_total",
		Help:      "Maintenance job runs by job and result.",
	}, []string{"job", "result"})
	reg.MustRegister(duration, runs)
	return &Maintenance{duration: duration, runs: runs}
}

func (m *Maintenance) Observe(job string, err error, elapsed time.Duration) {
	if m == nil || m.runs == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	job = normalizeLabel(job)
	m.duration.WithLabelValues(job).Observe(elapsed.Seconds())
	m.runs.WithLabelValues(job, result).Inc()
}
