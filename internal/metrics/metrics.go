// Package metrics holds the prometheus collectors of a Downloader. A nil
// *Collectors records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fetchr"

// Attempt outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeUnavailable = "unavailable"
	OutcomeFailed      = "failed"
	OutcomeNoBackend   = "no_backend"
)

type Collectors struct {
	Downloads       *prometheus.CounterVec
	Attempts        *prometheus.CounterVec
	Bytes           *prometheus.CounterVec
	AttemptDuration *prometheus.HistogramVec
}

func New() *Collectors {
	return &Collectors{
		Downloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "downloads_total",
				Help:      "Completed downloads by final outcome.",
			},
			[]string{"outcome"},
		),
		Attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_attempts_total",
				Help:      "Backend attempts by backend and outcome.",
			},
			[]string{"backend", "outcome"},
		),
		Bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_total",
				Help:      "Payload bytes delivered to callbacks.",
			},
			[]string{"backend"},
		),
		AttemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "attempt_duration_seconds",
				Help:      "Duration of backend attempts.",
			},
			[]string{"backend"},
		),
	}
}

// Register registers every collector into reg.
func (c *Collectors) Register(reg prometheus.Registerer) error {
	for _, col := range []prometheus.Collector{c.Downloads, c.Attempts, c.Bytes, c.AttemptDuration} {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collectors) Attempt(backend, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.Attempts.WithLabelValues(backend, outcome).Inc()
	c.AttemptDuration.WithLabelValues(backend).Observe(d.Seconds())
}

func (c *Collectors) Delivered(backend string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.Bytes.WithLabelValues(backend).Add(float64(n))
}

func (c *Collectors) Download(outcome string) {
	if c == nil {
		return
	}
	c.Downloads.WithLabelValues(outcome).Inc()
}
