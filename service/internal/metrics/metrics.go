// Package metrics exposes Prometheus counters for gameplay. A nil *Recorder
// is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Recorder struct {
	rounds         *prometheus.CounterVec
	gamesStarted   *prometheus.CounterVec
	gamesRecorded  *prometheus.CounterVec
	recordFailures prometheus.Counter
	activeSessions prometheus.Gauge
}

// New registers the counters with reg. Pass prometheus.DefaultRegisterer in
// the server and a fresh registry in tests.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "badluck",
			Name:      "rounds_resolved_total",
			Help:      "Rounds resolved, by result (correct, wrong, timeout).",
		}, []string{"result"}),
		gamesStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "badluck",
			Name:      "games_started_total",
			Help:      "Games started, by kind (full, trial).",
		}, []string{"kind"}),
		gamesRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "badluck",
			Name:      "games_recorded_total",
			Help:      "Games persisted, by outcome.",
		}, []string{"outcome"}),
		recordFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "badluck",
			Name:      "game_record_failures_total",
			Help:      "Failed attempts to persist a finished game.",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "badluck",
			Name:      "active_sessions",
			Help:      "Live game controllers held by the server.",
		}),
	}
	reg.MustRegister(r.rounds, r.gamesStarted, r.gamesRecorded, r.recordFailures, r.activeSessions)
	return r
}

func (r *Recorder) RoundResolved(result string) {
	if r == nil {
		return
	}
	r.rounds.WithLabelValues(result).Inc()
}

func (r *Recorder) GameStarted(kind string) {
	if r == nil {
		return
	}
	r.gamesStarted.WithLabelValues(kind).Inc()
}

func (r *Recorder) GameRecorded(outcome string) {
	if r == nil {
		return
	}
	r.gamesRecorded.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordFailed() {
	if r == nil {
		return
	}
	r.recordFailures.Inc()
}

func (r *Recorder) SetActiveSessions(n int) {
	if r == nil {
		return
	}
	r.activeSessions.Set(float64(n))
}
