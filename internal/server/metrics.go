package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "feasopt",
		Name:      "jobs_started_total",
		Help:      "Number of optimization jobs accepted.",
	})

	jobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "feasopt",
		Name:      "jobs_finished_total",
		Help:      "Number of optimization jobs finished, by terminal status.",
	}, []string{"status"})

	objectiveEvaluations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "feasopt",
		Name:      "objective_evaluations_total",
		Help:      "Number of objective function evaluations across all jobs.",
	})
)
