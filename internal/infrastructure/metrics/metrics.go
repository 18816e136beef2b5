package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Verification outcome labels
const (
	OutcomeVerified  = "verified"
	OutcomeMismatch  = "mismatch"
	OutcomeChainErr  = "chain_error"
	OutcomeDuplicate = "duplicate"
)

var (
	QuotesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stylize_quotes_created_total",
		Help: "Generation quotes issued",
	})

	PaymentVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stylize_payment_verifications_total",
		Help: "Payment proof submissions by outcome",
	}, []string{"outcome"})

	JobsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stylize_jobs_enqueued_total",
		Help: "Stylize jobs admitted to the queue",
	})

	JobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stylize_jobs_completed_total",
		Help: "Stylize jobs finished by the worker, by result",
	}, []string{"result"})
)
