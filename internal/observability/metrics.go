package observability

import "github.com/prometheus/client_golang/prometheus"

// Claim outcomes used as the "outcome" label of ClaimsTotal.
const (
	OutcomeClaimed        = "claimed"
	OutcomeAlreadyClaimed = "already_claimed"
	OutcomeSaveFailed     = "save_failed"
)

var (
	// ClaimsTotal counts claim attempts by outcome.
	ClaimsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claimbot_claims_total",
			Help: "Claim attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// PersistFailures counts failed document saves by document key.
	PersistFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claimbot_persist_failures_total",
			Help: "Failed document saves by document.",
		},
		[]string{"document"},
	)

	// BrowserSessions gauges the number of live collection browser sessions.
	BrowserSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "claimbot_browser_sessions_active",
			Help: "Currently open collection browser sessions.",
		},
	)

	// FetchTotal counts image-board fetches by result (ok, empty, error).
	FetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claimbot_fetch_total",
			Help: "Image-board fetches by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(ClaimsTotal, PersistFailures, BrowserSessions, FetchTotal)
}
