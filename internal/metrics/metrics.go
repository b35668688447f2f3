package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MatchesStarted counts matches that reached battle phase, by grid size.
	MatchesStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "battleship_matches_started_total",
		Help: "Matches that reached the battle phase.",
	}, []string{"grid_size"})

	// MatchesEnded counts finished matches by termination reason.
	MatchesEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "battleship_matches_ended_total",
		Help: "Finished matches by end reason.",
	}, []string{"reason"})

	// ProofVerifications counts verifier verdicts by circuit.
	ProofVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "battleship_proof_verifications_total",
		Help: "Proof verification verdicts by circuit.",
	}, []string{"circuit", "verdict"})

	// ProofVerifyDuration observes verification latency per circuit.
	ProofVerifyDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "battleship_proof_verify_seconds",
		Help:    "Proof verification latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"circuit"})

	// QueueDepth tracks players currently waiting in the open queue.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "battleship_queue_depth",
		Help: "Players waiting in the matchmaking queue.",
	})

	// ActiveMatches tracks live sessions in the registry.
	ActiveMatches = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "battleship_active_matches",
		Help: "Sessions currently held in the registry.",
	})

	// ConnectedClients tracks open websocket connections.
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "battleship_connected_clients",
		Help: "Open websocket connections.",
	})

	// AuthFailures counts rejected action signatures.
	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "battleship_auth_failures_total",
		Help: "Rejected action signatures by cause.",
	}, []string{"cause"})
)
