package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var bidsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auction_bids_total",
		Help: "Bid submissions by outcome (accepted or rejection reason).",
	},
	[]string{"outcome"},
)

var commitRetries = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "auction_bid_commit_retries_total",
		Help: "Commit attempts repeated after the current price moved.",
	},
)

var settlementsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auction_settlements_total",
		Help: "Settlements by result (won or no_bids).",
	},
	[]string{"result"},
)

var sweepDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "auction_sweep_duration_seconds",
		Buckets: prometheus.DefBuckets,
	},
)

func BidAccepted() {
	bidsTotal.With(prometheus.Labels{"outcome": "accepted"}).Inc()
}

func BidRejected(reason string) {
	bidsTotal.With(prometheus.Labels{"outcome": reason}).Inc()
}

func CommitRetried() {
	commitRetries.Inc()
}

func AuctionSettled(hasWinner bool) {
	result := "no_bids"
	if hasWinner {
		result = "won"
	}
	settlementsTotal.With(prometheus.Labels{"result": result}).Inc()
}

func SweepFinished(started time.Time) {
	sweepDuration.Observe(time.Since(started).Seconds())
}
