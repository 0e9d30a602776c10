package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "playlister"

var (
	// Uptime stores the timestamp of the service boot
	Uptime = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "start_time_seconds",
		Help:      "Unix timestamp of the service start",
	})

	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submissions_total",
		Help:      "Submission outcomes by status and reason",
	}, []string{"status", "reason"})

	Compensations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "compensations_total",
		Help:      "Compensations of partially applied submissions by result",
	}, []string{"result"})

	ExpiredItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "expired_items_total",
		Help:      "Items removed from window playlists",
	}, []string{"window"})

	ExpiryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "expiry_failures_total",
		Help:      "Window items that could not be removed and are retried on the next sweep",
	}, []string{"window"})

	SweepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "sweep_duration_seconds",
		Help:      "Duration of expiry sweeps",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"window"})

	VoteRecomputations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "vote_recomputations_total",
		Help:      "Vote tally recomputations by result",
	}, []string{"result"})

	ChannelReconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "channel_reconciliations_total",
		Help:      "Handled channel deletions by result",
	}, []string{"result"})
)

// Init starts metrics collection
func Init() {
	Uptime.Set(float64(time.Now().Unix()))
}
