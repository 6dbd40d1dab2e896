// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"math/big"
	"net/http"

	sdkmath "cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"y8u-distributor/internal/domain"
)

// Claim results used as the "result" label.
const (
	ResultOK            = "ok"
	ResultNotStarted    = "tge_not_started"
	ResultInvalidProof  = "invalid_proof"
	ResultNoClaimable   = "no_claimable"
	ResultPoolExhausted = "pool_exhausted"
	ResultUnauthorized  = "unauthorized"
	ResultError         = "error"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Claim metrics
	ClaimsTotal   *prometheus.CounterVec
	ClaimedTokens *prometheus.CounterVec
	ClaimLatency  *prometheus.HistogramVec
	MintFailures  *prometheus.CounterVec
	RootUpdates   *prometheus.CounterVec
	TGETimestamp  prometheus.Gauge
	ElapsedMonths prometheus.Gauge

	// Vesting snapshot metrics
	PoolUnlocked *prometheus.GaugeVec
	PoolClaimed  *prometheus.GaugeVec
	PoolCap      *prometheus.GaugeVec

	// Feed metrics
	FeedSubscribers prometheus.Gauge
	FeedDropped     prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulSnapshot prometheus.Gauge
	UptimeSeconds          prometheus.Counter
}

// NewMetrics creates a new Metrics instance registered on reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "y8u_distributor"
	}
	f := promauto.With(reg)

	return &Metrics{
		ClaimsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "claims",
			Name:      "total",
			Help:      "Total number of claim attempts by pool and result",
		}, []string{"pool", "result"}),
		ClaimedTokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "claims",
			Name:      "tokens_total",
			Help:      "Whole tokens released by claims",
		}, []string{"pool"}),
		ClaimLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "claims",
			Name:      "latency_seconds",
			Help:      "Claim processing latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"pool"}),
		MintFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "claims",
			Name:      "mint_failures_total",
			Help:      "Committed claims whose mint call failed",
		}, []string{"pool"}),
		RootUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "config",
			Name:      "root_updates_total",
			Help:      "Merkle root replacements by pool",
		}, []string{"pool"}),
		TGETimestamp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "config",
			Name:      "tge_timestamp",
			Help:      "Unix timestamp of the token generation event, 0 while unset",
		}),
		ElapsedMonths: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "vesting",
			Name:      "elapsed_months",
			Help:      "Whole vesting months since TGE",
		}),

		PoolUnlocked: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "vesting",
			Name:      "pool_unlocked_tokens",
			Help:      "Unlocked whole tokens by pool (sale pools: unlocked share of the cap)",
		}, []string{"pool"}),
		PoolClaimed: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "vesting",
			Name:      "pool_claimed_tokens",
			Help:      "Claimed whole tokens by pool",
		}, []string{"pool"}),
		PoolCap: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "vesting",
			Name:      "pool_cap_tokens",
			Help:      "Pool total in whole tokens",
		}, []string{"pool"}),

		FeedSubscribers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "subscribers",
			Help:      "Connected claim feed subscribers",
		}),
		FeedDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "dropped_total",
			Help:      "Claim events dropped for slow subscribers",
		}),

		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSuccessfulSnapshot: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_snapshot_timestamp",
			Help:      "Unix timestamp of last successful vesting snapshot",
		}),
		UptimeSeconds: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", prometheus.DefaultRegisterer)

var tokenUnit = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(domain.Decimals), nil))

// WholeTokens converts base units to a float token count for gauges.
func WholeTokens(v sdkmath.Int) float64 {
	if v.IsNil() {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(v.BigInt()), tokenUnit).Float64()
	return f
}

// RecordClaim records one claim attempt.
func RecordClaim(pool domain.Pool, result string, seconds float64) {
	DefaultMetrics.ClaimsTotal.WithLabelValues(string(pool), result).Inc()
	DefaultMetrics.ClaimLatency.WithLabelValues(string(pool)).Observe(seconds)
}

// RecordClaimedAmount adds a released delta to the pool's token counter.
func RecordClaimedAmount(pool domain.Pool, delta sdkmath.Int) {
	DefaultMetrics.ClaimedTokens.WithLabelValues(string(pool)).Add(WholeTokens(delta))
}

// RecordMintFailure counts a committed claim that could not be minted.
func RecordMintFailure(pool domain.Pool) {
	DefaultMetrics.MintFailures.WithLabelValues(string(pool)).Inc()
}

// RecordRootUpdate counts a Merkle root replacement.
func RecordRootUpdate(pool domain.Pool) {
	DefaultMetrics.RootUpdates.WithLabelValues(string(pool)).Inc()
}

// SetTGE publishes the TGE timestamp.
func SetTGE(ts int64) {
	DefaultMetrics.TGETimestamp.Set(float64(ts))
}

// RecordSnapshot publishes one pool's vesting progress.
func RecordSnapshot(s *domain.PoolSnapshot) {
	pool := string(s.Pool)
	DefaultMetrics.PoolUnlocked.WithLabelValues(pool).Set(WholeTokens(s.Unlocked))
	DefaultMetrics.PoolClaimed.WithLabelValues(pool).Set(WholeTokens(s.Claimed))
	DefaultMetrics.PoolCap.WithLabelValues(pool).Set(WholeTokens(s.Cap))
	DefaultMetrics.ElapsedMonths.Set(float64(s.ElapsedMonths))
}

// RecordSnapshotSuccess stamps the last successful snapshot time.
func RecordSnapshotSuccess(ts int64) {
	DefaultMetrics.LastSuccessfulSnapshot.Set(float64(ts))
}

// UpdateFeedSubscribers sets the subscriber gauge.
func UpdateFeedSubscribers(n int) {
	DefaultMetrics.FeedSubscribers.Set(float64(n))
}

// RecordFeedDrop counts an event dropped for a slow subscriber.
func RecordFeedDrop() {
	DefaultMetrics.FeedDropped.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
