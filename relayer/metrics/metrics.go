// Package metrics tracks processing outcomes for the health endpoint and
// exports them to Prometheus.
package metrics

import (
	"math/big"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ewmaAlpha weights the most recent processing time at 10%.
const ewmaAlpha = 0.1

// Tracker aggregates processing statistics. All methods are safe for
// concurrent use.
type Tracker struct {
	mu sync.Mutex

	processed     int64
	succeeded     int64
	failed        int64
	refunded      int64
	totalSwapped  *big.Int // nanotons converted across all completions
	totalBurned   *big.Int // nano-jettons destroyed across all completions
	avgProcessing float64  // seconds, EWMA
	lastProcessed time.Time
	walletBalance *big.Int
	startedAt     time.Time

	idleThreshold time.Duration
	minBalance    *big.Int

	processedTotal *prometheus.CounterVec
	processingTime prometheus.Histogram
	balanceGauge   prometheus.Gauge
	pendingGauge   prometheus.Gauge
}

// NewTracker creates a tracker and registers its collectors. Tests pass
// their own registerer to avoid colliding with the default registry.
func NewTracker(reg prometheus.Registerer, idleThreshold time.Duration, minBalance *big.Int) *Tracker {
	t := &Tracker{
		idleThreshold: idleThreshold,
		minBalance:    minBalance,
		totalSwapped:  new(big.Int),
		totalBurned:   new(big.Int),
		walletBalance: new(big.Int),
		startedAt:     time.Now(),
		processedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relayer_transactions_total",
			Help: "Processed transactions by outcome.",
		}, []string{"outcome"}),
		processingTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "relayer_processing_seconds",
			Help:    "End-to-end processing time per transaction.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		balanceGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relayer_wallet_balance_nanotons",
			Help: "Custodial wallet balance in nanotons.",
		}),
		pendingGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relayer_pending_transactions",
			Help: "Transactions admitted but not yet terminal.",
		}),
	}
	if reg != nil {
		reg.MustRegister(t.processedTotal, t.processingTime, t.balanceGauge, t.pendingGauge)
	}
	return t
}

// Observe records one finished transaction.
func (t *Tracker) Observe(outcome string, took time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.processed++
	switch outcome {
	case "completed":
		t.succeeded++
	case "refunded":
		t.refunded++
	default:
		t.failed++
	}

	secs := took.Seconds()
	if t.processed == 1 {
		t.avgProcessing = secs
	} else {
		t.avgProcessing = ewmaAlpha*secs + (1-ewmaAlpha)*t.avgProcessing
	}
	t.lastProcessed = time.Now()

	t.processedTotal.WithLabelValues(outcome).Inc()
	t.processingTime.Observe(secs)
}

// AddVolumes accumulates the converted and destroyed amounts of one
// completed payment.
func (t *Tracker) AddVolumes(swapped, burned *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if swapped != nil {
		t.totalSwapped.Add(t.totalSwapped, swapped)
	}
	if burned != nil {
		t.totalBurned.Add(t.totalBurned, burned)
	}
}

// SetWalletBalance records the latest observed wallet balance.
func (t *Tracker) SetWalletBalance(balance *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.walletBalance = new(big.Int).Set(balance)
	f, _ := new(big.Float).SetInt(balance).Float64()
	t.balanceGauge.Set(f)
}

// SetPending records the count of non-terminal transactions.
func (t *Tracker) SetPending(n int64) {
	t.pendingGauge.Set(float64(n))
}

// Snapshot is a point-in-time view of the tracker for the health endpoint.
type Snapshot struct {
	Processed        int64     `json:"processed"`
	Succeeded        int64     `json:"succeeded"`
	Failed           int64     `json:"failed"`
	Refunded         int64     `json:"refunded"`
	TotalSwapped     string    `json:"totalSwapped"`
	TotalBurned      string    `json:"totalBurned"`
	SuccessRate      float64   `json:"successRate"`
	AvgProcessingSec float64   `json:"avgProcessingSec"`
	LastProcessed    time.Time `json:"lastProcessed"`
	WalletBalance    string    `json:"walletBalance"`
	UptimeSec        float64   `json:"uptimeSec"`
	Healthy          bool      `json:"healthy"`
	Issues           []string  `json:"issues,omitempty"`
}

// Snapshot evaluates health against three conditions: a success rate below
// 80% once enough samples exist, a wallet balance too low to keep sending
// callbacks, and no processed transaction within the idle threshold while
// work has been seen before.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Snapshot{
		Processed:        t.processed,
		Succeeded:        t.succeeded,
		Failed:           t.failed,
		Refunded:         t.refunded,
		TotalSwapped:     t.totalSwapped.String(),
		TotalBurned:      t.totalBurned.String(),
		AvgProcessingSec: t.avgProcessing,
		LastProcessed:    t.lastProcessed,
		WalletBalance:    t.walletBalance.String(),
		UptimeSec:        time.Since(t.startedAt).Seconds(),
		Healthy:          true,
	}
	if t.processed > 0 {
		s.SuccessRate = float64(t.succeeded) / float64(t.processed)
	}

	if t.processed > 10 && s.SuccessRate < 0.8 {
		s.Healthy = false
		s.Issues = append(s.Issues, "success rate below 80%")
	}
	if t.minBalance != nil && t.minBalance.Sign() > 0 && t.walletBalance.Cmp(t.minBalance) < 0 {
		s.Healthy = false
		s.Issues = append(s.Issues, "wallet balance below operating minimum")
	}
	if !t.lastProcessed.IsZero() && time.Since(t.lastProcessed) > t.idleThreshold {
		s.Healthy = false
		s.Issues = append(s.Issues, "no transactions processed within idle threshold")
	}
	return s
}

// Reset clears the aggregated statistics. The prometheus collectors stay
// cumulative and are not touched.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.processed, t.succeeded, t.failed, t.refunded = 0, 0, 0, 0
	t.totalSwapped = new(big.Int)
	t.totalBurned = new(big.Int)
	t.avgProcessing = 0
	t.lastProcessed = time.Time{}
	t.walletBalance = new(big.Int)
	t.startedAt = time.Now()
}
