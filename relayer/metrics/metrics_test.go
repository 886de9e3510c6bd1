package metrics

import (
	"math/big"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func newTestTracker(minBalance *big.Int) *Tracker {
	return NewTracker(prometheus.NewRegistry(), 5*time.Minute, minBalance)
}

func TestSnapshotHealthyByDefault(t *testing.T) {
	tracker := newTestTracker(nil)

	s := tracker.Snapshot()
	assert.True(t, s.Healthy)
	assert.Empty(t, s.Issues)
	assert.Zero(t, s.Processed)
}

func TestSnapshotCountsOutcomes(t *testing.T) {
	tracker := newTestTracker(nil)

	tracker.Observe("completed", time.Second)
	tracker.Observe("completed", time.Second)
	tracker.Observe("refunded", time.Second)
	tracker.Observe("failed", time.Second)

	s := tracker.Snapshot()
	assert.Equal(t, int64(4), s.Processed)
	assert.Equal(t, int64(2), s.Succeeded)
	assert.Equal(t, int64(1), s.Refunded)
	assert.Equal(t, int64(1), s.Failed)
	assert.InDelta(t, 0.5, s.SuccessRate, 0.001)
}

func TestLowSuccessRateNeedsEnoughSamples(t *testing.T) {
	tracker := newTestTracker(nil)

	// Ten failures: too few samples to judge.
	for i := 0; i < 10; i++ {
		tracker.Observe("failed", time.Second)
	}
	assert.True(t, tracker.Snapshot().Healthy)

	// The eleventh pushes past the sample floor.
	tracker.Observe("failed", time.Second)
	s := tracker.Snapshot()
	assert.False(t, s.Healthy)
	assert.Contains(t, s.Issues, "success rate below 80%")
}

func TestLowBalanceIsUnhealthy(t *testing.T) {
	tracker := newTestTracker(big.NewInt(1_000_000_000))

	tracker.SetWalletBalance(big.NewInt(999_999_999))
	s := tracker.Snapshot()
	assert.False(t, s.Healthy)
	assert.Contains(t, s.Issues, "wallet balance below operating minimum")

	tracker.SetWalletBalance(big.NewInt(2_000_000_000))
	assert.True(t, tracker.Snapshot().Healthy)
}

func TestIdleWithoutHistoryIsHealthy(t *testing.T) {
	tracker := NewTracker(prometheus.NewRegistry(), time.Millisecond, nil)

	// Never processed anything: the idle check does not apply.
	time.Sleep(5 * time.Millisecond)
	assert.True(t, tracker.Snapshot().Healthy)

	tracker.Observe("completed", time.Second)
	time.Sleep(5 * time.Millisecond)
	s := tracker.Snapshot()
	assert.False(t, s.Healthy)
	assert.Contains(t, s.Issues, "no transactions processed within idle threshold")
}

func TestVolumeTotalsAccumulate(t *testing.T) {
	tracker := newTestTracker(nil)

	tracker.AddVolumes(big.NewInt(990_000_000), big.NewInt(3500))
	tracker.AddVolumes(big.NewInt(10_000_000), big.NewInt(500))

	s := tracker.Snapshot()
	assert.Equal(t, "1000000000", s.TotalSwapped)
	assert.Equal(t, "4000", s.TotalBurned)
}

func TestResetClearsAggregates(t *testing.T) {
	tracker := newTestTracker(nil)

	tracker.Observe("completed", time.Second)
	tracker.AddVolumes(big.NewInt(100), big.NewInt(10))
	tracker.Reset()

	s := tracker.Snapshot()
	assert.Zero(t, s.Processed)
	assert.Equal(t, "0", s.TotalSwapped)
	assert.Equal(t, "0", s.TotalBurned)
	assert.True(t, s.Healthy)
}

func TestProcessingTimeSmoothing(t *testing.T) {
	tracker := newTestTracker(nil)

	tracker.Observe("completed", 10*time.Second)
	assert.InDelta(t, 10.0, tracker.Snapshot().AvgProcessingSec, 0.001)

	// One slow outlier moves the average by its weight only.
	tracker.Observe("completed", 110*time.Second)
	assert.InDelta(t, 20.0, tracker.Snapshot().AvgProcessingSec, 0.001)
}
