package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImbalanceRatio(t *testing.T) {
	tests := []struct {
		name   string
		counts []int
		want   float64
	}{
		{"balanced", []int{4, 4, 4}, 0},
		{"all empty", []int{0, 0}, 0},
		{"skewed", []int{10, 10, 10, 1}, 0.9},
		{"one empty", []int{5, 0}, 1},
		{"no ranks", nil, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, ImbalanceRatio(newTestRanks(tc.counts, 10)), 1e-12)
		})
	}
}

func TestReactiveOffload_PairsMostLoadedWithLeastLoaded(t *testing.T) {
	// GIVEN queue lengths [10,10,10,1] and threshold 0.05
	ranks := newTestRanks([]int{10, 10, 10, 1}, 10)
	ctx := newTestContext(1, ranks)
	b := NewReactiveOffloadBalancer(4, 0.05, 2, 2)

	// WHEN pairing runs
	added := b.Balance(ctx)

	// THEN the last length-10 rank in sorted order is paired with the
	// length-1 rank, and it holds exactly one pending pair
	assert.Equal(t, 1, added)
	assert.Equal(t, []OffloadPair{{Offloader: 2, Victim: 3}}, b.Pending(2))
	assert.Empty(t, b.Pending(0))
	assert.Empty(t, b.Pending(1))
	assert.Empty(t, b.Pending(3))
	assert.Equal(t, int64(1), ctx.Metrics.OffloadPairs.Value())
}

func TestReactiveOffload_BelowThreshold_NoPairs(t *testing.T) {
	// GIVEN a ratio of exactly (10-9)/10 = 0.1 and threshold 0.1
	ranks := newTestRanks([]int{10, 9}, 10)
	ctx := newTestContext(1, ranks)
	b := NewReactiveOffloadBalancer(2, 0.1, 0, 0)

	// WHEN pairing runs
	// THEN nothing is scheduled, since the ratio must exceed the threshold
	assert.Zero(t, b.Balance(ctx))
}

func TestReactiveOffload_Qualification(t *testing.T) {
	tests := []struct {
		name        string
		counts      []int
		minAbsDiff  int
		minOccupied int
		want        int
	}{
		{"gap at minimum", []int{4, 2}, 2, 0, 0},
		{"gap above minimum", []int{5, 2}, 2, 0, 1},
		{"offloader at occupancy minimum", []int{2, 0}, 1, 2, 0},
		{"offloader above occupancy minimum", []int{3, 0}, 1, 2, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ranks := newTestRanks(tc.counts, 10)
			b := NewReactiveOffloadBalancer(len(ranks), 0.05, tc.minAbsDiff, tc.minOccupied)
			assert.Equal(t, tc.want, b.Balance(newTestContext(1, ranks)))
		})
	}
}

func TestReactiveOffload_PendingCappedByInitialTasks(t *testing.T) {
	// GIVEN an offloader that started with 4 tasks
	ranks := newTestRanks([]int{4, 0}, 10)
	b := NewReactiveOffloadBalancer(2, 0.05, 1, 1)

	// WHEN pairing runs on many ticks without draining
	for tick := int64(1); tick <= 10; tick++ {
		b.Balance(newTestContext(tick, ranks))
	}

	// THEN the pending list never grows past the initial task count
	assert.Len(t, b.Pending(0), 4)
}

func TestReactiveOffload_Next_DrainsInOrder(t *testing.T) {
	ranks := newTestRanks([]int{6, 0}, 10)
	b := NewReactiveOffloadBalancer(2, 0.05, 1, 1)
	b.Balance(newTestContext(1, ranks))
	b.Balance(newTestContext(2, ranks))

	p, ok := b.next(0)
	assert.True(t, ok)
	assert.Equal(t, OffloadPair{Offloader: 0, Victim: 1}, p)
	_, ok = b.next(0)
	assert.True(t, ok)
	_, ok = b.next(0)
	assert.False(t, ok)
	_, ok = b.next(1)
	assert.False(t, ok)
}
