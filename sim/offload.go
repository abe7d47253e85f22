package sim

import (
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// OffloadPair is a scheduled transfer of one task from Offloader to Victim.
type OffloadPair struct {
	Offloader int
	Victim    int
}

// ImbalanceRatio returns (max-min)/max over the ranks' queue lengths,
// or 0 when every queue is empty.
func ImbalanceRatio(ranks []*RankState) float64 {
	if len(ranks) == 0 {
		return 0
	}
	lens := make([]float64, len(ranks))
	for i, r := range ranks {
		lens[i] = float64(r.QueueLen())
	}
	lmax := floats.Max(lens)
	if lmax == 0 {
		return 0
	}
	return (lmax - floats.Min(lens)) / lmax
}

// ReactiveOffloadBalancer pairs overloaded with underloaded ranks by sorted
// queue length whenever the relative imbalance exceeds a threshold.
// Pairs wait in a per-offloader list until the MigrationExecutor drains
// them, one per offloader per tick.
type ReactiveOffloadBalancer struct {
	threshold   float64
	minAbsDiff  int
	minOccupied int
	pending     [][]OffloadPair // indexed by offloader rank
}

// NewReactiveOffloadBalancer creates a balancer for numRanks ranks.
func NewReactiveOffloadBalancer(numRanks int, threshold float64, minAbsDiff, minOccupied int) *ReactiveOffloadBalancer {
	return &ReactiveOffloadBalancer{
		threshold:   threshold,
		minAbsDiff:  minAbsDiff,
		minOccupied: minOccupied,
		pending:     make([][]OffloadPair, numRanks),
	}
}

// Pending returns the pairs queued for offloader.
func (b *ReactiveOffloadBalancer) Pending(offloader int) []OffloadPair {
	return b.pending[offloader]
}

// Balance appends new offloader/victim pairs for this tick and returns how
// many were added.
func (b *ReactiveOffloadBalancer) Balance(ctx *TickContext) int {
	rimb := ImbalanceRatio(ctx.Ranks)
	if rimb <= b.threshold {
		return 0
	}

	n := len(ctx.Ranks)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return ctx.Ranks[order[i]].QueueLen() < ctx.Ranks[order[j]].QueueLen()
	})

	added := 0
	for i := n / 2; i < n; i++ {
		off := ctx.Ranks[order[i]]
		vic := ctx.Ranks[order[n-i-1]]
		if !b.qualifies(off, vic) {
			continue
		}
		b.pending[off.ID] = append(b.pending[off.ID], OffloadPair{Offloader: off.ID, Victim: vic.ID})
		added++
		ctx.Metrics.OffloadPairs.Inc()
		logrus.Debugf("[tick %07d] R%d pairs with victim R%d (R_imb=%.3f)", ctx.Tick, off.ID, vic.ID, rimb)
	}
	return added
}

// qualifies checks the gap, the offloader's occupancy, and the cap on
// pending pairs, which is the number of tasks the offloader started with.
func (b *ReactiveOffloadBalancer) qualifies(off, vic *RankState) bool {
	diff := off.QueueLen() - vic.QueueLen()
	if diff < 0 {
		diff = -diff
	}
	return diff > b.minAbsDiff &&
		off.QueueLen() > b.minOccupied &&
		len(b.pending[off.ID]) < off.InitialTasks
}

// next removes and returns the oldest pair of offloader.
func (b *ReactiveOffloadBalancer) next(offloader int) (OffloadPair, bool) {
	q := b.pending[offloader]
	if len(q) == 0 {
		return OffloadPair{}, false
	}
	p := q[0]
	b.pending[offloader] = q[1:]
	return p, true
}
