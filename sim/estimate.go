package sim

import (
	"fmt"
	"math"
	"math/rand"
)

// RandomizedCost draws a cost uniformly from [base-n, base+n] where n is
// noise capped at base, so the cost never goes negative.
// With no noise the base is returned without drawing.
func RandomizedCost(rng *rand.Rand, base, noise int64) int64 {
	if base < 0 {
		panic(fmt.Sprintf("RandomizedCost: base must be >= 0, got %d", base))
	}
	if noise > base {
		noise = base
	}
	if noise <= 0 {
		return base
	}
	lo := base - noise
	return lo + rng.Int63n(2*noise+1)
}

// NominalDuration is the execution time of a unit task on a rank with the
// given speed scale.
func NominalDuration(clockRate, scale float64) int64 {
	return max(int64(math.Round(clockRate/scale)), 1)
}

// DurationEstimator re-estimates a task's running time when it lands on a
// rank other than its origin.
type DurationEstimator struct {
	ClockRate float64
	Scales    []float64 // speed scale per rank, 1.0 is nominal
}

// NewDurationEstimator captures the speed scales of ranks.
func NewDurationEstimator(clockRate float64, ranks []*RankState) *DurationEstimator {
	scales := make([]float64, len(ranks))
	for _, r := range ranks {
		scales[r.ID] = r.Scale
	}
	return &DurationEstimator{ClockRate: clockRate, Scales: scales}
}

func (e *DurationEstimator) slow(rank int) bool {
	return e.Scales[rank] < 1.0
}

// Estimate returns the duration t will have on dest:
//   - neither origin nor dest is slow, or both are: unchanged
//   - origin slow, dest not: about half, drawn with a quarter of noise
//   - dest slow, origin not: the nominal duration on dest
func (e *DurationEstimator) Estimate(rng *rand.Rand, t *Task, dest int) int64 {
	originSlow := e.slow(t.OriginRank)
	destSlow := e.slow(dest)
	switch {
	case originSlow && !destSlow:
		return max(RandomizedCost(rng, t.Duration/2, t.Duration/4), 1)
	case destSlow && !originSlow:
		return NominalDuration(e.ClockRate, e.Scales[dest])
	default:
		return t.Duration
	}
}
