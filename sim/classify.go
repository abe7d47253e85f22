package sim

import (
	"github.com/simdynlb/simdynlb/sim/trace"
)

// TickContext carries the state every balancing component sees during one tick.
// It is rebuilt by the Simulator at the start of each tick.
type TickContext struct {
	Tick    int64
	Ranks   []*RankState
	RNG     *PartitionedRNG
	Metrics *Metrics
	Trace   *trace.SimulationTrace
}

// Classification partitions ranks into idle and busy for one tick.
// Ranks that are neither stay out of both lists.
type Classification struct {
	Idle []int // no queued tasks
	Busy []int // more local tasks than the steal minimum

	idle []bool
}

// Classify computes a fresh Classification. Idle ranks have empty local and
// remote queues; busy ranks hold more than minSteal local tasks, since only
// local tasks can be given away.
func Classify(ranks []*RankState, minSteal int) Classification {
	c := Classification{idle: make([]bool, len(ranks))}
	for _, r := range ranks {
		switch {
		case r.Idle():
			c.Idle = append(c.Idle, r.ID)
			c.idle[r.ID] = true
		case r.LocalQ.Len() > minSteal:
			c.Busy = append(c.Busy, r.ID)
		}
	}
	return c
}

// IsIdle reports whether rank was idle when the classification was taken.
func (c Classification) IsIdle(rank int) bool {
	return rank >= 0 && rank < len(c.idle) && c.idle[rank]
}
