package sim

import (
	"github.com/uber-go/tally/v4"

	"github.com/simdynlb/simdynlb/sim/trace"
)

// newTestRanks creates nominal-speed ranks holding counts[i] local tasks of
// duration dur each.
func newTestRanks(counts []int, dur int64) []*RankState {
	ranks := make([]*RankState, len(counts))
	for r, n := range counts {
		tasks := make([]*Task, n)
		for s := range tasks {
			tasks[s] = NewTask(r, s, dur, 1.0)
		}
		ranks[r] = NewRankState(r, 1.0, tasks)
	}
	return ranks
}

func newTestContext(tick int64, ranks []*RankState) *TickContext {
	return &TickContext{
		Tick:    tick,
		Ranks:   ranks,
		RNG:     NewPartitionedRNG(NewSimulationKey(42, 0)),
		Metrics: NewMetrics(tally.NoopScope, len(ranks)),
		Trace:   trace.NewSimulationTrace(trace.TraceLevelDecisions, len(ranks)),
	}
}

// newTestConfig returns a valid config for numRanks nominal ranks with
// noise-free costs.
func newTestConfig(policy Policy, numRanks int) SimConfig {
	cfg := DefaultSimConfig()
	cfg.Policy = policy
	cfg.Topology = TopologyConfig{
		NumRanks:     numRanks,
		NumSlowRanks: 0,
		Slowdown:     1.0,
		TasksPerRank: 0,
		ClockRate:    1000,
	}
	cfg.Costs = CostConfig{BalancingOverhead: 0, MigrationDelay: 1, Noise: 0}
	cfg.Seed = 42
	cfg.Verify = true
	return cfg
}

func taskIDs(tasks []*Task) []TaskID {
	ids := make([]TaskID, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}
