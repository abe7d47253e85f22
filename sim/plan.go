package sim

import (
	"fmt"
	"math/rand"
)

// MigrationPlan is a tracking table produced by an offline balancer:
// plan[i][j] tasks originate on rank i and run on rank j.
type MigrationPlan [][]int

// Validate checks that the plan is a non-negative numRanks x numRanks table.
func (p MigrationPlan) Validate(numRanks int) error {
	if len(p) != numRanks {
		return fmt.Errorf("expected %d rows, got %d", numRanks, len(p))
	}
	for i, row := range p {
		if len(row) != numRanks {
			return fmt.Errorf("row %d: expected %d columns, got %d", i, numRanks, len(row))
		}
		total := 0
		for j, n := range row {
			if n < 0 {
				return fmt.Errorf("row %d column %d: negative task count %d", i, j, n)
			}
			total += n
		}
		if total >= 1<<taskSeqBits {
			return fmt.Errorf("row %d: %d tasks exceed the per-rank limit %d", i, total, 1<<taskSeqBits-1)
		}
	}
	return nil
}

// Origins returns the number of tasks each rank creates.
func (p MigrationPlan) Origins() []int {
	out := make([]int, len(p))
	for i, row := range p {
		for _, n := range row {
			out[i] += n
		}
	}
	return out
}

func seedRank(topo TopologyConfig, rank, count int) *RankState {
	scale := topo.Scale(rank)
	dur := NominalDuration(topo.ClockRate, scale)
	tasks := make([]*Task, count)
	for s := range tasks {
		tasks[s] = NewTask(rank, s, dur, 1.0)
	}
	return NewRankState(rank, scale, tasks)
}

// SeedUniform creates ranks holding TasksPerRank local tasks each. A task
// lasts one simulated second on a nominal rank, longer on a slow one.
func SeedUniform(topo TopologyConfig) []*RankState {
	ranks := make([]*RankState, topo.NumRanks)
	for r := range ranks {
		ranks[r] = seedRank(topo, r, topo.TasksPerRank)
	}
	return ranks
}

// SeedFromPlan creates ranks from a validated plan. Tasks planned to stay on
// their origin fill its local queue; the others are placed in the remote queue
// of their destination before the first tick, with their duration
// re-estimated for that rank.
func SeedFromPlan(topo TopologyConfig, plan MigrationPlan, rng *rand.Rand) []*RankState {
	ranks := make([]*RankState, topo.NumRanks)
	for i := range ranks {
		ranks[i] = seedRank(topo, i, plan[i][i])
	}
	estimator := NewDurationEstimator(topo.ClockRate, ranks)
	for i, row := range plan {
		seq := row[i]
		dur := NominalDuration(topo.ClockRate, topo.Scale(i))
		for j, n := range row {
			if j == i {
				continue
			}
			for k := 0; k < n; k++ {
				t := NewTask(i, seq, dur, 1.0)
				seq++
				t.MarkForMigration(MigrationPlanned, j, 0, 0, 0)
				t.Duration = estimator.Estimate(rng, t, j)
				ranks[j].RemoteQ.PushBack(t)
			}
		}
	}
	for _, r := range ranks {
		r.InitialTasks = r.QueueLen()
	}
	return ranks
}
