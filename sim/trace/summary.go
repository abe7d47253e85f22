package trace

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	CompletedTasks   int
	MigratedTasks    int
	MeanQueueLength  float64 // over all ranks and ticks
	PeakQueueLength  int
	MeanTransferTime float64 // arrival minus issue tick, over arrived migrations
	MaxTransferTime  int64
	Outcomes         map[string]int // migration outcome → count
	BusyTicks        []int64        // per rank, sum of executed durations
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		Outcomes: make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.BusyTicks = make([]int64, len(st.Tasks))
	for r, recs := range st.Tasks {
		for _, rec := range recs {
			summary.CompletedTasks++
			if rec.Migrated() {
				summary.MigratedTasks++
			}
			summary.BusyTicks[r] += rec.EndTime - rec.StartTime
		}
	}

	var samples []float64
	for _, lens := range st.QueueSamples {
		for _, n := range lens {
			samples = append(samples, float64(n))
		}
	}
	if len(samples) > 0 {
		summary.MeanQueueLength = stat.Mean(samples, nil)
		summary.PeakQueueLength = int(floats.Max(samples))
	}

	var transfers []float64
	for _, m := range st.Migrations {
		summary.Outcomes[m.Outcome]++
		if m.Outcome != "arrived" {
			continue
		}
		d := m.ArrivalTime - m.IssuedAt
		transfers = append(transfers, float64(d))
		summary.MaxTransferTime = max(summary.MaxTransferTime, d)
	}
	if len(transfers) > 0 {
		summary.MeanTransferTime = stat.Mean(transfers, nil)
	}

	return summary
}
