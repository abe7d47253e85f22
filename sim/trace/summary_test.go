package trace

import (
	"math"
	"testing"
)

func TestSummarize_NilTrace_ZeroValues(t *testing.T) {
	// GIVEN no trace
	// WHEN summarized
	summary := Summarize(nil)

	// THEN all counts are zero
	if summary.CompletedTasks != 0 || summary.MigratedTasks != 0 {
		t.Error("expected no tasks")
	}
	if len(summary.Outcomes) != 0 {
		t.Error("expected empty outcome distribution")
	}
}

func TestSummarize_EmptyTrace_ZeroValues(t *testing.T) {
	// GIVEN an empty trace
	st := NewSimulationTrace(TraceLevelDecisions, 4)

	// WHEN summarized
	summary := Summarize(st)

	// THEN all statistics are zero
	if summary.CompletedTasks != 0 {
		t.Errorf("expected 0 completed tasks, got %d", summary.CompletedTasks)
	}
	if summary.MeanQueueLength != 0 || summary.PeakQueueLength != 0 {
		t.Error("expected zero queue statistics")
	}
	if summary.MeanTransferTime != 0 || summary.MaxTransferTime != 0 {
		t.Error("expected zero transfer statistics")
	}
	if len(summary.BusyTicks) != 4 {
		t.Errorf("expected 4 busy counters, got %d", len(summary.BusyTicks))
	}
}

func TestSummarize_PopulatedTrace_CorrectCounts(t *testing.T) {
	// GIVEN a trace with local and migrated tasks, queue samples and migrations
	st := NewSimulationTrace(TraceLevelDecisions, 2)
	st.RecordTask(TaskRecord{TaskID: "T0.0", Rank: 0, OriginRank: 0, StartTime: 0, EndTime: 10})
	st.RecordTask(TaskRecord{TaskID: "T0.1", Rank: 0, OriginRank: 0, StartTime: 10, EndTime: 20})
	st.RecordTask(TaskRecord{TaskID: "T0.4", Rank: 1, OriginRank: 0, StartTime: 7, EndTime: 17})
	st.RecordQueueLengths([]int{4, 0})
	st.RecordQueueLengths([]int{3, 1})
	st.RecordMigration(MigrationRecord{TaskID: "T0.4", IssuedAt: 5, ArrivalTime: 6, Outcome: "arrived"})
	st.RecordMigration(MigrationRecord{TaskID: "T0.3", IssuedAt: 8, ArrivalTime: 11, Outcome: "arrived"})
	st.RecordMigration(MigrationRecord{Outcome: "aborted"})

	// WHEN summarized
	summary := Summarize(st)

	// THEN counts and means match
	if summary.CompletedTasks != 3 {
		t.Errorf("expected 3 completed, got %d", summary.CompletedTasks)
	}
	if summary.MigratedTasks != 1 {
		t.Errorf("expected 1 migrated, got %d", summary.MigratedTasks)
	}
	if math.Abs(summary.MeanQueueLength-2.0) > 1e-9 {
		t.Errorf("expected mean queue length 2.0, got %f", summary.MeanQueueLength)
	}
	if summary.PeakQueueLength != 4 {
		t.Errorf("expected peak 4, got %d", summary.PeakQueueLength)
	}
	if math.Abs(summary.MeanTransferTime-2.0) > 1e-9 {
		t.Errorf("expected mean transfer 2.0, got %f", summary.MeanTransferTime)
	}
	if summary.MaxTransferTime != 3 {
		t.Errorf("expected max transfer 3, got %d", summary.MaxTransferTime)
	}
	if summary.Outcomes["arrived"] != 2 || summary.Outcomes["aborted"] != 1 {
		t.Errorf("unexpected outcomes %v", summary.Outcomes)
	}
	if summary.BusyTicks[0] != 20 || summary.BusyTicks[1] != 10 {
		t.Errorf("unexpected busy ticks %v", summary.BusyTicks)
	}
}
