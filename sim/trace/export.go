package trace

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// WriteQueueCSV writes one row per rank: the rank label followed by its queue
// length after every tick.
func WriteQueueCSV(w io.Writer, st *SimulationTrace) error {
	cw := csv.NewWriter(w)
	for r, lens := range st.QueueSamples {
		row := make([]string, 0, len(lens)+1)
		row = append(row, fmt.Sprintf("R%d", r))
		for _, n := range lens {
			row = append(row, strconv.Itoa(n))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing queue samples of R%d: %w", r, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

var taskHeader = []string{
	"rank", "task_id", "origin_rank", "destination_rank", "duration",
	"start_time", "end_time", "migration_issued_at",
}

// WriteTaskCSV writes every completed task record, grouped by rank in
// execution order, under a header row.
func WriteTaskCSV(w io.Writer, st *SimulationTrace) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(taskHeader); err != nil {
		return fmt.Errorf("writing task header: %w", err)
	}
	for _, recs := range st.Tasks {
		for _, rec := range recs {
			row := []string{
				strconv.Itoa(rec.Rank),
				rec.TaskID,
				strconv.Itoa(rec.OriginRank),
				strconv.Itoa(rec.DestinationRank),
				strconv.FormatInt(rec.Duration, 10),
				strconv.FormatInt(rec.StartTime, 10),
				strconv.FormatInt(rec.EndTime, 10),
				strconv.FormatInt(rec.MigrationIssuedAt, 10),
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("writing task %s: %w", rec.TaskID, err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
