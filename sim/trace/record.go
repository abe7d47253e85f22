// Package trace holds the engine's output: completed-task records, per-tick
// queue samples and migration decision records.
// This package has no dependencies on sim/. It stores pure data types.
package trace

// TaskRecord captures one completed task as seen by the rank that ran it.
type TaskRecord struct {
	TaskID            string
	Rank              int // rank that executed the task
	OriginRank        int
	DestinationRank   int // -1 if the task never migrated
	Duration          int64
	StartTime         int64
	EndTime           int64
	MigrationIssuedAt int64 // 0 if the task never migrated
}

// Migrated reports whether the task ran away from its origin.
func (r TaskRecord) Migrated() bool {
	return r.Rank != r.OriginRank
}

// MigrationRecord captures the fate of one migration decision.
type MigrationRecord struct {
	Clock         int64  // tick the outcome was decided
	Kind          string // "steal" or "offload"
	TaskID        string // empty for aborted steals
	Source        int
	Destination   int
	IssuedAt      int64
	DepartureTick int64
	ArrivalTime   int64
	Outcome       string // "arrived", "cancelled" or "aborted"
}
