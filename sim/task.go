// Defines the Task struct that models one atomic unit of work in the simulation.
// Tracks origin, migration target, and the start/end ticks of execution.

package sim

import (
	"fmt"
)

// TaskID uniquely identifies a task across all ranks.
// The origin rank lives in the high bits and the local sequence number in the low 16 bits.
type TaskID int64

// taskSeqBits is the width of the per-rank sequence number inside a TaskID.
const taskSeqBits = 16

// NewTaskID derives a TaskID from the origin rank and its local sequence number.
func NewTaskID(originRank, seq int) TaskID {
	return TaskID(int64(originRank)<<taskSeqBits + int64(seq))
}

// OriginRank returns the rank encoded in the id.
func (id TaskID) OriginRank() int {
	return int(int64(id) >> taskSeqBits)
}

// Seq returns the local sequence number encoded in the id.
func (id TaskID) Seq() int {
	return int(int64(id) & (1<<taskSeqBits - 1))
}

func (id TaskID) String() string {
	return fmt.Sprintf("T%d.%d", id.OriginRank(), id.Seq())
}

// RankRef is an optional rank index. The zero value is NoRank.
type RankRef struct {
	rank int
	ok   bool
}

// NoRank is the RankRef that refers to no rank.
var NoRank = RankRef{}

// RankOf returns a RankRef referring to rank r.
func RankOf(r int) RankRef {
	return RankRef{rank: r, ok: true}
}

// Get returns the referenced rank and whether one is set.
func (r RankRef) Get() (int, bool) {
	return r.rank, r.ok
}

// IsNone reports whether no rank is referenced.
func (r RankRef) IsNone() bool {
	return !r.ok
}

// Is reports whether the reference points at rank.
func (r RankRef) Is(rank int) bool {
	return r.ok && r.rank == rank
}

func (r RankRef) String() string {
	if !r.ok {
		return "none"
	}
	return fmt.Sprintf("R%d", r.rank)
}

// MigrationKind distinguishes the policy that moved a task.
type MigrationKind string

const (
	MigrationSteal   MigrationKind = "steal"
	MigrationOffload MigrationKind = "offload"
	MigrationPlanned MigrationKind = "plan" // placed by a migration plan before the first tick
)

// Task models a single task's lifecycle in the simulation.
// Identity and origin never change; Duration is re-estimated when the task
// lands on another rank, and the schedule fields are set as it moves.
type Task struct {
	ID         TaskID
	Duration   int64   // Execution time in ticks
	DataSize   float64 // Payload size in MB, bookkeeping only
	OriginRank int     // Rank that created the task

	Destination       RankRef       // Migration target, NoRank when not migrating
	Kind              MigrationKind // Set together with Destination
	MigrationIssuedAt int64         // Tick the migration was decided
	DepartureTick     int64         // Tick the task leaves the source queue
	ArrivalTime       int64         // Tick the task lands in the destination's remote queue

	StartTime int64 // Tick execution began
	EndTime   int64 // Tick execution ends
}

// NewTask creates a task that has not been scheduled or migrated.
func NewTask(originRank, seq int, duration int64, dataSize float64) *Task {
	return &Task{
		ID:         NewTaskID(originRank, seq),
		Duration:   duration,
		DataSize:   dataSize,
		OriginRank: originRank,
	}
}

// Migrating reports whether the task is claimed by a migration.
func (t *Task) Migrating() bool {
	return !t.Destination.IsNone()
}

// MarkForMigration claims the task for a transfer to dest.
// Panics if the task is already claimed: a task may only be in flight once.
func (t *Task) MarkForMigration(kind MigrationKind, dest int, issuedAt, departure, arrival int64) {
	if t.Migrating() {
		panic(fmt.Sprintf("MarkForMigration: task %s already claimed for %s", t.ID, t.Destination))
	}
	if arrival < departure || departure < issuedAt {
		panic(fmt.Sprintf("MarkForMigration: task %s has inconsistent ticks issued=%d departure=%d arrival=%d",
			t.ID, issuedAt, departure, arrival))
	}
	t.Destination = RankOf(dest)
	t.Kind = kind
	t.MigrationIssuedAt = issuedAt
	t.DepartureTick = departure
	t.ArrivalTime = arrival
}

// ClearMigration releases a claim that was never carried out.
func (t *Task) ClearMigration() {
	t.Destination = NoRank
	t.Kind = ""
	t.MigrationIssuedAt = 0
	t.DepartureTick = 0
	t.ArrivalTime = 0
}

// IsLocalTo reports whether the task originated on rank.
func (t *Task) IsLocalTo(rank int) bool {
	return t.OriginRank == rank
}

func (t Task) String() string {
	return fmt.Sprintf("Task: (ID: %s, Duration: %d, Origin: R%d, Destination: %s, Start: %d, End: %d)",
		t.ID, t.Duration, t.OriginRank, t.Destination, t.StartTime, t.EndTime)
}
