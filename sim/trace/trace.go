package trace

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone records completed tasks and queue samples only.
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions also records every migration decision.
	TraceLevelDecisions TraceLevel = "decisions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// SimulationTrace collects the output of one simulation iteration.
// Tasks and QueueSamples are indexed by rank.
type SimulationTrace struct {
	Level        TraceLevel
	Tasks        [][]TaskRecord
	QueueSamples [][]int // queue length of each rank after every tick
	Migrations   []MigrationRecord
}

// NewSimulationTrace creates a SimulationTrace for numRanks ranks.
func NewSimulationTrace(level TraceLevel, numRanks int) *SimulationTrace {
	return &SimulationTrace{
		Level:        level,
		Tasks:        make([][]TaskRecord, numRanks),
		QueueSamples: make([][]int, numRanks),
		Migrations:   make([]MigrationRecord, 0),
	}
}

// RecordTask appends a completed task to the record list of its rank.
func (st *SimulationTrace) RecordTask(record TaskRecord) {
	st.Tasks[record.Rank] = append(st.Tasks[record.Rank], record)
}

// RecordQueueLengths appends one sample per rank.
func (st *SimulationTrace) RecordQueueLengths(lens []int) {
	for r, n := range lens {
		st.QueueSamples[r] = append(st.QueueSamples[r], n)
	}
}

// RecordMigration appends a migration decision when decisions are traced.
func (st *SimulationTrace) RecordMigration(record MigrationRecord) {
	if st.Level != TraceLevelDecisions {
		return
	}
	st.Migrations = append(st.Migrations, record)
}

// NumTasks returns the number of completed task records.
func (st *SimulationTrace) NumTasks() int {
	n := 0
	for _, recs := range st.Tasks {
		n += len(recs)
	}
	return n
}
