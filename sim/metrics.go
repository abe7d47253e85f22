// Tracks simulation-wide balancing counters and per-rank load, the
// balancing-quality metric of a run.

package sim

import (
	"fmt"
	"io"

	"github.com/uber-go/tally/v4"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Counter is a monotonically increasing count mirrored to a tally counter.
type Counter struct {
	n int64
	c tally.Counter
}

func newCounter(scope tally.Scope, name string) Counter {
	return Counter{c: scope.Counter(name)}
}

// Inc adds one.
func (c *Counter) Inc() {
	c.n++
	c.c.Inc(1)
}

// Value returns the current count.
func (c *Counter) Value() int64 {
	return c.n
}

// Metrics aggregates statistics about one simulation iteration
// for final reporting.
type Metrics struct {
	StealRequests   Counter // first request of a negotiation
	StealResends    Counter // request refreshed after going unanswered
	StealAccepts    Counter // tentative promise made or renewed
	StealRetargets  Counter // thief moved to a different donor
	StealRevokes    Counter // donor dropped a thief for another
	StealCommits    Counter
	StealAborts     Counter // committed donor had no selectable task
	StealsCompleted Counter

	OffloadPairs Counter

	MigrationsIssued    Counter
	MigrationsDeparted  Counter
	MigrationsArrived   Counter
	MigrationsCancelled Counter // claimed task was dispatched before it departed

	// Filled in when the iteration ends.
	LocalLoad      []int64 // ticks spent on tasks that originated on the rank
	RemoteLoad     []int64 // ticks spent on migrated tasks
	ExecutedLocal  []int
	ExecutedRemote []int
	SimEndedTime   int64
	Completed      bool // false if the horizon cut the run short

	ticks tally.Gauge
}

// NewMetrics creates Metrics whose counters report into scope.
func NewMetrics(scope tally.Scope, numRanks int) *Metrics {
	steal := scope.SubScope("steal")
	offload := scope.SubScope("offload")
	migration := scope.SubScope("migration")
	return &Metrics{
		StealRequests:       newCounter(steal, "requests"),
		StealResends:        newCounter(steal, "resends"),
		StealAccepts:        newCounter(steal, "accepts"),
		StealRetargets:      newCounter(steal, "retargets"),
		StealRevokes:        newCounter(steal, "revokes"),
		StealCommits:        newCounter(steal, "commits"),
		StealAborts:         newCounter(steal, "aborts"),
		StealsCompleted:     newCounter(steal, "completed"),
		OffloadPairs:        newCounter(offload, "pairs"),
		MigrationsIssued:    newCounter(migration, "issued"),
		MigrationsDeparted:  newCounter(migration, "departed"),
		MigrationsArrived:   newCounter(migration, "arrived"),
		MigrationsCancelled: newCounter(migration, "cancelled"),
		LocalLoad:           make([]int64, numRanks),
		RemoteLoad:          make([]int64, numRanks),
		ExecutedLocal:       make([]int, numRanks),
		ExecutedRemote:      make([]int, numRanks),
		ticks:               scope.Gauge("ticks"),
	}
}

// finalize copies per-rank results out of the ranks.
func (m *Metrics) finalize(ranks []*RankState, clock int64, completed bool) {
	for _, r := range ranks {
		m.LocalLoad[r.ID] = r.LocalLoad
		m.RemoteLoad[r.ID] = r.RemoteLoad
		m.ExecutedLocal[r.ID], m.ExecutedRemote[r.ID] = 0, 0
		for _, t := range r.Completed {
			if t.IsLocalTo(r.ID) {
				m.ExecutedLocal[r.ID]++
			} else {
				m.ExecutedRemote[r.ID]++
			}
		}
	}
	m.SimEndedTime = clock
	m.Completed = completed
	m.ticks.Update(float64(clock))
}

// LoadStats summarizes per-rank total load in seconds.
type LoadStats struct {
	Max       float64
	Min       float64
	Avg       float64
	Imbalance float64 // max/avg - 1, zero when there is no load
}

// TotalLoad returns each rank's local plus remote load converted to seconds.
func (m *Metrics) TotalLoad(clockRate float64) []float64 {
	total := make([]float64, len(m.LocalLoad))
	for i := range total {
		total[i] = float64(m.LocalLoad[i]+m.RemoteLoad[i]) / clockRate
	}
	return total
}

// LoadStats computes max, min, average and imbalance of total load.
func (m *Metrics) LoadStats(clockRate float64) LoadStats {
	total := m.TotalLoad(clockRate)
	if len(total) == 0 {
		return LoadStats{}
	}
	s := LoadStats{
		Max: floats.Max(total),
		Min: floats.Min(total),
		Avg: stat.Mean(total, nil),
	}
	if s.Avg != 0 {
		s.Imbalance = s.Max/s.Avg - 1
	}
	return s
}

// Print writes per-rank load and the imbalance summary at the end of an iteration.
func (m *Metrics) Print(w io.Writer, clockRate float64) {
	fmt.Fprintln(w, "=== Statistic Info ===")
	fmt.Fprintf(w, "%-6s %12s %12s %12s %8s %8s\n", "rank", "local_load", "remote_load", "total_load", "n_local", "n_remote")
	total := m.TotalLoad(clockRate)
	for i := range m.LocalLoad {
		fmt.Fprintf(w, "%-6s %12.3f %12.3f %12.3f %8d %8d\n", fmt.Sprintf("R%d", i),
			float64(m.LocalLoad[i])/clockRate, float64(m.RemoteLoad[i])/clockRate, total[i],
			m.ExecutedLocal[i], m.ExecutedRemote[i])
	}
	s := m.LoadStats(clockRate)
	fmt.Fprintln(w, "=== Imbalance ===")
	fmt.Fprintf(w, "max. load : %9.3f\n", s.Max)
	fmt.Fprintf(w, "min. load : %9.3f\n", s.Min)
	fmt.Fprintf(w, "avg. load : %9.3f\n", s.Avg)
	fmt.Fprintf(w, "R_imb     : %9.3f\n", s.Imbalance)
	fmt.Fprintln(w, "=== Balancing ===")
	fmt.Fprintf(w, "Simulated ticks      : %d (completed=%t)\n", m.SimEndedTime, m.Completed)
	fmt.Fprintf(w, "Steal requests       : %d (resent %d)\n", m.StealRequests.Value(), m.StealResends.Value())
	fmt.Fprintf(w, "Steal accepts        : %d (retargeted %d, revoked %d)\n", m.StealAccepts.Value(), m.StealRetargets.Value(), m.StealRevokes.Value())
	fmt.Fprintf(w, "Steals committed     : %d (aborted %d, completed %d)\n", m.StealCommits.Value(), m.StealAborts.Value(), m.StealsCompleted.Value())
	fmt.Fprintf(w, "Offload pairs        : %d\n", m.OffloadPairs.Value())
	fmt.Fprintf(w, "Migrations           : issued %d, departed %d, arrived %d, cancelled %d\n",
		m.MigrationsIssued.Value(), m.MigrationsDeparted.Value(), m.MigrationsArrived.Value(), m.MigrationsCancelled.Value())
}
