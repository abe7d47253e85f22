package sim

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/simdynlb/simdynlb/sim/trace"
)

// Policy selects which balancers run each tick.
type Policy string

const (
	PolicyNone            Policy = "none"
	PolicyWorkStealing    Policy = "work-stealing"
	PolicyReactiveOffload Policy = "reactive-offload"
	PolicyHybrid          Policy = "hybrid"
)

// ValidPolicies is the set of recognized policy names.
var ValidPolicies = map[Policy]bool{
	PolicyNone:            true,
	PolicyWorkStealing:    true,
	PolicyReactiveOffload: true,
	PolicyHybrid:          true,
}

// IsValidPolicy returns true if name is a recognized policy.
func IsValidPolicy(name string) bool {
	return ValidPolicies[Policy(name)]
}

// Steals reports whether the policy runs the work-stealing balancer.
func (p Policy) Steals() bool {
	return p == PolicyWorkStealing || p == PolicyHybrid
}

// Offloads reports whether the policy runs the reactive offload balancer.
func (p Policy) Offloads() bool {
	return p == PolicyReactiveOffload || p == PolicyHybrid
}

// TopologyConfig describes the ranks and their initial work.
type TopologyConfig struct {
	NumRanks     int
	NumSlowRanks int     // the first NumSlowRanks ranks run at Slowdown
	Slowdown     float64 // speed scale of slow ranks, in (0, 1]
	TasksPerRank int
	ClockRate    float64 // ticks per simulated second
}

// Scale returns the speed scale of rank.
func (t TopologyConfig) Scale(rank int) float64 {
	if rank < t.NumSlowRanks {
		return t.Slowdown
	}
	return 1.0
}

// CostConfig groups the randomized overheads, all in ticks.
type CostConfig struct {
	BalancingOverhead int64 // delay between an offload decision and its departure
	MigrationDelay    int64 // transfer time of one task
	Noise             int64 // half-width of the uniform fluctuation around each cost
}

// BalancerConfig groups balancer thresholds.
type BalancerConfig struct {
	Latency            int64   // message latency of the steal handshake
	MinStealQueue      int     // donors must hold more local tasks than this
	MinOffloadQueue    int     // offloaders must hold more tasks than this
	MinAbsLoadDiff     int     // offload pairs must differ by more than this
	ImbalanceThreshold float64 // offload pairing starts above this (max-min)/max ratio
	ProtectedHeadTasks int     // tasks at the head of a local queue never selected for migration
}

// DefaultBalancerConfig returns the thresholds used when none are configured.
func DefaultBalancerConfig() BalancerConfig {
	return BalancerConfig{
		Latency:            2,
		MinStealQueue:      2,
		MinOffloadQueue:    2,
		MinAbsLoadDiff:     2,
		ImbalanceThreshold: 0.05,
		ProtectedHeadTasks: 3,
	}
}

// DefaultLocalStartOffset is how many ticks before the dispatch tick a local
// task is considered started. Remote tasks start at the dispatch tick.
const DefaultLocalStartOffset = 1

// SimConfig holds everything needed to build a Simulator.
type SimConfig struct {
	Policy     Policy
	Topology   TopologyConfig
	Costs      CostConfig
	Balancer   BalancerConfig
	Seed       int64
	Iterations int
	Horizon    int64 // 0 means unbounded

	LocalStartOffset int64
	Plan             MigrationPlan // optional initial placement, nil for uniform seeding
	Verify           bool          // check task conservation every tick
	TraceLevel       trace.TraceLevel
}

// Validate reports every invalid field at once.
func (c *SimConfig) Validate() error {
	var err error
	if !ValidPolicies[c.Policy] {
		err = multierr.Append(err, fmt.Errorf("unknown policy %q", c.Policy))
	}
	t := c.Topology
	if t.NumRanks <= 0 {
		err = multierr.Append(err, fmt.Errorf("num_ranks must be > 0, got %d", t.NumRanks))
	}
	if t.NumSlowRanks < 0 || t.NumSlowRanks > t.NumRanks {
		err = multierr.Append(err, fmt.Errorf("num_slow_ranks must be in [0, num_ranks], got %d", t.NumSlowRanks))
	}
	if t.Slowdown <= 0 || t.Slowdown > 1 {
		err = multierr.Append(err, fmt.Errorf("slowdown must be in (0, 1], got %g", t.Slowdown))
	}
	if t.TasksPerRank < 0 || t.TasksPerRank >= 1<<taskSeqBits {
		err = multierr.Append(err, fmt.Errorf("tasks_per_rank must be in [0, %d), got %d", 1<<taskSeqBits, t.TasksPerRank))
	}
	if t.ClockRate <= 0 {
		err = multierr.Append(err, fmt.Errorf("clock_rate must be > 0, got %g", t.ClockRate))
	}
	if c.Costs.BalancingOverhead < 0 {
		err = multierr.Append(err, fmt.Errorf("balancing_overhead must be >= 0, got %d", c.Costs.BalancingOverhead))
	}
	if c.Costs.MigrationDelay < 0 {
		err = multierr.Append(err, fmt.Errorf("migration_delay must be >= 0, got %d", c.Costs.MigrationDelay))
	}
	if c.Costs.Noise < 0 {
		err = multierr.Append(err, fmt.Errorf("noise must be >= 0, got %d", c.Costs.Noise))
	}
	b := c.Balancer
	if b.Latency < 0 {
		err = multierr.Append(err, fmt.Errorf("latency must be >= 0, got %d", b.Latency))
	}
	if b.MinStealQueue < 0 || b.MinOffloadQueue < 0 || b.MinAbsLoadDiff < 0 {
		err = multierr.Append(err, fmt.Errorf("queue thresholds must be >= 0, got steal=%d offload=%d diff=%d",
			b.MinStealQueue, b.MinOffloadQueue, b.MinAbsLoadDiff))
	}
	if b.ImbalanceThreshold < 0 || b.ImbalanceThreshold >= 1 {
		err = multierr.Append(err, fmt.Errorf("imbalance_threshold must be in [0, 1), got %g", b.ImbalanceThreshold))
	}
	if b.ProtectedHeadTasks < 0 {
		err = multierr.Append(err, fmt.Errorf("protected_head_tasks must be >= 0, got %d", b.ProtectedHeadTasks))
	}
	if c.Iterations <= 0 {
		err = multierr.Append(err, fmt.Errorf("iterations must be > 0, got %d", c.Iterations))
	}
	if c.Horizon < 0 {
		err = multierr.Append(err, fmt.Errorf("horizon must be >= 0, got %d", c.Horizon))
	}
	if c.LocalStartOffset < 0 {
		err = multierr.Append(err, fmt.Errorf("local_start_offset must be >= 0, got %d", c.LocalStartOffset))
	}
	if c.Plan != nil && t.NumRanks > 0 {
		if perr := c.Plan.Validate(t.NumRanks); perr != nil {
			err = multierr.Append(err, fmt.Errorf("plan: %w", perr))
		}
	}
	if !trace.IsValidTraceLevel(string(c.TraceLevel)) {
		err = multierr.Append(err, fmt.Errorf("unknown trace level %q", c.TraceLevel))
	}
	return err
}

// DefaultSimConfig returns a single-iteration work-stealing configuration
// with default thresholds. Topology and costs are left for the caller.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		Policy:           PolicyWorkStealing,
		Balancer:         DefaultBalancerConfig(),
		Iterations:       1,
		LocalStartOffset: DefaultLocalStartOffset,
		TraceLevel:       trace.TraceLevelNone,
	}
}
