package sim

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"

	"github.com/simdynlb/simdynlb/sim/trace"
)

// Result is the outcome of one simulation iteration.
type Result struct {
	RunID     string
	Iteration int
	Key       SimulationKey
	Ticks     int64
	Completed bool // false if the horizon cut the run short
	Metrics   *Metrics
	Trace     *trace.SimulationTrace
}

// Simulator runs one iteration of the tick-driven balancing simulation.
//
// Each tick runs, in order: rank classification, the work-stealing balancer,
// offload pairing, the migration executor, then execution on every rank.
// Tasks moved by the executor become runnable on the following tick.
type Simulator struct {
	Clock     int64
	Horizon   int64 // 0 means unbounded
	RunID     string
	Iteration int
	Ranks     []*RankState
	Metrics   *Metrics
	Trace     *trace.SimulationTrace

	cfg        SimConfig
	rng        *PartitionedRNG
	stealer    *WorkStealingBalancer
	offloader  *ReactiveOffloadBalancer
	executor   *MigrationExecutor
	totalTasks int
}

// NewSimulator validates cfg and builds the ranks for the given iteration,
// seeding them from cfg.Plan when set and uniformly otherwise.
// Counters report into scope; a nil scope discards them.
func NewSimulator(cfg SimConfig, iteration int, scope tally.Scope) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulation config: %w", err)
	}
	rng := NewPartitionedRNG(NewSimulationKey(cfg.Seed, iteration))
	var ranks []*RankState
	if cfg.Plan != nil {
		ranks = SeedFromPlan(cfg.Topology, cfg.Plan, rng.ForSubsystem(SubsystemEstimate))
	} else {
		ranks = SeedUniform(cfg.Topology)
	}
	return newSimulator(cfg, iteration, rng, ranks, scope), nil
}

// NewSimulatorWithRanks builds a simulator over caller-provided ranks.
// The topology in cfg must match the number of ranks.
func NewSimulatorWithRanks(cfg SimConfig, iteration int, ranks []*RankState, scope tally.Scope) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulation config: %w", err)
	}
	if len(ranks) != cfg.Topology.NumRanks {
		return nil, fmt.Errorf("expected %d ranks, got %d", cfg.Topology.NumRanks, len(ranks))
	}
	for i, r := range ranks {
		if r.ID != i {
			return nil, fmt.Errorf("rank at index %d has ID %d", i, r.ID)
		}
	}
	rng := NewPartitionedRNG(NewSimulationKey(cfg.Seed, iteration))
	return newSimulator(cfg, iteration, rng, ranks, scope), nil
}

func newSimulator(cfg SimConfig, iteration int, rng *PartitionedRNG, ranks []*RankState, scope tally.Scope) *Simulator {
	if scope == nil {
		scope = tally.NoopScope
	}
	n := len(ranks)
	s := &Simulator{
		Horizon:   cfg.Horizon,
		RunID:     uuid.NewString(),
		Iteration: iteration,
		Ranks:     ranks,
		Metrics:   NewMetrics(scope, n),
		Trace:     trace.NewSimulationTrace(cfg.TraceLevel, n),
		cfg:       cfg,
		rng:       rng,
	}
	b := cfg.Balancer
	if cfg.Policy.Steals() {
		s.stealer = NewWorkStealingBalancer(n, b.Latency, b.MinStealQueue, nil)
	}
	if cfg.Policy.Offloads() {
		s.offloader = NewReactiveOffloadBalancer(n, b.ImbalanceThreshold, b.MinAbsLoadDiff, b.MinOffloadQueue)
	}
	s.executor = NewMigrationExecutor(cfg, NewDurationEstimator(cfg.Topology.ClockRate, ranks), s.stealer, s.offloader)
	s.totalTasks = s.countTasks()
	return s
}

// ObserveNegotiations installs obs on every steal negotiation.
// Has no effect when the policy does not steal.
func (s *Simulator) ObserveNegotiations(obs TransitionObserver) {
	if s.stealer != nil {
		s.stealer.Observe(obs)
	}
}

// Stealer returns the work-stealing balancer, nil if the policy does not steal.
func (s *Simulator) Stealer() *WorkStealingBalancer {
	return s.stealer
}

// Offloader returns the reactive offload balancer, nil if the policy does not offload.
func (s *Simulator) Offloader() *ReactiveOffloadBalancer {
	return s.offloader
}

// Executor returns the migration executor.
func (s *Simulator) Executor() *MigrationExecutor {
	return s.executor
}

// TotalTasks returns the number of tasks in the system, constant over a run.
func (s *Simulator) TotalTasks() int {
	return s.totalTasks
}

// Done reports whether every queue and migration buffer is empty and no rank
// is executing.
func (s *Simulator) Done() bool {
	if s.executor.InFlight() > 0 || s.executor.Pending() > 0 {
		return false
	}
	for _, r := range s.Ranks {
		if !r.Idle() || r.Running() {
			return false
		}
	}
	return true
}

// Step advances the clock by one tick and runs every phase of that tick.
func (s *Simulator) Step() {
	s.Clock++
	ctx := &TickContext{
		Tick:    s.Clock,
		Ranks:   s.Ranks,
		RNG:     s.rng,
		Metrics: s.Metrics,
		Trace:   s.Trace,
	}

	cls := Classify(s.Ranks, s.cfg.Balancer.MinStealQueue)
	if s.stealer != nil {
		s.stealer.Balance(ctx, cls)
	}
	if s.offloader != nil {
		s.offloader.Balance(ctx)
	}
	s.executor.Advance(ctx)

	lens := make([]int, len(s.Ranks))
	for i, r := range s.Ranks {
		s.execute(ctx, r)
		lens[i] = r.QueueLen()
	}
	s.Trace.RecordQueueLengths(lens)

	if s.cfg.Verify {
		s.checkInvariants()
	}
}

// Run steps until all work is done or the horizon is reached.
func (s *Simulator) Run() *Result {
	logrus.Infof("[run %s] iteration %d: %d ranks, %d tasks, policy %s",
		s.RunID, s.Iteration, len(s.Ranks), s.totalTasks, s.cfg.Policy)
	completed := true
	for !s.Done() {
		if s.Horizon > 0 && s.Clock >= s.Horizon {
			logrus.Warnf("[tick %07d] horizon reached with %d tasks unfinished", s.Clock, s.totalTasks-s.Trace.NumTasks())
			completed = false
			break
		}
		s.Step()
	}
	s.Metrics.finalize(s.Ranks, s.Clock, completed)
	logrus.Infof("[tick %07d] iteration %d ended", s.Clock, s.Iteration)
	return &Result{
		RunID:     s.RunID,
		Iteration: s.Iteration,
		Key:       s.rng.Key(),
		Ticks:     s.Clock,
		Completed: completed,
		Metrics:   s.Metrics,
		Trace:     s.Trace,
	}
}

// execute dispatches a task if the rank's slot is free, charges one tick to
// the running task and completes it once its end time is reached.
func (s *Simulator) execute(ctx *TickContext, r *RankState) {
	if r.Executing == nil {
		s.dispatch(ctx, r)
	}
	t := r.Executing
	if t == nil {
		return
	}
	if ctx.Tick > t.StartTime {
		r.attribute(t)
	}
	if ctx.Tick >= t.EndTime {
		s.complete(r, t)
	}
}

// dispatch starts the head of the remote queue if it arrived before this
// tick, else the head of the local queue.
func (s *Simulator) dispatch(ctx *TickContext, r *RankState) {
	var t *Task
	if front := r.RemoteQ.Peek(); front != nil && front.ArrivalTime < ctx.Tick {
		t = r.RemoteQ.PopFront()
		t.StartTime = ctx.Tick
	} else if r.LocalQ.Len() > 0 {
		t = r.LocalQ.PopFront()
		if t.Migrating() {
			s.executor.Cancel(ctx, t)
		}
		t.StartTime = ctx.Tick - s.cfg.LocalStartOffset
	} else {
		return
	}
	t.EndTime = t.StartTime + t.Duration
	r.Executing = t
	logrus.Debugf("[tick %07d] R%d starts %s (end at %d)", ctx.Tick, r.ID, t.ID, t.EndTime)
}

func (s *Simulator) complete(r *RankState, t *Task) {
	dest := -1
	if d, ok := t.Destination.Get(); ok {
		dest = d
	}
	s.Trace.RecordTask(trace.TaskRecord{
		TaskID:            t.ID.String(),
		Rank:              r.ID,
		OriginRank:        t.OriginRank,
		DestinationRank:   dest,
		Duration:          t.Duration,
		StartTime:         t.StartTime,
		EndTime:           t.EndTime,
		MigrationIssuedAt: t.MigrationIssuedAt,
	})
	r.Completed = append(r.Completed, t)
	r.Executing = nil
}

func (s *Simulator) countTasks() int {
	n := s.executor.InFlight()
	for _, r := range s.Ranks {
		n += r.QueueLen() + len(r.Completed)
		if r.Running() {
			n++
		}
	}
	return n
}

// checkInvariants panics if a task is owned by two places at once, sits in
// a queue it does not belong to, or if tasks appeared or vanished.
func (s *Simulator) checkInvariants() {
	owner := make(map[*Task]string, s.totalTasks)
	own := func(t *Task, where string) {
		if prev, ok := owner[t]; ok {
			panic(fmt.Sprintf("[tick %07d] %s is in %s and %s", s.Clock, t.ID, prev, where))
		}
		owner[t] = where
	}
	for _, r := range s.Ranks {
		for _, t := range r.LocalQ.Items() {
			if !t.IsLocalTo(r.ID) {
				panic(fmt.Sprintf("[tick %07d] %s from R%d is in the local queue of R%d", s.Clock, t.ID, t.OriginRank, r.ID))
			}
			own(t, fmt.Sprintf("R%d local queue", r.ID))
		}
		for _, t := range r.RemoteQ.Items() {
			if !t.Destination.Is(r.ID) {
				panic(fmt.Sprintf("[tick %07d] %s bound for %s is in the remote queue of R%d", s.Clock, t.ID, t.Destination, r.ID))
			}
			own(t, fmt.Sprintf("R%d remote queue", r.ID))
		}
		if r.Executing != nil {
			own(r.Executing, fmt.Sprintf("R%d execution slot", r.ID))
		}
		for _, t := range r.Completed {
			own(t, fmt.Sprintf("R%d completed list", r.ID))
		}
		for _, t := range s.executor.InFlightTasks(r.ID) {
			own(t, fmt.Sprintf("migration buffer to R%d", r.ID))
		}
	}
	if len(owner) != s.totalTasks {
		panic(fmt.Sprintf("[tick %07d] conservation violated: %d tasks, expected %d", s.Clock, len(owner), s.totalTasks))
	}
}
