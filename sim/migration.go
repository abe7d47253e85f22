package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/simdynlb/simdynlb/sim/trace"
)

// Migration outcomes recorded in the decision trace.
const (
	OutcomeArrived   = "arrived"
	OutcomeCancelled = "cancelled"
	OutcomeAborted   = "aborted"
)

// MigrationExecutor realizes the transfers decided by the balancers.
//
// A transfer goes through three instants: the claim (the task is marked in
// its source's local queue), the departure (the task leaves the local queue
// for the in-flight buffer of its destination), and the arrival (the task is
// re-estimated and appended to the destination's remote queue).
// Steals depart in the tick they are claimed; offloads depart after the
// balancing overhead.
type MigrationExecutor struct {
	costs       CostConfig
	protected   int
	minAbsDiff  int
	minOccupied int
	estimator   *DurationEstimator

	steals   *WorkStealingBalancer    // nil when the policy does not steal
	offloads *ReactiveOffloadBalancer // nil when the policy does not offload

	pending  []*Task   // claimed, not yet departed
	inFlight [][]*Task // departed, indexed by destination rank
}

// NewMigrationExecutor creates an executor serving the given balancers.
// Either balancer may be nil.
func NewMigrationExecutor(cfg SimConfig, estimator *DurationEstimator,
	steals *WorkStealingBalancer, offloads *ReactiveOffloadBalancer) *MigrationExecutor {
	return &MigrationExecutor{
		costs:       cfg.Costs,
		protected:   cfg.Balancer.ProtectedHeadTasks,
		minAbsDiff:  cfg.Balancer.MinAbsLoadDiff,
		minOccupied: cfg.Balancer.MinOffloadQueue,
		estimator:   estimator,
		steals:      steals,
		offloads:    offloads,
		inFlight:    make([][]*Task, cfg.Topology.NumRanks),
	}
}

// Advance runs one tick of migration work: claim tasks for committed steals,
// drain one offload pair per offloader, then move departures and arrivals.
func (e *MigrationExecutor) Advance(ctx *TickContext) {
	e.issueSteals(ctx)
	e.issueOffloads(ctx)
	e.depart(ctx)
	e.deliver(ctx)
}

// InFlight returns the number of tasks in the migration buffers.
func (e *MigrationExecutor) InFlight() int {
	n := 0
	for _, buf := range e.inFlight {
		n += len(buf)
	}
	return n
}

// InFlightTasks returns the buffered tasks heading to dest.
func (e *MigrationExecutor) InFlightTasks(dest int) []*Task {
	return e.inFlight[dest]
}

// Pending returns the number of claimed tasks still in their source queue.
func (e *MigrationExecutor) Pending() int {
	return len(e.pending)
}

func unclaimed(t *Task) bool {
	return !t.Migrating()
}

func (e *MigrationExecutor) issueSteals(ctx *TickContext) {
	if e.steals == nil {
		return
	}
	rng := ctx.RNG.ForSubsystem(SubsystemMigration)
	for _, n := range e.steals.committed(NegotiationStealing) {
		donor, _ := n.Donor.Get()
		t := ctx.Ranks[donor].LocalQ.SelectFromTail(e.protected, unclaimed)
		if t == nil {
			e.steals.abort(n)
			ctx.Metrics.StealAborts.Inc()
			ctx.Trace.RecordMigration(trace.MigrationRecord{
				Clock:       ctx.Tick,
				Kind:        string(MigrationSteal),
				Source:      donor,
				Destination: n.Thief,
				Outcome:     OutcomeAborted,
			})
			logrus.Debugf("[tick %07d] R%d has no task left for R%d, steal aborted", ctx.Tick, donor, n.Thief)
			continue
		}
		delay := RandomizedCost(rng, e.costs.MigrationDelay, e.costs.Noise)
		t.MarkForMigration(MigrationSteal, n.Thief, ctx.Tick, ctx.Tick, ctx.Tick+delay)
		e.steals.claim(n, t)
		e.pending = append(e.pending, t)
		ctx.Metrics.MigrationsIssued.Inc()
		logrus.Debugf("[tick %07d] R%d steals %s from R%d (arrives at %d)", ctx.Tick, n.Thief, t.ID, donor, t.ArrivalTime)
	}
}

func (e *MigrationExecutor) issueOffloads(ctx *TickContext) {
	if e.offloads == nil {
		return
	}
	rng := ctx.RNG.ForSubsystem(SubsystemMigration)
	for i, off := range ctx.Ranks {
		pair, ok := e.offloads.next(i)
		if !ok {
			continue
		}
		if pair.Offloader != i {
			panic(fmt.Sprintf("issueOffloads: pair %+v queued under offloader R%d", pair, i))
		}
		vic := ctx.Ranks[pair.Victim]
		diff := off.QueueLen() - vic.QueueLen()
		if diff < 0 {
			diff = -diff
		}
		if off.LocalQ.Len() <= e.minOccupied || diff <= e.minAbsDiff {
			continue
		}
		t := off.LocalQ.SelectFromTail(e.protected, unclaimed)
		if t == nil {
			continue
		}
		departure := ctx.Tick + RandomizedCost(rng, e.costs.BalancingOverhead, e.costs.Noise)
		arrival := departure + RandomizedCost(rng, e.costs.MigrationDelay, e.costs.Noise)
		t.MarkForMigration(MigrationOffload, vic.ID, ctx.Tick, departure, arrival)
		e.pending = append(e.pending, t)
		ctx.Metrics.MigrationsIssued.Inc()
		logrus.Debugf("[tick %07d] R%d offloads %s to R%d (departs at %d, arrives at %d)",
			ctx.Tick, i, t.ID, vic.ID, departure, arrival)
	}
}

func (e *MigrationExecutor) depart(ctx *TickContext) {
	keep := e.pending[:0]
	for _, t := range e.pending {
		if t.DepartureTick != ctx.Tick {
			if t.DepartureTick < ctx.Tick {
				panic(fmt.Sprintf("depart: %s missed its departure tick %d at %d", t.ID, t.DepartureTick, ctx.Tick))
			}
			keep = append(keep, t)
			continue
		}
		if !ctx.Ranks[t.OriginRank].LocalQ.Remove(t) {
			panic(fmt.Sprintf("depart: %s is not in the local queue of R%d", t.ID, t.OriginRank))
		}
		dest, _ := t.Destination.Get()
		e.inFlight[dest] = append(e.inFlight[dest], t)
		ctx.Metrics.MigrationsDeparted.Inc()
	}
	clear(e.pending[len(keep):])
	e.pending = keep
}

func (e *MigrationExecutor) deliver(ctx *TickContext) {
	rng := ctx.RNG.ForSubsystem(SubsystemEstimate)
	for dest, buf := range e.inFlight {
		keep := buf[:0]
		for _, t := range buf {
			if t.ArrivalTime != ctx.Tick {
				if t.ArrivalTime < ctx.Tick {
					panic(fmt.Sprintf("deliver: %s missed its arrival tick %d at %d", t.ID, t.ArrivalTime, ctx.Tick))
				}
				keep = append(keep, t)
				continue
			}
			old := t.Duration
			t.Duration = e.estimator.Estimate(rng, t, dest)
			ctx.Ranks[dest].RemoteQ.PushBack(t)
			ctx.Metrics.MigrationsArrived.Inc()
			if t.Kind == MigrationSteal && e.steals != nil && e.steals.complete(dest, t) {
				ctx.Metrics.StealsCompleted.Inc()
			}
			e.record(ctx, t, OutcomeArrived)
			logrus.Debugf("[tick %07d] %s arrives at R%d from R%d (duration %d -> %d)",
				ctx.Tick, t.ID, dest, t.OriginRank, old, t.Duration)
		}
		clear(buf[len(keep):])
		e.inFlight[dest] = keep
	}
}

// Cancel drops the claim on t, which the loop is about to execute before it
// departed. Only offloads can be cancelled: steals depart when claimed.
func (e *MigrationExecutor) Cancel(ctx *TickContext, t *Task) {
	if t.Kind == MigrationSteal {
		panic(fmt.Sprintf("Cancel: steal of %s is still in its source queue at tick %d", t.ID, ctx.Tick))
	}
	found := false
	for i, p := range e.pending {
		if p == t {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		panic(fmt.Sprintf("Cancel: %s is not pending", t.ID))
	}
	e.record(ctx, t, OutcomeCancelled)
	ctx.Metrics.MigrationsCancelled.Inc()
	logrus.Warnf("[tick %07d] %s was dispatched on R%d before departing, offload cancelled", ctx.Tick, t.ID, t.OriginRank)
	t.ClearMigration()
}

func (e *MigrationExecutor) record(ctx *TickContext, t *Task, outcome string) {
	dest, _ := t.Destination.Get()
	ctx.Trace.RecordMigration(trace.MigrationRecord{
		Clock:         ctx.Tick,
		Kind:          string(t.Kind),
		TaskID:        t.ID.String(),
		Source:        t.OriginRank,
		Destination:   dest,
		IssuedAt:      t.MigrationIssuedAt,
		DepartureTick: t.DepartureTick,
		ArrivalTime:   t.ArrivalTime,
		Outcome:       outcome,
	})
}
