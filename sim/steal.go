package sim

import (
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"
)

// WorkStealingBalancer drives each idle rank toward acquiring one migrated task
// through a request/accept handshake over the MessageBoard.
//
// Each tick runs three phases in order:
//   - request: idle ranks without a negotiation broadcast a request; requests
//     that arrived without being answered are re-sent.
//   - match: idle ranks whose request arrives this tick are paired with busy
//     ranks by uniform random choice on both sides. A donor whose earlier
//     promise is still uncommitted may drop it for the new thief.
//   - commit: a thief whose accept arrives this tick commits to its donor.
//
// The MigrationExecutor carries a committed steal through task selection,
// transfer and completion.
type WorkStealingBalancer struct {
	board        *MessageBoard
	negotiations []*Negotiation // indexed by thief rank
	promises     []*Promise     // indexed by donor rank
	minSteal     int
}

// NewWorkStealingBalancer creates a balancer for numRanks ranks.
// observer may be nil.
func NewWorkStealingBalancer(numRanks int, latency int64, minSteal int, observer TransitionObserver) *WorkStealingBalancer {
	b := &WorkStealingBalancer{
		board:        NewMessageBoard(numRanks, latency),
		negotiations: make([]*Negotiation, numRanks),
		promises:     make([]*Promise, numRanks),
		minSteal:     minSteal,
	}
	for i := 0; i < numRanks; i++ {
		b.negotiations[i] = &Negotiation{Thief: i, observer: observer}
		b.promises[i] = &Promise{Donor: i}
	}
	return b
}

// Negotiation returns the negotiation of thief rank.
func (b *WorkStealingBalancer) Negotiation(rank int) *Negotiation {
	return b.negotiations[rank]
}

// Promise returns the promise of donor rank.
func (b *WorkStealingBalancer) Promise(rank int) *Promise {
	return b.promises[rank]
}

// Observe installs obs on every negotiation, replacing any earlier observer.
func (b *WorkStealingBalancer) Observe(obs TransitionObserver) {
	for _, n := range b.negotiations {
		n.observer = obs
	}
}

// Board returns the message board.
func (b *WorkStealingBalancer) Board() *MessageBoard {
	return b.board
}

// Balance runs the request, match and commit phases for one tick.
func (b *WorkStealingBalancer) Balance(ctx *TickContext, cls Classification) {
	b.request(ctx, cls)
	b.match(ctx, cls)
	b.commit(ctx, cls)
}

func (b *WorkStealingBalancer) request(ctx *TickContext, cls Classification) {
	for _, r := range cls.Idle {
		n := b.negotiations[r]
		switch n.State {
		case NegotiationNone:
			m := b.board.SendRequest(r, ctx.Tick)
			n.advance(NegotiationRequested)
			ctx.Metrics.StealRequests.Inc()
			logrus.Debugf("[tick %07d] R%d sends steal request (recv at %d)", ctx.Tick, r, m.RecvTick)
		case NegotiationRequested:
			if m := b.board.Request(r); m.Expired(ctx.Tick) {
				b.board.ResendRequest(r, ctx.Tick)
				ctx.Metrics.StealResends.Inc()
				logrus.Debugf("[tick %07d] R%d re-sends steal request (recv at %d)", ctx.Tick, r, m.RecvTick)
			}
		}
	}
}

// thiefCandidates lists idle ranks that can be matched this tick: fresh
// requests arriving now, and accepted thieves whose promise arrived earlier
// without being committed.
func (b *WorkStealingBalancer) thiefCandidates(ctx *TickContext, cls Classification) []int {
	var out []int
	for _, r := range cls.Idle {
		n := b.negotiations[r]
		switch n.State {
		case NegotiationRequested:
			if b.board.Request(r).ArrivedAt(ctx.Tick) {
				out = append(out, r)
			}
		case NegotiationAccepted:
			donor, _ := n.Donor.Get()
			if acc := b.board.Accept(donor); acc == nil || acc.Expired(ctx.Tick) {
				out = append(out, r)
			}
		}
	}
	return out
}

// donorCandidates lists busy ranks free to promise a task: no promise, or a
// tentative one whose accept arrived earlier without being committed.
func (b *WorkStealingBalancer) donorCandidates(ctx *TickContext, cls Classification) []int {
	var out []int
	for _, d := range cls.Busy {
		if ctx.Ranks[d].LocalQ.Len() < b.minSteal {
			continue
		}
		p := b.promises[d]
		switch p.State {
		case PromiseNone:
			out = append(out, d)
		case PromiseAccepted:
			if acc := b.board.Accept(d); acc == nil || acc.Expired(ctx.Tick) {
				out = append(out, d)
			}
		}
	}
	return out
}

func (b *WorkStealingBalancer) match(ctx *TickContext, cls Classification) {
	thieves := b.thiefCandidates(ctx, cls)
	donors := b.donorCandidates(ctx, cls)
	rng := ctx.RNG.ForSubsystem(SubsystemSteal)
	for len(thieves) > 0 && len(donors) > 0 {
		var donor, thief int
		donor, donors = pickRandom(rng, donors)
		thief, thieves = pickRandom(rng, thieves)
		b.pair(ctx, donor, thief)
	}
}

// pickRandom removes and returns a uniformly chosen element, preserving the
// order of the rest.
func pickRandom(rng *rand.Rand, xs []int) (int, []int) {
	i := rng.Intn(len(xs))
	x := xs[i]
	rest := append(xs[:i:i], xs[i+1:]...)
	return x, rest
}

func (b *WorkStealingBalancer) pair(ctx *TickContext, donor, thief int) {
	p := b.promises[donor]
	n := b.negotiations[thief]

	// The donor drops an uncommitted promise made to someone else.
	if p.State == PromiseAccepted && !p.Thief.Is(thief) {
		loser, _ := p.Thief.Get()
		ln := b.negotiations[loser]
		if ln.State == NegotiationAccepted && ln.Donor.Is(donor) {
			ln.revoke()
			b.board.ResendRequest(loser, ctx.Tick)
			ctx.Metrics.StealRevokes.Inc()
			logrus.Debugf("[tick %07d] R%d revokes accept for R%d", ctx.Tick, donor, loser)
		}
		p.clear()
		b.board.ClearAccept(donor)
	}

	// The thief moves away from an uncommitted promise by another donor.
	if n.State == NegotiationAccepted && !n.Donor.Is(donor) {
		old, _ := n.Donor.Get()
		op := b.promises[old]
		if op.State == PromiseAccepted && op.Thief.Is(thief) {
			op.clear()
			b.board.ClearAccept(old)
		}
		ctx.Metrics.StealRetargets.Inc()
		logrus.Debugf("[tick %07d] R%d moves from donor R%d to R%d", ctx.Tick, thief, old, donor)
	}

	m := b.board.SendAccept(donor, thief, ctx.Tick)
	p.State = PromiseAccepted
	p.Thief = RankOf(thief)
	n.Donor = RankOf(donor)
	if n.State == NegotiationRequested {
		n.advance(NegotiationAccepted)
	}
	ctx.Metrics.StealAccepts.Inc()
	logrus.Debugf("[tick %07d] R%d accepts steal request of R%d (recv at %d)", ctx.Tick, donor, thief, m.RecvTick)
}

func (b *WorkStealingBalancer) commit(ctx *TickContext, cls Classification) {
	for _, r := range cls.Idle {
		n := b.negotiations[r]
		if n.State != NegotiationAccepted {
			continue
		}
		donor, _ := n.Donor.Get()
		p := b.promises[donor]
		acc := b.board.Accept(donor)
		if acc == nil || !acc.ArrivedAt(ctx.Tick) || !acc.Receiver.Is(r) {
			continue
		}
		if p.State != PromiseAccepted || !p.Thief.Is(r) {
			panic(fmt.Sprintf("commit: R%d holds accept from R%d but promise is %s to %s", r, donor, p.State, p.Thief))
		}
		n.advance(NegotiationStealing)
		p.State = PromiseSending
		ctx.Metrics.StealCommits.Inc()
		logrus.Debugf("[tick %07d] R%d will steal a task from R%d", ctx.Tick, r, donor)
	}
}

// committed returns negotiations in state, in rank order.
func (b *WorkStealingBalancer) committed(state NegotiationState) []*Negotiation {
	var out []*Negotiation
	for _, n := range b.negotiations {
		if n.State == state {
			out = append(out, n)
		}
	}
	return out
}

// claim records the task selected for a committed steal.
func (b *WorkStealingBalancer) claim(n *Negotiation, t *Task) {
	n.Task = t
	n.advance(NegotiationSending)
}

// abort drops a committed steal and frees its donor.
func (b *WorkStealingBalancer) abort(n *Negotiation) {
	donor, _ := n.Donor.Get()
	b.promises[donor].clear()
	b.board.ClearAccept(donor)
	b.board.ClearRequest(n.Thief)
	n.abort()
}

// complete finishes the negotiation that carried t into thief's remote queue.
// Returns false if no negotiation is waiting on t.
func (b *WorkStealingBalancer) complete(thief int, t *Task) bool {
	n := b.negotiations[thief]
	if n.State != NegotiationSending || n.Task != t {
		return false
	}
	donor, _ := n.Donor.Get()
	n.advance(NegotiationComplete)
	b.promises[donor].clear()
	b.board.ClearAccept(donor)
	b.board.ClearRequest(thief)
	n.reset()
	return true
}
