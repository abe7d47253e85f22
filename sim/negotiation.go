package sim

import "fmt"

// NegotiationState is the state of an idle rank's steal negotiation.
// States only move forward, with three exceptions: a revoke takes a losing
// thief from Accepted back to Requested, an abort drops a committed steal
// whose donor has nothing left to give, and Complete resets to None.
type NegotiationState int

const (
	NegotiationNone NegotiationState = iota
	NegotiationRequested
	NegotiationAccepted
	NegotiationStealing
	NegotiationSending
	NegotiationComplete
)

func (s NegotiationState) String() string {
	switch s {
	case NegotiationNone:
		return "none"
	case NegotiationRequested:
		return "requested"
	case NegotiationAccepted:
		return "accepted"
	case NegotiationStealing:
		return "stealing"
	case NegotiationSending:
		return "sending"
	case NegotiationComplete:
		return "complete"
	default:
		return fmt.Sprintf("NegotiationState(%d)", int(s))
	}
}

// TransitionObserver is notified of every negotiation transition.
type TransitionObserver func(thief int, from, to NegotiationState)

// Negotiation tracks one idle rank's attempt to acquire a task.
type Negotiation struct {
	Thief int
	State NegotiationState
	Donor RankRef // set from Accepted on
	Task  *Task   // set from Sending on

	observer TransitionObserver
}

func (n *Negotiation) set(to NegotiationState) {
	from := n.State
	n.State = to
	if n.observer != nil {
		n.observer(n.Thief, from, to)
	}
}

// advance moves the negotiation exactly one state forward.
func (n *Negotiation) advance(to NegotiationState) {
	if to != n.State+1 {
		panic(fmt.Sprintf("Negotiation R%d: illegal transition %s -> %s", n.Thief, n.State, to))
	}
	n.set(to)
}

// revoke returns an Accepted negotiation to Requested after its donor re-targeted.
func (n *Negotiation) revoke() {
	if n.State != NegotiationAccepted {
		panic(fmt.Sprintf("Negotiation R%d: revoke from %s", n.Thief, n.State))
	}
	n.Donor = NoRank
	n.set(NegotiationRequested)
}

// abort drops a committed steal that could not select a task.
func (n *Negotiation) abort() {
	if n.State != NegotiationStealing {
		panic(fmt.Sprintf("Negotiation R%d: abort from %s", n.Thief, n.State))
	}
	n.Donor = NoRank
	n.Task = nil
	n.set(NegotiationNone)
}

// reset clears a Complete negotiation so the rank may request again.
func (n *Negotiation) reset() {
	if n.State != NegotiationComplete {
		panic(fmt.Sprintf("Negotiation R%d: reset from %s", n.Thief, n.State))
	}
	n.Donor = NoRank
	n.Task = nil
	n.set(NegotiationNone)
}

// Live reports whether the negotiation is in progress.
func (n *Negotiation) Live() bool {
	return n.State != NegotiationNone
}

// PromiseState is the donor side of a steal negotiation.
type PromiseState int

const (
	PromiseNone     PromiseState = iota
	PromiseAccepted              // tentative, may be re-targeted
	PromiseSending               // committed to one thief
)

func (s PromiseState) String() string {
	switch s {
	case PromiseNone:
		return "none"
	case PromiseAccepted:
		return "accepted"
	case PromiseSending:
		return "sending"
	default:
		return fmt.Sprintf("PromiseState(%d)", int(s))
	}
}

// Promise is a donor rank's offer of one task to one thief.
type Promise struct {
	Donor int
	State PromiseState
	Thief RankRef
}

func (p *Promise) clear() {
	p.State = PromiseNone
	p.Thief = NoRank
}
