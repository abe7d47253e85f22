package sim

import "fmt"

// MessageKind identifies a record exchanged between ranks.
type MessageKind string

const (
	MsgStealRequest MessageKind = "steal_request"
	MsgStealAccept  MessageKind = "steal_accept"
)

// requestResendLatency is the latency of a re-sent steal request.
// A re-sent request is visible to donors in the tick it is re-sent.
const requestResendLatency int64 = 0

// Message is a timestamped record sent from one rank to another.
// A Receiver of NoRank means the message is broadcast to all ranks.
type Message struct {
	Kind     MessageKind
	Sender   int
	Receiver RankRef
	SendTick int64
	RecvTick int64
}

// Stamp sets the send tick and derives the receive tick from latency.
func (m *Message) Stamp(sendTick, latency int64) {
	m.SendTick = sendTick
	m.RecvTick = sendTick + latency
}

// ArrivedAt reports whether the message is delivered exactly at tick.
func (m *Message) ArrivedAt(tick int64) bool {
	return m.RecvTick == tick
}

// Expired reports whether the message was delivered before tick.
func (m *Message) Expired(tick int64) bool {
	return m.RecvTick < tick
}

func (m *Message) String() string {
	return fmt.Sprintf("Message: (%s, R%d -> %s, send=%d, recv=%d)", m.Kind, m.Sender, m.Receiver, m.SendTick, m.RecvTick)
}

// MessageBoard holds the live steal request of each idle rank and the live
// steal accept of each donor rank. A rank has at most one of each.
type MessageBoard struct {
	latency  int64
	requests []*Message // indexed by requesting rank
	accepts  []*Message // indexed by accepting rank
}

// NewMessageBoard creates an empty board for numRanks ranks.
func NewMessageBoard(numRanks int, latency int64) *MessageBoard {
	if latency < 0 {
		panic(fmt.Sprintf("NewMessageBoard: latency must be >= 0, got %d", latency))
	}
	return &MessageBoard{
		latency:  latency,
		requests: make([]*Message, numRanks),
		accepts:  make([]*Message, numRanks),
	}
}

// Latency returns the one-way message latency in ticks.
func (b *MessageBoard) Latency() int64 {
	return b.latency
}

// SendRequest broadcasts a steal request from rank at tick.
// Panics if rank already has a live request.
func (b *MessageBoard) SendRequest(rank int, tick int64) *Message {
	if b.requests[rank] != nil {
		panic(fmt.Sprintf("SendRequest: R%d already has a live request %s", rank, b.requests[rank]))
	}
	m := &Message{Kind: MsgStealRequest, Sender: rank, Receiver: NoRank}
	m.Stamp(tick, b.latency)
	b.requests[rank] = m
	return m
}

// ResendRequest refreshes the timestamps of rank's live request.
func (b *MessageBoard) ResendRequest(rank int, tick int64) *Message {
	m := b.requests[rank]
	if m == nil {
		panic(fmt.Sprintf("ResendRequest: R%d has no live request", rank))
	}
	m.Stamp(tick, requestResendLatency)
	return m
}

// SendAccept records that donor promises a task to thief, replacing any
// earlier accept from donor.
func (b *MessageBoard) SendAccept(donor, thief int, tick int64) *Message {
	m := &Message{Kind: MsgStealAccept, Sender: donor, Receiver: RankOf(thief)}
	m.Stamp(tick, b.latency)
	b.accepts[donor] = m
	return m
}

// Request returns rank's live request, or nil.
func (b *MessageBoard) Request(rank int) *Message {
	return b.requests[rank]
}

// Accept returns donor's live accept, or nil.
func (b *MessageBoard) Accept(donor int) *Message {
	return b.accepts[donor]
}

// ClearRequest drops rank's request.
func (b *MessageBoard) ClearRequest(rank int) {
	b.requests[rank] = nil
}

// ClearAccept drops donor's accept.
func (b *MessageBoard) ClearAccept(donor int) {
	b.accepts[donor] = nil
}

// Pending counts messages that have been sent but not yet delivered at tick.
func (b *MessageBoard) Pending(tick int64) int {
	n := 0
	for _, m := range b.requests {
		if m != nil && m.RecvTick > tick {
			n++
		}
	}
	for _, m := range b.accepts {
		if m != nil && m.RecvTick > tick {
			n++
		}
	}
	return n
}
