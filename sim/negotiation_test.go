package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type transition struct {
	from, to NegotiationState
}

func recordTransitions(n *Negotiation) *[]transition {
	var got []transition
	n.observer = func(_ int, from, to NegotiationState) {
		got = append(got, transition{from, to})
	}
	return &got
}

func TestNegotiation_Advance_FullCycle(t *testing.T) {
	// GIVEN a fresh negotiation with an observer
	n := &Negotiation{Thief: 1}
	got := recordTransitions(n)

	// WHEN it goes through every state and resets
	for s := NegotiationRequested; s <= NegotiationComplete; s++ {
		n.advance(s)
		assert.True(t, n.Live())
	}
	n.reset()

	// THEN every step was observed in order and it is back to none
	want := []transition{
		{NegotiationNone, NegotiationRequested},
		{NegotiationRequested, NegotiationAccepted},
		{NegotiationAccepted, NegotiationStealing},
		{NegotiationStealing, NegotiationSending},
		{NegotiationSending, NegotiationComplete},
		{NegotiationComplete, NegotiationNone},
	}
	assert.Equal(t, want, *got)
	assert.False(t, n.Live())
}

func TestNegotiation_Advance_SkipPanics(t *testing.T) {
	tests := []struct {
		from, to NegotiationState
	}{
		{NegotiationNone, NegotiationAccepted},
		{NegotiationRequested, NegotiationStealing},
		{NegotiationAccepted, NegotiationRequested},
		{NegotiationSending, NegotiationSending},
	}
	for _, tc := range tests {
		t.Run(tc.from.String()+"->"+tc.to.String(), func(t *testing.T) {
			n := &Negotiation{Thief: 0, State: tc.from}
			assert.Panics(t, func() { n.advance(tc.to) })
			assert.Equal(t, tc.from, n.State)
		})
	}
}

func TestNegotiation_Revoke_OnlyFromAccepted(t *testing.T) {
	n := &Negotiation{Thief: 2, State: NegotiationAccepted, Donor: RankOf(0)}

	n.revoke()

	assert.Equal(t, NegotiationRequested, n.State)
	assert.True(t, n.Donor.IsNone())
	assert.Panics(t, func() { n.revoke() })
}

func TestNegotiation_Abort_OnlyFromStealing(t *testing.T) {
	n := &Negotiation{Thief: 2, State: NegotiationStealing, Donor: RankOf(0)}

	n.abort()

	assert.Equal(t, NegotiationNone, n.State)
	assert.True(t, n.Donor.IsNone())
	assert.Panics(t, func() { (&Negotiation{State: NegotiationSending}).abort() })
}

func TestNegotiation_Reset_OnlyFromComplete(t *testing.T) {
	assert.Panics(t, func() { (&Negotiation{State: NegotiationSending}).reset() })
}

func TestNegotiationState_String(t *testing.T) {
	assert.Equal(t, "stealing", NegotiationStealing.String())
	assert.Equal(t, "NegotiationState(42)", NegotiationState(42).String())
	assert.Equal(t, "sending", PromiseSending.String())
}
