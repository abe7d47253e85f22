package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRankState_QueueLenCountsBothQueues(t *testing.T) {
	ranks := newTestRanks([]int{3}, 10)
	r := ranks[0]
	r.RemoteQ.PushBack(NewTask(1, 0, 10, 1.0))

	assert.Equal(t, 4, r.QueueLen())
	assert.False(t, r.Idle())
	assert.False(t, r.Running())
	assert.Equal(t, 3, r.InitialTasks)
}

func TestRankState_Attribute_SplitsLocalAndRemote(t *testing.T) {
	r := NewRankState(1, 1.0, nil)

	r.attribute(NewTask(1, 0, 10, 1.0))
	r.attribute(NewTask(0, 0, 10, 1.0))
	r.attribute(NewTask(0, 1, 10, 1.0))

	assert.Equal(t, int64(1), r.LocalLoad)
	assert.Equal(t, int64(2), r.RemoteLoad)
}

func TestRankState_Slow(t *testing.T) {
	assert.True(t, NewRankState(0, 0.5, nil).Slow())
	assert.False(t, NewRankState(0, 1.0, nil).Slow())
}

func TestClassify_PartitionsIdleAndBusy(t *testing.T) {
	// GIVEN ranks with 0, 2, 3 and 5 local tasks and a steal minimum of 2
	ranks := newTestRanks([]int{0, 2, 3, 5}, 10)

	// WHEN classified
	cls := Classify(ranks, 2)

	// THEN the empty rank is idle, ranks above the minimum are busy,
	// and the rank at the minimum is neither
	assert.Equal(t, []int{0}, cls.Idle)
	assert.Equal(t, []int{2, 3}, cls.Busy)
	assert.True(t, cls.IsIdle(0))
	assert.False(t, cls.IsIdle(1))
	assert.False(t, cls.IsIdle(-1))
	assert.False(t, cls.IsIdle(9))
}

func TestClassify_RemoteTasksPreventIdleButNotBusy(t *testing.T) {
	// GIVEN a rank whose only queued tasks arrived by migration
	ranks := newTestRanks([]int{0, 0}, 10)
	for i := 0; i < 5; i++ {
		ranks[1].RemoteQ.PushBack(NewTask(0, i, 10, 1.0))
	}

	cls := Classify(ranks, 2)

	// THEN it is neither idle nor a donor, since migrated tasks never move again
	assert.Equal(t, []int{0}, cls.Idle)
	assert.Empty(t, cls.Busy)
}

func TestClassify_ExecutingRankWithEmptyQueuesIsIdle(t *testing.T) {
	ranks := newTestRanks([]int{0}, 10)
	ranks[0].Executing = NewTask(0, 0, 10, 1.0)

	cls := Classify(ranks, 2)

	assert.Equal(t, []int{0}, cls.Idle)
}
