package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskID_EncodesOriginAndSequence(t *testing.T) {
	id := NewTaskID(3, 17)
	assert.Equal(t, TaskID(3<<16+17), id)
	assert.Equal(t, 3, id.OriginRank())
	assert.Equal(t, 17, id.Seq())
	assert.Equal(t, "T3.17", id.String())
}

func TestRankRef_ZeroValueIsNone(t *testing.T) {
	var r RankRef
	assert.True(t, r.IsNone())
	assert.Equal(t, NoRank, r)
	assert.False(t, r.Is(0), "NoRank must not collide with rank 0")
	assert.Equal(t, "none", r.String())

	r0 := RankOf(0)
	got, ok := r0.Get()
	assert.True(t, ok)
	assert.Equal(t, 0, got)
	assert.True(t, r0.Is(0))
	assert.Equal(t, "R0", r0.String())
}

func TestTask_MarkForMigration_SetsSchedule(t *testing.T) {
	// GIVEN a fresh task
	task := NewTask(0, 4, 10, 1.0)
	assert.False(t, task.Migrating())

	// WHEN it is claimed for an offload
	task.MarkForMigration(MigrationOffload, 2, 5, 7, 9)

	// THEN the claim and its ticks are recorded
	assert.True(t, task.Migrating())
	assert.True(t, task.Destination.Is(2))
	assert.Equal(t, MigrationOffload, task.Kind)
	assert.Equal(t, int64(5), task.MigrationIssuedAt)
	assert.Equal(t, int64(7), task.DepartureTick)
	assert.Equal(t, int64(9), task.ArrivalTime)
}

func TestTask_MarkForMigration_TwicePanics(t *testing.T) {
	task := NewTask(0, 0, 10, 1.0)
	task.MarkForMigration(MigrationSteal, 1, 5, 5, 6)

	assert.Panics(t, func() {
		task.MarkForMigration(MigrationSteal, 2, 5, 5, 6)
	})
}

func TestTask_MarkForMigration_ArrivalBeforeIssuePanics(t *testing.T) {
	task := NewTask(0, 0, 10, 1.0)
	assert.Panics(t, func() {
		task.MarkForMigration(MigrationOffload, 1, 5, 5, 4)
	})
	assert.Panics(t, func() {
		task.MarkForMigration(MigrationOffload, 1, 5, 4, 6)
	})
	assert.False(t, task.Migrating())
}

func TestTask_ClearMigration_ReleasesClaim(t *testing.T) {
	task := NewTask(0, 0, 10, 1.0)
	task.MarkForMigration(MigrationOffload, 1, 5, 6, 7)

	task.ClearMigration()

	assert.False(t, task.Migrating())
	assert.Equal(t, MigrationKind(""), task.Kind)
	assert.Zero(t, task.ArrivalTime)
	// a released task can be claimed again
	task.MarkForMigration(MigrationSteal, 2, 8, 8, 9)
	assert.True(t, task.Destination.Is(2))
}

func TestTask_IsLocalTo(t *testing.T) {
	task := NewTask(1, 0, 10, 1.0)
	assert.True(t, task.IsLocalTo(1))
	assert.False(t, task.IsLocalTo(0))
}
