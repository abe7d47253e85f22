package sim

import "fmt"

// RankState holds the queues of one logical compute rank.
//
// Ranks are created once when a simulation starts and live for the whole run.
// LocalQ holds tasks that originated here; RemoteQ holds tasks that arrived by
// migration. At most one task executes at a time.
type RankState struct {
	ID        int
	LocalQ    *TaskDeque
	RemoteQ   *TaskDeque
	Executing *Task

	// Ticks spent executing tasks that originated here vs. migrated tasks.
	LocalLoad  int64
	RemoteLoad int64

	// Completed tasks in execution order.
	Completed []*Task

	// Number of tasks queued before the first tick. Bounds offload pairing.
	InitialTasks int

	// Speed of the rank: 1.0 is nominal, below 1.0 is a slowdown rank.
	Scale float64
}

// NewRankState creates a rank with the given initial local tasks.
func NewRankState(id int, scale float64, local []*Task) *RankState {
	return &RankState{
		ID:           id,
		LocalQ:       NewTaskDeque(local...),
		RemoteQ:      NewTaskDeque(),
		InitialTasks: len(local),
		Scale:        scale,
	}
}

// QueueLen returns the number of queued tasks, local plus remote.
func (r *RankState) QueueLen() int {
	return r.LocalQ.Len() + r.RemoteQ.Len()
}

// Idle reports whether the rank has nothing queued.
func (r *RankState) Idle() bool {
	return r.QueueLen() == 0
}

// Running reports whether the rank is executing a task.
func (r *RankState) Running() bool {
	return r.Executing != nil
}

// Slow reports whether the rank runs below nominal speed.
func (r *RankState) Slow() bool {
	return r.Scale < 1.0
}

// attribute charges one tick of execution of t to the rank.
func (r *RankState) attribute(t *Task) {
	if t.IsLocalTo(r.ID) {
		r.LocalLoad++
	} else {
		r.RemoteLoad++
	}
}

func (r *RankState) String() string {
	exec := "-"
	if r.Executing != nil {
		exec = r.Executing.ID.String()
	}
	return fmt.Sprintf("R%d: local=%s remote=%s exec=%s", r.ID, r.LocalQ, r.RemoteQ, exec)
}
