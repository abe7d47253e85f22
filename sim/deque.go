// Implements the TaskDeque, which holds the tasks waiting on one side of a rank.
// Execution consumes from the head; migration selection works from the tail.

package sim

import (
	"fmt"
	"strings"
)

// TaskDeque is a FIFO queue of tasks with tail-side access for migration.
// Execution always takes the head (FIFO). Migration scans from the tail and
// removes the chosen task, so the least-progressed task leaves first.
type TaskDeque struct {
	queue []*Task
}

// NewTaskDeque creates a deque holding tasks in the given order.
func NewTaskDeque(tasks ...*Task) *TaskDeque {
	return &TaskDeque{queue: append([]*Task(nil), tasks...)}
}

// PushBack adds a task to the tail.
func (d *TaskDeque) PushBack(t *Task) {
	if t == nil {
		panic("PushBack: task must not be nil")
	}
	d.queue = append(d.queue, t)
}

func (d *TaskDeque) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, t := range d.queue {
		sb.WriteString(t.ID.String())
		if i < len(d.queue)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}

// Len returns the number of tasks in the deque.
func (d *TaskDeque) Len() int {
	return len(d.queue)
}

// Peek returns the head task without removing it.
// Returns nil if the deque is empty.
func (d *TaskDeque) Peek() *Task {
	if len(d.queue) == 0 {
		return nil
	}
	return d.queue[0]
}

// PopFront removes the head task. Returns nil if the deque is empty.
func (d *TaskDeque) PopFront() *Task {
	if len(d.queue) == 0 {
		return nil
	}
	t := d.queue[0]
	d.queue[0] = nil
	d.queue = d.queue[1:]
	return t
}

// PopBack removes the tail task. Returns nil if the deque is empty.
func (d *TaskDeque) PopBack() *Task {
	n := len(d.queue)
	if n == 0 {
		return nil
	}
	t := d.queue[n-1]
	d.queue[n-1] = nil
	d.queue = d.queue[:n-1]
	return t
}

// Remove deletes t from the deque, searching from the tail.
// Returns false if t is not present.
func (d *TaskDeque) Remove(t *Task) bool {
	for i := len(d.queue) - 1; i >= 0; i-- {
		if d.queue[i] != t {
			continue
		}
		if i == len(d.queue)-1 {
			d.PopBack()
			return true
		}
		copy(d.queue[i:], d.queue[i+1:])
		d.queue[len(d.queue)-1] = nil
		d.queue = d.queue[:len(d.queue)-1]
		return true
	}
	return false
}

// SelectFromTail returns the task nearest the tail that satisfies pred,
// never looking at the first floor positions. Returns nil if none qualifies.
// The task stays in the deque.
func (d *TaskDeque) SelectFromTail(floor int, pred func(*Task) bool) *Task {
	if floor < 0 {
		panic(fmt.Sprintf("SelectFromTail: floor must be >= 0, got %d", floor))
	}
	for i := len(d.queue) - 1; i >= floor; i-- {
		if pred(d.queue[i]) {
			return d.queue[i]
		}
	}
	return nil
}

// Items returns the deque contents, head first.
// The returned slice is the deque's internal storage -- callers within the
// sim package may iterate over it but MUST NOT append to or reslice it.
func (d *TaskDeque) Items() []*Task {
	return d.queue
}
