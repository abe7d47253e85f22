// Package sim provides the tick-driven engine that simulates dynamic load
// balancing of independent tasks across a fixed set of ranks.
//
// # Reading Guide
//
// Start with these files to understand the engine:
//   - task.go, deque.go, rank.go: tasks and the per-rank local and remote queues
//   - simulator.go: the tick loop, dispatch and completion
//   - steal.go, negotiation.go, message.go: the work-stealing handshake
//   - offload.go: reactive offload pairing
//   - migration.go, estimate.go: task transfer and duration re-estimation
//
// # Tick Order
//
// Every tick runs the same phases in a fixed order: classify ranks, run the
// steal request/match/commit phases, pair offloaders with victims, advance
// migrations, then execute at most one task per rank. A task delivered by a
// migration in tick t is runnable from tick t+1.
//
// # Randomness
//
// All draws come from a PartitionedRNG created once per iteration, with one
// source per subsystem (steal matching, migration costs, re-estimation).
// The same seed and iteration reproduce the same run.
//
// Engine output (task records, queue samples, migration decisions) is stored
// in sim/trace, which has no dependency on this package.
package sim
