package sim

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// === SimulationKey ===

// SimulationKey uniquely identifies a reproducible simulation iteration.
// Two iterations with the same SimulationKey and identical configuration
// MUST produce bit-for-bit identical results.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from the run seed and the iteration index.
// Iteration 0 uses the seed directly.
func NewSimulationKey(seed int64, iteration int) SimulationKey {
	if iteration == 0 {
		return SimulationKey(seed)
	}
	return SimulationKey(seed ^ fnv1a64(fmt.Sprintf("iteration_%d", iteration)))
}

// === Subsystem Constants ===

const (
	// SubsystemSteal is the RNG subsystem for pairing idle and busy ranks.
	SubsystemSteal = "steal"

	// SubsystemMigration is the RNG subsystem for balancing and migration-delay costs.
	SubsystemMigration = "migration"

	// SubsystemEstimate is the RNG subsystem for re-estimating migrated task durations.
	SubsystemEstimate = "estimate"
)

// === PartitionedRNG ===

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem.
// One PartitionedRNG is created per iteration and threaded through every
// component that draws random numbers, so no draw reseeds a shared source.
//
// Derivation formula: key XOR fnv1a64(subsystemName).
//
// Thread-safety: NOT thread-safe. Must be called from single goroutine.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named subsystem.
// The same subsystem name always returns the same *rand.Rand instance (cached).
// Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(int64(p.key) ^ fnv1a64(name)))
	p.subsystems[name] = rng
	return rng
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
