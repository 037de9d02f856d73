package sim

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
)

// === Subsystem Constants ===

const (
	// SubsystemGenerator drives passenger generation (flight choice, inter-arrival delays).
	SubsystemGenerator = "generator"

	// SubsystemRandomEvents drives detour decisions and side-event choice.
	SubsystemRandomEvents = "random_events"

	// SubsystemFlights drives flight preparation and departure delays.
	SubsystemFlights = "flights"
)

// SubsystemInstance returns the subsystem name for one server instance of a stage.
func SubsystemInstance(stage StageKind, idx int) string {
	return fmt.Sprintf("%s_%d", stage, idx)
}

// === PartitionedRNG ===

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem.
//
// Derivation formula: masterSeed XOR fnv1a64(subsystemName). Adding a new
// subsystem never perturbs the streams of existing ones.
//
// Thread-safety: NOT thread-safe. Must be called from single goroutine.
type PartitionedRNG struct {
	seed       int64
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a master seed.
func NewPartitionedRNG(seed int64) *PartitionedRNG {
	return &PartitionedRNG{
		seed:       seed,
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
	derived := uint64(p.seed ^ fnv1a64(name))
	rng := rand.New(rand.NewPCG(derived, uint64(p.seed)))
	p.subsystems[name] = rng
	return rng
}

// Seed returns the master seed.
func (p *PartitionedRNG) Seed() int64 {
	return p.seed
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
