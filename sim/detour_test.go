package sim

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomEventInjector_RateWithinThreeStandardErrors(t *testing.T) {
	// GIVEN p = 0.1 and 20,000 routing decisions
	const (
		p = 0.1
		n = 20000
	)
	inj := NewRandomEventInjector(p, NewPartitionedRNG(DefaultSeed).ForSubsystem(SubsystemRandomEvents))

	// WHEN every decision is drawn
	perSide := make(map[StageKind]int)
	for i := 0; i < n; i++ {
		rt := inj.Route(StageCheckIn, StageSecurityCheck)
		if rt.IsDetour() {
			perSide[rt.Side]++
			assert.Equal(t, StageSecurityCheck, rt.Next)
		}
	}

	// THEN the substitution rate is p ± 3 standard errors
	decisions, substitutions := inj.Stats()
	require.Equal(t, uint64(n), decisions)
	rate := float64(substitutions) / n
	se := math.Sqrt(p * (1 - p) / n)
	assert.InDelta(t, p, rate, 3*se)
	assert.Len(t, perSide, len(SideEvents), "every side event is chosen")
	for _, side := range SideEvents {
		assert.True(t, side.IsSideEvent())
	}
}

func TestRandomEventInjector_Route(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))

	t.Run("zero probability is always direct", func(t *testing.T) {
		inj := NewRandomEventInjector(0, rng)
		for i := 0; i < 100; i++ {
			assert.Equal(t, Direct(StageCheckIn), inj.Route(StageGenerate, StageCheckIn))
		}
		decisions, _ := inj.Stats()
		assert.Zero(t, decisions)
	})

	t.Run("probability one always detours", func(t *testing.T) {
		inj := NewRandomEventInjector(1, rng)
		for i := 0; i < 100; i++ {
			rt := inj.Route(StageSecurityCheck, StageBoarding)
			require.True(t, rt.IsDetour())
			assert.True(t, rt.Side.IsSideEvent())
			assert.Equal(t, StageBoarding, rt.Next)
		}
	})

	t.Run("side events are never detoured", func(t *testing.T) {
		inj := NewRandomEventInjector(1, rng)
		for _, side := range SideEvents {
			assert.False(t, inj.Route(side, StageCheckIn).IsDetour())
		}
	})
}

func TestSideEventProcess_ExecutesHandOffOnce(t *testing.T) {
	// GIVEN a side event carrying a passenger to boarding with no flights open
	c := newTestCoordinator(t, testConfig())
	side := &SideEventProcess{
		kind:      StageToilet,
		from:      StageSecurityCheck,
		then:      StageBoarding,
		passenger: NewPassenger("p1", NoFlight, 0),
		name:      "toilet_p1",
		sampler:   constSampler(5),
		rng:       rand.New(rand.NewPCG(1, 1)),
		coord:     c,
	}
	c.trackDetour(side)
	c.kernel.Spawn(side)
	assert.True(t, side.InFlight())
	assert.False(t, side.Executed())

	// WHEN the kernel runs it to completion
	require.NoError(t, c.kernel.Run(context.Background()))

	// THEN it handed off exactly once after its delay and stays executed
	assert.True(t, side.Executed())
	assert.False(t, side.InFlight())
	assert.Equal(t, int64(5000), c.kernel.Now())
	assert.Equal(t, uint64(1), c.flights.Counts().UnattributedMissed)
	assert.Equal(t, 1, c.metrics.SideEvent(StageToilet).Len())
	assert.Empty(t, c.Detours())

	side.Resume(c.kernel)
	side.Interrupt(c.kernel)
	assert.True(t, side.Executed())
	assert.Equal(t, uint64(1), c.flights.Counts().UnattributedMissed)
	assert.Zero(t, c.metrics.Abandoned.Load())
}

func TestSideEventProcess_InterruptAbandonsPassenger(t *testing.T) {
	c := newTestCoordinator(t, testConfig())
	side := &SideEventProcess{
		kind:      StageDinner,
		then:      StageCheckIn,
		passenger: NewPassenger("p1", NoFlight, 0),
		name:      "dinner_p1",
		sampler:   constSampler(5),
		rng:       rand.New(rand.NewPCG(1, 1)),
		coord:     c,
	}
	c.kernel.Spawn(side)

	require.NoError(t, c.kernel.ResumeThenTerminate(side))

	assert.False(t, side.Executed())
	assert.False(t, side.InFlight())
	assert.Equal(t, uint64(1), c.metrics.Abandoned.Load())
}

func TestSideEventProcess_SamplerFailureCounted(t *testing.T) {
	c := newTestCoordinator(t, testConfig())
	side := &SideEventProcess{
		kind:      StageShopping,
		then:      StageBoarding,
		passenger: NewPassenger("p1", NoFlight, 0),
		name:      "shopping_p1",
		sampler:   &panicOnceSampler{value: 1},
		rng:       rand.New(rand.NewPCG(1, 1)),
		coord:     c,
	}
	c.kernel.Spawn(side)
	require.NoError(t, c.kernel.Run(context.Background()))

	assert.False(t, side.Executed())
	assert.False(t, side.InFlight())
	assert.Equal(t, uint64(1), c.metrics.Failures.Load())
	assert.Zero(t, c.flights.Counts().UnattributedMissed)
}
