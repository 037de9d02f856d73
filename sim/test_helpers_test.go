package sim

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/terminal-sim/terminal-sim/sim/sampling"
)

// constSampler always returns the same delay in milliseconds.
type constSampler float64

func (s constSampler) Sample(*rand.Rand) float64 { return float64(s) }

// panicOnceSampler panics on its first call, then returns value.
type panicOnceSampler struct {
	value    float64
	panicked bool
}

func (s *panicOnceSampler) Sample(*rand.Rand) float64 {
	if !s.panicked {
		s.panicked = true
		panic("sampler failure")
	}
	return s.value
}

// testConfig returns a 20 s run with 1 generator, 3 check-in and 3 security
// instances, no random events, and flights short enough to depart within the run.
func testConfig() SimulationConfig {
	cfg := NewSimulationConfig()
	cfg.Duration = 20 * time.Second
	cfg.RandomEventProbability = 0
	cfg.PoolSizes[StageGenerate] = 1
	cfg.PoolSizes[StageCheckIn] = 3
	cfg.PoolSizes[StageSecurityCheck] = 3
	cfg.FlightPreparation = sampling.ChiSquare(4000)
	cfg.FlightDeparture = sampling.ChiSquare(2000)
	return cfg
}

func newTestCoordinator(t *testing.T, cfg SimulationConfig, opts ...Option) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(cfg, opts...)
	require.NoError(t, err)
	return c
}
