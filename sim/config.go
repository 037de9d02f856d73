package sim

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"time"

	"github.com/terminal-sim/terminal-sim/sim/sampling"
)

// Configuration bounds and defaults.
const (
	DefaultDuration = 60 * time.Second
	MinDuration     = 5 * time.Second
	MaxDuration     = 600 * time.Second

	DefaultMaxFlights = 10
	MinMaxFlights     = 3
	MaxMaxFlights     = 10

	DefaultRandomEventProbability = 0.1
	MinRandomEventProbability     = 0.01
	MaxRandomEventProbability     = 1.0

	MinPoolSize = 1
	MaxPoolSize = 10

	DefaultSeed = 42

	// TicksPerMilli converts sampled millisecond delays into kernel ticks (µs).
	TicksPerMilli = 1000
)

// ErrOutOfRange is wrapped by every configuration error caused by a value outside
// its documented range.
var ErrOutOfRange = errors.New("value out of range")

// SimulationConfig groups the knobs of one simulation run.
// Fields may be read directly; use the setters to change them so that values are
// validated. A setter that returns an error leaves the config unchanged.
type SimulationConfig struct {
	Duration               time.Duration              // virtual run length
	MaxFlights             int                        // maximum concurrently open flights
	RandomEventProbability float64                    // chance of a detour per hand-off (0 disables)
	PoolSizes              map[StageKind]int          // server instances per configurable stage
	Delays                 map[StageKind]sampling.DistSpec // service/inter-arrival delay per configurable stage (ms)
	SideEventDelay         sampling.DistSpec          // delay of every side event (ms)
	FlightPreparation      sampling.DistSpec          // boarding window of a flight (ms)
	FlightDeparture        sampling.DistSpec          // taxi/departure time of a flight (ms)
	Seed                   int64
}

// NewSimulationConfig returns the default configuration.
func NewSimulationConfig() SimulationConfig {
	return SimulationConfig{
		Duration:               DefaultDuration,
		MaxFlights:             DefaultMaxFlights,
		RandomEventProbability: DefaultRandomEventProbability,
		PoolSizes: map[StageKind]int{
			StageGenerate:      1,
			StageCheckIn:       3,
			StageSecurityCheck: 3,
		},
		Delays: map[StageKind]sampling.DistSpec{
			StageGenerate:      sampling.ChiSquare(8),
			StageCheckIn:       sampling.ChiSquare(7),
			StageSecurityCheck: sampling.ChiSquare(7),
		},
		SideEventDelay:    sampling.ChiSquare(1),
		FlightPreparation: sampling.ChiSquare(20000),
		FlightDeparture:   sampling.ChiSquare(10000),
		Seed:              DefaultSeed,
	}
}

// Clone returns a deep copy of the config.
func (c SimulationConfig) Clone() SimulationConfig {
	out := c
	out.PoolSizes = maps.Clone(c.PoolSizes)
	out.Delays = maps.Clone(c.Delays)
	return out
}

// Horizon returns the run length in kernel ticks.
func (c SimulationConfig) Horizon() int64 {
	return c.Duration.Microseconds()
}

// SetDuration sets the virtual run length.
func (c *SimulationConfig) SetDuration(d time.Duration) error {
	if d < MinDuration || d > MaxDuration {
		return fmt.Errorf("%w: simulation duration %s, valid range %s - %s", ErrOutOfRange, d, MinDuration, MaxDuration)
	}
	c.Duration = d
	return nil
}

// SetMaxFlights sets the maximum number of concurrently open flights.
func (c *SimulationConfig) SetMaxFlights(n int) error {
	if n < MinMaxFlights || n > MaxMaxFlights {
		return fmt.Errorf("%w: max flights %d, valid range %d - %d", ErrOutOfRange, n, MinMaxFlights, MaxMaxFlights)
	}
	c.MaxFlights = n
	return nil
}

// SetRandomEventProbability sets the detour probability per hand-off.
func (c *SimulationConfig) SetRandomEventProbability(p float64) error {
	if math.IsNaN(p) || p < MinRandomEventProbability || p > MaxRandomEventProbability {
		return fmt.Errorf("%w: random event probability %v, valid range %.2f - %.2f",
			ErrOutOfRange, p, MinRandomEventProbability, MaxRandomEventProbability)
	}
	c.RandomEventProbability = p
	return nil
}

// SetPoolSize sets the number of server instances of a configurable stage.
func (c *SimulationConfig) SetPoolSize(stage StageKind, n int) error {
	if !isConfigurable(stage) {
		return fmt.Errorf("stage %s has no configurable pool", stage)
	}
	if n < MinPoolSize || n > MaxPoolSize {
		return fmt.Errorf("%w: %s pool size %d, valid range %d - %d", ErrOutOfRange, stage, n, MinPoolSize, MaxPoolSize)
	}
	if c.PoolSizes == nil {
		c.PoolSizes = make(map[StageKind]int)
	}
	c.PoolSizes[stage] = n
	return nil
}

// SetDelay sets the delay distribution of a configurable stage.
func (c *SimulationConfig) SetDelay(stage StageKind, spec sampling.DistSpec) error {
	if !isConfigurable(stage) {
		return fmt.Errorf("stage %s has no configurable delay", stage)
	}
	if _, err := sampling.NewDelaySampler(spec); err != nil {
		return fmt.Errorf("%s delay: %w", stage, err)
	}
	if c.Delays == nil {
		c.Delays = make(map[StageKind]sampling.DistSpec)
	}
	c.Delays[stage] = spec
	return nil
}

// SetSideEventDelay sets the delay distribution shared by all side events.
func (c *SimulationConfig) SetSideEventDelay(spec sampling.DistSpec) error {
	if _, err := sampling.NewDelaySampler(spec); err != nil {
		return fmt.Errorf("side event delay: %w", err)
	}
	c.SideEventDelay = spec
	return nil
}

// SetFlightDelays sets the preparation and departure distributions of new flights.
func (c *SimulationConfig) SetFlightDelays(preparation, departure sampling.DistSpec) error {
	if _, err := sampling.NewDelaySampler(preparation); err != nil {
		return fmt.Errorf("flight preparation delay: %w", err)
	}
	if _, err := sampling.NewDelaySampler(departure); err != nil {
		return fmt.Errorf("flight departure delay: %w", err)
	}
	c.FlightPreparation = preparation
	c.FlightDeparture = departure
	return nil
}

// Validate re-checks every field. A RandomEventProbability of exactly 0 is
// accepted and disables detours.
func (c SimulationConfig) Validate() error {
	if c.Duration < MinDuration || c.Duration > MaxDuration {
		return fmt.Errorf("%w: simulation duration %s, valid range %s - %s", ErrOutOfRange, c.Duration, MinDuration, MaxDuration)
	}
	if c.MaxFlights < MinMaxFlights || c.MaxFlights > MaxMaxFlights {
		return fmt.Errorf("%w: max flights %d, valid range %d - %d", ErrOutOfRange, c.MaxFlights, MinMaxFlights, MaxMaxFlights)
	}
	p := c.RandomEventProbability
	if p != 0 && (math.IsNaN(p) || p < MinRandomEventProbability || p > MaxRandomEventProbability) {
		return fmt.Errorf("%w: random event probability %v, valid range %.2f - %.2f",
			ErrOutOfRange, p, MinRandomEventProbability, MaxRandomEventProbability)
	}
	for _, stage := range ConfigurableStages {
		n, ok := c.PoolSizes[stage]
		if !ok {
			return fmt.Errorf("missing pool size for stage %s", stage)
		}
		if n < MinPoolSize || n > MaxPoolSize {
			return fmt.Errorf("%w: %s pool size %d, valid range %d - %d", ErrOutOfRange, stage, n, MinPoolSize, MaxPoolSize)
		}
		spec, ok := c.Delays[stage]
		if !ok {
			return fmt.Errorf("missing delay distribution for stage %s", stage)
		}
		if _, err := sampling.NewDelaySampler(spec); err != nil {
			return fmt.Errorf("%s delay: %w", stage, err)
		}
	}
	if _, err := sampling.NewDelaySampler(c.SideEventDelay); err != nil {
		return fmt.Errorf("side event delay: %w", err)
	}
	if _, err := sampling.NewDelaySampler(c.FlightPreparation); err != nil {
		return fmt.Errorf("flight preparation delay: %w", err)
	}
	if _, err := sampling.NewDelaySampler(c.FlightDeparture); err != nil {
		return fmt.Errorf("flight departure delay: %w", err)
	}
	return nil
}

func isConfigurable(stage StageKind) bool {
	return stage >= 0 && stage < numStages && stage.Spec().Configurable
}

// ticksFromMillis converts a sampled delay in milliseconds to kernel ticks.
func ticksFromMillis(ms float64) int64 {
	t := math.Round(ms * TicksPerMilli)
	if t >= math.MaxInt64/2 {
		return math.MaxInt64 / 2
	}
	if t < 0 {
		return 0
	}
	return int64(t)
}
