package sim

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/terminal-sim/terminal-sim/sim/sampling"
)

// ScenarioFile is the YAML form of a SimulationConfig. Every field is optional;
// absent fields keep the value of the config the file is applied to.
type ScenarioFile struct {
	Duration               string                       `yaml:"duration,omitempty"` // e.g. "60s"
	MaxFlights             *int                         `yaml:"max_flights,omitempty"`
	RandomEventProbability *float64                     `yaml:"random_event_probability,omitempty"`
	Seed                   *int64                       `yaml:"seed,omitempty"`
	Pools                  map[string]int               `yaml:"pools,omitempty"`  // stage name → instances
	Delays                 map[string]sampling.DistSpec `yaml:"delays,omitempty"` // stage name, "side_event", "flight_preparation" or "flight_departure"
}

// Delay keys in a scenario file besides configurable stage names.
const (
	delayKeySideEvent         = "side_event"
	delayKeyFlightPreparation = "flight_preparation"
	delayKeyFlightDeparture   = "flight_departure"
)

// LoadScenarioFile reads and parses a YAML scenario file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadScenarioFile(path string) (*ScenarioFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses YAML scenario content.
func ParseScenario(data []byte) (*ScenarioFile, error) {
	var sf ScenarioFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sf); err != nil {
		return nil, fmt.Errorf("parsing scenario file: %w", err)
	}
	return &sf, nil
}

// Apply overlays the scenario on cfg through the validating setters. On error cfg
// is left unchanged.
func (sf *ScenarioFile) Apply(cfg *SimulationConfig) error {
	next := cfg.Clone()
	if sf.Duration != "" {
		d, err := time.ParseDuration(sf.Duration)
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		if err := next.SetDuration(d); err != nil {
			return err
		}
	}
	if sf.MaxFlights != nil {
		if err := next.SetMaxFlights(*sf.MaxFlights); err != nil {
			return err
		}
	}
	if sf.RandomEventProbability != nil {
		if err := next.SetRandomEventProbability(*sf.RandomEventProbability); err != nil {
			return err
		}
	}
	if sf.Seed != nil {
		next.Seed = *sf.Seed
	}
	for name, n := range sf.Pools {
		stage, err := ParseStageKind(name)
		if err != nil {
			return fmt.Errorf("pools: %w", err)
		}
		if err := next.SetPoolSize(stage, n); err != nil {
			return err
		}
	}
	for name, spec := range sf.Delays {
		if err := applyDelay(&next, name, spec); err != nil {
			return err
		}
	}
	*cfg = next
	return nil
}

func applyDelay(cfg *SimulationConfig, name string, spec sampling.DistSpec) error {
	switch name {
	case delayKeySideEvent:
		return cfg.SetSideEventDelay(spec)
	case delayKeyFlightPreparation:
		return cfg.SetFlightDelays(spec, cfg.FlightDeparture)
	case delayKeyFlightDeparture:
		return cfg.SetFlightDelays(cfg.FlightPreparation, spec)
	}
	stage, err := ParseStageKind(name)
	if err != nil {
		return fmt.Errorf("delays: %w", err)
	}
	return cfg.SetDelay(stage, spec)
}

// ScenarioFromConfig renders cfg as a complete scenario file.
func ScenarioFromConfig(cfg SimulationConfig) *ScenarioFile {
	maxFlights := cfg.MaxFlights
	p := cfg.RandomEventProbability
	seed := cfg.Seed
	sf := &ScenarioFile{
		Duration:               cfg.Duration.String(),
		MaxFlights:             &maxFlights,
		RandomEventProbability: &p,
		Seed:                   &seed,
		Pools:                  make(map[string]int),
		Delays:                 make(map[string]sampling.DistSpec),
	}
	for _, stage := range ConfigurableStages {
		sf.Pools[stage.String()] = cfg.PoolSizes[stage]
		sf.Delays[stage.String()] = cfg.Delays[stage]
	}
	sf.Delays[delayKeySideEvent] = cfg.SideEventDelay
	sf.Delays[delayKeyFlightPreparation] = cfg.FlightPreparation
	sf.Delays[delayKeyFlightDeparture] = cfg.FlightDeparture
	return sf
}
