package cmd

import (
	"fmt"

	"github.com/spf13/viper"

	sim "github.com/terminal-sim/terminal-sim/sim"
)

// poolKeys maps pool-size settings to their stage.
var poolKeys = []struct {
	key   string
	stage sim.StageKind
}{
	{"generators", sim.StageGenerate},
	{"check-in", sim.StageCheckIn},
	{"security-check", sim.StageSecurityCheck},
}

// resolveConfig builds the run configuration: defaults, then the scenario file
// named by "config", then every setting explicitly given as a flag or environment
// variable. Each value passes through the validating setters.
func resolveConfig(v *viper.Viper) (sim.SimulationConfig, error) {
	cfg := sim.NewSimulationConfig()
	if path := v.GetString("config"); path != "" {
		sf, err := sim.LoadScenarioFile(path)
		if err != nil {
			return cfg, err
		}
		if err := sf.Apply(&cfg); err != nil {
			return cfg, fmt.Errorf("scenario %s: %w", path, err)
		}
	}
	if v.IsSet("duration") {
		if err := cfg.SetDuration(v.GetDuration("duration")); err != nil {
			return cfg, err
		}
	}
	if v.IsSet("max-flights") {
		if err := cfg.SetMaxFlights(v.GetInt("max-flights")); err != nil {
			return cfg, err
		}
	}
	if v.IsSet("random-event-probability") {
		if err := cfg.SetRandomEventProbability(v.GetFloat64("random-event-probability")); err != nil {
			return cfg, err
		}
	}
	for _, pk := range poolKeys {
		if v.IsSet(pk.key) {
			if err := cfg.SetPoolSize(pk.stage, v.GetInt(pk.key)); err != nil {
				return cfg, err
			}
		}
	}
	if v.IsSet("seed") {
		cfg.Seed = v.GetInt64("seed")
	}
	return cfg, cfg.Validate()
}
