package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sim "github.com/terminal-sim/terminal-sim/sim"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestResolveConfig_DefaultsWhenNothingSet(t *testing.T) {
	cfg, err := resolveConfig(viper.New())
	require.NoError(t, err)
	assert.Equal(t, sim.NewSimulationConfig(), cfg)
}

func TestResolveConfig_ExplicitValuesOverrideScenario(t *testing.T) {
	// GIVEN a scenario file and explicit overrides for some of its keys
	path := writeScenario(t, "duration: 30s\nmax_flights: 4\npools:\n  check_in: 2\n")
	v := viper.New()
	v.Set("config", path)
	v.Set("max-flights", 6)
	v.Set("security-check", 5)
	v.Set("seed", int64(9))

	// WHEN the configuration is resolved
	cfg, err := resolveConfig(v)

	// THEN explicit values win, the file fills the rest
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Duration)
	assert.Equal(t, 6, cfg.MaxFlights)
	assert.Equal(t, 2, cfg.PoolSizes[sim.StageCheckIn])
	assert.Equal(t, 5, cfg.PoolSizes[sim.StageSecurityCheck])
	assert.Equal(t, int64(9), cfg.Seed)
}

func TestResolveConfig_EnvironmentOverride(t *testing.T) {
	t.Setenv("TERMINAL_SIM_RANDOM_EVENT_PROBABILITY", "0.4")
	t.Setenv("TERMINAL_SIM_DURATION", "12s")

	cfg, err := resolveConfig(newSettings())

	require.NoError(t, err)
	assert.Equal(t, 0.4, cfg.RandomEventProbability)
	assert.Equal(t, 12*time.Second, cfg.Duration)
}

func TestResolveConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		set  func(t *testing.T, v *viper.Viper)
	}{
		{"duration out of range", func(_ *testing.T, v *viper.Viper) { v.Set("duration", "2s") }},
		{"probability out of range", func(_ *testing.T, v *viper.Viper) { v.Set("random-event-probability", 2.0) }},
		{"pool out of range", func(_ *testing.T, v *viper.Viper) { v.Set("check-in", 0) }},
		{"missing scenario", func(t *testing.T, v *viper.Viper) { v.Set("config", filepath.Join(t.TempDir(), "none.yaml")) }},
		{"invalid scenario", func(t *testing.T, v *viper.Viper) { v.Set("config", writeScenario(t, "max_flights: 99\n")) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := viper.New()
			tc.set(t, v)
			_, err := resolveConfig(v)
			assert.Error(t, err)
		})
	}
}

func TestValidateScenario(t *testing.T) {
	assert.NoError(t, validateScenario(writeScenario(t, "duration: 90s\nrandom_event_probability: 0.2\n")))
	assert.Error(t, validateScenario(writeScenario(t, "duraton: 90s\n")))
	assert.Error(t, validateScenario(writeScenario(t, "pools:\n  boarding: 2\n")))
}
