package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	sim "github.com/terminal-sim/terminal-sim/sim"
)

// validateCmd checks scenario files without running them
var validateCmd = &cobra.Command{
	Use:   "validate <scenario.yaml>...",
	Short: "Check that scenario files parse and every value is in range",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			if err := validateScenario(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", path)
		}
		return nil
	},
}

func validateScenario(path string) error {
	sf, err := sim.LoadScenarioFile(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	cfg := sim.NewSimulationConfig()
	if err := sf.Apply(&cfg); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
