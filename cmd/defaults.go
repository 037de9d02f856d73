package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	sim "github.com/terminal-sim/terminal-sim/sim"
)

// defaultsCmd prints the default configuration as a scenario file
var defaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Print the default scenario as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(sim.ScenarioFromConfig(sim.NewSimulationConfig()))
		if err != nil {
			return fmt.Errorf("encoding defaults: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}
