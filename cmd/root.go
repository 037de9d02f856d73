package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	sim "github.com/terminal-sim/terminal-sim/sim"
	"github.com/terminal-sim/terminal-sim/sim/bus"
	"github.com/terminal-sim/terminal-sim/sim/trace"
)

// envPrefix namespaces environment overrides, e.g. TERMINAL_SIM_DURATION=30s.
const envPrefix = "TERMINAL_SIM"

// settings resolves run options: flag > environment > scenario file > defaults.
var settings = newSettings()

func newSettings() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "terminal-sim",
	Short: "Discrete-event simulator of passenger flow through an airport terminal",
}

// runCmd executes the simulation using the resolved configuration
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the terminal simulation",
	Run: func(cmd *cobra.Command, args []string) {
		logLevel := settings.GetString("log")
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		traceLevel := settings.GetString("trace")
		if !trace.IsValidTraceLevel(traceLevel) {
			logrus.Fatalf("Invalid trace level: %s (valid: none, decisions)", traceLevel)
		}

		cfg, err := resolveConfig(settings)
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}

		var opts []sim.Option
		var st *trace.SimulationTrace
		if trace.TraceLevel(traceLevel) == trace.TraceLevelDecisions {
			st = trace.NewSimulationTrace(trace.TraceLevelDecisions)
			opts = append(opts, sim.WithTrace(st))
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		out := cmd.OutOrStdout()
		var closeBus func()
		if settings.GetBool("follow") {
			ps := bus.NewSynchronous()
			wait, err := bus.Follow(ctx, ps, newEventPrinter(out))
			if err != nil {
				logrus.Fatalf("Failed to follow events: %v", err)
			}
			opts = append(opts, sim.WithNotifier(bus.NewNotifier(ps)))
			closeBus = func() {
				if err := ps.Close(); err != nil {
					logrus.Warnf("closing event bus: %v", err)
				}
				wait()
			}
		}

		c, err := sim.NewCoordinator(cfg, opts...)
		if err != nil {
			logrus.Fatalf("Failed to build simulation: %v", err)
		}

		startTime := time.Now()
		if err := c.Run(ctx); err != nil {
			if !errors.Is(err, context.Canceled) {
				logrus.Fatalf("Simulation failed: %v", err)
			}
			logrus.Warnf("Simulation interrupted at tick %d", c.Now())
		}
		if closeBus != nil {
			closeBus()
		}

		c.PrintReport(out)
		if st != nil {
			printTraceSummary(out, trace.Summarize(st))
		}
		logrus.Infof("Simulation complete in %s.", time.Since(startTime))
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	defaults := sim.NewSimulationConfig()

	runCmd.Flags().String("config", "", "YAML scenario file overlaid on the defaults")
	runCmd.Flags().Duration("duration", defaults.Duration, "Simulated duration (5s - 600s)")
	runCmd.Flags().Int("max-flights", defaults.MaxFlights, "Maximum concurrently open flights (3 - 10)")
	runCmd.Flags().Float64("random-event-probability", defaults.RandomEventProbability, "Probability of a side event per hand-off (0.01 - 1.0)")
	runCmd.Flags().Int("generators", defaults.PoolSizes[sim.StageGenerate], "Number of passenger generators (1 - 10)")
	runCmd.Flags().Int("check-in", defaults.PoolSizes[sim.StageCheckIn], "Number of check-in desks (1 - 10)")
	runCmd.Flags().Int("security-check", defaults.PoolSizes[sim.StageSecurityCheck], "Number of security lanes (1 - 10)")
	runCmd.Flags().Int64("seed", defaults.Seed, "Seed for all random streams")
	runCmd.Flags().String("log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().String("trace", string(trace.TraceLevelNone), "Decision trace level (none, decisions)")
	runCmd.Flags().Bool("follow", false, "Print boarding, missed, departure and rejection events as they happen")

	if err := settings.BindPFlags(runCmd.Flags()); err != nil {
		logrus.Fatalf("binding flags: %v", err)
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(defaultsCmd)
}
