package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/uber-go/tally/v4"

	"github.com/simdynlb/simdynlb/sim"
	"github.com/simdynlb/simdynlb/sim/trace"
)

var (
	// CLI flags overriding the context file
	policy     string // Balancing policy
	seed       int64  // Seed for all randomized costs and matching
	horizon    int64  // Tick cap per iteration, 0 for none
	traceLevel string // Decision trace verbosity
	verify     bool   // Check task conservation every tick

	// CLI flags for output
	logLevel string // Log verbosity level
	queueCSV string // Per-tick queue lengths CSV path
	tasksCSV string // Completed task records CSV path
)

// outputOptions selects the files written after each iteration.
type outputOptions struct {
	QueueCSV string
	TasksCSV string
}

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "simdynlb",
	Short: "Tick-driven simulator for dynamic load balancing of tasks across ranks",
}

// runCmd executes the simulation described by a context file
var runCmd = &cobra.Command{
	Use:   "run <config>",
	Short: "Run the load balancing simulation",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		loadEnvironment()

		fc, err := LoadConfig(args[0])
		if err != nil {
			logrus.Fatalf("Failed to load config %s: %v", args[0], err)
		}
		cfg := fc.SimConfig()
		applyFlagOverrides(cmd, &cfg)
		if err := cfg.Validate(); err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}

		logrus.Infof("Starting simulation: policy=%s ranks=%d slow=%d tasks/rank=%d iterations=%d seed=%d",
			cfg.Policy, cfg.Topology.NumRanks, cfg.Topology.NumSlowRanks, cfg.Topology.TasksPerRank, cfg.Iterations, cfg.Seed)

		if err := runSimulation(cfg, outputOptions{QueueCSV: queueCSV, TasksCSV: tasksCSV}, os.Stdout); err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		logrus.Info("Simulation complete.")
	},
}

// applyFlagOverrides copies explicitly set flags over file values.
func applyFlagOverrides(cmd *cobra.Command, cfg *sim.SimConfig) {
	flags := cmd.Flags()
	if flags.Changed("policy") {
		cfg.Policy = sim.Policy(policy)
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("horizon") {
		cfg.Horizon = horizon
	}
	if flags.Changed("verify") {
		cfg.Verify = verify
	}
	cfg.TraceLevel = trace.TraceLevel(traceLevel)
}

// runSimulation runs every iteration, printing its statistics to w and
// writing the requested exports.
func runSimulation(cfg sim.SimConfig, out outputOptions, w io.Writer) error {
	for i := 0; i < cfg.Iterations; i++ {
		fmt.Fprintln(w, "-------------------------------------------")
		fmt.Fprintf(w, "ITERATION: %d\n", i)
		fmt.Fprintln(w, "-------------------------------------------")

		scope, closer := tally.NewRootScope(tally.ScopeOptions{
			Prefix:   "simdynlb",
			Tags:     map[string]string{"policy": string(cfg.Policy), "iteration": strconv.Itoa(i)},
			Reporter: tally.NullStatsReporter,
		}, 0)
		s, err := sim.NewSimulator(cfg, i, scope)
		if err != nil {
			closer.Close()
			return err
		}
		res := s.Run()
		closer.Close()

		res.Metrics.Print(w, cfg.Topology.ClockRate)
		if cfg.TraceLevel == trace.TraceLevelDecisions {
			printTraceSummary(w, trace.Summarize(res.Trace))
		}
		if err := writeExport(iterationPath(out.QueueCSV, i, cfg.Iterations), res.Trace, trace.WriteQueueCSV); err != nil {
			return err
		}
		if err := writeExport(iterationPath(out.TasksCSV, i, cfg.Iterations), res.Trace, trace.WriteTaskCSV); err != nil {
			return err
		}
	}
	return nil
}

func printTraceSummary(w io.Writer, s *trace.TraceSummary) {
	fmt.Fprintln(w, "=== Trace Summary ===")
	fmt.Fprintf(w, "Completed tasks      : %d (migrated %d)\n", s.CompletedTasks, s.MigratedTasks)
	fmt.Fprintf(w, "Queue length         : mean %.3f, peak %d\n", s.MeanQueueLength, s.PeakQueueLength)
	fmt.Fprintf(w, "Transfer time        : mean %.3f, max %d\n", s.MeanTransferTime, s.MaxTransferTime)
	for _, outcome := range []string{sim.OutcomeArrived, sim.OutcomeCancelled, sim.OutcomeAborted} {
		fmt.Fprintf(w, "Migrations %-10s: %d\n", outcome, s.Outcomes[outcome])
	}
}

// iterationPath suffixes path with the iteration index when there are
// several iterations. An empty path stays empty.
func iterationPath(path string, iteration, iterations int) string {
	if path == "" || iterations <= 1 {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s_iter%d%s", strings.TrimSuffix(path, ext), iteration, ext)
}

func writeExport(path string, st *trace.SimulationTrace, write func(io.Writer, *trace.SimulationTrace) error) error {
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f, st); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	logrus.Infof("Wrote %s", path)
	return nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().StringVar(&policy, "policy", string(sim.PolicyWorkStealing), "Balancing policy (none, work-stealing, reactive-offload, hybrid)")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "Seed for randomized costs and steal matching")
	runCmd.Flags().Int64Var(&horizon, "horizon", 0, "Stop each iteration after this many ticks (0 for no limit)")
	runCmd.Flags().StringVar(&traceLevel, "trace-level", string(trace.TraceLevelNone), "Trace verbosity (none, decisions)")
	runCmd.Flags().BoolVar(&verify, "verify", false, "Check task ownership and conservation every tick")
	runCmd.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	// Exports
	runCmd.Flags().StringVar(&queueCSV, "queue-csv", "", "Write per-tick queue lengths per rank to this CSV file")
	runCmd.Flags().StringVar(&tasksCSV, "tasks-csv", "", "Write completed task records to this CSV file")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
