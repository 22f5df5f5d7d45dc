package cmd

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/ivi-bench/platform-sim/sim"
	"github.com/ivi-bench/platform-sim/sim/workload"
)

var (
	// Simulation controls
	mode     string // Platform mode (rt, multitask, hybrid)
	horizon  int64  // Total simulation time (in ticks)
	seed     int64  // Seed for deterministic workload and launch latency
	logLevel string // Log verbosity level

	// RT partition configs
	rtCPUs      int    // CPU units in the real-time partition
	rtPeriod    int64  // Admission budget window (in ticks)
	tieBreak    string // Ready-set tie-break policy
	urgentSlack int64  // Deadline-urgency boost threshold (0 = off)
	urgentBoost int    // Priority levels added to urgent submissions

	// Multitask partition configs
	mtCPUs        int    // CPU units in the multitask partition
	quantum       int64  // Fairness quantum (in ticks)
	launchLatency int64  // Base cold-start latency (in ticks)
	launchJitter  int64  // Uniform +/- jitter on the cold start
	eviction      string // Eviction policy (lru, fifo)

	// Shared resources and policies
	memoryCapacity    int64   // Shared memory budget
	autoRTPriority    int     // Hybrid auto-placement threshold
	admissionPolicy   string  // Platform admission policy
	admissionCapacity float64 // Token-bucket capacity
	admissionRefill   float64 // Token-bucket refill per tick
	windowTicks       int64   // KPI window width
	traceLevel        string  // Decision trace level

	// Workload: scenario file or synthetic generation
	scenarioPath string  // YAML scenario of explicit submissions
	numTasks     int     // Number of synthetic tasks
	rate         float64 // Task arrivals per tick
	arrival      string  // Arrival process (fixed, poisson)
	priorityMin  int     // Min synthetic priority
	priorityMax  int     // Max synthetic priority
	costMean     float64 // Average CPU cost (ticks)
	costStdev    float64 // Stdev CPU cost
	costMin      int64   // Min CPU cost
	costMax      int64   // Max CPU cost
	memMean      float64 // Average memory footprint
	memStdev     float64 // Stdev memory footprint
	memMin       int64   // Min memory footprint
	memMax       int64   // Max memory footprint
	slackMin     int64   // Min deadline slack (ticks)
	slackMax     int64   // Max deadline slack (0 = no deadlines)
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "platsim",
	Short: "Discrete-tick simulator for IVI platform scheduling behavior",
}

// runCmd executes the simulation using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the platform simulation",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		cfg := sim.DefaultConfig()
		cfg.Mode = sim.PlatformMode(mode)
		cfg.RT = sim.RTConfig{
			CPUUnits:         rtCPUs,
			PeriodTicks:      rtPeriod,
			TieBreak:         tieBreak,
			UrgentSlackTicks: urgentSlack,
			UrgencyBoost:     urgentBoost,
		}
		cfg.Multitask = sim.MultitaskConfig{
			CPUUnits:      mtCPUs,
			Quantum:       quantum,
			LaunchLatency: launchLatency,
			LaunchJitter:  launchJitter,
			Eviction:      eviction,
		}
		cfg.MemoryCapacity = memoryCapacity
		cfg.AutoRTPriority = autoRTPriority
		cfg.AdmissionPolicy = admissionPolicy
		cfg.AdmissionCapacity = admissionCapacity
		cfg.AdmissionRefill = admissionRefill
		cfg.KPI.WindowTicks = windowTicks
		cfg.Seed = seed
		cfg.TraceLevel = traceLevel

		coord, err := sim.NewCoordinator(cfg)
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}

		var subs []workload.Submission
		if scenarioPath != "" {
			subs, err = LoadScenario(scenarioPath)
			if err != nil {
				logrus.Fatalf("Unable to read scenario %s: %v", scenarioPath, err)
			}
		} else {
			rng := sim.NewPartitionedRNG(sim.NewSimulationKey(seed)).ForSubsystem(sim.SubsystemWorkload)
			subs = workload.Generate(rng, workload.Spec{
				Count:       numTasks,
				Arrival:     arrival,
				Rate:        rate,
				PriorityMin: priorityMin,
				PriorityMax: priorityMax,
				CostMean:    costMean, CostStdDev: costStdev, CostMin: costMin, CostMax: costMax,
				MemMean: memMean, MemStdDev: memStdev, MemMin: memMin, MemMax: memMax,
				SlackMin: slackMin, SlackMax: slackMax,
			})
		}

		logrus.Infof("Starting simulation: mode=%s horizon=%d ticks, %d submissions",
			cfg.Mode, horizon, len(subs))

		startTime := time.Now()
		accepted := workload.Replay(coord, subs, horizon)
		logrus.Infof("Accepted %d/%d submissions", accepted, len(subs))

		coord.KPI().Flush()
		coord.KPI().Print(horizon, startTime)
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().StringVar(&mode, "mode", "hybrid", "Platform mode (rt, multitask, hybrid)")
	runCmd.Flags().Int64Var(&horizon, "horizon", 10000, "Total simulation horizon (in ticks)")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for deterministic workload generation")
	runCmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")

	// RT partition configs
	runCmd.Flags().IntVar(&rtCPUs, "rt-cpus", 1, "CPU units in the real-time partition")
	runCmd.Flags().Int64Var(&rtPeriod, "rt-period", 100, "Per-period admission budget window (in ticks)")
	runCmd.Flags().StringVar(&tieBreak, "tie-break", "fifo", "Ready-set tie-break policy (fifo, lifo)")
	runCmd.Flags().Int64Var(&urgentSlack, "urgent-slack", 0, "Deadline slack below which submissions get a priority boost (0 = off)")
	runCmd.Flags().IntVar(&urgentBoost, "urgent-boost", 1, "Priority levels added to urgent submissions")

	// Multitask partition configs
	runCmd.Flags().IntVar(&mtCPUs, "mt-cpus", 1, "CPU units in the multitask partition")
	runCmd.Flags().Int64Var(&quantum, "quantum", 4, "Fairness quantum (in ticks)")
	runCmd.Flags().Int64Var(&launchLatency, "launch-latency", 3, "Base cold-start latency (in ticks)")
	runCmd.Flags().Int64Var(&launchJitter, "launch-jitter", 1, "Uniform +/- jitter on the cold start")
	runCmd.Flags().StringVar(&eviction, "eviction", "lru", "Eviction policy (lru, fifo)")

	// Shared resources and policies
	runCmd.Flags().Int64Var(&memoryCapacity, "memory", 1024, "Shared memory budget (units)")
	runCmd.Flags().IntVar(&autoRTPriority, "auto-rt-priority", 10, "Hybrid auto-placement priority threshold")
	runCmd.Flags().StringVar(&admissionPolicy, "admission", "always-admit", "Admission policy (always-admit, token-bucket)")
	runCmd.Flags().Float64Var(&admissionCapacity, "admission-capacity", 0, "Token-bucket capacity (CPU cost units)")
	runCmd.Flags().Float64Var(&admissionRefill, "admission-refill", 0, "Token-bucket refill per tick")
	runCmd.Flags().Int64Var(&windowTicks, "window", 50, "KPI window width (in ticks)")
	runCmd.Flags().StringVar(&traceLevel, "trace", "none", "Decision trace level (none, decisions)")

	// Workload
	runCmd.Flags().StringVar(&scenarioPath, "scenario", "", "YAML scenario file of explicit submissions")
	runCmd.Flags().IntVar(&numTasks, "num-tasks", 100, "Number of synthetic tasks")
	runCmd.Flags().Float64Var(&rate, "rate", 0.2, "Task arrivals per tick")
	runCmd.Flags().StringVar(&arrival, "arrival", "fixed", "Arrival process (fixed, poisson)")
	runCmd.Flags().IntVar(&priorityMin, "priority-min", 1, "Min synthetic task priority")
	runCmd.Flags().IntVar(&priorityMax, "priority-max", 20, "Max synthetic task priority")
	runCmd.Flags().Float64Var(&costMean, "cost", 5, "Average CPU cost (ticks)")
	runCmd.Flags().Float64Var(&costStdev, "cost-stdev", 2, "Stdev CPU cost")
	runCmd.Flags().Int64Var(&costMin, "cost-min", 1, "Min CPU cost")
	runCmd.Flags().Int64Var(&costMax, "cost-max", 20, "Max CPU cost")
	runCmd.Flags().Float64Var(&memMean, "mem", 64, "Average memory footprint")
	runCmd.Flags().Float64Var(&memStdev, "mem-stdev", 32, "Stdev memory footprint")
	runCmd.Flags().Int64Var(&memMin, "mem-min", 8, "Min memory footprint")
	runCmd.Flags().Int64Var(&memMax, "mem-max", 256, "Max memory footprint")
	runCmd.Flags().Int64Var(&slackMin, "slack-min", 20, "Min deadline slack (ticks)")
	runCmd.Flags().Int64Var(&slackMax, "slack-max", 0, "Max deadline slack (0 = no deadlines)")

	rootCmd.AddCommand(runCmd)
}
