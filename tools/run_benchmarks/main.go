// Package main runs the observation engine over generated scenarios and
// collects runtime and deadlock metrics.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/elektrokombinacija/railobs/internal/config"
	"github.com/elektrokombinacija/railobs/internal/obs"
	"github.com/elektrokombinacija/railobs/internal/predict"
	"github.com/elektrokombinacija/railobs/internal/scenario"
	"github.com/elektrokombinacija/railobs/internal/sim"
)

// BenchmarkResult stores results from a single run.
type BenchmarkResult struct {
	Timestamp     string
	CommitHash    string
	GoVersion     string
	OS            string
	Arch          string
	Scenario      string
	NumTrains     int
	MaxDepth      int
	Workers       int
	Success       bool
	Error         string
	Ticks         int
	RuntimeMs     float64
	MsPerTick     float64
	Arrivals      int
	Malfunctions  int
	BlockedMoves  int
	DeadlockTicks int // Ticks with at least one predicted deadlock
	MaxDeadlocks  int
	Deadlocked    int // Trains actually stuck in a deadlock
	FirstDeadlock int
	AllBlocked    bool
}

func getGitCommit() string {
	cmd := exec.Command("git", "rev-parse", "--short", "HEAD")
	output, err := cmd.Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(output))
}

// runScenario simulates one scenario with the given engine settings.
func runScenario(ctx context.Context, sc *scenario.Scenario, cfg config.Config, commit string) *BenchmarkResult {
	result := &BenchmarkResult{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		CommitHash: commit,
		GoVersion:  runtime.Version(),
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
		Scenario:   sc.Name,
		NumTrains:  len(sc.Trains),
		MaxDepth:   cfg.Engine.MaxDepth,
		Workers:    cfg.Engine.Workers,
	}

	graph, trains, err := sc.Build()
	if err != nil {
		result.Error = err.Error()
		return result
	}
	simulator, err := sim.NewSimulator(graph, trains, cfg.SimConfig())
	if err != nil {
		result.Error = err.Error()
		return result
	}
	ecfg := cfg.EngineConfig()
	engine, err := obs.NewEngine(graph, predict.New(graph, simulator, ecfg.MaxDepth), simulator, ecfg)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	start := time.Now()
	metrics, err := simulator.Run(ctx, engine, nil)
	result.RuntimeMs = float64(time.Since(start).Microseconds()) / 1000.0
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Success = true
	result.Ticks = metrics.Ticks
	if metrics.Ticks > 0 {
		result.MsPerTick = result.RuntimeMs / float64(metrics.Ticks)
	}
	result.Arrivals = metrics.Arrivals
	result.Malfunctions = metrics.Malfunctions
	result.BlockedMoves = metrics.BlockedMoves
	result.DeadlockTicks = metrics.DeadlockTicks
	result.MaxDeadlocks = metrics.MaxDeadlocks
	result.Deadlocked = metrics.Deadlocked
	result.FirstDeadlock = metrics.FirstDeadlock
	result.AllBlocked = metrics.AllBlocked
	return result
}

func writeCSV(results []*BenchmarkResult, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"timestamp", "commit_hash", "go_version", "os", "arch",
		"scenario", "num_trains", "max_depth", "workers",
		"success", "error", "ticks", "runtime_ms", "ms_per_tick",
		"arrivals", "malfunctions", "blocked_moves", "deadlock_ticks", "max_deadlocks",
		"deadlocked", "first_deadlock", "all_blocked",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, r := range results {
		row := []string{
			r.Timestamp, r.CommitHash, r.GoVersion, r.OS, r.Arch,
			r.Scenario, strconv.Itoa(r.NumTrains), strconv.Itoa(r.MaxDepth), strconv.Itoa(r.Workers),
			strconv.FormatBool(r.Success), r.Error, strconv.Itoa(r.Ticks),
			fmt.Sprintf("%.3f", r.RuntimeMs), fmt.Sprintf("%.3f", r.MsPerTick),
			strconv.Itoa(r.Arrivals), strconv.Itoa(r.Malfunctions), strconv.Itoa(r.BlockedMoves),
			strconv.Itoa(r.DeadlockTicks), strconv.Itoa(r.MaxDeadlocks),
			strconv.Itoa(r.Deadlocked), strconv.Itoa(r.FirstDeadlock), strconv.FormatBool(r.AllBlocked),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	return writer.Error()
}

func printSummary(results []*BenchmarkResult) {
	fmt.Println("\n=== BENCHMARK SUMMARY ===")
	fmt.Printf("%-32s %6s %6s %6s %10s %9s %8s %9s %7s\n",
		"Scenario", "Trains", "Depth", "Ticks", "Time(ms)", "ms/tick", "Arrived", "Predicted", "Stuck")
	fmt.Println(strings.Repeat("-", 102))

	sort.Slice(results, func(i, j int) bool {
		if results[i].Scenario != results[j].Scenario {
			return results[i].Scenario < results[j].Scenario
		}
		return results[i].MaxDepth < results[j].MaxDepth
	})

	for _, r := range results {
		if !r.Success {
			fmt.Printf("%-32s %6d %6d FAILED: %s\n", r.Scenario, r.NumTrains, r.MaxDepth, r.Error)
			continue
		}
		fmt.Printf("%-32s %6d %6d %6d %10.2f %9.3f %8d %9d %7d\n",
			r.Scenario, r.NumTrains, r.MaxDepth, r.Ticks, r.RuntimeMs, r.MsPerTick, r.Arrivals, r.DeadlockTicks, r.Deadlocked)
	}
}

func parseDepths(s string) ([]int, error) {
	var depths []int
	for _, f := range strings.Split(s, ",") {
		d, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("depth %q: %w", f, err)
		}
		depths = append(depths, d)
	}
	return depths, nil
}

func main() {
	inputDir := flag.String("input", "scenarios", "Directory containing scenario JSON files")
	outputFile := flag.String("output", "evidence/benchmark_results.csv", "Output CSV file")
	configPath := flag.String("config", "", "YAML configuration file (defaults when empty)")
	depthList := flag.String("depths", "4,8", "Comma-separated max_depth values to run")
	timeout := flag.Duration("timeout", 5*time.Minute, "Timeout per run")
	verbose := flag.Bool("verbose", false, "Verbose output")

	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	depths, err := parseDepths(*depthList)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing depths: %v\n", err)
		os.Exit(1)
	}

	outputDir := filepath.Dir(*outputFile)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	files, err := filepath.Glob(filepath.Join(*inputDir, "*.json"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error finding scenario files: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "No scenario files found in %s\n", *inputDir)
		fmt.Fprintf(os.Stderr, "Run gen_scenarios first: go run ./tools/gen_scenarios -scaling -output scenarios\n")
		os.Exit(1)
	}

	commit := getGitCommit()
	totalRuns := len(files) * len(depths)
	fmt.Printf("Running benchmarks: %d scenarios x %d depths = %d runs\n", len(files), len(depths), totalRuns)

	var results []*BenchmarkResult
	currentRun := 0
	for _, file := range files {
		sc, err := scenario.Load(file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", file, err)
			continue
		}

		for _, depth := range depths {
			currentRun++
			runCfg := cfg
			runCfg.Engine.MaxDepth = depth
			if err := runCfg.Validate(); err != nil {
				fmt.Fprintf(os.Stderr, "Skipping depth %d: %v\n", depth, err)
				continue
			}
			if *verbose {
				fmt.Printf("[%d/%d] %s / depth %d ... ", currentRun, totalRuns, sc.Name, depth)
			} else {
				fmt.Printf("\r[%d/%d] Running...", currentRun, totalRuns)
			}

			ctx, cancel := context.WithTimeout(context.Background(), *timeout)
			result := runScenario(ctx, sc, runCfg, commit)
			cancel()
			results = append(results, result)

			if *verbose {
				if result.Success {
					fmt.Printf("OK (%.2fms, %d ticks, %d deadlock ticks, %d stuck)\n",
						result.RuntimeMs, result.Ticks, result.DeadlockTicks, result.Deadlocked)
				} else {
					fmt.Printf("FAILED: %s\n", result.Error)
				}
			}
		}
	}

	fmt.Println()

	if err := writeCSV(results, *outputFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing results: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Results written to: %s\n", *outputFile)

	printSummary(results)
}
