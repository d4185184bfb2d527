// Command railobs runs a scenario headless and dumps the observation tensors
// of every tick as JSON lines.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/elektrokombinacija/railobs/internal/config"
	"github.com/elektrokombinacija/railobs/internal/core"
	"github.com/elektrokombinacija/railobs/internal/obs"
	"github.com/elektrokombinacija/railobs/internal/predict"
	"github.com/elektrokombinacija/railobs/internal/scenario"
	"github.com/elektrokombinacija/railobs/internal/sim"
)

// tickRecord is one line of the tensor dump.
type tickRecord struct {
	Episode string                      `json:"episode"`
	Tick    int                         `json:"tick"`
	Agents  map[core.Handle]agentRecord `json:"agents"`
}

type agentRecord struct {
	Deadlocks int           `json:"deadlocks"`
	Rows      []string      `json:"rows"`
	Tensor    [][][]float64 `json:"tensor"`
}

func main() {
	configPath := flag.String("config", "", "YAML configuration file (defaults when empty)")
	scenarioPath := flag.String("scenario", "", "Scenario JSON file (required)")
	outputPath := flag.String("output", "", "Tensor dump file, JSON lines (none when empty)")
	metricsPath := flag.String("metrics", "", "Metrics JSON file (none when empty)")
	ticks := flag.Int("ticks", 0, "Override the number of ticks (0 = from config)")
	flag.Parse()

	if *scenarioPath == "" {
		fmt.Fprintln(os.Stderr, "railobs: -scenario is required")
		flag.Usage()
		os.Exit(2)
	}
	if err := run(*configPath, *scenarioPath, *outputPath, *metricsPath, *ticks); err != nil {
		fmt.Fprintf(os.Stderr, "railobs: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, scenarioPath, outputPath, metricsPath string, ticks int) error {
	cfg := config.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}
	if ticks > 0 {
		cfg.Sim.Ticks = ticks
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := cfg.Logger(os.Stderr)
	if err != nil {
		return err
	}

	sc, err := scenario.Load(scenarioPath)
	if err != nil {
		return err
	}
	graph, trains, err := sc.Build()
	if err != nil {
		return err
	}
	logger.Info("scenario loaded", "name", sc.Name, "tracks", len(sc.Tracks), "trains", len(trains))

	simulator, err := sim.NewSimulator(graph, trains, cfg.SimConfig(), sim.WithLogger(logger))
	if err != nil {
		return err
	}
	ecfg := cfg.EngineConfig()
	engine, err := obs.NewEngine(graph, predict.New(graph, simulator, ecfg.MaxDepth), simulator, ecfg, obs.WithLogger(logger))
	if err != nil {
		return err
	}

	var sink sim.Sink
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w := bufio.NewWriter(f)
		defer w.Flush()
		sink = tensorSink(w, engine)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	metrics, err := simulator.Run(ctx, engine, sink)
	if err != nil {
		return err
	}
	logger.Info("run complete",
		"episode", engine.Episode(),
		"ticks", metrics.Ticks,
		"arrivals", metrics.Arrivals,
		"blocked_moves", metrics.BlockedMoves,
		"deadlock_ticks", metrics.DeadlockTicks,
		"deadlocked", metrics.Deadlocked,
		"all_blocked", metrics.AllBlocked,
		"elapsed", metrics.EndTime.Sub(metrics.StartTime))

	if metricsPath != "" {
		if err := simulator.ExportMetrics(metricsPath); err != nil {
			return fmt.Errorf("export metrics: %w", err)
		}
		logger.Debug("metrics written", slog.String("path", metricsPath))
	}
	return nil
}

func tensorSink(w io.Writer, engine *obs.Engine) sim.Sink {
	enc := json.NewEncoder(w)
	return func(tick int, tensors map[core.Handle]*obs.Tensor) error {
		rec := tickRecord{
			Episode: engine.Episode().String(),
			Tick:    tick,
			Agents:  make(map[core.Handle]agentRecord, len(tensors)),
		}
		for h, t := range tensors {
			rows := make([]string, len(t.Rows))
			for i := range t.Rows {
				rows[i] = t.Rows[i].Kind.String()
			}
			rec.Agents[h] = agentRecord{Deadlocks: t.Deadlocks, Rows: rows, Tensor: t.Dense()}
		}
		return enc.Encode(rec)
	}
}
