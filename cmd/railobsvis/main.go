// Command railobsvis opens the tensor inspector on a scenario.
package main

import (
	"flag"
	"log"
	"os"

	"gioui.org/app"
	"gioui.org/unit"

	"github.com/elektrokombinacija/railobs/internal/config"
	"github.com/elektrokombinacija/railobs/internal/obs"
	"github.com/elektrokombinacija/railobs/internal/predict"
	"github.com/elektrokombinacija/railobs/internal/scenario"
	"github.com/elektrokombinacija/railobs/internal/sim"
	"github.com/elektrokombinacija/railobs/internal/vis"
	"github.com/elektrokombinacija/railobs/internal/vis/state"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file (defaults when empty)")
	scenarioPath := flag.String("scenario", "", "Scenario JSON file (required)")
	flag.Parse()

	if *scenarioPath == "" {
		log.Fatal("-scenario is required")
	}
	st, err := load(*configPath, *scenarioPath)
	if err != nil {
		log.Fatal(err)
	}

	go func() {
		window := new(app.Window)
		window.Option(
			app.Title("Rail Observation Inspector"),
			app.Size(unit.Dp(1400), unit.Dp(900)),
		)

		application := vis.NewApp(st)
		if err := application.Run(window); err != nil {
			log.Fatal(err)
		}
		os.Exit(0)
	}()
	app.Main()
}

func load(configPath, scenarioPath string) (*state.State, error) {
	cfg := config.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return nil, err
		}
	}
	logger, err := cfg.Logger(os.Stderr)
	if err != nil {
		return nil, err
	}

	sc, err := scenario.Load(scenarioPath)
	if err != nil {
		return nil, err
	}
	graph, trains, err := sc.Build()
	if err != nil {
		return nil, err
	}
	simulator, err := sim.NewSimulator(graph, trains, cfg.SimConfig(), sim.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	ecfg := cfg.EngineConfig()
	engine, err := obs.NewEngine(graph, predict.New(graph, simulator, ecfg.MaxDepth), simulator, ecfg, obs.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return state.NewState(graph, simulator, engine), nil
}
