// Package config loads the engine, simulator and logging settings.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/elektrokombinacija/railobs/internal/obs"
	"github.com/elektrokombinacija/railobs/internal/sim"
)

// ErrInvalid is returned for out-of-range settings.
var ErrInvalid = errors.New("config: invalid value")

// Config is the root configuration file.
type Config struct {
	Engine EngineConfig `yaml:"engine"`
	Sim    SimConfig    `yaml:"sim"`
	Log    LogConfig    `yaml:"log"`
}

// EngineConfig configures the observation engine.
type EngineConfig struct {
	MaxDepth               int `yaml:"max_depth"`
	Workers                int `yaml:"workers"`
	MaxMalfunctionDuration int `yaml:"max_malfunction_duration"`
}

// SimConfig configures the reference simulator.
type SimConfig struct {
	Ticks           int     `yaml:"ticks"`
	Seed            int64   `yaml:"seed"`
	MalfunctionRate float64 `yaml:"malfunction_rate"` // Per agent, per tick
	MinMalfunction  int     `yaml:"min_malfunction"`
	MaxMalfunction  int     `yaml:"max_malfunction"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	engine := obs.DefaultConfig()
	return Config{
		Engine: EngineConfig{
			MaxDepth:               engine.MaxDepth,
			Workers:                engine.Workers,
			MaxMalfunctionDuration: engine.MaxMalfunctionDuration,
		},
		Sim: SimConfig{
			Ticks:           200,
			Seed:            42,
			MalfunctionRate: 0.01,
			MinMalfunction:  2,
			MaxMalfunction:  engine.MaxMalfunctionDuration,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML file on top of the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of the defaults. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.EngineConfig().Validate(); err != nil {
		return err
	}
	s := c.Sim
	switch {
	case s.Ticks < 0:
		return fmt.Errorf("%w: sim.ticks %d", ErrInvalid, s.Ticks)
	case s.MalfunctionRate < 0 || s.MalfunctionRate > 1:
		return fmt.Errorf("%w: sim.malfunction_rate %v outside [0, 1]", ErrInvalid, s.MalfunctionRate)
	case s.MinMalfunction < 1 || s.MaxMalfunction < s.MinMalfunction:
		return fmt.Errorf("%w: sim malfunction range [%d, %d]", ErrInvalid, s.MinMalfunction, s.MaxMalfunction)
	case s.MaxMalfunction > c.Engine.MaxMalfunctionDuration:
		return fmt.Errorf("%w: sim.max_malfunction %d exceeds engine.max_malfunction_duration %d",
			ErrInvalid, s.MaxMalfunction, c.Engine.MaxMalfunctionDuration)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if f := c.Log.Format; f != "text" && f != "json" {
		return fmt.Errorf("%w: log.format %q", ErrInvalid, f)
	}
	return nil
}

// EngineConfig converts the engine section.
func (c Config) EngineConfig() obs.Config {
	return obs.Config{
		MaxDepth:               c.Engine.MaxDepth,
		Workers:                c.Engine.Workers,
		MaxMalfunctionDuration: c.Engine.MaxMalfunctionDuration,
	}
}

// SimConfig converts the simulator section.
func (c Config) SimConfig() sim.Config {
	return sim.Config{
		Ticks:           c.Sim.Ticks,
		Seed:            c.Sim.Seed,
		MalfunctionRate: c.Sim.MalfunctionRate,
		MinMalfunction:  c.Sim.MinMalfunction,
		MaxMalfunction:  c.Sim.MaxMalfunction,
	}
}

// Logger builds the structured logger described by the log section.
func (c Config) Logger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%w: log.level %q", ErrInvalid, s)
	}
	return level, nil
}
