// Package config loads polargrad settings from YAML.
//
// Example:
//
//	parallel:
//	  enabled: true
//	  workers: 8
//	  min_chunk: 16
//	tiles:
//	  rows: 8
//	  cols: 8
//	numeric:
//	  epsilon: 1e-9
//	  slope_epsilon: 1e-4
//	log:
//	  level: info
//	metrics:
//	  enabled: false
//
// Omitted fields keep their defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/polargrad/internal/autodiff/ops"
	"github.com/born-ml/polargrad/internal/parallel"
	"github.com/born-ml/polargrad/internal/tile"
)

// ErrInvalid is returned by Validate for out-of-range settings.
var ErrInvalid = errors.New("invalid configuration")

// Parallel configures row and tile parallelism.
type Parallel struct {
	Enabled  bool `yaml:"enabled"`
	Workers  int  `yaml:"workers"`   // 0 means GOMAXPROCS.
	MinChunk int  `yaml:"min_chunk"` // Below this many items work runs sequentially.
}

// Tiles configures the tile grid of tiled operations.
type Tiles struct {
	Rows int `yaml:"rows"`
	Cols int `yaml:"cols"`
}

// Numeric holds the numerical guards.
type Numeric struct {
	Epsilon      float64 `yaml:"epsilon"`
	SlopeEpsilon float64 `yaml:"slope_epsilon"`
}

// Log configures logging.
type Log struct {
	Level string `yaml:"level"`
}

// Metrics configures Prometheus metrics.
type Metrics struct {
	Enabled bool `yaml:"enabled"`
}

// Config is the root of the configuration file.
type Config struct {
	Parallel Parallel `yaml:"parallel"`
	Tiles    Tiles    `yaml:"tiles"`
	Numeric  Numeric  `yaml:"numeric"`
	Log      Log      `yaml:"log"`
	Metrics  Metrics  `yaml:"metrics"`
}

// Default returns the built-in configuration.
func Default() Config {
	p := parallel.DefaultConfig()
	o := ops.DefaultConfig()
	g := tile.DefaultGrid()
	return Config{
		Parallel: Parallel{Enabled: p.Enabled, Workers: p.NumWorkers, MinChunk: p.MinChunkSize},
		Tiles:    Tiles{Rows: g.Rows, Cols: g.Cols},
		Numeric:  Numeric{Epsilon: o.Epsilon, SlopeEpsilon: o.SlopeEpsilon},
		Log:      Log{Level: zerolog.InfoLevel.String()},
	}
}

// Load reads and validates the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	log.Debug().Str("path", path).Msg("config loaded")
	return cfg, nil
}

// Parse decodes YAML on top of Default and validates the result.
// Unknown fields are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every setting.
func (c Config) Validate() error {
	switch {
	case c.Parallel.Workers < 0:
		return fmt.Errorf("parallel.workers %d: %w", c.Parallel.Workers, ErrInvalid)
	case c.Parallel.MinChunk < 0:
		return fmt.Errorf("parallel.min_chunk %d: %w", c.Parallel.MinChunk, ErrInvalid)
	case c.Tiles.Rows <= 0 || c.Tiles.Cols <= 0:
		return fmt.Errorf("tiles %dx%d: %w", c.Tiles.Rows, c.Tiles.Cols, ErrInvalid)
	case !(c.Numeric.Epsilon > 0):
		return fmt.Errorf("numeric.epsilon %g: %w", c.Numeric.Epsilon, ErrInvalid)
	case !(c.Numeric.SlopeEpsilon > 0):
		return fmt.Errorf("numeric.slope_epsilon %g: %w", c.Numeric.SlopeEpsilon, ErrInvalid)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the configured log level.
func (c Config) Level() (zerolog.Level, error) {
	if c.Log.Level == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log.level %q: %w", c.Log.Level, ErrInvalid)
	}
	return level, nil
}

// Ops returns the operation configuration.
func (c Config) Ops() ops.Config {
	return ops.Config{
		Parallel: parallel.Config{
			Enabled:      c.Parallel.Enabled,
			NumWorkers:   c.Parallel.Workers,
			MinChunkSize: c.Parallel.MinChunk,
		},
		Epsilon:      c.Numeric.Epsilon,
		SlopeEpsilon: c.Numeric.SlopeEpsilon,
	}
}

// Grid returns the tile grid.
func (c Config) Grid() tile.Grid {
	return tile.Grid{Rows: c.Tiles.Rows, Cols: c.Tiles.Cols}
}
