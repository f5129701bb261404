package ops

import (
	"github.com/born-ml/polargrad/internal/parallel"
	"github.com/born-ml/polargrad/internal/slope"
)

// DefaultEpsilon guards denominators derived from magnitudes and pivot norms.
const DefaultEpsilon = 1e-9

// Config holds the settings an operation captures at construction.
type Config struct {
	Parallel     parallel.Config // Row-level parallelism.
	Epsilon      float64         // Additive guard for magnitude denominators.
	SlopeEpsilon float64         // Relative perturbation of the empirical slope.
}

// DefaultConfig returns the default operation settings.
func DefaultConfig() Config {
	return Config{
		Parallel:     parallel.DefaultConfig(),
		Epsilon:      DefaultEpsilon,
		SlopeEpsilon: slope.DefaultEpsilon,
	}
}
