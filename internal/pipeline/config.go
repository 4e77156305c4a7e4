package pipeline

import (
	"context"
	"math"
	"time"

	"arbiter/internal/metrics"
)

// Config is the pipeline's tunable table. Every field is optional at the
// YAML layer; DefaultConfig supplies the values below.
type Config struct {
	HopCap          int
	MaxUpdates      int
	ChannelCapacity int
	SearchInterval  time.Duration
	CoalesceWindow  time.Duration
	MaxCoalesce     int
	RateJitter      float64
	MinRateBound    float64
	MaxRateBound    float64

	// ExtraSource, when non-nil, is run alongside the synthetic producer
	// and feeds GraphUpdates onto the same channel from another origin
	// (e.g. a live on-chain feed). The writer cannot tell updates apart
	// by origin. It must return when ctx is cancelled.
	ExtraSource func(ctx context.Context, updateCh chan<- GraphUpdate) error

	// Metrics, when non-nil, receives batch and search latency
	// observations from the writer and searcher.
	Metrics *metrics.Metrics
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		HopCap:          6,
		MaxUpdates:      256,
		ChannelCapacity: 64,
		SearchInterval:  250 * time.Millisecond,
		CoalesceWindow:  5 * time.Millisecond,
		MaxCoalesce:     16,
		RateJitter:      0.02,
		MinRateBound:    1e-9,
		MaxRateBound:    1e9,
	}
}

// rateBounds is the sanitised, ordered clamp range derived from a Config.
type rateBounds struct {
	min float64
	max float64
}

func rateBoundsFromConfig(cfg Config) rateBounds {
	min := math.Max(cfg.MinRateBound, math.SmallestNonzeroFloat64)
	max := math.Max(cfg.MaxRateBound, min)
	return rateBounds{min: min, max: max}
}

func (b rateBounds) clamp(rate float64) float64 {
	if rate < b.min {
		return b.min
	}
	if rate > b.max {
		return b.max
	}
	return rate
}
