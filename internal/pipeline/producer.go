package pipeline

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// runProducer generates up to cfg.MaxUpdates synthetic rate-change messages
// in jittered bursts, modelling bursty real-world arrival patterns. It does
// not close updateCh: the caller closes it once every sender (this producer
// and any extra source) has returned, since a second concurrent sender would
// otherwise race a direct close.
func runProducer(ctx context.Context, updateCh chan<- GraphUpdate, baselineRates []float64, cfg Config) error {
	edgeCount := len(baselineRates)
	if edgeCount == 0 {
		return nil
	}

	rng := newSeededRand()
	remaining := cfg.MaxUpdates
	maxBurst := cfg.MaxCoalesce
	if maxBurst < 1 {
		maxBurst = 1
	}
	bounds := rateBoundsFromConfig(cfg)

	for remaining > 0 {
		burstCap := maxBurst
		if remaining < burstCap {
			burstCap = remaining
		}
		burst := 1 + rng.Intn(burstCap)

		for i := 0; i < burst; i++ {
			edgeIndex := rng.Intn(edgeCount)
			baseRate := baselineRates[edgeIndex]

			jitter := 0.0
			if cfg.RateJitter > 0 {
				jitter = (rng.Float64()*2 - 1) * cfg.RateJitter
			}
			newRate := bounds.clamp(baseRate * (1 + jitter))

			select {
			case updateCh <- GraphUpdate{EdgeIndex: edgeIndex, NewRate: newRate}:
			case <-ctx.Done():
				log.Warn().Msg("producer stopped before finishing: context cancelled")
				return nil
			}
		}

		remaining -= burst
		if remaining == 0 {
			break
		}

		maxDelayMs := cfg.SearchInterval.Milliseconds()
		if maxDelayMs < 1 {
			maxDelayMs = 1
		}
		maxDelayMs *= 2
		sleepMs := rng.Int63n(maxDelayMs + 1)
		if sleepMs > 0 {
			select {
			case <-time.After(time.Duration(sleepMs) * time.Millisecond):
			case <-ctx.Done():
				return nil
			}
		}
	}

	return nil
}

// newSeededRand seeds a math/rand source from OS randomness, mirroring the
// non-deterministic-by-design producer RNG.
func newSeededRand() *rand.Rand {
	var seedBytes [8]byte
	if _, err := cryptorand.Read(seedBytes[:]); err != nil {
		return rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	seed := int64(binary.LittleEndian.Uint64(seedBytes[:]))
	return rand.New(rand.NewSource(seed))
}
