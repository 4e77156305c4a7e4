package pipeline

import (
	"time"

	"github.com/rs/zerolog/log"
)

// runWriter drains updateCh in coalesced bursts, validates each message, and
// applies a batch under a single write-lock acquisition. It returns once
// updateCh is closed (producer/feed done) and drained.
func runWriter(updateCh <-chan GraphUpdate, shared *SharedGraph, cfg Config) WriterOutcome {
	edgeCount := shared.EdgeCount()
	var outcome WriterOutcome

	maxCoalesce := cfg.MaxCoalesce
	if maxCoalesce < 1 {
		maxCoalesce = 1
	}
	bounds := rateBoundsFromConfig(cfg)

	for {
		batch, ok := nextBatch(updateCh, maxCoalesce, cfg.CoalesceWindow)
		if !ok {
			return outcome
		}
		batchStart := time.Now()

		validated := make([]GraphUpdate, 0, len(batch))
		for _, update := range batch {
			switch err := validateUpdate(update, edgeCount); {
			case err == nil:
				validated = append(validated, update)
			case err.Kind == ValidIndexOutOfBounds:
				outcome.InvalidIndexUpdates++
				log.Warn().Int("index", err.EdgeIndex).Msg("dropped update with out-of-bounds index")
			default:
				outcome.InvalidRateUpdates++
				log.Warn().Float64("rate", err.Rate).Msg("dropped update with invalid rate")
			}
		}

		if len(validated) == 0 {
			log.Error().Msg("discarded batch: no valid updates after validation")
			if cfg.Metrics != nil {
				cfg.Metrics.RecordBatchLatency(time.Since(batchStart))
			}
			continue
		}

		outcome.ProcessedUpdates += len(validated)

		for i := range validated {
			validated[i].NewRate = bounds.clamp(validated[i].NewRate)
		}

		applied := applyValidUpdates(shared, validated)
		if applied == 0 {
			log.Error().Int("batch_received", len(validated)).Msg("failed to apply validated updates")
			if cfg.Metrics != nil {
				cfg.Metrics.RecordBatchLatency(time.Since(batchStart))
			}
			continue
		}

		outcome.UniqueUpdatesApplied += applied
		if cfg.Metrics != nil {
			cfg.Metrics.RecordBatchLatency(time.Since(batchStart))
		}
		log.Info().
			Int("batch_received", len(validated)).
			Int("unique_applied", applied).
			Int("total_processed", outcome.ProcessedUpdates).
			Int("total_unique_applied", outcome.UniqueUpdatesApplied).
			Msg("processed update batch")
	}
}

// applyValidUpdates takes the write lock once and applies every update in
// the batch. Each update has already been validated, so UpdateRate cannot
// fail here; a failure indicates a broken invariant in the CSR layer and is
// treated as a programmer error.
func applyValidUpdates(shared *SharedGraph, updates []GraphUpdate) int {
	if len(updates) == 0 {
		return 0
	}
	shared.mu.Lock()
	defer shared.mu.Unlock()
	for _, u := range updates {
		if err := shared.graph.UpdateRate(u.EdgeIndex, u.NewRate); err != nil {
			panic("pipeline: validated update rejected by graph: " + err.Error())
		}
	}
	return len(updates)
}

// nextBatch always waits for the first message (respecting backpressure),
// then drains up to maxCoalesce-1 further messages until coalesceWindow
// elapses since the first arrival. Returns ok=false once the channel is
// closed and drained.
func nextBatch(updateCh <-chan GraphUpdate, maxCoalesce int, coalesceWindow time.Duration) ([]GraphUpdate, bool) {
	first, ok := <-updateCh
	if !ok {
		return nil, false
	}

	batch := make([]GraphUpdate, 0, maxCoalesce)
	batch = append(batch, first)

	if coalesceWindow > 0 && maxCoalesce > 1 {
		deadline := time.NewTimer(coalesceWindow)
		defer deadline.Stop()

	drain:
		for len(batch) < maxCoalesce {
			select {
			case next, ok := <-updateCh:
				if !ok {
					break drain
				}
				batch = append(batch, next)
			case <-deadline.C:
				break drain
			}
		}
	}

	return batch, true
}

func validateUpdate(update GraphUpdate, edgeCount int) *UpdateValidationError {
	if update.EdgeIndex < 0 || update.EdgeIndex >= edgeCount {
		return &UpdateValidationError{Kind: ValidIndexOutOfBounds, EdgeIndex: update.EdgeIndex}
	}
	if update.NewRate <= 0 || !isFinite(update.NewRate) {
		return &UpdateValidationError{Kind: ValidInvalidRate, Rate: update.NewRate}
	}
	return nil
}
