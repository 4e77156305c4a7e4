package pipeline

import (
	"time"

	"github.com/rs/zerolog/log"

	"arbiter/internal/cyclefinder"
)

// runSearcher runs the cycle finder on a snapshot of the graph once per
// search interval, and once more on shutdown before returning. The ticker
// is reset after every tick-driven search, so a search that runs long
// delays the next tick by a full interval instead of triggering an
// immediate catch-up search: missed ticks are delayed, not bursted.
func runSearcher(shared *SharedGraph, shutdown <-chan struct{}, cfg Config) SearchOutcome {
	ticker := time.NewTicker(cfg.SearchInterval)
	defer ticker.Stop()

	var outcome SearchOutcome

	for {
		select {
		case <-ticker.C:
			searchOnce(shared, cfg, &outcome, "profitable cycle detected")
			ticker.Reset(cfg.SearchInterval)
		case <-shutdown:
			searchOnce(shared, cfg, &outcome, "profitable cycle detected during shutdown check")
			return outcome
		}
	}
}

// searchOnce clones the graph under a read lock (releasing it immediately),
// then runs the cycle finder on the private clone, recording the result.
func searchOnce(shared *SharedGraph, cfg Config, outcome *SearchOutcome, foundMsg string) {
	searchStart := time.Now()
	clone := shared.CloneIfNonEmpty()
	if clone == nil {
		return
	}

	cyc := cyclefinder.FindProfitableCycleInGraph(clone, cfg.HopCap)
	if cfg.Metrics != nil {
		cfg.Metrics.RecordSearchLatency(time.Since(searchStart))
	}
	if cyc != nil {
		log.Info().
			Ints("vertices", cyc.Vertices).
			Ints("edge_indexes", cyc.EdgeIndexes).
			Float64("profit", cyc.Profit).
			Float64("neg_log_sum", cyc.NegLogSum).
			Msg(foundMsg)
		outcome.LastCycle = cyc
	}
	outcome.SearchesRun++
}
