// Package pipeline wires the producer, writer and searcher tasks around a
// shared CSR graph and aggregates their outcome into Stats.
package pipeline

import (
	"context"
	"math"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"arbiter/internal/csrgraph"
	"arbiter/internal/dataset"
)

// Run builds a graph from ds, spawns the producer, writer and searcher, and
// awaits them in strict order: the producer (and any extra source) first,
// then the writer (whose exit is gated on the update channel, which Run
// closes once every sender has returned), then a shutdown signal to the
// searcher followed by awaiting it.
func Run(ctx context.Context, ds *dataset.Dataset, cfg Config) (*Stats, error) {
	if len(ds.Edges) == 0 {
		return nil, &EmptyDatasetError{}
	}

	graphEdges := make([]csrgraph.InputEdge, 0, len(ds.Edges))
	baselineRates := make([]float64, 0, len(ds.Edges))
	highestNodeIndex := 0

	for _, edge := range ds.Edges {
		from, ok := toNodeIndex(edge.From)
		if !ok {
			return nil, &FromIndexError{EdgeID: edge.ID}
		}
		to, ok := toNodeIndex(edge.To)
		if !ok {
			return nil, &ToIndexError{EdgeID: edge.ID}
		}
		if !isFinite(edge.Rate) || edge.Rate <= 0 {
			return nil, &InvalidRateError{EdgeID: edge.ID, Rate: edge.Rate}
		}

		graphEdges = append(graphEdges, csrgraph.InputEdge{From: from, To: to, Rate: edge.Rate})
		baselineRates = append(baselineRates, edge.Rate)
		if from > highestNodeIndex {
			highestNodeIndex = from
		}
		if to > highestNodeIndex {
			highestNodeIndex = to
		}
	}

	nodeCount := highestNodeIndex + 1
	log.Info().
		Int("edge_count", len(graphEdges)).
		Int("node_count", nodeCount).
		Msg("initialised pipeline state")

	shared := NewSharedGraph(csrgraph.FromEdges(nodeCount, graphEdges))

	updateCh := make(chan GraphUpdate, cfg.ChannelCapacity)
	shutdownCh := make(chan struct{})

	log.Info().Msg("spawning searcher task")
	searcherResultCh := make(chan taskResult[SearchOutcome], 1)
	go func() {
		searcherResultCh <- runGuarded(func() SearchOutcome {
			return runSearcher(shared, shutdownCh, cfg)
		})
	}()

	log.Info().Msg("spawning writer task")
	writerResultCh := make(chan taskResult[WriterOutcome], 1)
	go func() {
		writerResultCh <- runGuarded(func() WriterOutcome {
			return runWriter(updateCh, shared, cfg)
		})
	}()

	// The producer and any extra source share updateCh as senders; neither
	// closes it directly, since a second concurrent sender would race a
	// close performed by the other. It is closed once, here, only after
	// every sender has returned.
	log.Info().Msg("spawning producer task")
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runProducer(gctx, updateCh, baselineRates, cfg)
	})

	if cfg.ExtraSource != nil {
		log.Info().Msg("spawning extra update source")
		g.Go(func() error {
			return cfg.ExtraSource(gctx, updateCh)
		})
	}

	log.Info().Msg("awaiting producer task completion")
	sendErr := g.Wait()
	close(updateCh)
	if sendErr != nil {
		return nil, &ProducerJoinError{Cause: sendErr}
	}
	log.Info().Msg("producer task completed")

	writerResult := <-writerResultCh
	if writerResult.panicErr != nil {
		return nil, &WriterJoinError{Cause: writerResult.panicErr}
	}
	writerOutcome := writerResult.value
	log.Info().
		Int("processed_updates", writerOutcome.ProcessedUpdates).
		Int("unique_updates_applied", writerOutcome.UniqueUpdatesApplied).
		Int("invalid_index_updates", writerOutcome.InvalidIndexUpdates).
		Int("invalid_rate_updates", writerOutcome.InvalidRateUpdates).
		Msg("writer task completed")

	close(shutdownCh)
	searcherResult := <-searcherResultCh
	if searcherResult.panicErr != nil {
		return nil, &SearcherJoinError{Cause: searcherResult.panicErr}
	}
	searchOutcome := searcherResult.value

	if searchOutcome.LastCycle != nil {
		cyc := searchOutcome.LastCycle
		log.Info().
			Int("searches_run", searchOutcome.SearchesRun).
			Float64("cycle_profit", cyc.Profit).
			Float64("cycle_neg_log", cyc.NegLogSum).
			Ints("vertices", cyc.Vertices).
			Ints("edge_indexes", cyc.EdgeIndexes).
			Msg("searcher task completed with profitable cycle")
	} else {
		log.Info().
			Int("searches_run", searchOutcome.SearchesRun).
			Bool("found_cycle", false).
			Msg("searcher task completed")
	}

	return &Stats{
		UpdatesProcessed:     writerOutcome.ProcessedUpdates,
		UniqueUpdatesApplied: writerOutcome.UniqueUpdatesApplied,
		SearchesRun:          searchOutcome.SearchesRun,
		LastCycle:            searchOutcome.LastCycle,
		InvalidIndexUpdates:  writerOutcome.InvalidIndexUpdates,
		InvalidRateUpdates:   writerOutcome.InvalidRateUpdates,
	}, nil
}

// toNodeIndex converts a dataset's u64 node id into a platform int node
// index, failing if it would overflow.
func toNodeIndex(id uint64) (int, bool) {
	if id > math.MaxInt {
		return 0, false
	}
	return int(id), true
}
