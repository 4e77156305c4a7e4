// Package feed is an optional live alternative to the synthetic producer:
// it turns on-chain Sync events into the same GraphUpdate messages the
// producer would generate, and pushes them onto the same channel. The
// writer cannot tell a GraphUpdate apart by origin.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"arbiter/internal/pipeline"
)

const (
	maxReconnectAttempts = 10
	initialBackoff       = 1 * time.Second
	maxBackoff           = 30 * time.Second
)

// PoolMapping binds an on-chain pool address to the graph edge it backs.
type PoolMapping struct {
	Address              string
	EdgeIndex            int
	ReserveOutIsReserve1 bool
}

// Service dials a log feed and translates Sync events for known pools into
// GraphUpdates on updateCh.
type Service struct {
	wsURL   string
	decoder *Decoder
	pools   map[string]PoolMapping
}

// NewService builds a feed service for the given websocket URL and pool
// mappings.
func NewService(wsURL string, pools []PoolMapping) *Service {
	byAddress := make(map[string]PoolMapping, len(pools))
	for _, p := range pools {
		byAddress[p.Address] = p
	}
	return &Service{
		wsURL:   wsURL,
		decoder: NewDecoder(),
		pools:   byAddress,
	}
}

// Run connects, subscribes to the mapped pool addresses, and streams
// GraphUpdates until ctx is cancelled. A connection that fails with an error
// is redialled with exponential backoff, up to maxReconnectAttempts attempts
// in total, after which Run returns an error; a connection the server closes
// cleanly ends Run with a nil error.
func (s *Service) Run(ctx context.Context, updateCh chan<- pipeline.GraphUpdate) error {
	for attempt := 0; attempt < maxReconnectAttempts; attempt++ {
		if attempt > 0 {
			backoff := calculateBackoff(attempt)
			log.Warn().Int("attempt", attempt).Dur("backoff", backoff).Msg("feed: reconnecting")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		err := s.runOnce(ctx, updateCh)
		if err == nil || ctx.Err() != nil {
			return err
		}
		log.Error().Err(err).Msg("feed: connection lost")
	}

	return fmt.Errorf("feed: max reconnection attempts reached")
}

// runOnce dials a single connection, subscribes to the mapped pool
// addresses, and streams GraphUpdates until ctx is cancelled or the
// connection drops.
func (s *Service) runOnce(ctx context.Context, updateCh chan<- pipeline.GraphUpdate) error {
	client := NewClient(s.wsURL)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()

	addresses := make([]string, 0, len(s.pools))
	for addr := range s.pools {
		addresses = append(addresses, addr)
	}
	if err := client.SubscribeLogs(addresses); err != nil {
		return err
	}

	readErrCh := make(chan error, 1)
	go func() {
		readErrCh <- client.ReadMessages(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErrCh:
			return err
		case raw := <-client.Messages():
			s.handleNotification(ctx, raw, updateCh)
		}
	}
}

// calculateBackoff returns the delay before the given reconnect attempt,
// doubling each time up to maxBackoff.
func calculateBackoff(attempt int) time.Duration {
	backoff := initialBackoff * (1 << uint(attempt))
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	return backoff
}

func (s *Service) handleNotification(ctx context.Context, raw json.RawMessage, updateCh chan<- pipeline.GraphUpdate) {
	var notification struct {
		Result LogEntry `json:"result"`
	}
	if err := json.Unmarshal(raw, &notification); err != nil {
		log.Warn().Err(err).Msg("feed: malformed subscription notification")
		return
	}

	sync, err := s.decoder.DecodeSync(&notification.Result)
	if err != nil {
		log.Debug().Err(err).Msg("feed: skipping non-Sync log")
		return
	}

	mapping, ok := s.pools[sync.PoolAddress]
	if !ok {
		return
	}

	rate, err := Rate(sync, mapping.ReserveOutIsReserve1)
	if err != nil {
		log.Warn().Err(err).Str("pool", sync.PoolAddress).Msg("feed: could not derive rate")
		return
	}

	update := pipeline.GraphUpdate{EdgeIndex: mapping.EdgeIndex, NewRate: rate}
	select {
	case updateCh <- update:
	case <-ctx.Done():
	}
}
