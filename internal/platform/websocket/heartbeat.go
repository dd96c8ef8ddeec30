package websocket

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Heartbeat evicts connections that have gone quiet. Clients ping at a fixed
// interval; a connection whose last liveness signal is older than twice that
// interval is unregistered and its transport closed. Clients reconnect and
// re-subscribe on their own; the server keeps no subscription memory for
// departed connections.
type Heartbeat struct {
	registry *Registry
	interval time.Duration
	logger   zerolog.Logger
}

// NewHeartbeat creates a sweep over the registry. interval is the expected
// client ping cadence; the sweep itself runs at the same cadence.
func NewHeartbeat(registry *Registry, interval time.Duration, logger zerolog.Logger) *Heartbeat {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Heartbeat{
		registry: registry,
		interval: interval,
		logger:   logger.With().Str("component", "ws-heartbeat").Logger(),
	}
}

// Start runs the sweep until ctx is cancelled.
func (h *Heartbeat) Start(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Sweep()
		}
	}
}

// Sweep evicts every connection whose last pong is older than 2x the ping
// interval. Eviction unregisters first so no delivery can target the
// connection after its transport closes.
func (h *Heartbeat) Sweep() {
	cutoff := time.Now().Add(-2 * h.interval)
	for _, c := range h.registry.Snapshot() {
		if c.LastPong().After(cutoff) {
			continue
		}
		h.logger.Info().
			Str("connection_id", c.ID).
			Str("user_id", c.UserID).
			Time("last_pong", c.LastPong()).
			Msg("evicting stale connection")
		h.registry.Unregister(c.ID)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	}
}
