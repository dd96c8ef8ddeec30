package websocket

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// EventPublisher is the contract the domain layer uses to announce validation
// transitions without knowing about connections.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// Dispatcher consumes transition events from a FIFO queue and delivers each
// to the connections the router resolves. Delivery is at-most-once and never
// blocks: a slow client loses its own oldest buffered frames, nothing else.
type Dispatcher struct {
	registry *Registry
	queue    chan Event
	logger   zerolog.Logger
}

// NewDispatcher creates a Dispatcher over the given registry.
func NewDispatcher(registry *Registry, queueSize int, logger zerolog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Dispatcher{
		registry: registry,
		queue:    make(chan Event, queueSize),
		logger:   logger.With().Str("component", "ws-dispatcher").Logger(),
	}
}

// Publish implements EventPublisher. It enqueues and returns immediately;
// when the queue is saturated the event is dropped with a warning so callers
// in the request path are never stalled by the hub.
func (d *Dispatcher) Publish(_ context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case d.queue <- event:
	default:
		d.logger.Warn().
			Str("event", event.Type).
			Str("subject_id", event.SubjectID).
			Msg("dispatch queue full, dropping event")
	}
	return nil
}

// Start runs the dispatch loop until ctx is cancelled. Events are processed
// in the order they were published.
func (d *Dispatcher) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.queue:
			d.dispatch(ev)
		}
	}
}

func (d *Dispatcher) dispatch(ev Event) {
	data, err := marshalEvent(ev)
	if err != nil {
		d.logger.Error().Err(err).Str("event", ev.Type).Msg("failed to encode event")
		return
	}

	recipients := Resolve(ev, d.registry)
	for _, c := range recipients {
		c.send(data)
	}

	d.logger.Debug().
		Str("event", ev.Type).
		Str("subject_id", ev.SubjectID).
		Str("owner_id", ev.OwnerID).
		Int("recipients", len(recipients)).
		Msg("event dispatched")
}
