package websocket

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Connection roles, supplied by auth at handshake.
const (
	RoleOwner    = "owner"
	RoleReviewer = "reviewer"
)

// Client is one live connection. A user may hold several clients at once;
// the registry never deduplicates by UserID.
type Client struct {
	ID     string
	UserID string
	Role   string

	// outbox is the bounded delivery buffer. The dispatcher owns writes;
	// the transport write pump drains it.
	outbox chan []byte

	mu       sync.Mutex
	lastPong time.Time
	closed   bool

	conn Conn
}

// NewClient builds a client over the given transport with a bounded outbox.
func NewClient(id, userID, role string, conn Conn, buffer int) *Client {
	if buffer <= 0 {
		buffer = 256
	}
	return &Client{
		ID:       id,
		UserID:   userID,
		Role:     role,
		outbox:   make(chan []byte, buffer),
		lastPong: time.Now(),
		conn:     conn,
	}
}

// TouchPong records liveness for the heartbeat sweep.
func (c *Client) TouchPong() {
	c.mu.Lock()
	c.lastPong = time.Now()
	c.mu.Unlock()
}

// LastPong returns the time of the most recent liveness signal.
func (c *Client) LastPong() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPong
}

// closeOutbox closes the outbox exactly once. Safe under repeated unregister.
func (c *Client) closeOutbox() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.outbox)
}

// send places data on the outbox without ever blocking. When the buffer is
// full the oldest queued frame is dropped so the newest state wins; a stalled
// client only loses its own backlog.
func (c *Client) send(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.outbox <- data:
		return
	default:
	}
	select {
	case <-c.outbox:
	default:
	}
	select {
	case c.outbox <- data:
	default:
	}
}

// Registry is the single source of truth for live connections and their topic
// subscriptions. Safe for concurrent use by connection handlers, the
// dispatcher and the heartbeat sweep.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client              // connection id -> client
	topics  map[string]map[*Client]struct{} // topic key -> subscribers
	subs    map[*Client]map[string]Topic    // client -> subscribed topics

	logger zerolog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		clients: make(map[string]*Client),
		topics:  make(map[string]map[*Client]struct{}),
		subs:    make(map[*Client]map[string]Topic),
		logger:  logger.With().Str("component", "ws-registry").Logger(),
	}
}

// Register adds a client. Connection ids are never reused, so a collision is
// an invariant violation and is rejected.
func (r *Registry) Register(c *Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[c.ID]; exists {
		return fmt.Errorf("connection id %s already registered", c.ID)
	}
	r.clients[c.ID] = c
	r.subs[c] = make(map[string]Topic)
	return nil
}

// Subscribe adds the topic to the client's set and the client to the topic
// index. A no-op when already subscribed. An unknown connection id is a
// benign race with disconnect: logged, not an error.
func (r *Registry) Subscribe(connectionID string, topic Topic) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[connectionID]
	if !ok {
		r.logger.Debug().
			Str("connection_id", connectionID).
			Str("topic", topic.Key()).
			Msg("subscribe for unknown connection, ignoring")
		return
	}

	key := topic.Key()
	if _, already := r.subs[c][key]; already {
		return
	}
	r.subs[c][key] = topic
	if r.topics[key] == nil {
		r.topics[key] = make(map[*Client]struct{})
	}
	r.topics[key][c] = struct{}{}
}

// Unregister removes the client from every topic index and the connection
// table in one atomic step, then closes its outbox. Idempotent.
func (r *Registry) Unregister(connectionID string) {
	r.mu.Lock()
	c, ok := r.clients[connectionID]
	if ok {
		for key := range r.subs[c] {
			if subscribers, found := r.topics[key]; found {
				delete(subscribers, c)
				if len(subscribers) == 0 {
					delete(r.topics, key)
				}
			}
		}
		delete(r.subs, c)
		delete(r.clients, connectionID)
	}
	r.mu.Unlock()

	if ok {
		c.closeOutbox()
	}
}

// Get returns the client for a connection id, or nil.
func (r *Registry) Get(connectionID string) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clients[connectionID]
}

// Snapshot returns all currently registered clients.
func (r *Registry) Snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

// SubscribersOf returns the clients subscribed to the topic.
func (r *Registry) SubscribersOf(topic Topic) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	subscribers := r.topics[topic.Key()]
	out := make([]*Client, 0, len(subscribers))
	for c := range subscribers {
		out = append(out, c)
	}
	return out
}

// ClientCount returns the number of live connections.
func (r *Registry) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// TopicCount returns the number of subscribers on a topic.
func (r *Registry) TopicCount(topic Topic) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics[topic.Key()])
}
