package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/dermview/dermview/internal/platform/auth"
)

// Conn abstracts the socket transport for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins; tighten in production.
	},
}

// Handler upgrades HTTP connections, registers clients with the registry and
// runs the per-connection read/write pumps.
type Handler struct {
	registry   *Registry
	sendBuffer int
	logger     zerolog.Logger
}

// NewHandler creates a Handler bound to the registry. sendBuffer is the
// per-connection outbox capacity.
func NewHandler(registry *Registry, sendBuffer int, logger zerolog.Logger) *Handler {
	return &Handler{
		registry:   registry,
		sendBuffer: sendBuffer,
		logger:     logger.With().Str("component", "ws-handler").Logger(),
	}
}

// RegisterRoutes registers the socket endpoint on the given Echo group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", h.HandleConnect)
}

// HandleConnect upgrades the connection, confirms the handshake identity to
// the client and starts the pumps. Identity comes from the auth middleware.
func (h *Handler) HandleConnect(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.UserIDFromContext(ctx)
	role := auth.RoleFromContext(ctx)
	if userID == "" || role == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing identity")
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := NewClient(uuid.New().String(), userID, role, &gorillaConn{ws}, h.sendBuffer)
	if err := h.registry.Register(client); err != nil {
		h.logger.Error().Err(err).Str("connection_id", client.ID).Msg("register failed")
		_ = ws.Close()
		return nil
	}

	ws.SetPongHandler(func(string) error {
		client.TouchPong()
		return nil
	})

	h.confirmConnection(client)

	go h.writePump(client, ws)
	go h.readPump(client, ws)

	h.logger.Info().
		Str("connection_id", client.ID).
		Str("user_id", userID).
		Str("role", role).
		Msg("connection established")
	return nil
}

func (h *Handler) confirmConnection(client *Client) {
	data, err := json.Marshal(serverMessage{
		Type:   messageConnectionConfirmed,
		UserID: client.UserID,
		Role:   client.Role,
	})
	if err != nil {
		return
	}
	client.send(data)
}

// readPump consumes inbound frames until the transport closes. Malformed
// frames are logged and ignored; they never terminate the connection.
func (h *Handler) readPump(client *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		h.registry.Unregister(client.ID)
		_ = ws.Close()
		h.logger.Info().Str("connection_id", client.ID).Msg("connection closed")
	}()

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			h.logger.Debug().
				Str("connection_id", client.ID).
				Msg("ignoring malformed message")
			continue
		}
		h.handleMessage(client, msg)
	}
}

func (h *Handler) handleMessage(client *Client, msg ClientMessage) {
	switch msg.Type {
	case MessageSubscribe:
		if !msg.Topic.Valid() {
			h.logger.Debug().
				Str("connection_id", client.ID).
				Str("kind", msg.Topic.Kind).
				Msg("ignoring subscribe with invalid topic")
			return
		}
		h.registry.Subscribe(client.ID, msg.Topic)
		topic := msg.Topic
		if data, err := json.Marshal(serverMessage{
			Type:  messageSubscriptionConfirmed,
			Topic: &topic,
		}); err == nil {
			client.send(data)
		}
	case MessagePing:
		client.TouchPong()
		now := time.Now().UTC()
		if data, err := json.Marshal(serverMessage{
			Type:      messagePong,
			Timestamp: &now,
		}); err == nil {
			client.send(data)
		}
	default:
		h.logger.Debug().
			Str("connection_id", client.ID).
			Str("type", msg.Type).
			Msg("ignoring unknown message type")
	}
}

// writePump drains the outbox onto the wire. It exits when the outbox is
// closed by unregister or when a write fails.
func (h *Handler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	defer ws.Close()

	for message := range client.outbox {
		if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			return
		}
	}
}

// StatsHandler reports hub occupancy for operations dashboards.
func StatsHandler(registry *Registry) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"connections": registry.ClientCount(),
		})
	}
}

// gorillaConn wraps a gorilla connection to satisfy Conn.
type gorillaConn struct {
	conn *gorillawebsocket.Conn
}

func (a *gorillaConn) ReadMessage() (int, []byte, error) {
	return a.conn.ReadMessage()
}

func (a *gorillaConn) WriteMessage(messageType int, data []byte) error {
	return a.conn.WriteMessage(messageType, data)
}

func (a *gorillaConn) Close() error {
	return a.conn.Close()
}
