package realtime

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/groeigesprek/backend/pkg/apperr"
	"github.com/groeigesprek/backend/pkg/response"
)

// Client is one websocket connection watching a session, or the catalog
// when SessionID is uuid.Nil.
type Client struct {
	ID        string
	SessionID uuid.UUID
	hub       *Hub
	conn      *websocket.Conn
	send      chan WSMessage
}

func newClient(hub *Hub, sessionID uuid.UUID, conn *websocket.Conn) *Client {
	return &Client{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		hub:       hub,
		conn:      conn,
		send:      make(chan WSMessage, sendBuffer),
	}
}

// Handler upgrades availability watchers to websockets.
type Handler struct {
	hub       *Hub
	announcer *Announcer
	upgrader  websocket.Upgrader
	logger    *zap.Logger
}

// NewHandler creates a websocket handler. allowedOrigins follows the CORS
// setting: "*" or a comma-separated list.
func NewHandler(hub *Hub, announcer *Announcer, allowedOrigins string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := map[string]bool{}
	for _, o := range strings.Split(allowedOrigins, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins[o] = true
		}
	}
	return &Handler{
		hub:       hub,
		announcer: announcer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(origins) == 0 || origins["*"] || origins[origin]
			},
		},
		logger: logger,
	}
}

// Availability handles GET /ws/availability?session_id=. Without session_id
// the client receives events for every session.
func (h *Handler) Availability(c *gin.Context) {
	sessionID := uuid.Nil
	var snapshot *Availability
	if raw := c.Query("session_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Error(c, nil, apperr.Validation("invalid session_id", apperr.Field("session_id", "must be a valid id")))
			return
		}
		snapshot, err = h.announcer.Snapshot(c.Request.Context(), id)
		if err == nil && snapshot == nil {
			err = apperr.NotFound("session not found")
		}
		if err != nil {
			response.Error(c, h.logger, apperr.FromStore(err, "session not found"))
			return
		}
		sessionID = id
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := newClient(h.hub, sessionID, conn)
	if snapshot != nil {
		if data, err := json.Marshal(snapshot); err == nil {
			client.send <- WSMessage{Event: EventAvailability, Data: data}
		}
	}
	h.hub.Register(client)
	go client.writePump()
	client.readPump()
}

// readPump only watches for close and pong frames; watchers send nothing.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(PongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
