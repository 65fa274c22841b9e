package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/myfevent/backend/internal/auth"
	"github.com/myfevent/backend/internal/middleware"
	"github.com/myfevent/backend/internal/models"
)

const (
	sendBuffer   = 64
	readLimit    = 4096
	writeTimeout = 10 * time.Second
)

// WSMessage is the websocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// TokenValidator validates the token passed in the query string.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// MembershipResolver finds a user's membership in an event.
type MembershipResolver interface {
	EventMembership(ctx context.Context, eventID, userID uuid.UUID) (*models.EventMember, error)
}

// Client is one websocket connection watching an event.
type Client struct {
	ID      string
	EventID uuid.UUID
	UserID  uuid.UUID
	Role    models.EventRole
	hub     *Hub
	conn    *websocket.Conn
	send    chan WSMessage
}

// NewClient creates a client that is not yet attached to a connection.
func NewClient(hub *Hub, eventID, userID uuid.UUID, role models.EventRole) *Client {
	return &Client{
		ID:      uuid.New().String(),
		EventID: eventID,
		UserID:  userID,
		Role:    role,
		hub:     hub,
		send:    make(chan WSMessage, sendBuffer),
	}
}

// ServeWs handles GET /ws?event_id=&token=. Only participants of the event may join its room.
func ServeWs(hub *Hub, validator TokenValidator, members MembershipResolver, origins middleware.OriginPolicy, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || origins.Allow(origin) != ""
		},
	}
	return func(c *gin.Context) {
		eventIDStr := c.Query("event_id")
		token := c.Query("token")
		if eventIDStr == "" || token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "event_id and token required"})
			return
		}
		eventID, err := uuid.Parse(eventIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid event_id"})
			return
		}
		claims, err := validator.Validate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid token"})
			return
		}
		m, err := members.EventMembership(c.Request.Context(), eventID, claims.UserID)
		if err != nil {
			logger.Error("resolve websocket membership failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "failed to join event"})
			return
		}
		if m == nil {
			c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "not a participant of this event"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		client := NewClient(hub, eventID, claims.UserID, m.Role)
		client.conn = conn
		hub.Register(client)
		go client.writePump()
		client.readPump()
	}
}

// readPump keeps the connection alive. Clients only listen; the one message
// they may send is "ping".
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		if msg.Event == "ping" {
			select {
			case c.send <- WSMessage{Event: "pong"}:
			default:
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
