package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/eventmarket/api/internal/auth"
	"github.com/eventmarket/api/internal/enum"
	"github.com/eventmarket/api/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // authenticated by JWT query param
	},
}

// Client represents a single WebSocket connection
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	room string
	send chan []byte
}

// ReadPump only detects disconnects; clients never send messages.
func (c *Client) ReadPump(logger *zap.Logger) {
	defer func() {
		c.hub.drop(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error", zap.String("room", c.room), zap.Error(err))
			}
			break
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// OrderOwnerFunc returns the host that owns an order.
type OrderOwnerFunc func(ctx context.Context, orderID uuid.UUID) (uuid.UUID, error)

// Handler upgrades authenticated requests into hub subscriptions.
type Handler struct {
	hub        *Hub
	jwtSecret  string
	orderOwner OrderOwnerFunc
}

func NewHandler(hub *Hub, jwtSecret string, orderOwner OrderOwnerFunc) *Handler {
	return &Handler{hub: hub, jwtSecret: jwtSecret, orderOwner: orderOwner}
}

// RegisterRoutes mounts:
//
//	WS /ws/admin?token=JWT
//	WS /ws/orders/{id}?token=JWT
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/admin", h.ServeAdmin)
	r.Get("/ws/orders/{id}", h.ServeOrder)
}

func (h *Handler) ServeAdmin(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	if claims.Role != enum.UserRoleAdmin {
		http.Error(w, "admin access required", http.StatusForbidden)
		return
	}
	h.serve(w, r, AdminRoom)
}

func (h *Handler) ServeOrder(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}

	if claims.Role != enum.UserRoleAdmin {
		owner, err := h.orderOwner(r.Context(), orderID)
		if errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logging.FromContext(r.Context()).Error("websocket order lookup", zap.Error(err))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if owner != claims.UserID {
			http.Error(w, "order access denied", http.StatusForbidden)
			return
		}
	}

	h.serve(w, r, OrderRoom(orderID))
}

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return nil, false
	}
	claims, err := auth.ValidateToken(h.jwtSecret, tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return nil, false
	}
	return claims, true
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, room string) {
	logger := logging.FromContext(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:  h.hub,
		conn: conn,
		room: room,
		send: make(chan []byte, 256),
	}
	if !client.hub.add(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump(logger)
}
