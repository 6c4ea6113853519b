package devserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"notify-realtime/internal/transport"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsClient is a peer connected over a websocket. readPump feeds the hub;
// writePump owns every write to the connection.
type wsClient struct {
	id         string
	hub        *Hub
	conn       *websocket.Conn
	userID     string
	pingPeriod time.Duration
	logger     *slog.Logger

	sendMu     sync.Mutex
	send       chan []byte
	sendClosed bool
	closeMsg   []byte

	closed int32 // atomic flag to track if client is closed
	done   chan struct{}
}

func newWSClient(hub *Hub, conn *websocket.Conn, userID string, pingPeriod time.Duration, logger *slog.Logger) *wsClient {
	return &wsClient{
		id:         uuid.New().String(),
		hub:        hub,
		conn:       conn,
		userID:     userID,
		pingPeriod: pingPeriod,
		logger:     logger,
		send:       make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

func (c *wsClient) ID() string     { return c.id }
func (c *wsClient) UserID() string { return c.userID }

func (c *wsClient) isClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

func (c *wsClient) Send(f transport.Frame) bool {
	if c.isClosed() {
		return false
	}
	data, err := json.Marshal(f)
	if err != nil {
		return false
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		// Send buffer is full, close the client
		c.logger.Warn("Send buffer full, closing client", "clientID", c.id, "userID", c.userID)
		c.closeSendLocked(websocket.FormatCloseMessage(websocket.CloseGoingAway, "slow consumer"))
		return false
	}
}

// Close queues a disconnect frame and then a normal close.
func (c *wsClient) Close(reason string) {
	c.Send(newFrame(transport.EventDisconnect, transport.DisconnectData{Reason: reason}))

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.closeSendLocked(websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason))
}

func (c *wsClient) closeSendLocked(closeMsg []byte) {
	if c.sendClosed {
		return
	}
	c.sendClosed = true
	c.closeMsg = closeMsg
	close(c.send)
}

func (c *wsClient) readPump() {
	defer func() {
		atomic.StoreInt32(&c.closed, 1)
		c.hub.unregister(c)

		c.sendMu.Lock()
		c.closeSendLocked(nil)
		c.sendMu.Unlock()

		<-c.done
		if err := c.conn.Close(); err != nil {
			c.logger.Debug("Error closing connection", "clientID", c.id, "userID", c.userID, "error", err)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "clientID", c.id, "userID", c.userID, "error", err)
			} else {
				c.logger.Debug("WebSocket connection closed", "clientID", c.id, "userID", c.userID, "error", err)
			}
			return
		}

		var f transport.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.logger.Warn("Failed to unmarshal frame", "clientID", c.id, "userID", c.userID, "error", err)
			c.hub.sendError(c, "INVALID_MESSAGE", "Invalid message format")
			continue
		}
		c.hub.handle(c, f)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.done)
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.sendMu.Lock()
				closeMsg := c.closeMsg
				c.sendMu.Unlock()
				if closeMsg != nil {
					c.conn.WriteMessage(websocket.CloseMessage, closeMsg)
					// Give the client a moment to answer the close before
					// readPump gives up on it.
					c.conn.SetReadDeadline(time.Now().Add(time.Second))
				}
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				c.logger.Debug("Error getting next writer", "clientID", c.id, "error", err)
				return
			}
			w.Write(message)

			// Add queued frames to the current websocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				queued, ok := <-c.send
				if !ok {
					break
				}
				w.Write([]byte{'\n'})
				w.Write(queued)
			}

			if err := w.Close(); err != nil {
				c.logger.Debug("Error closing writer", "clientID", c.id, "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("Error sending ping", "clientID", c.id, "error", err)
				return
			}
		}
	}
}

// serveWS upgrades the request and starts the client's pumps.
func serveWS(hub *Hub, w http.ResponseWriter, r *http.Request, userID string, pingPeriod time.Duration, logger *slog.Logger) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Failed to upgrade WebSocket connection", "userID", userID, "error", err)
		return
	}

	client := newWSClient(hub, conn, userID, pingPeriod, logger)
	logger.Info("New WebSocket connection established", "clientID", client.id, "userID", userID, "roomID", r.URL.Query().Get("roomId"))

	go client.writePump()
	hub.register(client)
	go client.readPump()
}
