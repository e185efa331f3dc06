package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const maxFrameSize = 64 * 1024

// ClientOptions tunes a connection.
type ClientOptions struct {
	SendBuffer   int
	WriteTimeout time.Duration
	PongWait     time.Duration
}

// Client represents one subscriber connection. Outbound frames go through a buffered FIFO
// drained by the write pump.
type Client struct {
	id           string
	userID       int64
	conn         *websocket.Conn
	hub          *Hub
	writeTimeout time.Duration
	pongWait     time.Duration
	logger       *zap.Logger

	mu     sync.Mutex
	closed bool
	send   chan []byte
}

// NewClient builds a client. conn may be nil for a client that is only used through the hub.
func NewClient(id string, userID int64, conn *websocket.Conn, hub *Hub, opts ClientOptions, logger *zap.Logger) *Client {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 16
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.PongWait <= 0 {
		opts.PongWait = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		id:           id,
		userID:       userID,
		conn:         conn,
		hub:          hub,
		writeTimeout: opts.WriteTimeout,
		pongWait:     opts.PongWait,
		logger:       logger,
		send:         make(chan []byte, opts.SendBuffer),
	}
}

// ID returns the connection identifier.
func (c *Client) ID() string {
	return c.id
}

// UserID returns the authenticated user, 0 for anonymous clients.
func (c *Client) UserID() int64 {
	return c.userID
}

// Run launches the write pump and blocks in the read pump until the connection ends.
func (c *Client) Run(ctx context.Context) {
	go c.writePump(ctx)
	c.readPump(ctx)
}

// Enqueue queues msg without blocking. It reports false when the client is closed or its
// buffer is full.
func (c *Client) Enqueue(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		c.logger.Warn("dropping outgoing message, buffer full", zap.String("client_id", c.id))
		return false
	}
}

// Close stops accepting frames. Frames already queued are still written before the close
// frame.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Ping sends a ping control frame. It is safe to call concurrently with the write pump.
func (c *Client) Ping() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

func (c *Client) readPump(ctx context.Context) {
	defer c.cleanup()
	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info("connection read closed", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}
		c.handle(message)
	}
}

func (c *Client) handle(message []byte) {
	var frame Frame
	if err := json.Unmarshal(message, &frame); err != nil {
		c.reply(EventError, ErrorReply{Message: "invalid json"})
		return
	}

	room, join, errMsg := resolve(frame)
	if errMsg != "" {
		c.reply(EventError, ErrorReply{Message: errMsg})
		return
	}

	if join {
		c.hub.Join(c, room)
		c.reply(EventSubscribed, RoomReply{Room: room})
	} else {
		c.hub.Leave(c, room)
		c.reply(EventUnsubscribed, RoomReply{Room: room})
	}
	c.logger.Debug("subscription changed", zap.String("client_id", c.id), zap.String("room", room), zap.Bool("join", join))
}

func (c *Client) reply(event string, payload interface{}) {
	msg, err := EncodeFrame(event, payload)
	if err != nil {
		c.logger.Error("failed to encode reply", zap.String("event", event), zap.Error(err))
		return
	}
	c.Enqueue(msg)
}

func (c *Client) writePump(ctx context.Context) {
	defer c.conn.Close()

	for {
		select {
		case <-ctx.Done():
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case msg, ok := <-c.send:
			if !ok {
				_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.logger.Debug("write failed", zap.String("client_id", c.id), zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteMessage(messageType, data)
}

func (c *Client) cleanup() {
	c.hub.LeaveAll(c)
	c.Close()
}
