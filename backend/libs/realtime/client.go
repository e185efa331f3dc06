// Package realtime is a subscriber for the reservation-service WebSocket gateway.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by Send when no connection is open. The subscription is still
// recorded and sent on the next connect.
var ErrNotConnected = errors.New("realtime: not connected")

// Event is one frame received from the gateway.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Options configures a Client.
type Options struct {
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Buffer     int
	Header     http.Header
	Dialer     *websocket.Dialer
	Logger     *zap.Logger
}

type target struct {
	kind string
	id   string
}

func (t target) key() string { return t.kind + ":" + t.id }

func (t target) frame(join bool) map[string]interface{} {
	var event, field string
	switch t.kind {
	case "charger":
		event, field = "unsubscribeFromCharger", "chargerId"
		if join {
			event = "subscribeToCharger"
		}
	default:
		event, field = "unsubscribeFromStation", "stationId"
		if join {
			event = "subscribeToStation"
		}
	}
	return map[string]interface{}{"event": event, "data": map[string]string{field: t.id}}
}

// Client keeps one connection to the gateway alive and replays its subscriptions after
// every reconnect.
type Client struct {
	url    string
	opts   Options
	logger *zap.Logger
	events chan Event

	mu   sync.Mutex
	subs map[string]target
	conn *websocket.Conn
}

// New builds a client for url (ws:// or wss://). Nothing is dialed until Run.
func New(url string, opts Options) *Client {
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = 30 * time.Second
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		url:    url,
		opts:   opts,
		logger: logger,
		events: make(chan Event, opts.Buffer),
		subs:   make(map[string]target),
	}
}

// Events delivers every frame read from the gateway. It is closed when Run returns.
func (c *Client) Events() <-chan Event {
	return c.events
}

// SubscribeCharger adds the charger room to the subscription set.
func (c *Client) SubscribeCharger(id string) error {
	return c.change(target{kind: "charger", id: id}, true)
}

// SubscribeStation adds the station room to the subscription set.
func (c *Client) SubscribeStation(id string) error {
	return c.change(target{kind: "station", id: id}, true)
}

// UnsubscribeCharger removes the charger room from the subscription set.
func (c *Client) UnsubscribeCharger(id string) error {
	return c.change(target{kind: "charger", id: id}, false)
}

// UnsubscribeStation removes the station room from the subscription set.
func (c *Client) UnsubscribeStation(id string) error {
	return c.change(target{kind: "station", id: id}, false)
}

// Subscriptions lists the rooms the client wants, sorted.
func (c *Client) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.subs))
	for key := range c.subs {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func (c *Client) change(t target, join bool) error {
	t.id = strings.TrimSpace(t.id)
	if t.id == "" {
		return fmt.Errorf("realtime: %s id is required", t.kind)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, exists := c.subs[t.key()]
	if join == exists {
		return nil
	}
	if join {
		c.subs[t.key()] = t
	} else {
		delete(c.subs, t.key())
	}

	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteJSON(t.frame(join))
}

// Run connects and reads until ctx is cancelled, reconnecting with exponential backoff.
// It always returns ctx.Err().
func (c *Client) Run(ctx context.Context) error {
	defer close(c.events)

	backoff := c.opts.MinBackoff
	for {
		connected, err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			backoff = c.opts.MinBackoff
		}
		c.logger.Warn("gateway connection lost", zap.Error(err), zap.Duration("retry_in", backoff))

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if backoff < c.opts.MaxBackoff {
			backoff *= 2
			if backoff > c.opts.MaxBackoff {
				backoff = c.opts.MaxBackoff
			}
		}
	}
}

// session runs one connection. connected reports whether the dial and replay succeeded.
func (c *Client) session(ctx context.Context) (connected bool, err error) {
	conn, _, err := c.opts.Dialer.DialContext(ctx, c.url, c.opts.Header)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", c.url, err)
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	if err := c.attach(conn); err != nil {
		_ = conn.Close()
		return false, err
	}
	defer c.detach(conn)
	c.logger.Info("gateway connected", zap.String("url", c.url), zap.Strings("subscriptions", c.Subscriptions()))

	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			return true, err
		}
		select {
		case c.events <- ev:
		case <-ctx.Done():
			return true, ctx.Err()
		}
	}
}

func (c *Client) attach(conn *websocket.Conn) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.subs))
	for key := range c.subs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := conn.WriteJSON(c.subs[key].frame(true)); err != nil {
			return fmt.Errorf("resubscribe %s: %w", key, err)
		}
	}
	// set while still holding mu so a concurrent change cannot miss this connection
	c.conn = conn
	return nil
}

func (c *Client) detach(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close()
}
