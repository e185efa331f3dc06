package ws

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Hub tracks which clients are in which room and fans events out to them.
type Hub struct {
	mu           sync.RWMutex
	rooms        map[string]map[*Client]struct{}
	clients      map[*Client]map[string]struct{}
	pingInterval time.Duration
	logger       *zap.Logger
}

// NewHub builds a hub.
func NewHub(pingInterval time.Duration, logger *zap.Logger) *Hub {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:        make(map[string]map[*Client]struct{}),
		clients:      make(map[*Client]map[string]struct{}),
		pingInterval: pingInterval,
		logger:       logger,
	}
}

// Register adds a connected client with no rooms.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		h.clients[c] = make(map[string]struct{})
	}
}

// Join puts c in room. It reports false when c was already a member.
func (h *Hub) Join(c *Client, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	if _, ok := members[c]; ok {
		return false
	}
	members[c] = struct{}{}

	joined, ok := h.clients[c]
	if !ok {
		joined = make(map[string]struct{})
		h.clients[c] = joined
	}
	joined[room] = struct{}{}
	return true
}

// Leave removes c from room. It reports false when c was not a member.
func (h *Hub) Leave(c *Client, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.leaveLocked(c, room)
}

func (h *Hub) leaveLocked(c *Client, room string) bool {
	members, ok := h.rooms[room]
	if !ok {
		return false
	}
	if _, ok := members[c]; !ok {
		return false
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
	if joined, ok := h.clients[c]; ok {
		delete(joined, room)
	}
	return true
}

// LeaveAll removes c from every room and forgets it.
func (h *Hub) LeaveAll(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range h.clients[c] {
		h.leaveLocked(c, room)
	}
	delete(h.clients, c)
}

// Members returns the number of clients in room.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Rooms returns the rooms c belongs to, sorted.
func (h *Hub) Rooms(c *Client) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.clients[c]))
	for room := range h.clients[c] {
		out = append(out, room)
	}
	sort.Strings(out)
	return out
}

// Broadcast encodes the event once and queues it for every member of room. Members that are
// closed or whose queue is full are skipped. It returns the number of clients the frame was
// queued for.
func (h *Hub) Broadcast(room, event string, payload interface{}) int {
	msg, err := EncodeFrame(event, payload)
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("event", event), zap.Error(err))
		return 0
	}

	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range members {
		if c.Enqueue(msg) {
			delivered++
			continue
		}
		h.logger.Warn("skipping client", zap.String("room", room), zap.String("client_id", c.ID()), zap.String("event", event))
	}
	return delivered
}

// Start begins ping loop to keep connections active.
func (h *Hub) Start(ctx context.Context) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, c := range h.snapshot() {
				if err := c.Ping(); err != nil {
					h.logger.Debug("ping failed", zap.String("client_id", c.ID()), zap.Error(err))
				}
			}
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	for _, c := range h.snapshot() {
		c.Close()
	}
}

// Clients returns the number of registered clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) snapshot() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}
