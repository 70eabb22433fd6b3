// Package relay connects browser peers of a room over WebSockets. Peers push
// snapshots; the node merges them into its replica and broadcasts the merged
// snapshot back to everyone in the room.
package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/AdamBeresnev/bracket-mesh/internal/replica"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	TypeSnapshot = "snapshot"
	TypeError    = "error"
)

type Message struct {
	Type    string          `json:"type"`
	RoomID  string          `json:"roomId,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Rooms is the node side of the relay: it owns the replicas.
type Rooms interface {
	Snapshot(ctx context.Context, roomID string) (replica.Snapshot, error)
	Merge(ctx context.Context, roomID, peerID string, snap replica.Snapshot) (replica.Snapshot, error)
}

// Recorder receives relay counters. The metrics package implements it.
type Recorder interface {
	RelayMessage(direction string)
	RelayDropped(reason string)
	SetRooms(n int)
}

type nopRecorder struct{}

func (nopRecorder) RelayMessage(string) {}
func (nopRecorder) RelayDropped(string) {}
func (nopRecorder) SetRooms(int)        {}

const (
	DefaultRate  = 5
	DefaultBurst = 10

	mergeTimeout = 5 * time.Second
)

type Option func(*Hub)

func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

func WithRecorder(r Recorder) Option {
	return func(h *Hub) { h.recorder = r }
}

// WithRateLimit bounds inbound messages per client.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(h *Hub) {
		h.limit = limit
		h.burst = burst
	}
}

// WithCheckOrigin replaces the upgrader's origin check.
func WithCheckOrigin(check func(r *http.Request) bool) Option {
	return func(h *Hub) { h.upgrader.CheckOrigin = check }
}

type Hub struct {
	rooms    Rooms
	logger   *slog.Logger
	recorder Recorder
	upgrader websocket.Upgrader
	limit    rate.Limit
	burst    int

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu      sync.RWMutex
	clients map[string]map[*Client]bool
}

func NewHub(rooms Rooms, opts ...Option) *Hub {
	h := &Hub{
		rooms:    rooms,
		logger:   slog.Default(),
		recorder: nopRecorder{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		limit:      DefaultRate,
		burst:      DefaultBurst,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[string]map[*Client]bool),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run owns room membership until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for room, clients := range h.clients {
				for c := range clients {
					c.close()
				}
				delete(h.clients, room)
			}
			h.mu.Unlock()
			h.recorder.SetRooms(0)
			return nil

		case c := <-h.register:
			h.mu.Lock()
			if _, ok := h.clients[c.room]; !ok {
				h.clients[c.room] = make(map[*Client]bool)
			}
			h.clients[c.room][c] = true
			n, rooms := len(h.clients[c.room]), len(h.clients)
			h.mu.Unlock()
			h.recorder.SetRooms(rooms)
			h.logger.Info("peer joined relay", "room", c.room, "peer", c.peerID, "clients", n)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.room][c]; ok {
				delete(h.clients[c.room], c)
				if len(h.clients[c.room]) == 0 {
					delete(h.clients, c.room)
				}
			}
			rooms := len(h.clients)
			h.mu.Unlock()
			c.close()
			h.recorder.SetRooms(rooms)
			h.logger.Info("peer left relay", "room", c.room, "peer", c.peerID)
		}
	}
}

// ClientCount reports how many peers are connected to room.
func (h *Hub) ClientCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[room])
}

// ServeWS upgrades the request and attaches the peer to room. The peer
// receives the current snapshot straight away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, room, peerID string) {
	snap, err := h.rooms.Snapshot(r.Context(), room)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "room", room, "error", err)
		return
	}

	c := &Client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, 256),
		room:    room,
		peerID:  peerID,
		limiter: rate.NewLimiter(h.limit, h.burst),
	}
	if data, err := encode(TypeSnapshot, room, snap); err == nil {
		c.send <- data
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// Publish sends snap to every peer in room.
func (h *Hub) Publish(room string, snap replica.Snapshot) {
	data, err := encode(TypeSnapshot, room, snap)
	if err != nil {
		h.logger.Error("encode snapshot for relay", "room", room, "error", err)
		return
	}
	h.broadcast(room, data)
}

func (h *Hub) broadcast(room string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[room] {
		if c.trySend(data) {
			h.recorder.RelayMessage("out")
		} else {
			h.recorder.RelayDropped("send_buffer_full")
		}
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// handle processes one inbound frame from c.
func (h *Hub) handle(c *Client, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		h.recorder.RelayDropped("malformed")
		c.reject("malformed message")
		return
	}
	if msg.Type != TypeSnapshot {
		h.recorder.RelayDropped("unknown_type")
		c.reject("unknown message type " + msg.Type)
		return
	}
	snap, err := replica.Unmarshal(msg.Payload)
	if err != nil {
		h.recorder.RelayDropped("malformed")
		c.reject(err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), mergeTimeout)
	defer cancel()
	merged, err := h.rooms.Merge(ctx, c.room, c.peerID, snap)
	if err != nil {
		h.logger.Error("relay merge failed", "room", c.room, "peer", c.peerID, "error", err)
		c.reject("merge failed")
		return
	}
	h.Publish(c.room, merged)
}

func encode(kind, room string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: kind, RoomID: room, Payload: raw})
}
