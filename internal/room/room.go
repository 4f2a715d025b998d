// Package room implements the Room Fanout (RF): a per-match registry of
// connected players and spectators that routes outbound frames. Grounded
// directly on internal/ws/handler.go's Hub (register/unregister, buffered
// per-connection send channel, 30s ping writePump) but narrowed from one
// process-wide Hub keyed by gameID to one Room struct per match guarded by
// a single lock, per spec.md §9's "multiple map(role→connection) tables"
// design note.
package room

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 10 * time.Second
	sendBuffer   = 16
)

// Conn is the narrow surface Room needs from a websocket connection,
// satisfied by *websocket.Conn in production and fakes in tests.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client wraps one connection with its own outbound queue so that writes
// stay FIFO per-connection even while Room.broadcast holds its lock only
// long enough to enqueue.
type Client struct {
	PlayerID string
	conn     Conn
	send     chan []byte
	closed   bool
	mu       sync.Mutex
}

func NewClient(playerID string, conn Conn) *Client {
	c := &Client{PlayerID: playerID, conn: conn, send: make(chan []byte, sendBuffer)}
	go c.writePump()
	return c
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[ROOM] write error for player %s: %v", c.PlayerID, err)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[ROOM] ping error for player %s: %v", c.PlayerID, err)
				return
			}
		}
	}
}

// enqueue drops the frame rather than blocking when the client's buffer is
// full, matching the teacher's "buffer full, drop and log" policy.
func (c *Client) enqueue(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("[ROOM] send buffer full for player %s, dropping frame", c.PlayerID)
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Room is the single players+spectators table for one match, guarded by
// one lock (spec.md §4.4, §9).
type Room struct {
	matchID    string
	mu         sync.RWMutex
	players    map[string]*Client
	spectators map[*Client]struct{}
}

func New(matchID string) *Room {
	return &Room{
		matchID:    matchID,
		players:    make(map[string]*Client),
		spectators: make(map[*Client]struct{}),
	}
}

func (r *Room) AddPlayer(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.players[client.PlayerID]; ok && old != client {
		old.close()
	}
	r.players[client.PlayerID] = client
}

func (r *Room) RemovePlayer(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.players[playerID]; ok {
		c.close()
		delete(r.players, playerID)
	}
}

func (r *Room) AddSpectator(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spectators[client] = struct{}{}
}

func (r *Room) RemoveSpectator(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.spectators[client]; ok {
		client.close()
		delete(r.spectators, client)
	}
}

func (r *Room) marshal(message interface{}) ([]byte, bool) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("[ROOM] marshal error for match %s: %v", r.matchID, err)
		return nil, false
	}
	return data, true
}

// BroadcastToPlayers sends message to every currently registered player.
func (r *Room) BroadcastToPlayers(message interface{}) {
	data, ok := r.marshal(message)
	if !ok {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.players {
		c.enqueue(data)
	}
}

// BroadcastToSpectators sends message to every currently registered
// spectator.
func (r *Room) BroadcastToSpectators(message interface{}) {
	data, ok := r.marshal(message)
	if !ok {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for c := range r.spectators {
		c.enqueue(data)
	}
}

// BroadcastToAll sends message to every player and spectator.
func (r *Room) BroadcastToAll(message interface{}) {
	data, ok := r.marshal(message)
	if !ok {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.players {
		c.enqueue(data)
	}
	for c := range r.spectators {
		c.enqueue(data)
	}
}

// SendToPlayer direct-sends message to one player; no-op if the player
// isn't currently attached to the room.
func (r *Room) SendToPlayer(playerID string, message interface{}) {
	data, ok := r.marshal(message)
	if !ok {
		return
	}
	r.mu.RLock()
	c, exists := r.players[playerID]
	r.mu.RUnlock()
	if !exists {
		return
	}
	c.enqueue(data)
}

// HasPlayer reports whether playerID currently has a live connection.
func (r *Room) HasPlayer(playerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.players[playerID]
	return ok
}

// Close tears down every member connection; used on match completion,
// timeout, or emergency shutdown (spec.md "Resource lifetime").
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.players {
		c.close()
		delete(r.players, id)
	}
	for c := range r.spectators {
		c.close()
		delete(r.spectators, c)
	}
}
