// Package registry tracks live connections per game: which player or
// spectator is attached to which channel, broadcasting state pushes to
// all of them, and handling the reconnect-supersedes rule.
package registry

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Channel is the minimal capability a transport must offer to be
// registered: send a framed message, and close. The registry never
// imports a concrete transport package — internal/wsconn supplies the
// gorilla/websocket implementation.
type Channel interface {
	SendBytes(data []byte) error
	Close() error
}

type connection struct {
	playerID   string
	spectator  bool
	channel    Channel
	lastSeen   time.Time
	failStreak int
}

// Room holds every connection attached to one game code.
type Room struct {
	mu    sync.RWMutex
	byKey map[string]*connection // player_id, or "spectator:<n>" for spectators
	next  int
}

// Registry is the process-wide map of game code to Room, guarded by a
// singleton lazily-built map in the same sync.Once + RWMutex shape the
// teacher uses for its engine registry.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

var (
	instance *Registry
	once     sync.Once
)

// Get returns the process-wide connection registry.
func Get() *Registry {
	once.Do(func() {
		instance = &Registry{rooms: make(map[string]*Room)}
	})
	return instance
}

func (r *Registry) room(gameCode string) *Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[gameCode]
	if !ok {
		room = &Room{byKey: make(map[string]*connection)}
		r.rooms[gameCode] = room
	}
	return room
}

// ConnectionInfo is the payload broadcast after Register/Unregister, so
// every connected client learns who else is present.
type ConnectionInfo struct {
	ConnectedPlayers []string `json:"connected_players"`
	SpectatorCount   int      `json:"spectator_count"`
}

// Register attaches ch under (gameCode, playerID). A second Register for
// the same (gameCode, playerID) closes the superseded connection first —
// "reconnect supersedes", never two live channels for one seat.
func (r *Registry) Register(gameCode, playerID string, ch Channel) {
	room := r.room(gameCode)
	room.mu.Lock()
	if old, ok := room.byKey[playerID]; ok {
		old.channel.Close()
	}
	room.byKey[playerID] = &connection{playerID: playerID, channel: ch, lastSeen: time.Now()}
	room.mu.Unlock()
	r.broadcastConnectionInfo(gameCode)
}

// RegisterSpectator attaches ch as a spectator; spectators do not
// supersede one another and are not named in connected_players.
func (r *Registry) RegisterSpectator(gameCode string, ch Channel) {
	room := r.room(gameCode)
	room.mu.Lock()
	room.next++
	key := spectatorKey(room.next)
	room.byKey[key] = &connection{spectator: true, channel: ch, lastSeen: time.Now()}
	room.mu.Unlock()
	r.broadcastConnectionInfo(gameCode)
}

func spectatorKey(n int) string {
	return fmt.Sprintf("spectator:%d", n)
}

// Unregister removes playerID's connection, if ch is still the
// registered one (a superseded connection unregistering itself after
// the fact must not evict the connection that replaced it).
func (r *Registry) Unregister(gameCode, playerID string, ch Channel) {
	room := r.room(gameCode)
	room.mu.Lock()
	if cur, ok := room.byKey[playerID]; ok && cur.channel == ch {
		delete(room.byKey, playerID)
	}
	room.mu.Unlock()
	r.broadcastConnectionInfo(gameCode)
}

// Heartbeat records that playerID's connection is still alive.
func (r *Registry) Heartbeat(gameCode, playerID string) {
	room := r.room(gameCode)
	room.mu.Lock()
	if c, ok := room.byKey[playerID]; ok {
		c.lastSeen = time.Now()
	}
	room.mu.Unlock()
}

var pingMessage = []byte(`{"type":"ping"}`)

// Ping sends a heartbeat to every connection in every game (spec §4.5
// "every ≈25s, send {type:\"ping\"} to each entry"). A connection that
// fails two consecutive pings is unregistered.
func (r *Registry) Ping() {
	r.mu.RLock()
	rooms := make(map[string]*Room, len(r.rooms))
	for code, room := range r.rooms {
		rooms[code] = room
	}
	r.mu.RUnlock()

	for gameCode, room := range rooms {
		r.pingRoom(gameCode, room)
	}
}

func (r *Registry) pingRoom(gameCode string, room *Room) {
	room.mu.RLock()
	keys := make([]string, 0, len(room.byKey))
	conns := make([]*connection, 0, len(room.byKey))
	for key, c := range room.byKey {
		keys = append(keys, key)
		conns = append(conns, c)
	}
	room.mu.RUnlock()

	for i, c := range conns {
		if err := c.channel.SendBytes(pingMessage); err != nil {
			r.failPing(gameCode, room, keys[i], c)
			continue
		}
		room.mu.Lock()
		c.failStreak = 0
		room.mu.Unlock()
	}
}

// failPing records one failed ping send for key's connection. Two
// consecutive failures unregister it (spec §4.5) — checked against the
// connection pointer so a reconnect that already superseded this entry
// is never evicted by a stale failure from the connection it replaced.
func (r *Registry) failPing(gameCode string, room *Room, key string, c *connection) {
	room.mu.Lock()
	cur, ok := room.byKey[key]
	if !ok || cur != c {
		room.mu.Unlock()
		return
	}
	cur.failStreak++
	evict := cur.failStreak >= 2
	if evict {
		delete(room.byKey, key)
	}
	room.mu.Unlock()

	if evict {
		c.channel.Close()
		r.broadcastConnectionInfo(gameCode)
	}
}

// Broadcast sends data to every connection in gameCode. Send failures
// are collected, not fatal to the rest of the broadcast.
func (r *Registry) Broadcast(gameCode string, data []byte) []error {
	room := r.room(gameCode)
	room.mu.RLock()
	conns := make([]*connection, 0, len(room.byKey))
	for _, c := range room.byKey {
		conns = append(conns, c)
	}
	room.mu.RUnlock()

	var errs []error
	for _, c := range conns {
		if err := c.channel.SendBytes(data); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// BroadcastEach sends a per-connection payload built by build(key,
// spectator) to every connection in gameCode — used when the message
// content differs by viewer (hole-card visibility, valid_actions). A nil
// return from build skips that connection.
func (r *Registry) BroadcastEach(gameCode string, build func(key string, spectator bool) []byte) []error {
	room := r.room(gameCode)
	room.mu.RLock()
	type target struct {
		key       string
		spectator bool
		channel   Channel
	}
	targets := make([]target, 0, len(room.byKey))
	for key, c := range room.byKey {
		targets = append(targets, target{key: key, spectator: c.spectator, channel: c.channel})
	}
	room.mu.RUnlock()

	var errs []error
	for _, t := range targets {
		data := build(t.key, t.spectator)
		if data == nil {
			continue
		}
		if err := t.channel.SendBytes(data); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (r *Registry) broadcastConnectionInfo(gameCode string) {
	room := r.room(gameCode)
	room.mu.RLock()
	info := ConnectionInfo{}
	for key, c := range room.byKey {
		if c.spectator {
			info.SpectatorCount++
		} else {
			info.ConnectedPlayers = append(info.ConnectedPlayers, key)
		}
	}
	room.mu.RUnlock()

	data, err := json.Marshal(struct {
		Type string          `json:"type"`
		Data ConnectionInfo  `json:"data"`
	}{Type: "connection_info", Data: info})
	if err != nil {
		return
	}
	r.Broadcast(gameCode, data)
}

// DropRoom removes every connection for gameCode, closing their
// channels, when a game is cleaned up by the stale-game sweeper.
func (r *Registry) DropRoom(gameCode string) {
	r.mu.Lock()
	room, ok := r.rooms[gameCode]
	if ok {
		delete(r.rooms, gameCode)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	room.mu.Lock()
	for _, c := range room.byKey {
		c.channel.Close()
	}
	room.mu.Unlock()
}
