// Package relay binds player connections to outbound event delivery. The
// relay owns the player-id -> connection-set mapping as a capability;
// domain entities stay serializable and never hold socket handles.
package relay

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jfelden/wordstack/internal/game"
)

// Conn is one live connection's presence in the relay. A player with
// several browser tabs holds several Conns bound to the same player id.
type Conn struct {
	ID       uuid.UUID
	PlayerID uuid.UUID

	// Cancel stops the goroutines attached to the underlying socket.
	Cancel func()

	// OutChan feeds the write pump. Writes are non-blocking; a full
	// channel drops the event rather than stalling the relay.
	OutChan chan game.Event
}

// Write pushes an event onto the connection's OutChan non-blockingly.
func (c *Conn) Write(ev game.Event) bool {
	select {
	case c.OutChan <- ev:
		return true
	default:
		return false
	}
}

// WriteError is a convenience to echo a rejected command back to the
// originating connection only.
func (c *Conn) WriteError(msg string) {
	c.Write(game.Event{Type: game.EventError, Payload: map[string]interface{}{"message": msg}})
}

// Relay is the per-process connection registry and channel fan-out.
// Channels are logical room or table ids; subscribers receive every event
// broadcast to the channel, with chat filtered per viewer by mutes.
type Relay struct {
	mu    sync.Mutex
	conns map[uuid.UUID]map[uuid.UUID]*Conn // player id -> conn id -> conn
	subs  map[uuid.UUID]map[uuid.UUID]int   // channel id -> player id -> subscription count

	mutes *MuteRegistry
	log   *logrus.Logger
}

// New builds an empty relay.
func New(logger *logrus.Logger) *Relay {
	if logger == nil {
		logger = logrus.New()
	}
	return &Relay{
		conns: make(map[uuid.UUID]map[uuid.UUID]*Conn),
		subs:  make(map[uuid.UUID]map[uuid.UUID]int),
		mutes: NewMuteRegistry(),
		log:   logger,
	}
}

// Mutes exposes the registry so the server can seed and update it.
func (r *Relay) Mutes() *MuteRegistry { return r.mutes }

// Register adds a connection for a player. Existing connections stay: a
// second tab re-attaches to the same player rather than replacing it.
func (r *Relay) Register(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[c.PlayerID]
	if !ok {
		set = make(map[uuid.UUID]*Conn)
		r.conns[c.PlayerID] = set
	}
	set[c.ID] = c
	r.log.WithFields(logrus.Fields{"player": c.PlayerID, "conn": c.ID, "conns": len(set)}).Info("connection registered")
}

// Unregister drops one connection and cancels its pumps. The out channel
// stays open so a broadcast racing the unregister writes into a buffer
// nobody drains instead of panicking. The player's subscriptions survive
// while other connections remain; the last connection leaving does not
// vacate any seat (only stand/boot does).
func (r *Relay) Unregister(playerID, connID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[playerID]
	if !ok {
		return
	}
	c, ok := set[connID]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.conns, playerID)
	}
	if c.Cancel != nil {
		c.Cancel()
	}
	r.log.WithFields(logrus.Fields{"player": playerID, "conn": connID}).Info("connection unregistered")
}

// Subscribe adds one connection's interest in a room or table channel.
// Subscriptions are counted per player, so two tabs in the same room hold
// a count of two and one tab closing leaves the other subscribed.
func (r *Relay) Subscribe(channelID, playerID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.subs[channelID]
	if !ok {
		set = make(map[uuid.UUID]int)
		r.subs[channelID] = set
	}
	set[playerID]++
}

// Unsubscribe releases one connection's interest in a channel. The player
// stays subscribed until the count from every connection drains.
func (r *Relay) Unsubscribe(channelID, playerID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.subs[channelID]
	if !ok {
		return
	}
	set[playerID]--
	if set[playerID] <= 0 {
		delete(set, playerID)
	}
	if len(set) == 0 {
		delete(r.subs, channelID)
	}
}

// Evict removes a player from a channel outright, regardless of how many
// connections subscribed. Used when the player leaves the table (stand,
// boot) rather than when a single socket closes.
func (r *Relay) Evict(channelID, playerID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.subs[channelID]; ok {
		delete(set, playerID)
		if len(set) == 0 {
			delete(r.subs, channelID)
		}
	}
}

// Broadcast delivers an event to every connection of every subscriber of
// the channel. Chat messages are filtered per viewer: a muted sender's
// chat is skipped for viewers who muted them, never deleted.
func (r *Relay) Broadcast(channelID uuid.UUID, ev game.Event) {
	r.mu.Lock()
	targets := make([]*Conn, 0)
	for playerID := range r.subs[channelID] {
		if ev.Type == game.EventChatMessage {
			if sender, ok := chatSender(ev); ok && r.mutes.IsMuted(playerID, sender) {
				continue
			}
		}
		for _, c := range r.conns[playerID] {
			targets = append(targets, c)
		}
	}
	r.mu.Unlock()

	for _, c := range targets {
		if !c.Write(ev) {
			r.log.WithFields(logrus.Fields{"player": c.PlayerID, "conn": c.ID, "type": ev.Type}).
				Warn("out channel full or closed, dropped event")
		}
	}
}

// SendToPlayer delivers an event to every connection bound to one player.
func (r *Relay) SendToPlayer(playerID uuid.UUID, ev game.Event) {
	r.mu.Lock()
	targets := make([]*Conn, 0, len(r.conns[playerID]))
	for _, c := range r.conns[playerID] {
		targets = append(targets, c)
	}
	r.mu.Unlock()
	for _, c := range targets {
		c.Write(ev)
	}
}

// Connected reports whether the player has at least one live connection.
func (r *Relay) Connected(playerID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns[playerID]) > 0
}

func chatSender(ev game.Event) (uuid.UUID, bool) {
	raw, ok := ev.Payload["player_id"].(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// MuteRegistry is the in-process view of who muted whom, kept consistent
// across processes by the user-mute pub/sub channel.
type MuteRegistry struct {
	mu    sync.Mutex
	muted map[uuid.UUID]map[uuid.UUID]bool // muter -> muted set
}

// NewMuteRegistry returns an empty registry.
func NewMuteRegistry() *MuteRegistry {
	return &MuteRegistry{muted: make(map[uuid.UUID]map[uuid.UUID]bool)}
}

// Set records (or clears) a mute edge.
func (m *MuteRegistry) Set(muter, muted uuid.UUID, on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.muted[muter]
	if !ok {
		if !on {
			return
		}
		set = make(map[uuid.UUID]bool)
		m.muted[muter] = set
	}
	if on {
		set[muted] = true
	} else {
		delete(set, muted)
		if len(set) == 0 {
			delete(m.muted, muter)
		}
	}
}

// Load replaces a muter's full set, used when seeding from the database.
func (m *MuteRegistry) Load(muter uuid.UUID, mutedIDs []uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := make(map[uuid.UUID]bool, len(mutedIDs))
	for _, id := range mutedIDs {
		set[id] = true
	}
	m.muted[muter] = set
}

// IsMuted reports whether viewer muted sender.
func (m *MuteRegistry) IsMuted(viewer, sender uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted[viewer][sender]
}
