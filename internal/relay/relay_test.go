// internal/relay/relay_test.go
package relay

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jfelden/wordstack/internal/game"
)

func newTestConn(playerID uuid.UUID, buf int) *Conn {
	return &Conn{ID: uuid.New(), PlayerID: playerID, OutChan: make(chan game.Event, buf)}
}

func drain(c *Conn) []game.Event {
	var out []game.Event
	for {
		select {
		case ev := <-c.OutChan:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestBroadcastReachesSubscribers(t *testing.T) {
	r := New(nil)
	channel := uuid.New()
	p1, p2, p3 := uuid.New(), uuid.New(), uuid.New()

	c1 := newTestConn(p1, 4)
	c2 := newTestConn(p2, 4)
	c3 := newTestConn(p3, 4)
	r.Register(c1)
	r.Register(c2)
	r.Register(c3)
	r.Subscribe(channel, p1)
	r.Subscribe(channel, p2)
	// p3 never subscribes.

	r.Broadcast(channel, game.Event{Type: game.EventTableUpdated, TableID: channel})

	assert.Len(t, drain(c1), 1)
	assert.Len(t, drain(c2), 1)
	assert.Empty(t, drain(c3))
}

func TestBroadcastReachesEveryTabOfAPlayer(t *testing.T) {
	r := New(nil)
	channel := uuid.New()
	p := uuid.New()
	tab1 := newTestConn(p, 4)
	tab2 := newTestConn(p, 4)
	r.Register(tab1)
	r.Register(tab2)
	r.Subscribe(channel, p)

	r.Broadcast(channel, game.Event{Type: game.EventSeatUpdated})
	assert.Len(t, drain(tab1), 1)
	assert.Len(t, drain(tab2), 1)

	// Unregistering one tab keeps the other attached.
	r.Unregister(p, tab1.ID)
	assert.True(t, r.Connected(p))
	r.Broadcast(channel, game.Event{Type: game.EventSeatUpdated})
	assert.Len(t, drain(tab2), 1)
}

func TestClosingOneTabKeepsTheOtherSubscribed(t *testing.T) {
	r := New(nil)
	room := uuid.New()
	p := uuid.New()

	// Each tab runs the same lifecycle the socket handler does: register,
	// subscribe to the room, and on close unsubscribe then unregister.
	tabA := newTestConn(p, 4)
	r.Register(tabA)
	r.Subscribe(room, p)
	tabB := newTestConn(p, 4)
	r.Register(tabB)
	r.Subscribe(room, p)

	r.Unsubscribe(room, p)
	r.Unregister(p, tabA.ID)

	r.Broadcast(room, game.Event{Type: game.EventTableUpdated})
	assert.Len(t, drain(tabB), 1, "surviving tab still receives room broadcasts")

	// The last tab closing drains the subscription for real.
	r.Unsubscribe(room, p)
	r.Unregister(p, tabB.ID)
	r.Broadcast(room, game.Event{Type: game.EventTableUpdated})
	assert.Empty(t, drain(tabB))
}

func TestEvictRemovesEveryTabAtOnce(t *testing.T) {
	r := New(nil)
	tableCh := uuid.New()
	p := uuid.New()

	tabA := newTestConn(p, 4)
	tabB := newTestConn(p, 4)
	r.Register(tabA)
	r.Register(tabB)
	r.Subscribe(tableCh, p)
	r.Subscribe(tableCh, p)

	// Standing up removes the player from the table channel outright, no
	// matter how many connections subscribed.
	r.Evict(tableCh, p)
	r.Broadcast(tableCh, game.Event{Type: game.EventSeatUpdated})
	assert.Empty(t, drain(tabA))
	assert.Empty(t, drain(tabB))
}

func TestChatFilteredPerViewer(t *testing.T) {
	r := New(nil)
	channel := uuid.New()
	sender, viewer, muter := uuid.New(), uuid.New(), uuid.New()

	cv := newTestConn(viewer, 4)
	cm := newTestConn(muter, 4)
	r.Register(cv)
	r.Register(cm)
	r.Subscribe(channel, viewer)
	r.Subscribe(channel, muter)
	r.Mutes().Set(muter, sender, true)

	chat := game.Event{
		Type:    game.EventChatMessage,
		TableID: channel,
		Payload: map[string]interface{}{"player_id": sender.String(), "text": "hello"},
	}
	r.Broadcast(channel, chat)

	assert.Len(t, drain(cv), 1, "non-muting viewer sees the chat")
	assert.Empty(t, drain(cm), "muting viewer does not")

	// Non-chat events from the same sender still arrive.
	r.Broadcast(channel, game.Event{Type: game.EventGameState, TableID: channel})
	assert.Len(t, drain(cm), 1)

	// Unmuting restores delivery.
	r.Mutes().Set(muter, sender, false)
	r.Broadcast(channel, chat)
	assert.Len(t, drain(cm), 1)
}

func TestFullChannelDropsInsteadOfBlocking(t *testing.T) {
	r := New(nil)
	channel := uuid.New()
	p := uuid.New()
	c := newTestConn(p, 1)
	r.Register(c)
	r.Subscribe(channel, p)

	// Second broadcast hits a full buffer; Broadcast must return anyway.
	r.Broadcast(channel, game.Event{Type: game.EventGameState})
	r.Broadcast(channel, game.Event{Type: game.EventGameState})
	assert.Len(t, drain(c), 1)
}

func TestSendToPlayer(t *testing.T) {
	r := New(nil)
	p1, p2 := uuid.New(), uuid.New()
	c1 := newTestConn(p1, 4)
	c2 := newTestConn(p2, 4)
	r.Register(c1)
	r.Register(c2)

	r.SendToPlayer(p1, game.Event{Type: game.EventInvited})
	assert.Len(t, drain(c1), 1)
	assert.Empty(t, drain(c2))
}

func TestUnregisterCancelsConnection(t *testing.T) {
	r := New(nil)
	p := uuid.New()
	cancelled := false
	c := newTestConn(p, 1)
	c.Cancel = func() { cancelled = true }
	r.Register(c)
	require.True(t, r.Connected(p))

	r.Unregister(p, c.ID)
	assert.False(t, r.Connected(p))
	assert.True(t, cancelled)

	// The dropped connection receives nothing further.
	r.SendToPlayer(p, game.Event{Type: game.EventGameState})
	assert.Empty(t, drain(c))

	// Double unregister is a no-op.
	r.Unregister(p, c.ID)
}

func TestMuteRegistryLoadReplaces(t *testing.T) {
	m := NewMuteRegistry()
	viewer := uuid.New()
	a, b := uuid.New(), uuid.New()
	m.Set(viewer, a, true)

	m.Load(viewer, []uuid.UUID{b})
	assert.False(t, m.IsMuted(viewer, a))
	assert.True(t, m.IsMuted(viewer, b))
}
