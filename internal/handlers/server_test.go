// internal/handlers/server_test.go
package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jfelden/wordstack/internal/cache"
	"github.com/jfelden/wordstack/internal/game"
	"github.com/jfelden/wordstack/internal/models"
	"github.com/jfelden/wordstack/internal/relay"
	"github.com/jfelden/wordstack/internal/store"
	"github.com/jfelden/wordstack/internal/table"
)

// stubTablePersistence disconnects a server's table store from the
// database package.
func stubTablePersistence(s *store.TableStore) {
	s.InsertFn = func(ctx context.Context, t *models.Table, seats []*models.TableSeat) error { return nil }
	s.SaveTableFn = func(ctx context.Context, t *models.Table) error { return nil }
	s.SaveSeatFn = func(ctx context.Context, seat *models.TableSeat) error { return nil }
	s.DeleteFn = func(ctx context.Context, id uuid.UUID) error { return nil }
}

// capturePublishes redirects the pub/sub publish hook for one test.
func capturePublishes(t *testing.T) *[]string {
	t.Helper()
	var mu sync.Mutex
	channels := []string{}
	orig := cachePublish
	cachePublish = func(ctx context.Context, channel string, payload interface{}) error {
		mu.Lock()
		defer mu.Unlock()
		channels = append(channels, channel)
		return nil
	}
	t.Cleanup(func() { cachePublish = orig })
	return &channels
}

func newTestServer(t *testing.T) *TableServer {
	t.Helper()
	s := NewTableServer(nil)
	stubTablePersistence(s.Tables)
	return s
}

func TestNewTableServerSeedsRooms(t *testing.T) {
	s := newTestServer(t)
	require.Len(t, s.Rooms, 3)
	difficulties := map[string]bool{}
	for _, r := range s.Rooms {
		difficulties[r.Difficulty] = true
	}
	assert.True(t, difficulties[models.RoomBeginner])
	assert.True(t, difficulties[models.RoomIntermediate])
	assert.True(t, difficulties[models.RoomAdvanced])
}

func TestBusChannelMapping(t *testing.T) {
	assert.Equal(t, cache.ChannelTableMessage, busChannelFor(game.EventChatMessage))
	assert.Equal(t, cache.ChannelSeatUpdated, busChannelFor(game.EventSeatUpdated))
	assert.Equal(t, cache.ChannelGameState, busChannelFor(game.EventGameState))
	assert.Equal(t, cache.ChannelGameState, busChannelFor(game.EventGameOver))
	assert.Equal(t, cache.ChannelTableUpdated, busChannelFor(game.EventTableUpdated))
	assert.Equal(t, cache.ChannelTableUpdated, busChannelFor(game.EventBooted))
}

func TestCreateTableRegistersAndAnnounces(t *testing.T) {
	s := newTestServer(t)
	published := capturePublishes(t)
	room := s.Rooms[0]
	host := uuid.New()

	tbl, err := s.CreateTable(context.Background(), room.ID, host, models.TablePublic, false)
	require.NoError(t, err)

	// Reachable through the store and the room.
	_, ok := s.Tables.Get(tbl.ID)
	assert.True(t, ok)
	_, ok = room.GetTable(tbl.ID)
	assert.True(t, ok)

	require.NotEmpty(t, *published)
	assert.Equal(t, cache.ChannelTableUpdated, (*published)[0])

	// Unknown room is rejected.
	_, err = s.CreateTable(context.Background(), uuid.New(), host, models.TablePublic, false)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDispatchRoutesTableEventsToRoomChannel(t *testing.T) {
	s := newTestServer(t)
	capturePublishes(t)
	room := s.Rooms[0]
	tbl, err := s.CreateTable(context.Background(), room.ID, uuid.New(), models.TablePublic, false)
	require.NoError(t, err)

	// A lobby viewer subscribed to the room only still sees table updates.
	viewer := uuid.New()
	conn := &relay.Conn{ID: uuid.New(), PlayerID: viewer, OutChan: make(chan game.Event, 8)}
	s.Relay.Register(conn)
	s.Relay.Subscribe(room.ID, viewer)

	s.Dispatch(context.Background(), []game.Event{{
		Type:    game.EventTableUpdated,
		TableID: tbl.ID,
		Payload: map[string]interface{}{"state": models.TableIdle},
	}})

	select {
	case ev := <-conn.OutChan:
		assert.Equal(t, game.EventTableUpdated, ev.Type)
		assert.Equal(t, tbl.ID, ev.TableID)
	default:
		t.Fatal("room subscriber missed the table update")
	}
}

func TestBusEchoSkipsOwnOrigin(t *testing.T) {
	s := newTestServer(t)
	capturePublishes(t)
	room := s.Rooms[0]
	tbl, err := s.CreateTable(context.Background(), room.ID, uuid.New(), models.TablePublic, false)
	require.NoError(t, err)

	viewer := uuid.New()
	conn := &relay.Conn{ID: uuid.New(), PlayerID: viewer, OutChan: make(chan game.Event, 8)}
	s.Relay.Register(conn)
	s.Relay.Subscribe(tbl.ID, viewer)

	sub := cache.NewSubscriber(nil)
	s.RegisterBusHandlers(sub)

	// An envelope carrying our own origin must not be re-delivered.
	own, err := json.Marshal(busEnvelope{Origin: s.processID, Event: game.Event{Type: game.EventGameState, TableID: tbl.ID}})
	require.NoError(t, err)
	foreign, err := json.Marshal(busEnvelope{Origin: uuid.New(), Event: game.Event{Type: game.EventGameState, TableID: tbl.ID}})
	require.NoError(t, err)

	sub.Deliver(cache.ChannelGameState, own)
	select {
	case <-conn.OutChan:
		t.Fatal("own-origin envelope echoed back")
	default:
	}

	sub.Deliver(cache.ChannelGameState, foreign)
	select {
	case ev := <-conn.OutChan:
		assert.Equal(t, game.EventGameState, ev.Type)
	default:
		t.Fatal("foreign envelope was not delivered")
	}
}

func TestRecordResultsUpdatesStats(t *testing.T) {
	s := newTestServer(t)
	capturePublishes(t)

	winner, loser := uuid.New(), uuid.New()
	statsByID := map[uuid.UUID]*models.PlayerStats{
		winner: {PlayerID: winner, Rating: 1200, Streak: -2},
		loser:  {PlayerID: loser, Rating: 1200, Streak: 4},
	}
	s.Stats.FetchFn = func(ctx context.Context, id uuid.UUID) (*models.PlayerStats, error) {
		return statsByID[id], nil
	}
	saved := map[uuid.UUID]*models.PlayerStats{}
	s.Stats.SaveFn = func(ctx context.Context, st *models.PlayerStats) error {
		saved[st.PlayerID] = st
		return nil
	}

	tbl := table.NewTable(s.Rooms[0].ID, 1, models.TablePublic, true, winner, nil)
	results := []game.SeatResult{
		{SeatNumber: 1, PlayerID: winner, Team: 1, Won: true},
		{SeatNumber: 3, PlayerID: loser, Team: 2, Won: false},
	}
	s.recordResults(context.Background(), tbl, results)

	require.Contains(t, saved, winner)
	require.Contains(t, saved, loser)
	assert.Equal(t, 1, saved[winner].Wins)
	assert.Equal(t, 1, saved[winner].Streak, "losing streak resets before counting the win")
	assert.Equal(t, 1200+RatingDelta, saved[winner].Rating)
	assert.Equal(t, 1, saved[loser].Losses)
	assert.Equal(t, -1, saved[loser].Streak)
	assert.Equal(t, 1200-RatingDelta, saved[loser].Rating)
}

func TestRecordResultsUnratedLeavesRating(t *testing.T) {
	s := newTestServer(t)
	capturePublishes(t)
	p := uuid.New()
	s.Stats.FetchFn = func(ctx context.Context, id uuid.UUID) (*models.PlayerStats, error) {
		return &models.PlayerStats{PlayerID: id, Rating: 1500}, nil
	}
	var got *models.PlayerStats
	s.Stats.SaveFn = func(ctx context.Context, st *models.PlayerStats) error {
		got = st
		return nil
	}

	tbl := table.NewTable(s.Rooms[0].ID, 1, models.TablePublic, false, p, nil)
	s.recordResults(context.Background(), tbl, []game.SeatResult{{SeatNumber: 1, PlayerID: p, Team: 1, Won: true}})

	require.NotNil(t, got)
	assert.Equal(t, 1500, got.Rating)
	assert.Equal(t, 1, got.Wins)
}
