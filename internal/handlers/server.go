// internal/handlers/server.go
package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jfelden/wordstack/internal/cache"
	"github.com/jfelden/wordstack/internal/database"
	"github.com/jfelden/wordstack/internal/game"
	"github.com/jfelden/wordstack/internal/models"
	"github.com/jfelden/wordstack/internal/relay"
	"github.com/jfelden/wordstack/internal/store"
	"github.com/jfelden/wordstack/internal/table"
)

// RatingDelta is the flat rating swing per rated game.
const RatingDelta = 15

// TableServer wires the rooms, stores and relay together and routes
// inbound commands to the table and game layers.
type TableServer struct {
	Rooms []*table.Room

	Tables  *store.TableStore
	Games   *store.GameStore
	Players *store.PlayerStore
	Stats   *store.StatsStore

	Relay *relay.Relay
	Log   *logrus.Logger

	// processID tags published bus envelopes so a process can skip its
	// own fan-out echoes.
	processID uuid.UUID
}

// busEnvelope wraps an event for cross-process pub/sub fan-out.
type busEnvelope struct {
	Origin uuid.UUID  `json:"origin"`
	Event  game.Event `json:"event"`
}

// muteEnvelope mirrors mute changes across processes.
type muteEnvelope struct {
	Origin  uuid.UUID `json:"origin"`
	MuterID uuid.UUID `json:"muter_id"`
	MutedID uuid.UUID `json:"muted_id"`
	Muted   bool      `json:"muted"`
}

// NewTableServer bootstraps the fixed room list and empty stores.
func NewTableServer(logger *logrus.Logger) *TableServer {
	if logger == nil {
		logger = logrus.New()
	}
	s := &TableServer{
		Tables:    store.NewTableStore(logger),
		Games:     store.NewGameStore(logger),
		Players:   store.NewPlayerStore(logger),
		Stats:     store.NewStatsStore(logger),
		Relay:     relay.New(logger),
		Log:       logger,
		processID: uuid.New(),
	}
	for _, seed := range table.SeedRooms {
		s.Rooms = append(s.Rooms, table.NewRoom(seed.Name, seed.Difficulty, logger))
	}
	return s
}

// RegisterBusHandlers subscribes this process to the fan-out channels so
// its in-memory view converges with mutations made elsewhere.
func (s *TableServer) RegisterBusHandlers(sub *cache.Subscriber) {
	rebroadcast := func(payload []byte) {
		var env busEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			s.Log.WithError(err).Warn("bad bus payload")
			return
		}
		if env.Origin == s.processID {
			return // our own publish; already delivered locally
		}
		s.deliverLocal(env.Event)
	}
	sub.Handle(cache.ChannelTableMessage, rebroadcast)
	sub.Handle(cache.ChannelTableUpdated, rebroadcast)
	sub.Handle(cache.ChannelSeatUpdated, rebroadcast)
	sub.Handle(cache.ChannelGameState, rebroadcast)
	sub.Handle(cache.ChannelUserMute, func(payload []byte) {
		var env muteEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			s.Log.WithError(err).Warn("bad mute payload")
			return
		}
		if env.Origin == s.processID {
			return
		}
		s.Relay.Mutes().Set(env.MuterID, env.MutedID, env.Muted)
	})
}

// RoomByID finds a seeded room.
func (s *TableServer) RoomByID(id uuid.UUID) (*table.Room, bool) {
	for _, r := range s.Rooms {
		if r.ID == id {
			return r, true
		}
	}
	return nil, false
}

// roomOfTable maps a table back to its room.
func (s *TableServer) roomOfTable(t *table.Table) *table.Room {
	for _, r := range s.Rooms {
		if r.ID == t.RoomID {
			return r
		}
	}
	return nil
}

// CreateTable allocates a table in a room, persists it, and wires its
// lifecycle callbacks.
func (s *TableServer) CreateTable(ctx context.Context, roomID, hostID uuid.UUID, visibility string, rated bool) (*table.Table, error) {
	room, ok := s.RoomByID(roomID)
	if !ok {
		return nil, store.ErrNotFound
	}
	t, err := room.CreateTable(visibility, rated, hostID)
	if err != nil {
		return nil, err
	}
	t.OnEmpty = func(tableID uuid.UUID) {
		s.destroyTable(context.Background(), room, tableID)
	}
	t.OnCommit = func(tbl *table.Table, events []game.Event) {
		s.commitTable(context.Background(), tbl, events)
	}
	if err := s.Tables.Add(ctx, t); err != nil {
		room.RemoveTable(t.ID)
		return nil, err
	}
	s.Dispatch(ctx, []game.Event{{
		Type:    game.EventTableUpdated,
		TableID: t.ID,
		Payload: map[string]interface{}{"room_id": roomID.String(), "slot": t.Slot, "state": t.State},
	}})
	return t, nil
}

// destroyTable tears a table down after its last seat vacated.
func (s *TableServer) destroyTable(ctx context.Context, room *table.Room, tableID uuid.UUID) {
	if g := s.Games.GetByTableID(tableID); g != nil {
		s.Games.Delete(ctx, g.ID)
	}
	room.RemoveTable(tableID)
	if err := s.Tables.Delete(ctx, tableID); err != nil {
		s.Log.WithError(err).WithField("table", tableID).Warn("table destroy persist failed")
	}
	s.Dispatch(ctx, []game.Event{{
		Type:    game.EventTableUpdated,
		TableID: tableID,
		Payload: map[string]interface{}{"room_id": room.ID.String(), "deleted": true},
	}})
	s.Log.WithField("table", tableID).Info("table destroyed")
}

// commitTable persists a timer-driven table transition and dispatches its
// outbox. If the transition spawned a game, the game gets wired and
// started here.
func (s *TableServer) commitTable(ctx context.Context, t *table.Table, events []game.Event) {
	if err := s.Tables.Save(ctx, t); err != nil {
		s.Log.WithError(err).WithField("table", t.ID).Error("table commit failed, outbox suppressed")
		return
	}
	s.Dispatch(ctx, events)

	t.Mu.Lock()
	g := t.Game
	t.Mu.Unlock()
	if g == nil {
		return
	}
	if _, known := s.Games.Get(g.ID); known {
		return
	}
	s.wireGame(t, g)
	s.Games.Add(g)
	g.Start()
}

// wireGame attaches broadcast plumbing and the end-of-game callback.
func (s *TableServer) wireGame(t *table.Table, g *game.Game) {
	g.BroadcastFn = func(ev game.Event) {
		ctx := context.Background()
		if ev.Type == game.EventGameState {
			s.Games.CacheSnapshot(ctx, g.ID, ev)
		}
		s.Dispatch(ctx, []game.Event{ev})
	}
	g.BroadcastToPlayerFn = func(playerID uuid.UUID, ev game.Event) {
		s.Relay.SendToPlayer(playerID, ev)
	}
	g.OnGameEnd = func(tableID uuid.UUID, winnerTeam int, results []game.SeatResult) {
		ctx := context.Background()
		events := t.FinishGame()
		if err := s.Tables.Save(ctx, t); err != nil {
			s.Log.WithError(err).WithField("table", tableID).Error("post-game table save failed")
		}
		s.Dispatch(ctx, events)
		s.recordResults(ctx, t, results)
		s.Games.Delete(ctx, g.ID)
	}
}

// recordResults updates durable stats for every seat of a finished game.
func (s *TableServer) recordResults(ctx context.Context, t *table.Table, results []game.SeatResult) {
	for _, res := range results {
		st, err := s.Stats.Get(ctx, res.PlayerID)
		if err != nil {
			s.Log.WithError(err).WithField("player", res.PlayerID).Warn("stats lookup failed at game end")
			continue
		}
		if res.Won {
			st.Wins++
			if st.Streak < 0 {
				st.Streak = 0
			}
			st.Streak++
			if t.Rated {
				st.Rating += RatingDelta
			}
		} else {
			st.Losses++
			if st.Streak > 0 {
				st.Streak = 0
			}
			st.Streak--
			if t.Rated {
				st.Rating -= RatingDelta
			}
		}
		if err := s.Stats.Save(ctx, st); err != nil {
			s.Log.WithError(err).WithField("player", res.PlayerID).Error("stats save failed at game end")
		}
	}
}

// Dispatch delivers events locally and fans them out to other processes.
// Call it only after the owning mutation has committed.
func (s *TableServer) Dispatch(ctx context.Context, events []game.Event) {
	for _, ev := range events {
		s.deliverLocal(ev)
		channel := busChannelFor(ev.Type)
		env := busEnvelope{Origin: s.processID, Event: ev}
		if err := cachePublish(ctx, channel, env); err != nil {
			s.Log.WithError(err).WithField("channel", channel).Warn("bus publish failed")
		}
	}
}

// deliverLocal routes one event to its table channel and, for table-level
// changes, to the room channel so lobby views update.
func (s *TableServer) deliverLocal(ev game.Event) {
	if ev.TableID != uuid.Nil {
		s.Relay.Broadcast(ev.TableID, ev)
	}
	if ev.Type == game.EventTableUpdated || ev.Type == game.EventSeatUpdated {
		if t, ok := s.Tables.Get(ev.TableID); ok {
			s.Relay.Broadcast(t.RoomID, ev)
		} else if raw, ok := ev.Payload["room_id"].(string); ok {
			if roomID, err := uuid.Parse(raw); err == nil {
				s.Relay.Broadcast(roomID, ev)
			}
		}
	}
}

// busChannelFor maps event types onto the logical pub/sub channels.
func busChannelFor(t game.EventType) string {
	switch t {
	case game.EventChatMessage:
		return cache.ChannelTableMessage
	case game.EventSeatUpdated:
		return cache.ChannelSeatUpdated
	case game.EventGameState, game.EventGameTimer, game.EventGameOver,
		game.EventPowerFire, game.EventBlocksMarked, game.EventGameCountdown:
		return cache.ChannelGameState
	default:
		return cache.ChannelTableUpdated
	}
}

// cachePublish is indirected for tests running without Redis.
var cachePublish = func(ctx context.Context, channel string, payload interface{}) error {
	if cache.Rdb == nil {
		return nil
	}
	return cache.Publish(ctx, channel, payload)
}

// Mute records a mute, updates the local registry, and fans the change out.
func (s *TableServer) Mute(ctx context.Context, muterID, mutedID uuid.UUID, on bool) error {
	if on {
		id, _ := uuid.NewRandom()
		m := &models.UserMute{ID: id, MuterID: muterID, MutedID: mutedID, CreatedAt: time.Now()}
		if err := database.InsertMute(ctx, m); err != nil {
			return err
		}
	} else {
		if err := database.DeleteMute(ctx, muterID, mutedID); err != nil {
			return err
		}
	}
	s.Relay.Mutes().Set(muterID, mutedID, on)
	env := muteEnvelope{Origin: s.processID, MuterID: muterID, MutedID: mutedID, Muted: on}
	if err := cachePublish(ctx, cache.ChannelUserMute, env); err != nil {
		s.Log.WithError(err).Warn("mute publish failed")
	}
	return nil
}
