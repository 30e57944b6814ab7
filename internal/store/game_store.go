package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jfelden/wordstack/internal/cache"
	"github.com/jfelden/wordstack/internal/game"
)

func gameKey(id uuid.UUID) string { return "game:" + id.String() }

// GameStore holds the authoritative in-memory game sessions. Live game
// state is transient by design: snapshots go to the external cache for
// reconnect/fan-out, never to durable storage. A crash mid-game loses the
// live state; only terminal results are durably recorded (as stats).
type GameStore struct {
	mu    sync.Mutex
	games map[uuid.UUID]*game.Game

	Log *logrus.Logger
}

// NewGameStore returns an empty in-memory store.
func NewGameStore(logger *logrus.Logger) *GameStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &GameStore{
		games: make(map[uuid.UUID]*game.Game),
		Log:   logger,
	}
}

// Add registers a running game.
func (s *GameStore) Add(g *game.Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[g.ID] = g
}

// Get retrieves a game by id.
func (s *GameStore) Get(id uuid.UUID) (*game.Game, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[id]
	return g, ok
}

// GetByTableID returns the game bound to a table, or nil. The table layer
// guarantees at most one.
func (s *GameStore) GetByTableID(tableID uuid.UUID) *game.Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.games {
		if g.TableID == tableID {
			return g
		}
	}
	return nil
}

// Delete removes the game from memory and drops its cache snapshot.
func (s *GameStore) Delete(ctx context.Context, id uuid.UUID) {
	s.mu.Lock()
	delete(s.games, id)
	s.mu.Unlock()
	if cache.Rdb != nil {
		if err := cache.Del(ctx, gameKey(id)); err != nil {
			s.Log.WithError(err).Warn("game cache delete failed")
		}
	}
}

// CacheSnapshot writes the serializable game-state event payload to the
// external cache so other processes and reconnecting clients can read it.
func (s *GameStore) CacheSnapshot(ctx context.Context, gameID uuid.UUID, ev game.Event) {
	if cache.Rdb == nil {
		return
	}
	if err := cache.SetJSON(ctx, gameKey(gameID), ev); err != nil {
		s.Log.WithError(err).Warn("game snapshot cache write failed")
	}
}
