// Package store implements the cache-aside state stores: reads check the
// in-memory map, then the Redis snapshot cache, then the system of record;
// hits repopulate the upper layers. Writes go through every layer and
// report failures instead of silently dropping.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jfelden/wordstack/internal/cache"
	"github.com/jfelden/wordstack/internal/database"
	"github.com/jfelden/wordstack/internal/models"
)

// ErrNotFound is surfaced when an entity exists in no layer.
var ErrNotFound = errors.New("not found in any store layer")

func playerKey(id uuid.UUID) string { return "player:" + id.String() }
func statsKey(id uuid.UUID) string  { return "player-stats:" + id.String() }

// PlayerStore is the cache-aside store for player records. The fetch/save
// function fields default to the database package and are overridden with
// fakes in tests.
type PlayerStore struct {
	mu      sync.Mutex
	players map[uuid.UUID]*models.Player

	FetchFn func(ctx context.Context, id uuid.UUID) (*models.Player, error)

	Log *logrus.Logger
}

// NewPlayerStore returns a store backed by the database package.
func NewPlayerStore(logger *logrus.Logger) *PlayerStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &PlayerStore{
		players: make(map[uuid.UUID]*models.Player),
		FetchFn: database.GetPlayerByID,
		Log:     logger,
	}
}

// Get resolves a player through memory, cache, then the system of record.
// Cache failures degrade to the next layer; a miss everywhere is ErrNotFound.
func (s *PlayerStore) Get(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	s.mu.Lock()
	if p, ok := s.players[id]; ok {
		s.mu.Unlock()
		return p, nil
	}
	s.mu.Unlock()

	if cache.Rdb != nil {
		var p models.Player
		err := cache.GetJSON(ctx, playerKey(id), &p)
		if err == nil {
			s.put(&p)
			return &p, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.Log.WithError(err).Warn("player cache read failed, falling through")
		}
	}

	p, err := s.FetchFn(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.put(p)
	if cache.Rdb != nil {
		if err := cache.SetJSON(ctx, playerKey(id), p); err != nil {
			s.Log.WithError(err).Warn("player cache repopulate failed")
		}
	}
	return p, nil
}

// Save writes through memory and cache. A cache write failure is returned.
func (s *PlayerStore) Save(ctx context.Context, p *models.Player) error {
	s.put(p)
	if cache.Rdb != nil {
		if err := cache.SetJSON(ctx, playerKey(p.ID), p); err != nil {
			return fmt.Errorf("player save not fully committed: %w", err)
		}
	}
	return nil
}

// Delete removes the player from memory and cache.
func (s *PlayerStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	delete(s.players, id)
	s.mu.Unlock()
	if cache.Rdb != nil {
		return cache.Del(ctx, playerKey(id))
	}
	return nil
}

func (s *PlayerStore) put(p *models.Player) {
	s.mu.Lock()
	s.players[p.ID] = p
	s.mu.Unlock()
}

// StatsStore is the cache-aside store for durable player statistics.
type StatsStore struct {
	mu    sync.Mutex
	stats map[uuid.UUID]*models.PlayerStats

	FetchFn func(ctx context.Context, id uuid.UUID) (*models.PlayerStats, error)
	SaveFn  func(ctx context.Context, st *models.PlayerStats) error

	Log *logrus.Logger
}

// NewStatsStore returns a store backed by the database package.
func NewStatsStore(logger *logrus.Logger) *StatsStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &StatsStore{
		stats:   make(map[uuid.UUID]*models.PlayerStats),
		FetchFn: database.GetPlayerStats,
		SaveFn:  database.SavePlayerStats,
		Log:     logger,
	}
}

// Get resolves stats through memory, cache, then the database.
func (s *StatsStore) Get(ctx context.Context, playerID uuid.UUID) (*models.PlayerStats, error) {
	s.mu.Lock()
	if st, ok := s.stats[playerID]; ok {
		s.mu.Unlock()
		return st, nil
	}
	s.mu.Unlock()

	if cache.Rdb != nil {
		var st models.PlayerStats
		err := cache.GetJSON(ctx, statsKey(playerID), &st)
		if err == nil {
			s.put(&st)
			return &st, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.Log.WithError(err).Warn("stats cache read failed, falling through")
		}
	}

	st, err := s.FetchFn(ctx, playerID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.put(st)
	if cache.Rdb != nil {
		if err := cache.SetJSON(ctx, statsKey(playerID), st); err != nil {
			s.Log.WithError(err).Warn("stats cache repopulate failed")
		}
	}
	return st, nil
}

// Save writes through every layer; stats are durable, so the database write
// must succeed for the save to count.
func (s *StatsStore) Save(ctx context.Context, st *models.PlayerStats) error {
	if err := s.SaveFn(ctx, st); err != nil {
		return fmt.Errorf("stats save not committed: %w", err)
	}
	s.put(st)
	if cache.Rdb != nil {
		if err := cache.SetJSON(ctx, statsKey(st.PlayerID), st); err != nil {
			return fmt.Errorf("stats cache write failed after commit: %w", err)
		}
	}
	return nil
}

// Delete removes a stats entry from memory and cache only; the durable row
// stays.
func (s *StatsStore) Delete(ctx context.Context, playerID uuid.UUID) error {
	s.mu.Lock()
	delete(s.stats, playerID)
	s.mu.Unlock()
	if cache.Rdb != nil {
		return cache.Del(ctx, statsKey(playerID))
	}
	return nil
}

func (s *StatsStore) put(st *models.PlayerStats) {
	s.mu.Lock()
	s.stats[st.PlayerID] = st
	s.mu.Unlock()
}
