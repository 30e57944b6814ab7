// internal/store/player_store_test.go
package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jfelden/wordstack/internal/database"
	"github.com/jfelden/wordstack/internal/models"
)

func TestPlayerStoreGetFallsThroughToFetch(t *testing.T) {
	s := NewPlayerStore(nil)
	id := uuid.New()
	fetches := 0
	s.FetchFn = func(ctx context.Context, got uuid.UUID) (*models.Player, error) {
		fetches++
		assert.Equal(t, id, got)
		return &models.Player{ID: id, Username: "morgan"}, nil
	}

	p, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "morgan", p.Username)
	assert.Equal(t, 1, fetches)

	// Second read is served from memory.
	_, err = s.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, fetches)
}

func TestPlayerStoreMissEverywhere(t *testing.T) {
	s := NewPlayerStore(nil)
	s.FetchFn = func(ctx context.Context, id uuid.UUID) (*models.Player, error) {
		return nil, database.ErrNotFound
	}
	_, err := s.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPlayerStoreSaveThenDelete(t *testing.T) {
	s := NewPlayerStore(nil)
	s.FetchFn = func(ctx context.Context, id uuid.UUID) (*models.Player, error) {
		return nil, database.ErrNotFound
	}
	p := &models.Player{ID: uuid.New(), Username: "quinn"}
	require.NoError(t, s.Save(context.Background(), p))

	got, err := s.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Same(t, p, got)

	require.NoError(t, s.Delete(context.Background(), p.ID))
	_, err = s.Get(context.Background(), p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStatsStoreSaveIsDurableFirst(t *testing.T) {
	s := NewStatsStore(nil)
	saved := 0
	s.SaveFn = func(ctx context.Context, st *models.PlayerStats) error {
		saved++
		return nil
	}
	st := &models.PlayerStats{PlayerID: uuid.New(), Rating: 1200}
	require.NoError(t, s.Save(context.Background(), st))
	assert.Equal(t, 1, saved)

	got, err := s.Get(context.Background(), st.PlayerID)
	require.NoError(t, err)
	assert.Equal(t, 1200, got.Rating)
}

func TestStatsStoreSaveFailureDoesNotPoisonMemory(t *testing.T) {
	s := NewStatsStore(nil)
	dbErr := errors.New("connection refused")
	s.SaveFn = func(ctx context.Context, st *models.PlayerStats) error {
		return dbErr
	}
	s.FetchFn = func(ctx context.Context, id uuid.UUID) (*models.PlayerStats, error) {
		return nil, database.ErrNotFound
	}

	st := &models.PlayerStats{PlayerID: uuid.New(), Wins: 3}
	err := s.Save(context.Background(), st)
	require.ErrorIs(t, err, dbErr)

	// The failed save never became readable.
	_, err = s.Get(context.Background(), st.PlayerID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStatsStoreFetchErrorPropagates(t *testing.T) {
	s := NewStatsStore(nil)
	boom := errors.New("timeout")
	s.FetchFn = func(ctx context.Context, id uuid.UUID) (*models.PlayerStats, error) {
		return nil, boom
	}
	_, err := s.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, boom)
}
