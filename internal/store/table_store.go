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
	"github.com/jfelden/wordstack/internal/table"
)

func tableKey(id uuid.UUID) string { return "table:" + id.String() }
func seatKey(id uuid.UUID) string  { return "table-seat:" + id.String() }

// TableStore holds the canonical live *table.Table instances for this
// process and writes their records through the cache and the database.
// The live instance is authoritative while this process hosts the table;
// other processes converge via the pub/sub fan-out.
type TableStore struct {
	mu     sync.Mutex
	tables map[uuid.UUID]*table.Table

	InsertFn     func(ctx context.Context, t *models.Table, seats []*models.TableSeat) error
	SaveTableFn  func(ctx context.Context, t *models.Table) error
	SaveSeatFn   func(ctx context.Context, s *models.TableSeat) error
	DeleteFn     func(ctx context.Context, id uuid.UUID) error
	FetchTableFn func(ctx context.Context, id uuid.UUID) (*models.Table, error)

	Log *logrus.Logger
}

// NewTableStore returns a store backed by the database package.
func NewTableStore(logger *logrus.Logger) *TableStore {
	if logger == nil {
		logger = logrus.New()
	}
	return &TableStore{
		tables:       make(map[uuid.UUID]*table.Table),
		InsertFn:     database.InsertTable,
		SaveTableFn:  database.SaveTable,
		SaveSeatFn:   database.SaveTableSeat,
		DeleteFn:     database.DeleteTable,
		FetchTableFn: database.GetTable,
		Log:          logger,
	}
}

// Add registers a newly created live table and persists its record plus
// seats. The insert must commit before the table becomes reachable.
func (s *TableStore) Add(ctx context.Context, t *table.Table) error {
	seats := make([]*models.TableSeat, 0, len(t.Seats))
	for _, seat := range t.Seats {
		seats = append(seats, seat)
	}
	if err := s.InsertFn(ctx, t.Record(), seats); err != nil {
		return fmt.Errorf("table insert not committed: %w", err)
	}
	s.mu.Lock()
	s.tables[t.ID] = t
	s.mu.Unlock()
	return s.writeSnapshots(ctx, t)
}

// Get returns the live table instance hosted by this process. A table
// record found only in cache or database belongs to another process; the
// caller routes there via pub/sub instead of mutating it locally.
func (s *TableStore) Get(id uuid.UUID) (*table.Table, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[id]
	return t, ok
}

// GetRecord resolves the persisted record through cache then database,
// regardless of which process hosts the live table.
func (s *TableStore) GetRecord(ctx context.Context, id uuid.UUID) (*models.Table, error) {
	s.mu.Lock()
	if t, ok := s.tables[id]; ok {
		s.mu.Unlock()
		return t.Record(), nil
	}
	s.mu.Unlock()

	if cache.Rdb != nil {
		var rec models.Table
		err := cache.GetJSON(ctx, tableKey(id), &rec)
		if err == nil {
			return &rec, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.Log.WithError(err).Warn("table cache read failed, falling through")
		}
	}
	rec, err := s.FetchTableFn(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if cache.Rdb != nil {
		if err := cache.SetJSON(ctx, tableKey(id), rec); err != nil {
			s.Log.WithError(err).Warn("table cache repopulate failed")
		}
	}
	return rec, nil
}

// Save commits the table record and every seat row, then refreshes the
// cache snapshots. Failures are reported so the caller can abort the
// in-progress action.
func (s *TableStore) Save(ctx context.Context, t *table.Table) error {
	if err := s.SaveTableFn(ctx, t.Record()); err != nil {
		return err
	}
	for _, seat := range t.Seats {
		if err := s.SaveSeatFn(ctx, seat); err != nil {
			return err
		}
	}
	return s.writeSnapshots(ctx, t)
}

// SaveSeat commits a single seat mutation, the common case for sit, stand
// and ready-toggle.
func (s *TableStore) SaveSeat(ctx context.Context, seat *models.TableSeat) error {
	if err := s.SaveSeatFn(ctx, seat); err != nil {
		return err
	}
	if cache.Rdb != nil {
		if err := cache.SetJSON(ctx, seatKey(seat.ID), seat); err != nil {
			return fmt.Errorf("seat cache write failed after commit: %w", err)
		}
	}
	return nil
}

// Delete destroys a table everywhere: memory, cache and database.
func (s *TableStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	t, ok := s.tables[id]
	delete(s.tables, id)
	s.mu.Unlock()

	if cache.Rdb != nil {
		if err := cache.Del(ctx, tableKey(id)); err != nil {
			s.Log.WithError(err).Warn("table cache delete failed")
		}
		if ok {
			for _, seat := range t.Seats {
				if err := cache.Del(ctx, seatKey(seat.ID)); err != nil {
					s.Log.WithError(err).Warn("seat cache delete failed")
				}
			}
		}
	}
	return s.DeleteFn(ctx, id)
}

// FindByPlayer returns the live table a player is seated at, if any.
func (s *TableStore) FindByPlayer(playerID uuid.UUID) (*table.Table, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tables {
		if t.PlayerSeat(playerID) != 0 {
			return t, true
		}
	}
	return nil, false
}

func (s *TableStore) writeSnapshots(ctx context.Context, t *table.Table) error {
	if cache.Rdb == nil {
		return nil
	}
	if err := cache.SetJSON(ctx, tableKey(t.ID), t.Record()); err != nil {
		return fmt.Errorf("table cache write failed after commit: %w", err)
	}
	for _, seat := range t.Seats {
		if err := cache.SetJSON(ctx, seatKey(seat.ID), seat); err != nil {
			return fmt.Errorf("seat cache write failed after commit: %w", err)
		}
	}
	return nil
}
