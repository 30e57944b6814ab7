// internal/store/table_store_test.go
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
	"github.com/jfelden/wordstack/internal/table"
)

// fakeTablePersistence stubs every database function field on a TableStore.
type fakeTablePersistence struct {
	inserts   int
	saves     int
	seatSaves int
	deletes   int
	failNext  error
}

func (f *fakeTablePersistence) wire(s *TableStore) {
	s.InsertFn = func(ctx context.Context, t *models.Table, seats []*models.TableSeat) error {
		if f.failNext != nil {
			return f.failNext
		}
		f.inserts++
		return nil
	}
	s.SaveTableFn = func(ctx context.Context, t *models.Table) error {
		f.saves++
		return nil
	}
	s.SaveSeatFn = func(ctx context.Context, seat *models.TableSeat) error {
		f.seatSaves++
		return nil
	}
	s.DeleteFn = func(ctx context.Context, id uuid.UUID) error {
		f.deletes++
		return nil
	}
	s.FetchTableFn = func(ctx context.Context, id uuid.UUID) (*models.Table, error) {
		return nil, database.ErrNotFound
	}
}

func newLiveTable() *table.Table {
	return table.NewTable(uuid.New(), 1, models.TablePublic, false, uuid.New(), nil)
}

func TestTableStoreAddCommitsBeforeReachable(t *testing.T) {
	s := NewTableStore(nil)
	fake := &fakeTablePersistence{}
	fake.wire(s)

	tbl := newLiveTable()
	require.NoError(t, s.Add(context.Background(), tbl))
	assert.Equal(t, 1, fake.inserts)

	got, ok := s.Get(tbl.ID)
	require.True(t, ok)
	assert.Same(t, tbl, got)
}

func TestTableStoreAddInsertFailureLeavesNothing(t *testing.T) {
	s := NewTableStore(nil)
	fake := &fakeTablePersistence{failNext: errors.New("deadlock detected")}
	fake.wire(s)

	tbl := newLiveTable()
	err := s.Add(context.Background(), tbl)
	require.Error(t, err)

	// A failed insert never becomes reachable.
	_, ok := s.Get(tbl.ID)
	assert.False(t, ok)
	_, err = s.GetRecord(context.Background(), tbl.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTableStoreSaveWritesAllSeats(t *testing.T) {
	s := NewTableStore(nil)
	fake := &fakeTablePersistence{}
	fake.wire(s)
	tbl := newLiveTable()
	require.NoError(t, s.Add(context.Background(), tbl))

	require.NoError(t, s.Save(context.Background(), tbl))
	assert.Equal(t, 1, fake.saves)
	assert.Equal(t, models.SeatsPerTable, fake.seatSaves)
}

func TestTableStoreDelete(t *testing.T) {
	s := NewTableStore(nil)
	fake := &fakeTablePersistence{}
	fake.wire(s)
	tbl := newLiveTable()
	require.NoError(t, s.Add(context.Background(), tbl))

	require.NoError(t, s.Delete(context.Background(), tbl.ID))
	assert.Equal(t, 1, fake.deletes)
	_, ok := s.Get(tbl.ID)
	assert.False(t, ok)
}

func TestTableStoreFindByPlayer(t *testing.T) {
	s := NewTableStore(nil)
	fake := &fakeTablePersistence{}
	fake.wire(s)
	tbl := newLiveTable()
	require.NoError(t, s.Add(context.Background(), tbl))

	p := uuid.New()
	_, ok := s.FindByPlayer(p)
	assert.False(t, ok)

	_, err := tbl.Sit(p, 2)
	require.NoError(t, err)
	got, ok := s.FindByPlayer(p)
	require.True(t, ok)
	assert.Same(t, tbl, got)
}

func TestTableStoreGetRecordFromLiveTable(t *testing.T) {
	s := NewTableStore(nil)
	fake := &fakeTablePersistence{}
	fake.wire(s)
	tbl := newLiveTable()
	require.NoError(t, s.Add(context.Background(), tbl))

	rec, err := s.GetRecord(context.Background(), tbl.ID)
	require.NoError(t, err)
	assert.Equal(t, tbl.ID, rec.ID)
	assert.Equal(t, models.TableIdle, rec.State)
}
