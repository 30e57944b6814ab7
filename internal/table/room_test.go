// internal/table/room_test.go
package table

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jfelden/wordstack/internal/game"
	"github.com/jfelden/wordstack/internal/models"
)

func TestCreateTableAssignsLowestFreeSlot(t *testing.T) {
	r := NewRoom("Apprentice Hall", models.RoomBeginner, nil)

	t1, err := r.CreateTable(models.TablePublic, false, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 1, t1.Slot)

	t2, err := r.CreateTable(models.TablePublic, true, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 2, t2.Slot)

	// Removing the first table frees its slot for reuse.
	r.RemoveTable(t1.ID)
	t3, err := r.CreateTable(models.TablePrivate, false, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 1, t3.Slot)
}

func TestCreateTableRoomFull(t *testing.T) {
	r := NewRoom("Wizard's Tower", models.RoomAdvanced, nil)
	for i := 0; i < MaxTablesPerRoom; i++ {
		_, err := r.CreateTable(models.TablePublic, false, uuid.New())
		require.NoError(t, err)
	}
	_, err := r.CreateTable(models.TablePublic, false, uuid.New())
	assert.ErrorIs(t, err, ErrRoomFull)
}

func TestGetTable(t *testing.T) {
	r := NewRoom("Scribe's Parlor", models.RoomIntermediate, nil)
	tbl, err := r.CreateTable(models.TablePublic, false, uuid.New())
	require.NoError(t, err)

	got, ok := r.GetTable(tbl.ID)
	require.True(t, ok)
	assert.Same(t, tbl, got)

	_, ok = r.GetTable(uuid.New())
	assert.False(t, ok)
}

func TestChatHistoryIsBounded(t *testing.T) {
	r := NewRoom("Apprentice Hall", models.RoomBeginner, nil)
	tableID, playerID := uuid.New(), uuid.New()

	for i := 0; i < ChatHistorySize+10; i++ {
		msg, ev := r.AppendChat(tableID, playerID, fmt.Sprintf("line %d", i))
		assert.Equal(t, tableID, msg.TableID)
		assert.Equal(t, game.EventChatMessage, ev.Type)
	}

	history := r.RecentChat()
	require.Len(t, history, ChatHistorySize)
	// Oldest lines fell off the front.
	assert.Equal(t, "line 10", history[0].Text)
	assert.Equal(t, fmt.Sprintf("line %d", ChatHistorySize+9), history[ChatHistorySize-1].Text)
}

func TestRoomSnapshot(t *testing.T) {
	r := NewRoom("Apprentice Hall", models.RoomBeginner, nil)
	_, err := r.CreateTable(models.TablePublic, false, uuid.New())
	require.NoError(t, err)

	snap := r.Snapshot()
	assert.Equal(t, r.ID.String(), snap["room_id"])
	assert.Equal(t, "Apprentice Hall", snap["name"])
	assert.Equal(t, models.RoomBeginner, snap["difficulty"])
}
