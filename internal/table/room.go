package table

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jfelden/wordstack/internal/game"
	"github.com/jfelden/wordstack/internal/models"
)

// ErrRoomFull means no free table slot remains in the room.
var ErrRoomFull = errors.New("room has no free table slot")

// MaxTablesPerRoom bounds the slot numbering.
const MaxTablesPerRoom = 20

// ChatHistorySize is how many recent room chat lines late joiners replay.
const ChatHistorySize = 50

// Room groups the live tables of one difficulty tier plus a bounded chat
// log. Rooms are created once from the seed list and never deleted.
type Room struct {
	ID         uuid.UUID
	Name       string
	Difficulty string

	Mu     sync.Mutex
	Tables map[int]*Table // keyed by slot, unique within the room
	Chat   []models.TableChatMessage

	Log *logrus.Logger
}

// SeedRooms is the fixed bootstrap list.
var SeedRooms = []struct {
	Name       string
	Difficulty string
}{
	{"Apprentice Hall", models.RoomBeginner},
	{"Scribe's Parlor", models.RoomIntermediate},
	{"Wizard's Tower", models.RoomAdvanced},
}

// NewRoom builds an empty live room.
func NewRoom(name, difficulty string, logger *logrus.Logger) *Room {
	id, _ := uuid.NewRandom()
	if logger == nil {
		logger = logrus.New()
	}
	return &Room{
		ID:         id,
		Name:       name,
		Difficulty: difficulty,
		Tables:     make(map[int]*Table),
		Log:        logger,
	}
}

// CreateTable allocates the lowest free slot and builds a table there.
func (r *Room) CreateTable(visibility string, rated bool, host uuid.UUID) (*Table, error) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	for slot := 1; slot <= MaxTablesPerRoom; slot++ {
		if _, taken := r.Tables[slot]; taken {
			continue
		}
		t := NewTable(r.ID, slot, visibility, rated, host, r.Log)
		r.Tables[slot] = t
		r.Log.WithFields(logrus.Fields{"room": r.ID, "slot": slot, "table": t.ID}).Info("table created")
		return t, nil
	}
	return nil, ErrRoomFull
}

// RemoveTable drops the table from its slot; called when the last seat
// vacates.
func (r *Room) RemoveTable(tableID uuid.UUID) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	for slot, t := range r.Tables {
		if t.ID == tableID {
			delete(r.Tables, slot)
			r.Log.WithFields(logrus.Fields{"room": r.ID, "slot": slot, "table": tableID}).Info("table removed")
			return
		}
	}
}

// GetTable finds a table by id.
func (r *Room) GetTable(tableID uuid.UUID) (*Table, bool) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	for _, t := range r.Tables {
		if t.ID == tableID {
			return t, true
		}
	}
	return nil, false
}

// AppendChat records a chat line in the bounded history and returns the
// stored message plus its broadcast event.
func (r *Room) AppendChat(tableID, playerID uuid.UUID, text string) (models.TableChatMessage, game.Event) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	id, _ := uuid.NewRandom()
	msg := models.TableChatMessage{
		ID:       id,
		TableID:  tableID,
		PlayerID: playerID,
		Text:     text,
		SentAt:   time.Now(),
	}
	r.Chat = append(r.Chat, msg)
	if len(r.Chat) > ChatHistorySize {
		r.Chat = r.Chat[len(r.Chat)-ChatHistorySize:]
	}
	ev := game.Event{
		Type:    game.EventChatMessage,
		TableID: tableID,
		Payload: map[string]interface{}{
			"message_id": msg.ID.String(),
			"player_id":  playerID.String(),
			"text":       text,
			"sent_at":    msg.SentAt.Unix(),
		},
	}
	return msg, ev
}

// RecentChat returns a copy of the chat history for replay on join.
func (r *Room) RecentChat() []models.TableChatMessage {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	out := make([]models.TableChatMessage, len(r.Chat))
	copy(out, r.Chat)
	return out
}

// Snapshot lists the room's tables for the lobby view.
func (r *Room) Snapshot() map[string]interface{} {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	tables := make([]map[string]interface{}, 0, len(r.Tables))
	for slot, t := range r.Tables {
		t.Mu.Lock()
		occupied := t.occupiedCountUnsafe()
		state := t.State
		t.Mu.Unlock()
		tables = append(tables, map[string]interface{}{
			"table_id": t.ID.String(),
			"slot":     slot,
			"state":    state,
			"occupied": occupied,
		})
	}
	return map[string]interface{}{
		"room_id":    r.ID.String(),
		"name":       r.Name,
		"difficulty": r.Difficulty,
		"tables":     tables,
	}
}
