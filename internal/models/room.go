package models

import (
	"time"

	"github.com/google/uuid"
)

// Room difficulty tiers, in ascending piece-speed order.
const (
	RoomBeginner     = "beginner"
	RoomIntermediate = "intermediate"
	RoomAdvanced     = "advanced"
)

// Room groups tables of one difficulty tier. Rooms come from a fixed seed
// list at bootstrap and are never deleted at runtime.
type Room struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Difficulty string    `json:"difficulty"`
}

// TableChatMessage is one line of table chat, persisted so late joiners can
// replay recent history. Mute filtering happens per viewer at delivery time;
// messages are never deleted on mute.
type TableChatMessage struct {
	ID       uuid.UUID `json:"id"`
	TableID  uuid.UUID `json:"table_id"`
	PlayerID uuid.UUID `json:"player_id"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sent_at"`
}
