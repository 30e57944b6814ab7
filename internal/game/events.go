package game

import "github.com/google/uuid"

// EventType enumerates outbound real-time events. Names are the logical
// channel payload types delivered to room/table subscribers.
type EventType string

const (
	EventSeatUpdated    EventType = "seat-updated"
	EventTableUpdated   EventType = "table-updated"
	EventGameState      EventType = "game-state"
	EventGameCountdown  EventType = "game-countdown"
	EventGameTimer      EventType = "game-timer"
	EventGameOver       EventType = "game-over"
	EventPowerFire      EventType = "power-fire"
	EventBlocksMarked   EventType = "blocks-marked-for-removal"
	EventChatMessage    EventType = "chat-message"
	EventInvited        EventType = "invitation-invited"
	EventInviteDeclined EventType = "invitation-declined"
	EventBooted         EventType = "booted"
	EventError          EventType = "error"
)

// Event is the broadcast envelope for game and table notifications.
type Event struct {
	Type    EventType              `json:"type"`
	TableID uuid.UUID              `json:"table_id,omitempty"`
	Seat    int                    `json:"seat,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// SeatSnapshot is the per-seat slice of the full game-state event.
type SeatSnapshot struct {
	SeatNumber int        `json:"seat_number"`
	PlayerID   uuid.UUID  `json:"player_id"`
	Board      [][]string `json:"board"`
	Current    *Piece     `json:"current,omitempty"`
	Next       []*Piece   `json:"next,omitempty"`
	Bar        []*Block   `json:"bar"`
	Removed    int        `json:"removed"`
	Shielded   bool       `json:"shielded"`
	Lost       bool       `json:"lost"`
}
