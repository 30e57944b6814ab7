package models

import "github.com/google/uuid"

// Visibility modes for a table.
const (
	TablePublic    = "public"
	TableProtected = "protected"
	TablePrivate   = "private"
)

// Table states. A table is idle until enough teams ready up, counts down,
// runs exactly one authoritative game, passes through finished when it
// resolves, and settles back to idle for the next round.
const (
	TableIdle      = "idle"
	TableCountdown = "countdown"
	TableActive    = "active"
	TableFinished  = "finished"
)

// SeatsPerTable is fixed: two teams of two.
const SeatsPerTable = 4

// Table represents a row in the tables table. Seats are owned by the table
// and persisted separately.
type Table struct {
	ID           uuid.UUID `json:"id"`
	RoomID       uuid.UUID `json:"room_id"`
	Slot         int       `json:"slot"` // unique within the room
	Visibility   string    `json:"visibility"`
	Rated        bool      `json:"rated"`
	HostPlayerID uuid.UUID `json:"host_player_id"`
	State        string    `json:"state"`
}

// TableSeat represents a row in the table_seats table. The live game
// artifacts (board, next pieces, power bar) exist only in memory while a
// game is active and never reach durable storage.
type TableSeat struct {
	ID         uuid.UUID `json:"id"`
	TableID    uuid.UUID `json:"table_id"`
	SeatNumber int       `json:"seat_number"` // 1-based
	PlayerID   uuid.UUID `json:"player_id"`   // uuid.Nil when empty
	Ready      bool      `json:"ready"`
}

// Team derives the seat's team from its number: seats 1,2 -> 1; 3,4 -> 2.
func (s *TableSeat) Team() int {
	return (s.SeatNumber + 1) / 2
}

// Occupied reports whether a player is sitting in this seat.
func (s *TableSeat) Occupied() bool {
	return s.PlayerID != uuid.Nil
}
