package models

import "github.com/google/uuid"

// Player represents a row in the players table. Live connection handles are
// never stored here; the relay owns the player-id -> connection mapping.
type Player struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`

	IsEphemeral bool `json:"is_ephemeral"`
	IsAdmin     bool `json:"is_admin"`
}

// PlayerStats holds the durable per-player statistics updated at game end.
type PlayerStats struct {
	PlayerID uuid.UUID `json:"player_id"`
	Rating   int       `json:"rating"`
	Wins     int       `json:"wins"`
	Losses   int       `json:"losses"`
	Streak   int       `json:"streak"`
}

// PlayerControlKeys is a player's remappable key-binding record.
type PlayerControlKeys struct {
	PlayerID  uuid.UUID `json:"player_id"`
	MoveLeft  string    `json:"move_left"`
	MoveRight string    `json:"move_right"`
	Cycle     string    `json:"cycle"`
	SoftDrop  string    `json:"soft_drop"`
	HardDrop  string    `json:"hard_drop"`
	UseItem   string    `json:"use_item"`
}

// DefaultControlKeys returns the binding a new player starts with.
func DefaultControlKeys(playerID uuid.UUID) *PlayerControlKeys {
	return &PlayerControlKeys{
		PlayerID:  playerID,
		MoveLeft:  "ArrowLeft",
		MoveRight: "ArrowRight",
		Cycle:     "ArrowUp",
		SoftDrop:  "ArrowDown",
		HardDrop:  "Space",
		UseItem:   "Enter",
	}
}
