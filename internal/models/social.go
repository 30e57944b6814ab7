package models

import (
	"time"

	"github.com/google/uuid"
)

// Invitation statuses.
const (
	InvitePending  = "pending"
	InviteAccepted = "accepted"
	InviteDeclined = "declined"
)

// TableInvitation invites a player to a specific seat. Accepting seats the
// invitee in the same transaction as the status update so a decline can
// never race an accept into a double-seat.
type TableInvitation struct {
	ID         uuid.UUID `json:"id"`
	TableID    uuid.UUID `json:"table_id"`
	FromPlayer uuid.UUID `json:"from_player"`
	ToPlayer   uuid.UUID `json:"to_player"`
	SeatNumber int       `json:"seat_number"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// UserMute records that muter no longer wants to see muted's chat. Delivery
// filtering only; no simulation effect. Delete = unmute.
type UserMute struct {
	ID        uuid.UUID `json:"id"`
	MuterID   uuid.UUID `json:"muter_id"`
	MutedID   uuid.UUID `json:"muted_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableBoot records a host removing a player from a table.
type TableBoot struct {
	ID        uuid.UUID `json:"id"`
	TableID   uuid.UUID `json:"table_id"`
	HostID    uuid.UUID `json:"host_id"`
	BootedID  uuid.UUID `json:"booted_id"`
	CreatedAt time.Time `json:"created_at"`
}
