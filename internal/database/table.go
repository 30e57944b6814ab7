package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jfelden/wordstack/internal/models"
)

// ErrInviteConflict means the invitation was already resolved or its seat
// was claimed by a concurrent accept.
var ErrInviteConflict = errors.New("invitation no longer acceptable")

// InsertTable creates the table row and its fixed seat rows in one
// transaction.
func InsertTable(ctx context.Context, t *models.Table, seats []*models.TableSeat) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO tables (id, room_id, slot, visibility, rated, host_player_id, state)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			t.ID, t.RoomID, t.Slot, t.Visibility, t.Rated, t.HostPlayerID, t.State,
		); err != nil {
			return err
		}
		for _, s := range seats {
			if _, err := tx.Exec(ctx,
				`INSERT INTO table_seats (id, table_id, seat_number, player_id, ready)
				 VALUES ($1, $2, $3, NULLIF($4, '00000000-0000-0000-0000-000000000000')::uuid, $5)`,
				s.ID, s.TableID, s.SeatNumber, s.PlayerID, s.Ready,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetTable fetches a table row.
func GetTable(ctx context.Context, id uuid.UUID) (*models.Table, error) {
	var t models.Table
	q := `SELECT id, room_id, slot, visibility, rated, host_player_id, state FROM tables WHERE id = $1`
	err := DB.QueryRow(ctx, q, id).Scan(&t.ID, &t.RoomID, &t.Slot, &t.Visibility, &t.Rated, &t.HostPlayerID, &t.State)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch table %s: %w", id, err)
	}
	return &t, nil
}

// SaveTable writes the table row back.
func SaveTable(ctx context.Context, t *models.Table) error {
	q := `
	UPDATE tables
	SET visibility = $2, rated = $3, host_player_id = $4, state = $5
	WHERE id = $1
	`
	tag, err := DB.Exec(ctx, q, t.ID, t.Visibility, t.Rated, t.HostPlayerID, t.State)
	if err != nil {
		return fmt.Errorf("failed to save table %s: %w", t.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTable removes the table and, by cascade, its seats, invitations and
// boots.
func DeleteTable(ctx context.Context, id uuid.UUID) error {
	_, err := DB.Exec(ctx, `DELETE FROM tables WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete table %s: %w", id, err)
	}
	return nil
}

// GetTableSeat fetches one seat row.
func GetTableSeat(ctx context.Context, id uuid.UUID) (*models.TableSeat, error) {
	var s models.TableSeat
	var playerID *uuid.UUID
	q := `SELECT id, table_id, seat_number, player_id, ready FROM table_seats WHERE id = $1`
	err := DB.QueryRow(ctx, q, id).Scan(&s.ID, &s.TableID, &s.SeatNumber, &playerID, &s.Ready)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch seat %s: %w", id, err)
	}
	if playerID != nil {
		s.PlayerID = *playerID
	}
	return &s, nil
}

// SaveTableSeat writes a seat's occupancy/ready state back.
func SaveTableSeat(ctx context.Context, s *models.TableSeat) error {
	q := `
	UPDATE table_seats
	SET player_id = NULLIF($2, '00000000-0000-0000-0000-000000000000')::uuid, ready = $3
	WHERE id = $1
	`
	tag, err := DB.Exec(ctx, q, s.ID, s.PlayerID, s.Ready)
	if err != nil {
		return fmt.Errorf("failed to save seat %s: %w", s.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertInvitation records a pending table invitation.
func InsertInvitation(ctx context.Context, inv *models.TableInvitation) error {
	q := `
	INSERT INTO table_invitations (id, table_id, from_player, to_player, seat_number, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := DB.Exec(ctx, q, inv.ID, inv.TableID, inv.FromPlayer, inv.ToPlayer, inv.SeatNumber, inv.Status, inv.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert invitation %s: %w", inv.ID, err)
	}
	return nil
}

// GetInvitation fetches one invitation row.
func GetInvitation(ctx context.Context, id uuid.UUID) (*models.TableInvitation, error) {
	var inv models.TableInvitation
	q := `
	SELECT id, table_id, from_player, to_player, seat_number, status, created_at
	FROM table_invitations WHERE id = $1
	`
	err := DB.QueryRow(ctx, q, id).Scan(
		&inv.ID, &inv.TableID, &inv.FromPlayer, &inv.ToPlayer, &inv.SeatNumber, &inv.Status, &inv.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch invitation %s: %w", id, err)
	}
	return &inv, nil
}

// AcceptInvitation flips a pending invitation to accepted and claims its
// seat inside one transaction, so a decline or a rival accept can never
// race this into a double-seat. The seat claim only succeeds if the seat is
// still empty.
func AcceptInvitation(ctx context.Context, invID uuid.UUID) (*models.TableInvitation, error) {
	var inv models.TableInvitation
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
		UPDATE table_invitations
		SET status = $2
		WHERE id = $1 AND status = $3
		RETURNING id, table_id, from_player, to_player, seat_number, status, created_at
		`
		err := tx.QueryRow(ctx, q, invID, models.InviteAccepted, models.InvitePending).Scan(
			&inv.ID, &inv.TableID, &inv.FromPlayer, &inv.ToPlayer, &inv.SeatNumber, &inv.Status, &inv.CreatedAt,
		)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInviteConflict
		}
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			`UPDATE table_seats SET player_id = $3, ready = false
			 WHERE table_id = $1 AND seat_number = $2 AND player_id IS NULL`,
			inv.TableID, inv.SeatNumber, inv.ToPlayer,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			// Seat already taken: roll back the status flip too.
			return ErrInviteConflict
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// DeclineInvitation flips a pending invitation to declined.
func DeclineInvitation(ctx context.Context, invID uuid.UUID) error {
	tag, err := DB.Exec(ctx,
		`UPDATE table_invitations SET status = $2 WHERE id = $1 AND status = $3`,
		invID, models.InviteDeclined, models.InvitePending,
	)
	if err != nil {
		return fmt.Errorf("failed to decline invitation %s: %w", invID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInviteConflict
	}
	return nil
}
