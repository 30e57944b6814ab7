package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jfelden/wordstack/internal/models"
)

// ErrNotFound is returned when a row does not exist. Callers must surface
// it as a terminal error, never swallow it.
var ErrNotFound = errors.New("record not found")

// GetPlayerByID fetches one player row.
func GetPlayerByID(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	var p models.Player
	q := `SELECT id, username, is_ephemeral, is_admin FROM players WHERE id = $1`
	err := DB.QueryRow(ctx, q, id).Scan(&p.ID, &p.Username, &p.IsEphemeral, &p.IsAdmin)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch player %s: %w", id, err)
	}
	return &p, nil
}

// InsertPlayer creates a player row together with zeroed stats and default
// control keys.
func InsertPlayer(ctx context.Context, p *models.Player) error {
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO players (id, username, is_ephemeral, is_admin) VALUES ($1, $2, $3, $4)`,
			p.ID, p.Username, p.IsEphemeral, p.IsAdmin,
		); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO player_stats (player_id, rating, wins, losses, streak) VALUES ($1, 1200, 0, 0, 0)`,
			p.ID,
		); err != nil {
			return err
		}
		keys := models.DefaultControlKeys(p.ID)
		_, err := tx.Exec(ctx,
			`INSERT INTO player_control_keys (player_id, move_left, move_right, cycle, soft_drop, hard_drop, use_item)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			keys.PlayerID, keys.MoveLeft, keys.MoveRight, keys.Cycle, keys.SoftDrop, keys.HardDrop, keys.UseItem,
		)
		return err
	})
}

// GetPlayerStats fetches a player's durable statistics.
func GetPlayerStats(ctx context.Context, playerID uuid.UUID) (*models.PlayerStats, error) {
	var s models.PlayerStats
	q := `SELECT player_id, rating, wins, losses, streak FROM player_stats WHERE player_id = $1`
	err := DB.QueryRow(ctx, q, playerID).Scan(&s.PlayerID, &s.Rating, &s.Wins, &s.Losses, &s.Streak)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stats for %s: %w", playerID, err)
	}
	return &s, nil
}

// SavePlayerStats writes a stats row back.
func SavePlayerStats(ctx context.Context, s *models.PlayerStats) error {
	q := `
	UPDATE player_stats
	SET rating = $2, wins = $3, losses = $4, streak = $5
	WHERE player_id = $1
	`
	tag, err := DB.Exec(ctx, q, s.PlayerID, s.Rating, s.Wins, s.Losses, s.Streak)
	if err != nil {
		return fmt.Errorf("failed to save stats for %s: %w", s.PlayerID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetControlKeys fetches a player's key bindings, falling back to defaults
// when the row is absent.
func GetControlKeys(ctx context.Context, playerID uuid.UUID) (*models.PlayerControlKeys, error) {
	var k models.PlayerControlKeys
	q := `
	SELECT player_id, move_left, move_right, cycle, soft_drop, hard_drop, use_item
	FROM player_control_keys WHERE player_id = $1
	`
	err := DB.QueryRow(ctx, q, playerID).Scan(
		&k.PlayerID, &k.MoveLeft, &k.MoveRight, &k.Cycle, &k.SoftDrop, &k.HardDrop, &k.UseItem,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.DefaultControlKeys(playerID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch control keys for %s: %w", playerID, err)
	}
	return &k, nil
}

// SaveControlKeys upserts a player's key bindings.
func SaveControlKeys(ctx context.Context, k *models.PlayerControlKeys) error {
	q := `
	INSERT INTO player_control_keys (player_id, move_left, move_right, cycle, soft_drop, hard_drop, use_item)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (player_id) DO UPDATE SET
		move_left = EXCLUDED.move_left,
		move_right = EXCLUDED.move_right,
		cycle = EXCLUDED.cycle,
		soft_drop = EXCLUDED.soft_drop,
		hard_drop = EXCLUDED.hard_drop,
		use_item = EXCLUDED.use_item
	`
	_, err := DB.Exec(ctx, q, k.PlayerID, k.MoveLeft, k.MoveRight, k.Cycle, k.SoftDrop, k.HardDrop, k.UseItem)
	if err != nil {
		return fmt.Errorf("failed to save control keys for %s: %w", k.PlayerID, err)
	}
	return nil
}
