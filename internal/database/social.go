package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jfelden/wordstack/internal/models"
)

// InsertMute records a mute. Re-muting an existing pair is a no-op.
func InsertMute(ctx context.Context, m *models.UserMute) error {
	q := `
	INSERT INTO user_mutes (id, muter_id, muted_id, created_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (muter_id, muted_id) DO NOTHING
	`
	_, err := DB.Exec(ctx, q, m.ID, m.MuterID, m.MutedID, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert mute %s->%s: %w", m.MuterID, m.MutedID, err)
	}
	return nil
}

// DeleteMute revokes a mute (delete = unmute; mutes are never updated).
func DeleteMute(ctx context.Context, muterID, mutedID uuid.UUID) error {
	_, err := DB.Exec(ctx, `DELETE FROM user_mutes WHERE muter_id = $1 AND muted_id = $2`, muterID, mutedID)
	if err != nil {
		return fmt.Errorf("failed to delete mute %s->%s: %w", muterID, mutedID, err)
	}
	return nil
}

// GetMutedIDs lists everyone the player has muted, for per-viewer chat
// filtering at delivery time.
func GetMutedIDs(ctx context.Context, muterID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := DB.Query(ctx, `SELECT muted_id FROM user_mutes WHERE muter_id = $1`, muterID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch mutes for %s: %w", muterID, err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// InsertBoot records a host booting a player from a table.
func InsertBoot(ctx context.Context, b *models.TableBoot) error {
	q := `
	INSERT INTO table_boots (id, table_id, host_id, booted_id, created_at)
	VALUES ($1, $2, $3, $4, $5)
	`
	_, err := DB.Exec(ctx, q, b.ID, b.TableID, b.HostID, b.BootedID, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert boot for table %s: %w", b.TableID, err)
	}
	return nil
}

// InsertChatMessage persists one chat line so late joiners can replay it.
func InsertChatMessage(ctx context.Context, m *models.TableChatMessage) error {
	q := `
	INSERT INTO table_chat_messages (id, table_id, player_id, text, sent_at)
	VALUES ($1, $2, $3, $4, $5)
	`
	_, err := DB.Exec(ctx, q, m.ID, m.TableID, m.PlayerID, m.Text, m.SentAt)
	if err != nil {
		return fmt.Errorf("failed to insert chat message %s: %w", m.ID, err)
	}
	return nil
}

// GetRecentChat returns the latest limit messages for a table, oldest first.
func GetRecentChat(ctx context.Context, tableID uuid.UUID, limit int) ([]models.TableChatMessage, error) {
	q := `
	SELECT id, table_id, player_id, text, sent_at
	FROM table_chat_messages
	WHERE table_id = $1
	ORDER BY sent_at DESC
	LIMIT $2
	`
	rows, err := DB.Query(ctx, q, tableID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chat for table %s: %w", tableID, err)
	}
	defer rows.Close()

	var out []models.TableChatMessage
	for rows.Next() {
		var m models.TableChatMessage
		var sentAt time.Time
		if err := rows.Scan(&m.ID, &m.TableID, &m.PlayerID, &m.Text, &sentAt); err != nil {
			return nil, err
		}
		m.SentAt = sentAt
		out = append(out, m)
	}
	// Reverse to oldest-first for replay.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}
