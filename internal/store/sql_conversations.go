package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/aura-dev/aura/internal/models"
)

const conversationColumns = `id, user_id, channel, name, status, created_at, updated_at`

func scanConversation(r rowScanner) (models.Conversation, error) {
	var c models.Conversation
	var name sql.NullString
	err := r.Scan(&c.ID, &c.UserID, &c.Channel, &name, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	c.Name = name.String
	return c, err
}

func (b *sqlBase) UpsertConversation(c *models.Conversation) error {
	_, err := b.db.Exec(b.q(`
		INSERT INTO conversations (`+conversationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			updated_at = excluded.updated_at`),
		c.ID, c.UserID, c.Channel, nilIfEmpty(c.Name), c.Status, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		slog.Error(b.name+" UpsertConversation failed", "error", err, "conversationID", c.ID)
		return fmt.Errorf("upsert conversation %s: %w", c.ID, err)
	}
	return nil
}

func (b *sqlBase) GetConversation(id string) (*models.Conversation, error) {
	c, err := scanConversation(b.db.QueryRow(b.q(`SELECT `+conversationColumns+` FROM conversations WHERE id = ?`), id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}
	return &c, nil
}

func (b *sqlBase) GetConversationByUser(userID string) (*models.Conversation, error) {
	c, err := scanConversation(b.db.QueryRow(b.q(`SELECT `+conversationColumns+` FROM conversations WHERE user_id = ?`), userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation of %s: %w", userID, err)
	}
	return &c, nil
}

func (b *sqlBase) ListConversations(status models.ConversationStatus) ([]models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	rows, err := b.db.Query(b.q(query+` ORDER BY updated_at DESC`), args...)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()
	var out []models.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (b *sqlBase) AppendConversationEntry(e *models.ConversationEntry) error {
	err := b.db.QueryRow(b.q(`INSERT INTO conversation_entries (conversation_id, role, text, created_at) VALUES (?, ?, ?, ?) RETURNING id`),
		e.ConversationID, e.Role, e.Text, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		slog.Error(b.name+" AppendConversationEntry failed", "error", err, "conversationID", e.ConversationID)
		return fmt.Errorf("append conversation entry: %w", err)
	}
	return nil
}

func (b *sqlBase) ListConversationEntries(conversationID string, limit int) ([]models.ConversationEntry, error) {
	query := `SELECT id, conversation_id, role, text, created_at FROM conversation_entries WHERE conversation_id = ? ORDER BY id ASC`
	args := []any{conversationID}
	if limit > 0 {
		// Newest `limit` entries, returned oldest first.
		query = `SELECT id, conversation_id, role, text, created_at FROM (
			SELECT id, conversation_id, role, text, created_at FROM conversation_entries
			WHERE conversation_id = ? ORDER BY id DESC LIMIT ?) recent ORDER BY id ASC`
		args = append(args, limit)
	}
	rows, err := b.db.Query(b.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query conversation entries: %w", err)
	}
	defer rows.Close()
	var out []models.ConversationEntry
	for rows.Next() {
		var e models.ConversationEntry
		if err := rows.Scan(&e.ID, &e.ConversationID, &e.Role, &e.Text, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation entry row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
