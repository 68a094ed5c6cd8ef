package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	_ DedupRepo = (*SQLiteStore)(nil)
	_ DedupRepo = (*PostgresStore)(nil)
)

func (b *sqlBase) IsDuplicate(messageID string) (bool, error) {
	var id string
	err := b.db.QueryRow(b.q(`SELECT message_id FROM inbound_dedup WHERE message_id = ?`), messageID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("dedup lookup of %s: %w", messageID, err)
	}
	return true, nil
}

// RecordInbound relies on the message_id primary key: a redelivery inserts
// nothing and reports false.
func (b *sqlBase) RecordInbound(messageID, participantID string) (bool, error) {
	res, err := b.db.Exec(b.q(`
		INSERT INTO inbound_dedup (message_id, participant_id, received_at) VALUES (?, ?, ?)
		ON CONFLICT (message_id) DO NOTHING`),
		messageID, participantID, time.Now())
	if err != nil {
		return false, fmt.Errorf("record inbound %s: %w", messageID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record inbound %s: rows affected: %w", messageID, err)
	}
	return n > 0, nil
}

func (b *sqlBase) MarkProcessed(messageID string) error {
	if _, err := b.db.Exec(b.q(`UPDATE inbound_dedup SET processed_at = ? WHERE message_id = ?`), time.Now(), messageID); err != nil {
		return fmt.Errorf("mark %s processed: %w", messageID, err)
	}
	return nil
}

func (b *sqlBase) PurgeDedupBefore(cutoff time.Time) (int, error) {
	res, err := b.db.Exec(b.q(`DELETE FROM inbound_dedup WHERE received_at < ?`), cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge dedup records: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
