package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aura-dev/aura/internal/util"
)

var (
	_ OutboxRepo = (*SQLiteStore)(nil)
	_ OutboxRepo = (*PostgresStore)(nil)
)

// EnqueueOutboxMessage queues a reply for participantID. A live message with
// the same dedupe key wins over a new one.
func (b *sqlBase) EnqueueOutboxMessage(participantID, kind, payloadJSON, dedupeKey string, notBefore time.Time) (string, error) {
	if dedupeKey != "" {
		var existing string
		err := b.db.QueryRow(b.q(`SELECT id FROM outbox_messages WHERE dedupe_key = ? AND status NOT IN ('sent', 'canceled')`), dedupeKey).Scan(&existing)
		switch {
		case err == nil:
			slog.Debug(b.name+".EnqueueOutboxMessage: dedupe hit", "dedupeKey", dedupeKey, "existingID", existing)
			return existing, nil
		case !errors.Is(err, sql.ErrNoRows):
			return "", fmt.Errorf("outbox dedupe lookup: %w", err)
		}
	}

	id := util.GenerateOutboxID()
	now := time.Now()
	_, err := b.db.Exec(b.q(`
		INSERT INTO outbox_messages (id, participant_id, kind, payload_json, status, attempts, next_attempt_at, dedupe_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'queued', 0, ?, ?, ?, ?)`),
		id, participantID, kind, payloadJSON, timeOrNil(nonZero(notBefore)), nilIfEmpty(dedupeKey), now, now)
	if err != nil {
		return "", fmt.Errorf("insert outbox message for %s: %w", participantID, err)
	}
	slog.Debug(b.name+".EnqueueOutboxMessage: queued", "id", id, "participantID", participantID, "notBefore", notBefore)
	return id, nil
}

// ClaimDueOutboxMessages leases up to limit due messages, oldest first.
// PostgreSQL claims in one statement with SKIP LOCKED so concurrent senders
// never share a row; SQLite serializes writers and claims inside a transaction.
func (b *sqlBase) ClaimDueOutboxMessages(now time.Time, limit int) ([]OutboxMessage, error) {
	if b.numbered {
		return b.collectOutbox(b.db.Query(b.q(`
			UPDATE outbox_messages SET status = 'sending', locked_at = ?, updated_at = ?
			WHERE id IN (
				SELECT id FROM outbox_messages
				WHERE status = 'queued' AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
				ORDER BY created_at ASC LIMIT ?
				FOR UPDATE SKIP LOCKED
			)
			RETURNING `+outboxColumns), now, now, now, limit))
	}

	tx, err := b.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin outbox claim: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	msgs, err := b.collectOutbox(tx.Query(`
		SELECT `+outboxColumns+` FROM outbox_messages
		WHERE status = 'queued' AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
		ORDER BY created_at ASC LIMIT ?`, now, limit))
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		if _, err := tx.Exec(`UPDATE outbox_messages SET status = 'sending', locked_at = ?, updated_at = ? WHERE id = ?`, now, now, msgs[i].ID); err != nil {
			return nil, fmt.Errorf("lease outbox message %s: %w", msgs[i].ID, err)
		}
		msgs[i].Status = OutboxStatusSending
		msgs[i].LockedAt = &now
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit outbox claim: %w", err)
	}
	return msgs, nil
}

func (b *sqlBase) collectOutbox(rows *sql.Rows, err error) ([]OutboxMessage, error) {
	if err != nil {
		return nil, fmt.Errorf("query outbox messages: %w", err)
	}
	defer rows.Close()

	var msgs []OutboxMessage
	for rows.Next() {
		m, err := scanOutboxMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox messages: %w", err)
	}
	return msgs, nil
}

// MarkOutboxMessageSent moves a leased message to sent.
func (b *sqlBase) MarkOutboxMessageSent(id string) error {
	if _, err := b.db.Exec(b.q(`UPDATE outbox_messages SET status = 'sent', updated_at = ? WHERE id = ?`), time.Now(), id); err != nil {
		return fmt.Errorf("mark outbox message %s sent: %w", id, err)
	}
	return nil
}

// FailOutboxMessage releases a leased message for another attempt at nextAttemptAt.
func (b *sqlBase) FailOutboxMessage(id string, errMsg string, nextAttemptAt time.Time) error {
	_, err := b.db.Exec(b.q(`
		UPDATE outbox_messages
		SET status = 'queued', attempts = attempts + 1, last_error = ?, next_attempt_at = ?, locked_at = NULL, updated_at = ?
		WHERE id = ?`),
		errMsg, nextAttemptAt, time.Now(), id)
	if err != nil {
		return fmt.Errorf("record outbox failure for %s: %w", id, err)
	}
	return nil
}

// RequeueStaleSendingMessages releases leases taken before staleBefore, left
// behind by a sender that died mid-delivery.
func (b *sqlBase) RequeueStaleSendingMessages(staleBefore time.Time) (int, error) {
	res, err := b.db.Exec(b.q(`UPDATE outbox_messages SET status = 'queued', locked_at = NULL, updated_at = ? WHERE status = 'sending' AND locked_at < ?`),
		time.Now(), staleBefore)
	if err != nil {
		return 0, fmt.Errorf("requeue stale outbox messages: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		slog.Info(b.name+".RequeueStaleSendingMessages: released stale leases", "requeued", n)
	}
	return int(n), nil
}
