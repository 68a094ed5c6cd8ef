package store

import "time"

// DedupRecord is one channel message id seen on a webhook.
type DedupRecord struct {
	MessageID     string     `json:"message_id"`
	ParticipantID string     `json:"participant_id"`
	ReceivedAt    time.Time  `json:"received_at"`
	ProcessedAt   *time.Time `json:"processed_at"`
}

// DedupRepo drops webhook redeliveries. Telegram and Twilio both retry a
// delivery they consider failed, with the same message id.
type DedupRepo interface {
	// IsDuplicate reports whether messageID was recorded before.
	IsDuplicate(messageID string) (bool, error)

	// RecordInbound records messageID for participantID. It returns false when
	// the id was already recorded.
	RecordInbound(messageID, participantID string) (bool, error)

	// MarkProcessed stamps the time the dispatcher finished with messageID.
	MarkProcessed(messageID string) error

	// PurgeDedupBefore deletes records received before cutoff and returns the count.
	PurgeDedupBefore(cutoff time.Time) (int, error)
}
