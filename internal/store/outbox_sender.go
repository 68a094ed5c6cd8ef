package store

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultOutboxPollInterval = time.Second
	defaultStaleThreshold     = 5 * time.Minute
	defaultClaimLimit         = 20
	maxOutboxBackoff          = 10 * time.Minute
)

// OutboxSendFunc delivers one message. messaging.Dispatcher.SendOutbox is the production one.
type OutboxSendFunc func(ctx context.Context, msg OutboxMessage) error

// OutboxSender periodically claims due outbox messages and attempts to send them.
type OutboxSender struct {
	repo           OutboxRepo
	sendFunc       OutboxSendFunc
	pollInterval   time.Duration
	staleThreshold time.Duration
	claimLimit     int
}

// NewOutboxSender creates a new OutboxSender.
func NewOutboxSender(repo OutboxRepo, sendFunc OutboxSendFunc, pollInterval time.Duration) *OutboxSender {
	if pollInterval <= 0 {
		pollInterval = defaultOutboxPollInterval
	}
	return &OutboxSender{
		repo:           repo,
		sendFunc:       sendFunc,
		pollInterval:   pollInterval,
		staleThreshold: defaultStaleThreshold,
		claimLimit:     defaultClaimLimit,
	}
}

// RecoverStaleMessages requeues messages leased longer than the stale threshold.
func (s *OutboxSender) RecoverStaleMessages() error {
	staleBefore := time.Now().Add(-s.staleThreshold)
	n, err := s.repo.RequeueStaleSendingMessages(staleBefore)
	if err != nil {
		return err
	}
	if n > 0 {
		slog.Info("OutboxSender.RecoverStaleMessages: requeued stale messages", "count", n)
	}
	return nil
}

// Run starts the polling loop. It blocks until the context is cancelled.
func (s *OutboxSender) Run(ctx context.Context) {
	slog.Info("OutboxSender.Run: starting outbox sender", "pollInterval", s.pollInterval)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("OutboxSender.Run: stopping")
			return
		case <-ticker.C:
			s.Poll(ctx, time.Now())
		}
	}
}

// Poll claims and sends every message due at now. It returns how many were sent.
// Replies to one participant leave in claim order: once a send fails, the
// participant's later messages are held until the retry of the failed one.
func (s *OutboxSender) Poll(ctx context.Context, now time.Time) int {
	msgs, err := s.repo.ClaimDueOutboxMessages(now, s.claimLimit)
	if err != nil {
		slog.Error("OutboxSender.Poll: claim failed", "error", err)
		return 0
	}

	held := make(map[string]time.Time)
	sent := 0
	for _, msg := range msgs {
		if retryAt, ok := held[msg.ParticipantID]; ok {
			s.release(msg, "held behind an earlier failed reply", retryAt.Add(time.Second))
			continue
		}
		slog.Debug("OutboxSender.Poll: sending", "id", msg.ID, "participantID", msg.ParticipantID, "kind", msg.Kind)
		if err := s.sendFunc(ctx, msg); err != nil {
			retryAt := now.Add(retryBackoff(msg.Attempts))
			slog.Warn("OutboxSender.Poll: send failed", "id", msg.ID, "participantID", msg.ParticipantID, "attempts", msg.Attempts, "retryAt", retryAt, "error", err)
			s.release(msg, err.Error(), retryAt)
			held[msg.ParticipantID] = retryAt
			continue
		}
		if err := s.repo.MarkOutboxMessageSent(msg.ID); err != nil {
			slog.Error("OutboxSender.Poll: mark sent failed", "id", msg.ID, "error", err)
			continue
		}
		sent++
	}
	return sent
}

func (s *OutboxSender) release(msg OutboxMessage, reason string, retryAt time.Time) {
	if err := s.repo.FailOutboxMessage(msg.ID, reason, retryAt); err != nil {
		slog.Error("OutboxSender: release failed", "id", msg.ID, "error", err)
	}
}

// retryBackoff is exponential (10s, 20s, 40s, ...) capped at maxOutboxBackoff.
func retryBackoff(attempts int) time.Duration {
	if attempts > 10 {
		return maxOutboxBackoff
	}
	d := time.Duration(10*(1<<attempts)) * time.Second
	if d > maxOutboxBackoff {
		return maxOutboxBackoff
	}
	return d
}
