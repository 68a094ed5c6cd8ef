package messaging

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aura-dev/aura/internal/models"
	"github.com/aura-dev/aura/internal/telegram"
)

// maxUpdateBytes bounds the webhook body read into memory.
const maxUpdateBytes = 1 << 20

// TelegramService implements Service for the Telegram Bot API.
type TelegramService struct {
	channelBase
	client telegram.Sender
	secret string
}

// NewTelegramService creates a TelegramService around client (real or mock).
// When secret is non-empty, webhook requests must carry it in
// X-Telegram-Bot-Api-Secret-Token.
func NewTelegramService(client telegram.Sender, secret string) *TelegramService {
	return &TelegramService{
		channelBase: newChannelBase(models.ChannelTelegram),
		client:      client,
		secret:      secret,
	}
}

// ValidateAndCanonicalizeRecipient accepts a numeric chat id.
func (s *TelegramService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	id, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid telegram chat id %q", recipient)
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *TelegramService) SendMessage(ctx context.Context, to string, body string) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	chatID, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	if err := s.client.SendMessage(ctx, chatID, body); err != nil {
		s.emitReceipt(models.Receipt{To: chatID, Channel: s.channel, Status: models.MessageStatusFailed, Time: time.Now().Unix()})
		return err
	}
	s.emitReceipt(models.Receipt{To: chatID, Channel: s.channel, Status: models.MessageStatusSent, Time: time.Now().Unix()})
	return nil
}

// WebhookHandler decodes Telegram updates and emits text messages into the
// Responses() channel. Updates without text are acknowledged and ignored so
// Telegram does not redeliver them.
func (s *TelegramService) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	if s.secret != "" {
		got := r.Header.Get("X-Telegram-Bot-Api-Secret-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.secret)) != 1 {
			slog.Warn("Telegram webhook secret mismatch", "remote", r.RemoteAddr)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxUpdateBytes))
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	in, err := telegram.ParseUpdate(body)
	switch {
	case errors.Is(err, telegram.ErrNotTextMessage):
		slog.Debug("Telegram webhook: ignoring non-text update")
	case err != nil:
		slog.Warn("Telegram webhook: malformed update", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	default:
		slog.Info("Inbound Telegram message", "chatID", in.From, "messageID", in.MessageID)
		s.emitResponse(in)
	}
	w.WriteHeader(http.StatusOK)
}
