// Package telegram wraps the Telegram Bot API for sending replies and decoding webhook updates.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"

	"github.com/aura-dev/aura/internal/models"
)

// ErrNotTextMessage is returned by ParseUpdate for updates that carry no text message.
var ErrNotTextMessage = errors.New("update has no text message")

// Sender sends text messages to a Telegram chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID string, text string) error
}

// Opts holds configuration options for the Telegram client.
type Opts struct {
	Token      string
	WebhookURL string
	Secret     string
}

// Option defines a configuration option for the Telegram client.
type Option func(*Opts)

// WithToken sets the bot token.
func WithToken(token string) Option {
	return func(o *Opts) { o.Token = token }
}

// WithWebhookURL registers url as the bot webhook on startup.
func WithWebhookURL(url string) Option {
	return func(o *Opts) { o.WebhookURL = url }
}

// WithSecretToken sets the secret Telegram echoes in the X-Telegram-Bot-Api-Secret-Token header.
func WithSecretToken(secret string) Option {
	return func(o *Opts) { o.Secret = secret }
}

// Client wraps a gotgbot.Bot.
type Client struct {
	bot    *gotgbot.Bot
	secret string
}

// NewClient creates a Telegram client. The token falls back to TELEGRAM_BOT_TOKEN.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Token == "" {
		cfg.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if cfg.WebhookURL == "" {
		cfg.WebhookURL = os.Getenv("TELEGRAM_WEBHOOK_URL")
	}
	if cfg.Secret == "" {
		cfg.Secret = os.Getenv("TELEGRAM_WEBHOOK_SECRET")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram bot token must be provided")
	}

	bot, err := gotgbot.NewBot(cfg.Token, &gotgbot.BotOpts{DisableTokenCheck: true})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	c := &Client{bot: bot, secret: cfg.Secret}

	if cfg.WebhookURL != "" {
		if _, err := bot.SetWebhook(cfg.WebhookURL, &gotgbot.SetWebhookOpts{
			SecretToken:    cfg.Secret,
			AllowedUpdates: []string{"message"},
		}); err != nil {
			return nil, fmt.Errorf("set telegram webhook: %w", err)
		}
		slog.Info("Telegram webhook registered", "url", cfg.WebhookURL)
	}
	return c, nil
}

// Secret returns the webhook secret token, empty when none is configured.
func (c *Client) Secret() string {
	return c.secret
}

// SendMessage sends text to chatID.
func (c *Client) SendMessage(ctx context.Context, chatID string, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", chatID, err)
	}
	opts := &gotgbot.SendMessageOpts{}
	if deadline, ok := ctx.Deadline(); ok {
		opts.RequestOpts = &gotgbot.RequestOpts{Timeout: time.Until(deadline)}
	}
	if _, err := c.bot.SendMessage(id, text, opts); err != nil {
		slog.Error("Telegram SendMessage failed", "chatID", chatID, "error", err)
		return fmt.Errorf("failed to send message to %s: %w", chatID, err)
	}
	slog.Debug("Telegram message sent", "chatID", chatID)
	return nil
}

// ParseUpdate decodes a webhook body into an InboundMessage.
func ParseUpdate(body []byte) (models.InboundMessage, error) {
	var update gotgbot.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return models.InboundMessage{}, fmt.Errorf("decode telegram update: %w", err)
	}
	msg := update.Message
	if msg == nil || strings.TrimSpace(msg.Text) == "" {
		return models.InboundMessage{}, ErrNotTextMessage
	}
	in := models.InboundMessage{
		Channel:    models.ChannelTelegram,
		From:       strconv.FormatInt(msg.Chat.Id, 10),
		Text:       msg.Text,
		MessageID:  fmt.Sprintf("tg-%d-%d", msg.Chat.Id, msg.MessageId),
		ReceivedAt: time.Unix(msg.Date, 0).UTC(),
	}
	if msg.From != nil {
		in.Name = strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
	}
	return in, nil
}

// MockClient records sent messages.
type MockClient struct {
	mu           sync.Mutex
	SentMessages []SentMessage
	Err          error
}

type SentMessage struct {
	ChatID string
	Text   string
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) SendMessage(ctx context.Context, chatID string, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.SentMessages = append(m.SentMessages, SentMessage{ChatID: chatID, Text: text})
	return nil
}

// Sent returns a copy of the recorded messages.
func (m *MockClient) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.SentMessages...)
}
