// Package twiliowhatsapp wraps the Twilio API for WhatsApp replies and webhook decoding.
package twiliowhatsapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/aura-dev/aura/internal/models"
)

// ErrEmptyMessage is returned by ParseWebhook when the form carries no sender or body.
var ErrEmptyMessage = errors.New("webhook has no sender or body")

// Sender sends WhatsApp text messages.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// ErrMissingCredentials is returned by NewClient without an account SID,
// auth token and sender number.
var ErrMissingCredentials = errors.New("twilio account SID, auth token and sender number are required")

// Opts configures a Client. Empty fields fall back to TWILIO_ACCOUNT_SID,
// TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

type Option func(*Opts)

func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromNumber sets the WhatsApp-enabled Twilio number replies are sent from.
// Both "+14155238886" and "whatsapp:+14155238886" are accepted.
func WithFromNumber(number string) Option {
	return func(o *Opts) { o.FromNumber = number }
}

// Client sends WhatsApp replies through the Twilio Messages API and checks
// webhook signatures with the account's auth token.
type Client struct {
	rest      *twilio.RestClient
	validator twilioclient.RequestValidator
	from      string
}

func envDefault(v, key string) string {
	if v != "" {
		return v
	}
	return os.Getenv(key)
}

func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.AccountSID = envDefault(cfg.AccountSID, "TWILIO_ACCOUNT_SID")
	cfg.AuthToken = envDefault(cfg.AuthToken, "TWILIO_AUTH_TOKEN")
	cfg.FromNumber = envDefault(cfg.FromNumber, "TWILIO_FROM_NUMBER")
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.FromNumber == "" {
		return nil, ErrMissingCredentials
	}

	from := "whatsapp:" + e164(cfg.FromNumber)
	slog.Debug("twiliowhatsapp.NewClient", "from", from)
	return &Client{
		rest:      twilio.NewRestClientWithParams(twilio.ClientParams{Username: cfg.AccountSID, Password: cfg.AuthToken}),
		validator: twilioclient.NewRequestValidator(cfg.AuthToken),
		from:      from,
	}, nil
}

// SendMessage sends body to the phone number to (digits, with or without a leading +).
func (c *Client) SendMessage(ctx context.Context, to string, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := (&twilioApi.CreateMessageParams{}).
		SetTo("whatsapp:" + e164(to)).
		SetFrom(c.from).
		SetBody(body)

	resp, err := c.rest.Api.CreateMessage(params)
	if err != nil {
		slog.Error("twiliowhatsapp.SendMessage: create message failed", "to", to, "error", err)
		return fmt.Errorf("send whatsapp message to %s: %w", to, err)
	}
	if resp != nil && resp.Sid != nil {
		slog.Debug("twiliowhatsapp.SendMessage: accepted", "to", to, "sid", *resp.Sid)
	}
	return nil
}

// ValidSignature reports whether signature matches the request Twilio signed
// for fullURL and form.
func (c *Client) ValidSignature(fullURL string, form url.Values, signature string) bool {
	params := make(map[string]string, len(form))
	for k := range form {
		params[k] = form.Get(k)
	}
	return c.validator.Validate(fullURL, params, signature)
}

func e164(number string) string {
	number = strings.TrimPrefix(strings.TrimSpace(number), "whatsapp:")
	if strings.HasPrefix(number, "+") {
		return number
	}
	return "+" + number
}

// ParseWebhook decodes Twilio's form-encoded incoming message callback.
func ParseWebhook(form url.Values) (models.InboundMessage, error) {
	from := strings.TrimPrefix(strings.TrimPrefix(form.Get("From"), "whatsapp:"), "+")
	body := form.Get("Body")
	if from == "" || strings.TrimSpace(body) == "" {
		return models.InboundMessage{}, ErrEmptyMessage
	}
	return models.InboundMessage{
		Channel:    models.ChannelWhatsApp,
		From:       from,
		Name:       form.Get("ProfileName"),
		Text:       body,
		MessageID:  form.Get("MessageSid"),
		ReceivedAt: time.Now().UTC(),
	}, nil
}

// MockClient records sent messages.
type MockClient struct {
	mu           sync.Mutex
	SentMessages []SentMessage
	Err          error
}

type SentMessage struct {
	To   string
	Body string
}

func NewMockClient() *MockClient {
	return &MockClient{SentMessages: []SentMessage{}}
}

func (m *MockClient) SendMessage(ctx context.Context, to string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.SentMessages = append(m.SentMessages, SentMessage{To: to, Body: body})
	return nil
}

// Sent returns a copy of the recorded messages.
func (m *MockClient) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.SentMessages...)
}
