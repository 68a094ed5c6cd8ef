package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/aura-dev/aura/internal/models"
	"github.com/aura-dev/aura/internal/twiliowhatsapp"
)

var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// SignatureValidator checks the X-Twilio-Signature of webhook requests.
// twiliowhatsapp.Client implements it.
type SignatureValidator interface {
	ValidSignature(fullURL string, form url.Values, signature string) bool
}

// TwilioService implements Service for WhatsApp through the Twilio API.
type TwilioService struct {
	channelBase
	client    twiliowhatsapp.Sender
	validator SignatureValidator
	publicURL string
}

// NewTwilioService creates a TwilioService around client (real or mock).
func NewTwilioService(client twiliowhatsapp.Sender) *TwilioService {
	return &TwilioService{
		channelBase: newChannelBase(models.ChannelWhatsApp),
		client:      client,
	}
}

// RequireSignature makes the webhook reject requests whose signature does not
// match publicURL, the externally visible webhook URL configured in Twilio.
func (s *TwilioService) RequireSignature(v SignatureValidator, publicURL string) {
	s.validator = v
	s.publicURL = publicURL
}

// ValidateAndCanonicalizeRecipient validates and canonicalizes a WhatsApp phone number.
// It removes all non-numeric characters and validates the result has at least 6 digits.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}

	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}
	if recipient != canonical {
		slog.Debug("TwilioService canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// SendMessage sends a message via Twilio and emits a receipt
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string) error {
	if s.isStopped() {
		return ErrServiceStopped
	}
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendMessage validation error", "error", err, "to", to)
		return err
	}
	if err := s.client.SendMessage(ctx, canonicalTo, body); err != nil {
		s.emitReceipt(models.Receipt{To: canonicalTo, Channel: s.channel, Status: models.MessageStatusFailed, Time: time.Now().Unix()})
		return err
	}
	s.emitReceipt(models.Receipt{To: canonicalTo, Channel: s.channel, Status: models.MessageStatusSent, Time: time.Now().Unix()})
	return nil
}

// TwilioWebhookHandler handles inbound Twilio webhook requests.
// It parses incoming messages and emits them into the Responses() channel.
func (s *TwilioService) TwilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Error("Failed to parse Twilio webhook form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if s.validator != nil && !s.validator.ValidSignature(s.publicURL, r.PostForm, r.Header.Get("X-Twilio-Signature")) {
		slog.Warn("Twilio webhook signature mismatch", "remote", r.RemoteAddr)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	in, err := twiliowhatsapp.ParseWebhook(r.PostForm)
	if err != nil {
		if errors.Is(err, twiliowhatsapp.ErrEmptyMessage) {
			slog.Warn("Twilio webhook missing fields", "from", r.PostForm.Get("From"))
			http.Error(w, "Missing required fields", http.StatusBadRequest)
			return
		}
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	slog.Info("Inbound WhatsApp message from Twilio", "from", in.From, "messageID", in.MessageID)
	s.emitResponse(in)

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "<Response></Response>")
}
