// Package messaging connects channel services (Telegram, WhatsApp via Twilio)
// to the workflow engine.
//
// Channel services decode webhooks into inbound messages and deliver replies.
// The Dispatcher consumes inbound messages, runs the engine and queues the
// replies in the outbox; the Router delivers outbox messages by channel.
package messaging

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aura-dev/aura/internal/models"
)

const (
	// DefaultChannelBufferSize defines the default buffer size for receipt and response channels
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout defines the default timeout for non-blocking channel operations
	DefaultChannelTimeout = 1 * time.Second
)

var (
	// ErrServiceStopped is returned when sending through a stopped service.
	ErrServiceStopped = errors.New("messaging service stopped")
	// ErrUnknownChannel is returned when no service is registered for a channel.
	ErrUnknownChannel = errors.New("no service registered for channel")
)

// Service defines a pluggable message delivery abstraction.
// It supports sending messages, and provides channels for receipt and inbound events.
type Service interface {
	// Channel names the channel this service delivers to.
	Channel() models.Channel

	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient identifier.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// Start begins any background processing.
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Receipts returns a channel of delivery events.
	Receipts() <-chan models.Receipt

	// Responses returns a channel of inbound end-user messages.
	Responses() <-chan models.InboundMessage
}

// channelBase holds the event channels shared by every channel service.
type channelBase struct {
	channel   models.Channel
	receipts  chan models.Receipt
	responses chan models.InboundMessage
	mu        sync.RWMutex
	stopped   bool
}

func newChannelBase(ch models.Channel) channelBase {
	return channelBase{
		channel:   ch,
		receipts:  make(chan models.Receipt, DefaultChannelBufferSize),
		responses: make(chan models.InboundMessage, DefaultChannelBufferSize),
	}
}

func (b *channelBase) Channel() models.Channel { return b.channel }

func (b *channelBase) Receipts() <-chan models.Receipt { return b.receipts }

func (b *channelBase) Responses() <-chan models.InboundMessage { return b.responses }

// Start is a no-op; webhooks push inbound messages.
func (b *channelBase) Start(ctx context.Context) error { return nil }

// Stop closes the event channels. It is safe to call more than once.
func (b *channelBase) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return nil
	}
	b.stopped = true
	close(b.receipts)
	close(b.responses)
	return nil
}

func (b *channelBase) isStopped() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stopped
}

// emitReceipt drops the receipt when nobody drains the channel in time.
func (b *channelBase) emitReceipt(r models.Receipt) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stopped {
		return
	}
	select {
	case b.receipts <- r:
	case <-time.After(DefaultChannelTimeout):
	}
}

// emitResponse returns false when the message was dropped.
func (b *channelBase) emitResponse(in models.InboundMessage) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stopped {
		slog.Warn("messaging: dropping inbound message (service stopped)", "channel", b.channel, "from", in.From)
		return false
	}
	select {
	case b.responses <- in:
		slog.Debug("messaging: emitted inbound message", "channel", b.channel, "from", in.From)
		return true
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("messaging: responses channel blocked, dropping message", "channel", b.channel, "from", in.From)
		return false
	}
}
