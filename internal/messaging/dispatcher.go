package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aura-dev/aura/internal/flow"
	"github.com/aura-dev/aura/internal/models"
	"github.com/aura-dev/aura/internal/store"
)

// Engine is the part of flow.Engine the dispatcher drives.
type Engine interface {
	HandleInbound(ctx context.Context, userID, text string) flow.Result
	HandleOperatorMessage(ctx context.Context, userID, text string) (flow.OperatorResult, error)
}

var _ Engine = (*flow.Engine)(nil)

// Observer receives delivery events. metrics.Metrics implements it.
type Observer interface {
	InboundReceived(ch models.Channel)
	InboundDuplicate(ch models.Channel)
	OutboundSent(ch models.Channel, ok bool)
}

type nopObserver struct{}

func (nopObserver) InboundReceived(models.Channel)    {}
func (nopObserver) InboundDuplicate(models.Channel)   {}
func (nopObserver) OutboundSent(models.Channel, bool) {}

// textPayload is the outbox payload of OutboxKindText messages.
type textPayload struct {
	Text string `json:"text"`
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherClock overrides the time source.
func WithDispatcherClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

// WithDispatcherObserver reports delivery events to o.
func WithDispatcherObserver(o Observer) DispatcherOption {
	return func(d *Dispatcher) { d.observer = o }
}

// Dispatcher runs inbound messages through the engine and queues the replies.
type Dispatcher struct {
	engine        Engine
	conversations store.ConversationRepo
	dedup         store.DedupRepo
	outbox        store.OutboxRepo
	router        *Router
	observer      Observer
	now           func() time.Time

	// convMu serializes conversation upserts per process.
	convMu sync.Mutex
}

// NewDispatcher wires the engine to the store and the channel router.
func NewDispatcher(engine Engine, st interface {
	store.ConversationRepo
	store.DedupRepo
	store.OutboxRepo
}, router *Router, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		engine:        engine,
		conversations: st,
		dedup:         st,
		outbox:        st,
		router:        router,
		observer:      nopObserver{},
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HandleInbound processes one end-user message: redeliveries are dropped,
// the message and the replies are logged to the user's conversation and the
// replies are queued for delivery, each after the delays before it.
func (d *Dispatcher) HandleInbound(ctx context.Context, in models.InboundMessage) (flow.Result, error) {
	userID := in.UserID()
	d.observer.InboundReceived(in.Channel)

	if in.MessageID != "" {
		fresh, err := d.dedup.RecordInbound(in.MessageID, userID)
		if err != nil {
			return flow.Result{}, fmt.Errorf("record inbound: %w", err)
		}
		if !fresh {
			slog.Info("Dispatcher.HandleInbound: duplicate message dropped", "userID", userID, "messageID", in.MessageID)
			d.observer.InboundDuplicate(in.Channel)
			return flow.Result{Messages: []models.OutboundMessage{}, Ignored: true}, nil
		}
	}

	conv, err := d.openConversation(in)
	if err != nil {
		return flow.Result{}, err
	}
	d.logEntry(conv.ID, models.RoleUser, in.Text)

	res := d.engine.HandleInbound(ctx, userID, in.Text)

	if !res.Ignored {
		if err := d.enqueueReplies(userID, in.MessageID, res.Messages); err != nil {
			return res, err
		}
		for _, m := range res.Messages {
			d.logEntry(conv.ID, models.RoleAssistant, m.Text)
		}
	}
	if res.ArchiveConversation {
		d.setConversationStatus(conv, models.ConversationArchived)
	}

	if in.MessageID != "" {
		if err := d.dedup.MarkProcessed(in.MessageID); err != nil {
			slog.Warn("Dispatcher.HandleInbound: failed to mark processed", "messageID", in.MessageID, "error", err)
		}
	}
	slog.Debug("Dispatcher.HandleInbound: handled", "userID", userID, "replies", len(res.Messages), "archive", res.ArchiveConversation)
	return res, nil
}

// HandleOperator forwards an operator message to the engine and queues the
// resulting text for the end user.
func (d *Dispatcher) HandleOperator(ctx context.Context, userID, text string) (flow.OperatorResult, error) {
	res, err := d.engine.HandleOperatorMessage(ctx, userID, text)
	if err != nil {
		return res, err
	}
	if res.Message != "" {
		if err := d.enqueueReplies(userID, "", []models.OutboundMessage{models.Text(res.Message)}); err != nil {
			return res, err
		}
	}
	if conv, err := d.conversations.GetConversationByUser(userID); err == nil && conv != nil {
		d.logEntry(conv.ID, models.RoleOperator, text)
	}
	return res, nil
}

func (d *Dispatcher) enqueueReplies(userID, messageID string, msgs []models.OutboundMessage) error {
	due := d.now()
	for i, m := range msgs {
		due = due.Add(time.Duration(m.Delay) * time.Second)
		payload, err := json.Marshal(textPayload{Text: m.Text})
		if err != nil {
			return fmt.Errorf("marshal outbox payload: %w", err)
		}
		dedupeKey := ""
		if messageID != "" {
			dedupeKey = messageID + ":" + strconv.Itoa(i)
		}
		if _, err := d.outbox.EnqueueOutboxMessage(userID, store.OutboxKindText, string(payload), dedupeKey, due); err != nil {
			return fmt.Errorf("enqueue reply: %w", err)
		}
	}
	return nil
}

// openConversation returns the user's conversation, creating it or reopening
// an archived one.
func (d *Dispatcher) openConversation(in models.InboundMessage) (*models.Conversation, error) {
	d.convMu.Lock()
	defer d.convMu.Unlock()

	userID := in.UserID()
	conv, err := d.conversations.GetConversationByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	now := d.now()
	if conv == nil {
		conv = &models.Conversation{
			ID:        uuid.NewString(),
			UserID:    userID,
			Channel:   in.Channel,
			Name:      in.Name,
			Status:    models.ConversationOpen,
			CreatedAt: now,
		}
	} else if conv.Status == models.ConversationArchived {
		slog.Info("Dispatcher: reopening archived conversation", "conversationID", conv.ID, "userID", userID)
		conv.Status = models.ConversationOpen
	}
	if in.Name != "" {
		conv.Name = in.Name
	}
	conv.UpdatedAt = now
	if err := d.conversations.UpsertConversation(conv); err != nil {
		return nil, fmt.Errorf("upsert conversation: %w", err)
	}
	return conv, nil
}

func (d *Dispatcher) setConversationStatus(conv *models.Conversation, status models.ConversationStatus) {
	d.convMu.Lock()
	defer d.convMu.Unlock()
	conv.Status = status
	conv.UpdatedAt = d.now()
	if err := d.conversations.UpsertConversation(conv); err != nil {
		slog.Error("Dispatcher: failed to update conversation status", "conversationID", conv.ID, "status", status, "error", err)
	}
}

func (d *Dispatcher) logEntry(conversationID string, role models.Role, text string) {
	e := &models.ConversationEntry{ConversationID: conversationID, Role: role, Text: text, CreatedAt: d.now()}
	if err := d.conversations.AppendConversationEntry(e); err != nil {
		slog.Error("Dispatcher: failed to log conversation entry", "conversationID", conversationID, "error", err)
	}
}

// SendOutbox delivers one outbox message through the router. It is the send
// function of store.OutboxSender.
func (d *Dispatcher) SendOutbox(ctx context.Context, msg store.OutboxMessage) error {
	if msg.Kind != store.OutboxKindText {
		return fmt.Errorf("unsupported outbox kind %q", msg.Kind)
	}
	var p textPayload
	if err := json.Unmarshal([]byte(msg.PayloadJSON), &p); err != nil {
		return fmt.Errorf("decode outbox payload: %w", err)
	}
	ch, _, _ := models.SplitUserID(msg.ParticipantID)
	err := d.router.Send(ctx, msg.ParticipantID, p.Text)
	d.observer.OutboundSent(ch, err == nil)
	return err
}

// Start consumes the inbound messages of every routed service until ctx is done.
func (d *Dispatcher) Start(ctx context.Context) {
	for _, svc := range d.router.Services() {
		go d.consume(ctx, svc)
	}
	slog.Info("Dispatcher inbound processing started", "channels", len(d.router.Services()))
}

func (d *Dispatcher) consume(ctx context.Context, svc Service) {
	defer slog.Info("Dispatcher stopped inbound processing", "channel", svc.Channel())
	for {
		select {
		case in, ok := <-svc.Responses():
			if !ok {
				return
			}
			if _, err := d.HandleInbound(ctx, in); err != nil {
				slog.Error("Dispatcher failed to process inbound message", "error", err, "channel", svc.Channel(), "from", in.From)
			}
		case <-ctx.Done():
			return
		}
	}
}
