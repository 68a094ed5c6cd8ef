// Package store provides storage backends for Aura.
//
// It defines the repository interfaces used by the engine and services and
// ships an in-memory store plus SQLite and PostgreSQL backends.
package store

import (
	"errors"
	"time"

	"github.com/aura-dev/aura/internal/models"
)

// ErrNotFound is returned when a record addressed by id does not exist.
var ErrNotFound = errors.New("record not found")

// Opts holds configuration for SQL stores.
type Opts struct {
	DSN string
}

// Option configures a store.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// ExecutionRepo persists per-(user, workflow) execution state.
type ExecutionRepo interface {
	// GetExecution returns nil, nil when no state exists.
	GetExecution(userID, workflowID string) (*models.ExecutionState, error)
	SaveExecution(state *models.ExecutionState) error
	DeleteExecution(userID, workflowID string) error
	// DeleteExecutionsByWorkflow removes every state of workflowID and returns how many were removed.
	DeleteExecutionsByWorkflow(workflowID string) (int, error)
	// DeleteExecutionsByUser removes every state of userID regardless of workflow.
	DeleteExecutionsByUser(userID string) (int, error)
}

// WorkflowRepo persists published workflows.
type WorkflowRepo interface {
	SaveWorkflow(wf *models.Workflow) error
	// ListWorkflows returns workflows in first-insertion order.
	ListWorkflows() ([]models.Workflow, error)
}

// BookingRepo persists scheduling bookings.
type BookingRepo interface {
	// CreateBooking stores b unless the slot already holds an active booking,
	// in which case it returns false. The check and insert are atomic.
	CreateBooking(b *models.Booking) (bool, error)
	// IsSlotBooked reports whether an active booking holds the slot.
	IsSlotBooked(slotTime, slotDate, workflowID string) (bool, error)
	// GetBookingByCode returns the active booking with code owned by userID, or nil.
	GetBookingByCode(code, userID string) (*models.Booking, error)
	// CancelBooking marks an active booking cancelled. Returns false when none matched.
	CancelBooking(code, userID, reason string, at time.Time) (bool, error)
	ListBookings(workflowID string) ([]models.Booking, error)
}

// SurveyRepo persists satisfaction ratings.
type SurveyRepo interface {
	SaveSurveyResponse(r *models.SurveyResponse) error
	// ListSurveyResponses filters by workflowID when non-empty and by created_at >= since when non-zero.
	ListSurveyResponses(workflowID string, since time.Time) ([]models.SurveyResponse, error)
}

// InventoryRepo persists sellable items.
type InventoryRepo interface {
	UpsertInventoryItem(item *models.InventoryItem) error
	GetInventoryItem(id string) (*models.InventoryItem, error)
	ListInventory() ([]models.InventoryItem, error)
	// DecrementStock subtracts qty when enough stock remains. Returns false otherwise.
	DecrementStock(id string, qty int) (bool, error)
}

// SalesRepo persists sale requests and completed sales.
type SalesRepo interface {
	SaveSaleRequest(r *models.SaleRequest) error
	ListSaleRequests() ([]models.SaleRequest, error)
	SaveSaleRecord(r *models.SaleRecord) error
	ListSaleRecords() ([]models.SaleRecord, error)
}

// AgentRepo persists AI agent configuration and human operator sessions.
type AgentRepo interface {
	SaveAIAgent(a *models.AIAgent) error
	GetAIAgent(id string) (*models.AIAgent, error)
	ListAIAgents() ([]models.AIAgent, error)
	SaveAgentSession(s *models.AgentSession) error
	// GetAgentSession returns nil, nil when the user never had a session.
	GetAgentSession(userID string) (*models.AgentSession, error)
}

// ConversationRepo persists the channel-side conversation log.
type ConversationRepo interface {
	UpsertConversation(c *models.Conversation) error
	GetConversation(id string) (*models.Conversation, error)
	// GetConversationByUser returns nil, nil when the user has no conversation.
	GetConversationByUser(userID string) (*models.Conversation, error)
	// ListConversations filters by status when non-empty, most recently updated first.
	ListConversations(status models.ConversationStatus) ([]models.Conversation, error)
	AppendConversationEntry(e *models.ConversationEntry) error
	// ListConversationEntries returns entries oldest first; limit <= 0 means all.
	ListConversationEntries(conversationID string, limit int) ([]models.ConversationEntry, error)
}

// Store groups every repository behind a single closable backend.
type Store interface {
	ExecutionRepo
	WorkflowRepo
	BookingRepo
	SurveyRepo
	InventoryRepo
	SalesRepo
	AgentRepo
	ConversationRepo
	DedupRepo
	OutboxRepo
	Close() error
}
