package flow

import (
	"context"
	"errors"

	"github.com/aura-dev/aura/internal/models"
)

// ErrPortUnavailable is returned when a node needs a port the engine was built without.
var ErrPortUnavailable = errors.New("port not configured")

// BookingPort manages appointments taken through scheduling nodes.
type BookingPort interface {
	IsSlotBooked(ctx context.Context, slotTime, slotDate, workflowID string) (bool, error)
	// CreateBooking returns false when the slot could not be taken.
	CreateBooking(ctx context.Context, userID, code, slotTime, slotDate, workflowID string) (bool, error)
	// GetBookingByCode returns nil when the user has no active booking with that code.
	GetBookingByCode(ctx context.Context, code, userID string) (*models.Booking, error)
	CancelBooking(ctx context.Context, code, userID, reason string) (bool, error)
}

// SurveyPort records satisfaction ratings.
type SurveyPort interface {
	SaveResponse(ctx context.Context, userID, workflowID string, rating int, question string) (bool, error)
}

// AgentInitResult is the outcome of starting an AI agent conversation.
type AgentInitResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// AgentReply is an AI agent's answer to one user message.
type AgentReply struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	IsComplete bool   `json:"is_complete"`
	Error      string `json:"error,omitempty"`
}

// OperatorReply is the outcome of a message typed by a human operator.
type OperatorReply struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	SessionEnded bool   `json:"session_ended"`
	Error        string `json:"error,omitempty"`
}

// AgentPort drives AI agents and human operator handoffs.
type AgentPort interface {
	Initialize(ctx context.Context, agentID, userID string) (AgentInitResult, error)
	Process(ctx context.Context, agentID, userID, text string) (AgentReply, error)
	StartSession(ctx context.Context, userID, nodeID string) (bool, error)
	IsSessionActive(ctx context.Context, userID string) (bool, error)
	ProcessOperatorCommand(ctx context.Context, userID, text string) (OperatorReply, error)
}

// InventoryPort lists sellable items and records sales.
type InventoryPort interface {
	// ListAvailableItems returns every catalogued item, including ones out of stock.
	ListAvailableItems(ctx context.Context) ([]models.InventoryItem, error)
	RegisterSaleRequest(ctx context.Context, req models.SaleRequest) (models.SaleRequestReceipt, error)
	// RegisterSaleTransaction decrements stock and stores the financial record.
	RegisterSaleTransaction(ctx context.Context, item models.InventoryItem, contact string) (*models.SaleRecord, error)
}

// Observer receives engine events. metrics.Metrics implements it.
type Observer interface {
	NodeExecuted(nodeType models.NodeType)
	TraversalFailed(reason string)
	TraversalCompleted(seconds float64)
}

type nopObserver struct{}

func (nopObserver) NodeExecuted(models.NodeType) {}
func (nopObserver) TraversalFailed(string)       {}
func (nopObserver) TraversalCompleted(float64)   {}
