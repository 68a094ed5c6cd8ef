package models

import "time"

// BookingStatus is the lifecycle status of a booking.
type BookingStatus string

const (
	BookingStatusActive    BookingStatus = "active"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking is an appointment taken through a scheduling node.
type Booking struct {
	ID                 string        `json:"id"`
	UserID             string        `json:"user_id"`
	Code               string        `json:"code"`
	Time               string        `json:"time"`
	Date               string        `json:"date"`
	WorkflowID         string        `json:"workflow_id"`
	Status             BookingStatus `json:"status"`
	CreatedAt          time.Time     `json:"created_at"`
	CancelledAt        *time.Time    `json:"cancelled_at,omitempty"`
	CancellationReason string        `json:"cancellation_reason,omitempty"`
}

// SurveyResponse is one satisfaction rating.
type SurveyResponse struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	WorkflowID string    `json:"workflow_id"`
	Rating     int       `json:"rating"`
	Question   string    `json:"question"`
	CreatedAt  time.Time `json:"created_at"`
}

// SurveyStats summarizes satisfaction ratings.
type SurveyStats struct {
	Total        int         `json:"total"`
	Average      float64     `json:"average"`
	Distribution map[int]int `json:"distribution"`
	// SatisfactionRate is the percentage of ratings >= 4.
	SatisfactionRate float64 `json:"satisfaction_rate"`
}

// InventoryItem is a product that can be sold through a venda node.
type InventoryItem struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	UnitPrice     float64   `json:"unitPrice"`
	StockQuantity int       `json:"stockQuantity"`
	MinimumStock  int       `json:"minimumStock,omitempty"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// SaleRequestType distinguishes requests for missing items from stock purchases.
type SaleRequestType string

const (
	// SaleRequestCustom asks for an item that is not in stock.
	SaleRequestCustom SaleRequestType = "solicitacao"
	// SaleRequestStock reserves an item from stock.
	SaleRequestStock SaleRequestType = "estoque"
)

// SaleRequestStatus is the status of a sale request.
type SaleRequestStatus string

const (
	SaleRequestPending   SaleRequestStatus = "pendente"
	SaleRequestConfirmed SaleRequestStatus = "confirmada"
)

// SaleRequest is what a user asked for through the sale sub-dialog.
type SaleRequest struct {
	ID         string            `json:"id"`
	UserID     string            `json:"user_id"`
	WorkflowID string            `json:"workflow_id"`
	Type       SaleRequestType   `json:"type"`
	Status     SaleRequestStatus `json:"status"`
	ItemID     string            `json:"item_id,omitempty"`
	ItemName   string            `json:"item_name"`
	Contact    string            `json:"contact,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	// ContactBy is set for custom requests.
	ContactBy *time.Time `json:"contact_by,omitempty"`
	// PickupDeadline is set for stock purchases.
	PickupDeadline *time.Time `json:"pickup_deadline,omitempty"`
}

// SaleRequestReceipt carries the deadline promised to the user.
type SaleRequestReceipt struct {
	RequestID      string     `json:"request_id"`
	ContactBy      *time.Time `json:"contact_by,omitempty"`
	PickupDeadline *time.Time `json:"pickup_deadline,omitempty"`
}

// SaleRecord is the financial record of a completed sale.
type SaleRecord struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	ItemName  string    `json:"item_name"`
	Quantity  int       `json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
	Total     float64   `json:"total"`
	Contact   string    `json:"contact"`
	CreatedAt time.Time `json:"created_at"`
}

// AgentSession is a human operator handoff.
type AgentSession struct {
	UserID    string     `json:"user_id"`
	NodeID    string     `json:"node_id"`
	Active    bool       `json:"active"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// AIAgent configures an AI agent referenced by agent nodes.
type AIAgent struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	SystemPrompt string `json:"system_prompt"`
	Model        string `json:"model,omitempty"`
	// CompletionMarker, when present in a reply, ends the agent conversation.
	CompletionMarker string    `json:"completion_marker,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// ConversationStatus is whether a conversation is open or archived.
type ConversationStatus string

const (
	ConversationOpen     ConversationStatus = "open"
	ConversationArchived ConversationStatus = "archived"
)

// Conversation is the channel-side log of talks with one user.
type Conversation struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	Channel   Channel            `json:"channel"`
	Name      string             `json:"name,omitempty"`
	Status    ConversationStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// ConversationEntry is one logged message of a conversation.
type ConversationEntry struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
}

// OutboundMessage is one reply produced by the engine.
type OutboundMessage struct {
	Text string `json:"text"`
	// Options is always empty and kept for client compatibility.
	Options []string `json:"options"`
	// Delay in seconds before delivery.
	Delay int `json:"delay,omitempty"`
}

// Text builds an OutboundMessage with no delay.
func Text(s string) OutboundMessage {
	return OutboundMessage{Text: s, Options: []string{}}
}
