package models

import "time"

// Role identifies who authored a conversation history entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleOperator marks conversation log entries typed by a human operator.
	RoleOperator Role = "operator"
)

// ConversationMessage is one entry of an execution's conversation history.
type ConversationMessage struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SaleStage is the current step of the sale sub-dialog.
type SaleStage string

const (
	SaleStageSelection  SaleStage = "selection"
	SaleStageCustomName SaleStage = "customName"
	SaleStagePhone      SaleStage = "phone"
)

// SchedulingState holds the slot list shown to the user, captured once per
// visit of a scheduling node.
type SchedulingState struct {
	Slots  []TimeSlot `json:"slots"`
	NodeID string     `json:"node_id"`
}

// CancellationState is the booking cancellation wizard nested in a scheduling node.
type CancellationState struct {
	WaitingCode   bool   `json:"waiting_code"`
	WaitingReason bool   `json:"waiting_reason"`
	Code          string `json:"code,omitempty"`
	NodeID        string `json:"node_id"`
}

// SaleState is the sale wizard nested in a venda node.
type SaleState struct {
	Stage    SaleStage       `json:"stage"`
	Items    []InventoryItem `json:"items,omitempty"`
	Selected *InventoryItem  `json:"selected,omitempty"`
	NodeID   string          `json:"node_id"`
}

// SurveyState is the rating capture entered after a finalizar node.
type SurveyState struct {
	WaitingResponse bool      `json:"waiting_response"`
	Question        string    `json:"question"`
	Timestamp       time.Time `json:"timestamp"`
}

// ExecutionState is the resumable progress of one user through one workflow.
type ExecutionState struct {
	UserID     string `json:"user_id"`
	WorkflowID string `json:"workflow_id"`
	// CurrentNodeID is empty before the flow has started.
	CurrentNodeID       string                `json:"current_node_id,omitempty"`
	WaitingForInput     bool                  `json:"waiting_for_input"`
	ConversationHistory []ConversationMessage `json:"conversation_history"`
	Scheduling          *SchedulingState      `json:"scheduling_state,omitempty"`
	Cancellation        *CancellationState    `json:"cancellation_state,omitempty"`
	Sale                *SaleState            `json:"sale_state,omitempty"`
	Survey              *SurveyState          `json:"survey_state,omitempty"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
}

// NewExecutionState returns a fresh, not yet started state.
func NewExecutionState(userID, workflowID string, now time.Time) *ExecutionState {
	return &ExecutionState{
		UserID:     userID,
		WorkflowID: workflowID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Append records a history entry.
func (s *ExecutionState) Append(role Role, content string, at time.Time) {
	s.ConversationHistory = append(s.ConversationHistory, ConversationMessage{Role: role, Content: content, Timestamp: at})
}

// ClearSubDialogs drops every sub-dialog scratch state.
func (s *ExecutionState) ClearSubDialogs() {
	s.Scheduling = nil
	s.Cancellation = nil
	s.Sale = nil
	s.Survey = nil
}

// Clone returns a deep copy so callers can mutate it without touching the stored value.
func (s *ExecutionState) Clone() *ExecutionState {
	if s == nil {
		return nil
	}
	c := *s
	c.ConversationHistory = append([]ConversationMessage(nil), s.ConversationHistory...)
	if s.Scheduling != nil {
		sc := *s.Scheduling
		sc.Slots = append([]TimeSlot(nil), s.Scheduling.Slots...)
		c.Scheduling = &sc
	}
	if s.Cancellation != nil {
		cc := *s.Cancellation
		c.Cancellation = &cc
	}
	if s.Sale != nil {
		sa := *s.Sale
		sa.Items = append([]InventoryItem(nil), s.Sale.Items...)
		if s.Sale.Selected != nil {
			sel := *s.Sale.Selected
			sa.Selected = &sel
		}
		c.Sale = &sa
	}
	if s.Survey != nil {
		sv := *s.Survey
		c.Survey = &sv
	}
	return &c
}
