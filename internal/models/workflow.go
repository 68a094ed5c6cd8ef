package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NodeType identifies the behaviour of a flow node.
type NodeType string

const (
	NodeTypeStart       NodeType = "start"
	NodeTypeSendMessage NodeType = "sendMessage"
	NodeTypeOptions     NodeType = "options"
	NodeTypeFinalizar   NodeType = "finalizar"
	// NodeTypeAgent hands the conversation to an AI agent.
	NodeTypeAgent NodeType = "agent"
	// NodeTypeAgentes hands the conversation to a human operator.
	NodeTypeAgentes NodeType = "agentes"
	// NodeTypeAgendamento runs the scheduling sub-dialog.
	NodeTypeAgendamento NodeType = "agendamento"
	// NodeTypeVenda runs the sale sub-dialog.
	NodeTypeVenda       NodeType = "venda"
	NodeTypeCode        NodeType = "code"
	NodeTypeConditional NodeType = "conditional"
)

// NoOption is passed to ResolveTarget to follow the plain "next step" edge.
const NoOption = -1

// handlePrefix prefixes edge source handles that disambiguate option branches.
const handlePrefix = "output-"

var (
	// ErrEmptyWorkflow is returned when a workflow has no nodes.
	ErrEmptyWorkflow = errors.New("workflow has no nodes")
	// ErrMissingWorkflowID is returned when a workflow has no identifier.
	ErrMissingWorkflowID = errors.New("workflow id is required")
	// ErrInvalidNode is returned when a node cannot be decoded.
	ErrInvalidNode = errors.New("invalid node")
)

// NodeData is the type-specific payload of a node. Each node type has its own
// variant carrying only the fields it uses.
type NodeData interface {
	NodeType() NodeType
	Common() BaseData
}

// BaseData holds the builder fields every node type carries.
type BaseData struct {
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
	CustomID    string `json:"customId,omitempty"`
}

// Common returns the shared builder fields.
func (b BaseData) Common() BaseData { return b }

// StartData is the payload of the single entry node.
type StartData struct {
	BaseData
}

func (*StartData) NodeType() NodeType { return NodeTypeStart }

// SendMessageData emits one message and moves on.
type SendMessageData struct {
	BaseData
	Message string `json:"message,omitempty"`
	// Delay in seconds before the message is delivered.
	Delay int `json:"delay,omitempty"`
}

func (*SendMessageData) NodeType() NodeType { return NodeTypeSendMessage }

// Option is one selectable entry of an options node.
type Option struct {
	ID    string `json:"id,omitempty"`
	Text  string `json:"text"`
	Digit string `json:"digit,omitempty"`
}

// OptionsData asks the user to pick one of several branches.
type OptionsData struct {
	BaseData
	Message string   `json:"message,omitempty"`
	Options []Option `json:"options,omitempty"`
}

func (*OptionsData) NodeType() NodeType { return NodeTypeOptions }

// FinalizarData closes a conversation and triggers the satisfaction survey.
type FinalizarData struct {
	BaseData
	FinalMessage   string `json:"finalMessage,omitempty"`
	Message        string `json:"message,omitempty"`
	SurveyQuestion string `json:"surveyQuestion,omitempty"`
	// EnableSatisfactionSurvey is kept for round-tripping builder payloads.
	// The survey is shown regardless of its value.
	EnableSatisfactionSurvey *bool `json:"enableSatisfactionSurvey,omitempty"`
}

func (*FinalizarData) NodeType() NodeType { return NodeTypeFinalizar }

// Closing returns the text shown before the survey, falling back to Message.
func (d *FinalizarData) Closing() string {
	if strings.TrimSpace(d.FinalMessage) != "" {
		return d.FinalMessage
	}
	return d.Message
}

// AIAgentData parks the conversation on an AI agent.
type AIAgentData struct {
	BaseData
	AgentID        string `json:"agentId,omitempty"`
	InitialMessage string `json:"initialMessage,omitempty"`
}

func (*AIAgentData) NodeType() NodeType { return NodeTypeAgent }

// HumanAgentData hands the conversation to a human operator.
type HumanAgentData struct {
	BaseData
	InitialMessage string `json:"initialMessage,omitempty"`
}

func (*HumanAgentData) NodeType() NodeType { return NodeTypeAgentes }

// TimeSlot is a bookable appointment slot.
type TimeSlot struct {
	ID   string `json:"id,omitempty"`
	Time string `json:"time"`
	// Date in YYYY-MM-DD.
	Date string `json:"date"`
	// Available is nil when the builder did not set it, which counts as available.
	Available *bool `json:"available,omitempty"`
}

// IsDeclaredAvailable reports whether the slot was published as bookable.
func (s TimeSlot) IsDeclaredAvailable() bool {
	return s.Available == nil || *s.Available
}

// SchedulingData offers time slots for booking.
type SchedulingData struct {
	BaseData
	Message             string     `json:"message,omitempty"`
	AvailableSlots      []TimeSlot `json:"availableSlots,omitempty"`
	ConfirmationMessage string     `json:"confirmationMessage,omitempty"`
	NoSlotsMessage      string     `json:"noSlotsMessage,omitempty"`
}

func (*SchedulingData) NodeType() NodeType { return NodeTypeAgendamento }

// SaleData offers inventory items for purchase.
type SaleData struct {
	BaseData
	Message           string `json:"message,omitempty"`
	EmptyStockMessage string `json:"emptyStockMessage,omitempty"`
}

func (*SaleData) NodeType() NodeType { return NodeTypeVenda }

// PassThroughData covers node types without behaviour (code, conditional and
// anything unknown). The raw payload is preserved.
type PassThroughData struct {
	BaseData
	Type NodeType        `json:"-"`
	Raw  json.RawMessage `json:"-"`
}

func (d *PassThroughData) NodeType() NodeType { return d.Type }

// Position is the builder canvas position of a node.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one step in a conversation flow.
type Node struct {
	ID       string
	Type     NodeType
	Position *Position
	Data     NodeData
}

type nodeJSON struct {
	ID       string          `json:"id"`
	Type     NodeType        `json:"type"`
	Position *Position       `json:"position,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// UnmarshalJSON decodes a node, choosing the data variant from its type.
func (n *Node) UnmarshalJSON(b []byte) error {
	var raw nodeJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidNode, err)
	}
	if raw.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidNode)
	}

	data := newNodeData(raw.Type)
	if len(raw.Data) > 0 && string(raw.Data) != "null" {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			return fmt.Errorf("%w: node %s data: %v", ErrInvalidNode, raw.ID, err)
		}
		if pt, ok := data.(*PassThroughData); ok {
			pt.Raw = append(json.RawMessage(nil), raw.Data...)
		}
	}

	n.ID = raw.ID
	n.Type = raw.Type
	n.Position = raw.Position
	n.Data = data
	return nil
}

// MarshalJSON encodes the node in the builder's {id, type, data} shape.
func (n Node) MarshalJSON() ([]byte, error) {
	out := nodeJSON{ID: n.ID, Type: n.Type, Position: n.Position}
	switch d := n.Data.(type) {
	case nil:
	case *PassThroughData:
		if len(d.Raw) > 0 {
			out.Data = d.Raw
		} else {
			b, err := json.Marshal(d.BaseData)
			if err != nil {
				return nil, err
			}
			out.Data = b
		}
	default:
		b, err := json.Marshal(d)
		if err != nil {
			return nil, err
		}
		out.Data = b
	}
	return json.Marshal(out)
}

func newNodeData(t NodeType) NodeData {
	switch t {
	case NodeTypeStart:
		return &StartData{}
	case NodeTypeSendMessage:
		return &SendMessageData{}
	case NodeTypeOptions:
		return &OptionsData{}
	case NodeTypeFinalizar:
		return &FinalizarData{}
	case NodeTypeAgent:
		return &AIAgentData{}
	case NodeTypeAgentes:
		return &HumanAgentData{}
	case NodeTypeAgendamento:
		return &SchedulingData{}
	case NodeTypeVenda:
		return &SaleData{}
	default:
		return &PassThroughData{Type: t}
	}
}

// Edge is a directed link between two nodes. SourceHandle of the form
// "output-<index>" ties the edge to one option of a branching node.
type Edge struct {
	ID           string `json:"id,omitempty"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// OptionHandle returns the source handle that selects the option at index.
func OptionHandle(index int) string {
	return handlePrefix + strconv.Itoa(index)
}

// Workflow is a published conversation flow graph.
type Workflow struct {
	ID        string    `json:"id"`
	Tag       string    `json:"tag,omitempty"`
	Enabled   bool      `json:"enabled"`
	Nodes     []Node    `json:"nodes"`
	Edges     []Edge    `json:"edges"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the structural requirements for publishing.
func (w *Workflow) Validate() error {
	if strings.TrimSpace(w.ID) == "" {
		return ErrMissingWorkflowID
	}
	if len(w.Nodes) == 0 {
		return ErrEmptyWorkflow
	}
	return nil
}

// Node returns the node with the given id, or nil.
func (w *Workflow) Node(id string) *Node {
	if id == "" {
		return nil
	}
	for i := range w.Nodes {
		if w.Nodes[i].ID == id {
			return &w.Nodes[i]
		}
	}
	return nil
}

// StartNode returns the first node of type start, or nil.
func (w *Workflow) StartNode() *Node {
	for i := range w.Nodes {
		if w.Nodes[i].Type == NodeTypeStart {
			return &w.Nodes[i]
		}
	}
	return nil
}

// FindOutgoing returns every edge leaving nodeID in declaration order.
func (w *Workflow) FindOutgoing(nodeID string) []Edge {
	var out []Edge
	for _, e := range w.Edges {
		if e.Source == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// ResolveTarget returns the node reached from nodeID.
//
// With optionIndex >= 0 only the edge whose handle is "output-<optionIndex>"
// counts; there is no fallback to other edges. With NoOption the first
// outgoing edge wins. Edges pointing at unknown nodes resolve to nil.
func (w *Workflow) ResolveTarget(nodeID string, optionIndex int) *Node {
	edges := w.FindOutgoing(nodeID)
	if optionIndex >= 0 {
		handle := OptionHandle(optionIndex)
		for _, e := range edges {
			if e.SourceHandle == handle {
				return w.Node(e.Target)
			}
		}
		return nil
	}
	if len(edges) == 0 {
		return nil
	}
	return w.Node(edges[0].Target)
}

// Clone returns a deep copy of the workflow graph. Node data variants are
// shared since the engine never mutates them.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	c := *w
	c.Nodes = append([]Node(nil), w.Nodes...)
	c.Edges = append([]Edge(nil), w.Edges...)
	return &c
}
