package models

import (
	"encoding/json"
	"errors"
	"testing"
)

const samplePayload = `{
  "_id": "wf-1",
  "_tag": "atendimento",
  "_insertedAt": "2025-01-10T12:00:00Z",
  "flowData": {
    "nodes": [
      {"id": "start", "type": "start", "position": {"x": 0, "y": 0}, "data": {"label": "Início"}},
      {"id": "hello", "type": "sendMessage", "data": {"message": "Olá!", "customId": "msg-1"}},
      {"id": "menu", "type": "options", "data": {"message": "Escolha:", "options": [{"id": "a", "text": "A"}, {"id": "b", "text": "B"}]}},
      {"id": "check", "type": "conditional", "data": {"label": "Cond", "expression": "x > 1"}},
      {"id": "slots", "type": "agendamento", "data": {"availableSlots": [{"id": "s1", "time": "10:00", "date": "2025-01-10", "available": true}]}},
      {"id": "end", "type": "finalizar", "data": {"finalMessage": "Tchau", "enableSatisfactionSurvey": false}}
    ],
    "edges": [
      {"id": "e1", "source": "start", "target": "hello"},
      {"id": "e2", "source": "hello", "target": "menu"},
      {"id": "e3", "source": "menu", "target": "check", "sourceHandle": "output-0"},
      {"id": "e4", "source": "menu", "target": "end", "sourceHandle": "output-1"},
      {"id": "e5", "source": "check", "target": "slots", "sourceHandle": null},
      {"id": "e6", "source": "slots", "target": "ghost"}
    ]
  }
}`

func mustDecode(t *testing.T, raw string) *Workflow {
	t.Helper()
	wf, err := DecodeWorkflowPayload([]byte(raw))
	if err != nil {
		t.Fatalf("DecodeWorkflowPayload() error = %v", err)
	}
	return wf
}

func TestDecodeWorkflowPayload(t *testing.T) {
	wf := mustDecode(t, samplePayload)

	if wf.ID != "wf-1" || wf.Tag != "atendimento" {
		t.Errorf("unexpected identity: id=%q tag=%q", wf.ID, wf.Tag)
	}
	if !wf.Enabled {
		t.Error("expected Enabled to default to true")
	}
	if wf.CreatedAt.IsZero() {
		t.Error("expected CreatedAt parsed from _insertedAt")
	}
	if len(wf.Nodes) != 6 || len(wf.Edges) != 6 {
		t.Fatalf("got %d nodes, %d edges", len(wf.Nodes), len(wf.Edges))
	}

	hello, ok := wf.Node("hello").Data.(*SendMessageData)
	if !ok {
		t.Fatalf("hello node data = %T, want *SendMessageData", wf.Node("hello").Data)
	}
	if hello.Message != "Olá!" || hello.CustomID != "msg-1" {
		t.Errorf("hello data = %+v", hello)
	}

	menu, ok := wf.Node("menu").Data.(*OptionsData)
	if !ok || len(menu.Options) != 2 || menu.Options[1].Text != "B" {
		t.Errorf("menu data = %+v", wf.Node("menu").Data)
	}

	pt, ok := wf.Node("check").Data.(*PassThroughData)
	if !ok || pt.NodeType() != NodeTypeConditional || pt.Label != "Cond" {
		t.Errorf("check data = %+v", wf.Node("check").Data)
	}

	end := wf.Node("end").Data.(*FinalizarData)
	if end.EnableSatisfactionSurvey == nil || *end.EnableSatisfactionSurvey {
		t.Error("expected enableSatisfactionSurvey=false to be preserved")
	}
}

func TestDecodeWorkflowPayloadRejects(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr error
	}{
		{"missing id", `{"flowData": {"nodes": []}}`, ErrInvalidPayload},
		{"missing flowData", `{"_id": "x"}`, ErrInvalidPayload},
		{"node without type", `{"_id": "x", "flowData": {"nodes": [{"id": "n"}]}}`, ErrInvalidPayload},
		{"not json", `{`, ErrInvalidPayload},
		{"zero nodes", `{"_id": "x", "flowData": {"nodes": [], "edges": []}}`, ErrEmptyWorkflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeWorkflowPayload([]byte(tt.payload))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("DecodeWorkflowPayload() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeWorkflowPayloadEnabledFalse(t *testing.T) {
	wf := mustDecode(t, `{"_id": "x", "_enabled": false, "flowData": {"nodes": [{"id": "s", "type": "start"}]}}`)
	if wf.Enabled {
		t.Error("expected Enabled=false")
	}
}

func TestResolveTarget(t *testing.T) {
	wf := mustDecode(t, samplePayload)

	tests := []struct {
		name   string
		nodeID string
		option int
		want   string
	}{
		{"plain edge", "start", NoOption, "hello"},
		{"first option", "menu", 0, "check"},
		{"second option", "menu", 1, "end"},
		{"missing handle does not fall back", "menu", 2, ""},
		{"null handle is plain", "check", NoOption, "slots"},
		{"dangling target", "slots", NoOption, ""},
		{"no outgoing edge", "end", NoOption, ""},
		{"unknown node", "nope", NoOption, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wf.ResolveTarget(tt.nodeID, tt.option)
			if tt.want == "" {
				if got != nil {
					t.Errorf("ResolveTarget(%q, %d) = %q, want nil", tt.nodeID, tt.option, got.ID)
				}
				return
			}
			if got == nil || got.ID != tt.want {
				t.Errorf("ResolveTarget(%q, %d) = %v, want %q", tt.nodeID, tt.option, got, tt.want)
			}
		})
	}
}

func TestResolveTargetDeclarationOrder(t *testing.T) {
	wf := &Workflow{
		Nodes: []Node{{ID: "a", Type: NodeTypeStart}, {ID: "b", Type: NodeTypeSendMessage}, {ID: "c", Type: NodeTypeSendMessage}},
		Edges: []Edge{{Source: "a", Target: "c"}, {Source: "a", Target: "b"}},
	}
	if got := wf.ResolveTarget("a", NoOption); got == nil || got.ID != "c" {
		t.Errorf("ResolveTarget() = %v, want first declared edge target c", got)
	}
	if n := len(wf.FindOutgoing("a")); n != 2 {
		t.Errorf("FindOutgoing() returned %d edges, want 2", n)
	}
}

func TestNodeMarshalRoundTrip(t *testing.T) {
	wf := mustDecode(t, samplePayload)

	b, err := json.Marshal(wf)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var back Workflow
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	pt, ok := back.Node("check").Data.(*PassThroughData)
	if !ok {
		t.Fatalf("check data = %T after round trip", back.Node("check").Data)
	}
	var raw map[string]any
	if err := json.Unmarshal(pt.Raw, &raw); err != nil || raw["expression"] != "x > 1" {
		t.Errorf("pass-through payload not preserved: %s", pt.Raw)
	}
	slots := back.Node("slots").Data.(*SchedulingData)
	if len(slots.AvailableSlots) != 1 || !slots.AvailableSlots[0].IsDeclaredAvailable() {
		t.Errorf("slots after round trip = %+v", slots.AvailableSlots)
	}
}

func TestFinalizarClosing(t *testing.T) {
	if got := (&FinalizarData{FinalMessage: "Bye", Message: "x"}).Closing(); got != "Bye" {
		t.Errorf("Closing() = %q, want Bye", got)
	}
	if got := (&FinalizarData{Message: "fallback"}).Closing(); got != "fallback" {
		t.Errorf("Closing() = %q, want fallback", got)
	}
}

func TestExecutionStateClone(t *testing.T) {
	s := &ExecutionState{
		UserID:     "u",
		Scheduling: &SchedulingState{Slots: []TimeSlot{{Time: "10:00"}}},
		Sale:       &SaleState{Items: []InventoryItem{{Name: "x"}}, Selected: &InventoryItem{Name: "x"}},
	}
	c := s.Clone()
	c.Scheduling.Slots[0].Time = "11:00"
	c.Sale.Selected.Name = "y"
	c.Append(RoleUser, "hi", s.CreatedAt)

	if s.Scheduling.Slots[0].Time != "10:00" || s.Sale.Selected.Name != "x" || len(s.ConversationHistory) != 0 {
		t.Error("Clone() shares memory with the original")
	}
}
