// Package testutil provides common test utilities and helpers for Aura tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/aura-dev/aura/internal/flow"
	"github.com/aura-dev/aura/internal/models"
	"github.com/aura-dev/aura/internal/services"
	"github.com/aura-dev/aura/internal/store"
)

// TB is the subset of testing.TB the helpers need, so they can be exercised
// against a recording fake.
type TB interface {
	Helper()
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// Epoch is the fixed time used by Env clocks.
var Epoch = time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)

// Env is an engine wired to in-memory storage and the store-backed services.
type Env struct {
	Store    *store.InMemoryStore
	Registry *flow.Registry
	Engine   *flow.Engine
	Bookings *services.BookingService
	Surveys  *services.SurveyService
	Sales    *services.SalesService
	Agents   *services.AgentService
}

// NewEnv creates an Env whose clocks return Epoch. completer may be nil, in
// which case AI agent nodes fail to initialize.
func NewEnv(completer services.Completer) *Env {
	now := func() time.Time { return Epoch }
	st := store.NewInMemoryStore()
	reg := flow.NewRegistry(st, st)
	reg.SetClock(now)

	env := &Env{
		Store:    st,
		Registry: reg,
		Bookings: services.NewBookingService(st),
		Surveys:  services.NewSurveyService(st),
		Sales:    services.NewSalesService(st, st),
		Agents:   services.NewAgentService(st, completer),
	}
	env.Bookings.SetClock(now)
	env.Surveys.SetClock(now)
	env.Sales.SetClock(now)
	env.Agents.SetClock(now)

	env.Engine = flow.NewEngine(st, reg,
		flow.WithClock(now),
		flow.WithBookingPort(env.Bookings),
		flow.WithSurveyPort(env.Surveys),
		flow.WithInventoryPort(env.Sales),
		flow.WithAgentPort(env.Agents),
	)
	return env
}

// Publish publishes wf and fails the test on error.
func (e *Env) Publish(t TB, wf *models.Workflow) {
	t.Helper()
	if err := e.Registry.Publish(context.Background(), wf); err != nil {
		t.Fatalf("failed to publish workflow %s: %v", wf.ID, err)
	}
}

// Node builds a node whose type follows its data.
func Node(id string, data models.NodeData) models.Node {
	return models.Node{ID: id, Type: data.NodeType(), Data: data}
}

// Edge builds an edge without a source handle.
func Edge(src, dst string) models.Edge {
	return models.Edge{ID: src + "-" + dst, Source: src, Target: dst}
}

// GreetingFlow is start -> sendMessage -> finalizar. The first message yields
// the greeting, the closing text and the survey prompt.
func GreetingFlow(id, greeting string) *models.Workflow {
	return &models.Workflow{
		ID:      id,
		Enabled: true,
		Nodes: []models.Node{
			Node("start", &models.StartData{}),
			Node("hello", &models.SendMessageData{Message: greeting}),
			Node("end", &models.FinalizarData{FinalMessage: "Até logo!"}),
		},
		Edges: []models.Edge{Edge("start", "hello"), Edge("hello", "end")},
	}
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t TB, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes an APIResponse body and validates its status field.
func AssertJSONResponse(t TB, rr *httptest.ResponseRecorder, expectedStatus models.APIStatus) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
		return nil
	}
	status, ok := response["status"].(string)
	if !ok {
		t.Errorf("response missing or invalid 'status' field")
		return response
	}
	if status != string(expectedStatus) {
		t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
	}
	return response
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t TB, method, url string, body interface{}) *http.Request {
	t.Helper()
	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		reqBody = bytes.NewBuffer(MustMarshalJSON(t, body))
	}
	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DecodeResult unmarshals the result field of an APIResponse body into target.
func DecodeResult(t TB, rr *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	var envelope struct {
		Status string          `json:"status"`
		Result json.RawMessage `json:"result"`
	}
	MustUnmarshalJSON(t, rr.Body.Bytes(), &envelope)
	MustUnmarshalJSON(t, envelope.Result, target)
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t TB, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t TB, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}

// MessageTexts returns the texts of msgs.
func MessageTexts(msgs []models.OutboundMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Text
	}
	return out
}
