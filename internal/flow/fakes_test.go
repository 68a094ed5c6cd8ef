package flow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aura-dev/aura/internal/models"
	"github.com/aura-dev/aura/internal/store"
)

var errFake = errors.New("fake port failure")

type fakeBooking struct {
	mu        sync.Mutex
	bookings  map[string]models.Booking
	createErr error
	cancelOK  bool
	// entered and release, when set, hold CreateBooking mid-call.
	entered chan struct{}
	release chan struct{}
}

func newFakeBooking() *fakeBooking {
	return &fakeBooking{bookings: make(map[string]models.Booking), cancelOK: true}
}

func (f *fakeBooking) IsSlotBooked(ctx context.Context, slotTime, slotDate, workflowID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.Time == slotTime && b.Date == slotDate && b.WorkflowID == workflowID && b.Status == models.BookingStatusActive {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBooking) CreateBooking(ctx context.Context, userID, code, slotTime, slotDate, workflowID string) (bool, error) {
	if f.entered != nil {
		close(f.entered)
		<-f.release
	}
	if f.createErr != nil {
		return false, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookings[code] = models.Booking{UserID: userID, Code: code, Time: slotTime, Date: slotDate, WorkflowID: workflowID, Status: models.BookingStatusActive}
	return true, nil
}

func (f *fakeBooking) GetBookingByCode(ctx context.Context, code, userID string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[code]
	if !ok || b.UserID != userID || b.Status != models.BookingStatusActive {
		return nil, nil
	}
	return &b, nil
}

func (f *fakeBooking) CancelBooking(ctx context.Context, code, userID, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.cancelOK {
		return false, nil
	}
	b, ok := f.bookings[code]
	if !ok || b.UserID != userID {
		return false, nil
	}
	b.Status = models.BookingStatusCancelled
	b.CancellationReason = reason
	f.bookings[code] = b
	return true, nil
}

// only returns the single booking, failing the test when there is not exactly one.
func (f *fakeBooking) only(t *testing.T) models.Booking {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.bookings) != 1 {
		t.Fatalf("expected 1 booking, got %d", len(f.bookings))
	}
	for _, b := range f.bookings {
		return b
	}
	return models.Booking{}
}

type surveyCall struct {
	UserID, WorkflowID, Question string
	Rating                       int
}

type fakeSurvey struct {
	calls []surveyCall
	fail  bool
}

func (f *fakeSurvey) SaveResponse(ctx context.Context, userID, workflowID string, rating int, question string) (bool, error) {
	if f.fail {
		return false, errFake
	}
	f.calls = append(f.calls, surveyCall{userID, workflowID, question, rating})
	return true, nil
}

type fakeAgents struct {
	initErr       error
	replies       []AgentReply
	processed     []string
	sessions      map[string]bool
	operatorCalls []string
}

func newFakeAgents() *fakeAgents {
	return &fakeAgents{sessions: make(map[string]bool)}
}

func (f *fakeAgents) Initialize(ctx context.Context, agentID, userID string) (AgentInitResult, error) {
	if f.initErr != nil {
		return AgentInitResult{Error: f.initErr.Error()}, f.initErr
	}
	return AgentInitResult{Success: true}, nil
}

func (f *fakeAgents) Process(ctx context.Context, agentID, userID, text string) (AgentReply, error) {
	f.processed = append(f.processed, text)
	if len(f.replies) == 0 {
		return AgentReply{}, errFake
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r, nil
}

func (f *fakeAgents) StartSession(ctx context.Context, userID, nodeID string) (bool, error) {
	f.sessions[userID] = true
	return true, nil
}

func (f *fakeAgents) IsSessionActive(ctx context.Context, userID string) (bool, error) {
	return f.sessions[userID], nil
}

func (f *fakeAgents) ProcessOperatorCommand(ctx context.Context, userID, text string) (OperatorReply, error) {
	f.operatorCalls = append(f.operatorCalls, text)
	if !f.sessions[userID] {
		return OperatorReply{Error: "no session"}, nil
	}
	if text == "/finalizar" {
		f.sessions[userID] = false
		return OperatorReply{Success: true, Message: "encerrado", SessionEnded: true}, nil
	}
	return OperatorReply{Success: true, Message: "**Operador:** " + text}, nil
}

type fakeInventory struct {
	items        []models.InventoryItem
	listErr      error
	requests     []models.SaleRequest
	transactions []string
	txErr        error
	now          time.Time
}

func (f *fakeInventory) ListAvailableItems(ctx context.Context) ([]models.InventoryItem, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.InventoryItem(nil), f.items...), nil
}

func (f *fakeInventory) RegisterSaleRequest(ctx context.Context, req models.SaleRequest) (models.SaleRequestReceipt, error) {
	f.requests = append(f.requests, req)
	if req.Type == models.SaleRequestCustom {
		d := f.now.Add(7 * 24 * time.Hour)
		return models.SaleRequestReceipt{ContactBy: &d}, nil
	}
	d := f.now.Add(3 * 24 * time.Hour)
	return models.SaleRequestReceipt{PickupDeadline: &d}, nil
}

func (f *fakeInventory) RegisterSaleTransaction(ctx context.Context, item models.InventoryItem, contact string) (*models.SaleRecord, error) {
	if f.txErr != nil {
		return nil, f.txErr
	}
	f.transactions = append(f.transactions, item.ID+"|"+contact)
	return &models.SaleRecord{ItemID: item.ID, Quantity: 1, Total: item.UnitPrice, Contact: contact}, nil
}

// harness bundles an engine with its fakes.
type harness struct {
	engine    *Engine
	store     *store.InMemoryStore
	registry  *Registry
	booking   *fakeBooking
	survey    *fakeSurvey
	agents    *fakeAgents
	inventory *fakeInventory
	now       time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	now := time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC)
	st := store.NewInMemoryStore()
	h := &harness{
		store:     st,
		registry:  NewRegistry(st, st),
		booking:   newFakeBooking(),
		survey:    &fakeSurvey{},
		agents:    newFakeAgents(),
		inventory: &fakeInventory{now: now},
		now:       now,
	}
	h.registry.SetClock(func() time.Time { return h.now })
	h.engine = NewEngine(st, h.registry,
		WithBookingPort(h.booking),
		WithSurveyPort(h.survey),
		WithAgentPort(h.agents),
		WithInventoryPort(h.inventory),
		WithClock(func() time.Time { return h.now }),
	)
	return h
}

func (h *harness) publish(t *testing.T, wf *models.Workflow) {
	t.Helper()
	if err := h.registry.Publish(context.Background(), wf); err != nil {
		t.Fatalf("Publish(%s) failed: %v", wf.ID, err)
	}
}

func (h *harness) send(t *testing.T, userID, text string) Result {
	t.Helper()
	return h.engine.HandleInbound(context.Background(), userID, text)
}

func (h *harness) state(t *testing.T, userID, workflowID string) *models.ExecutionState {
	t.Helper()
	st, err := h.store.GetExecution(userID, workflowID)
	if err != nil {
		t.Fatalf("GetExecution failed: %v", err)
	}
	return st
}

func texts(r Result) []string {
	out := make([]string, len(r.Messages))
	for i, m := range r.Messages {
		out[i] = m.Text
	}
	return out
}

// Graph builders.

func n(id string, data models.NodeData) models.Node {
	return models.Node{ID: id, Type: data.NodeType(), Data: data}
}

func start() models.Node { return n("start", &models.StartData{}) }

func msg(id, text string) models.Node {
	return n(id, &models.SendMessageData{Message: text})
}

func opts(id string, labels ...string) models.Node {
	d := &models.OptionsData{}
	for _, l := range labels {
		d.Options = append(d.Options, models.Option{Text: l})
	}
	return n(id, d)
}

func final(id, text string) models.Node {
	return n(id, &models.FinalizarData{FinalMessage: text})
}

func e(src, dst string) models.Edge {
	return models.Edge{ID: src + "-" + dst, Source: src, Target: dst}
}

func oe(src string, idx int, dst string) models.Edge {
	return models.Edge{ID: src + "-" + dst, Source: src, Target: dst, SourceHandle: models.OptionHandle(idx)}
}

func workflow(id string, nodes []models.Node, edges ...models.Edge) *models.Workflow {
	return &models.Workflow{ID: id, Enabled: true, Nodes: nodes, Edges: edges}
}
