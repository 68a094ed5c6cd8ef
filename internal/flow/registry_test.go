package flow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aura-dev/aura/internal/models"
	"github.com/aura-dev/aura/internal/store"
)

func TestPublishKeepsSingleActiveFlow(t *testing.T) {
	h := newHarness(t)
	h.publish(t, scenarioFlow("A"))
	h.now = h.now.Add(time.Minute)
	h.publish(t, scenarioFlow("B"))

	a, _ := h.registry.Get("A")
	b, _ := h.registry.Get("B")
	if a.Enabled || !b.Enabled {
		t.Errorf("enabled flags A=%v B=%v, want false/true", a.Enabled, b.Enabled)
	}
	if active := h.registry.ActiveFlow(); active == nil || active.ID != "B" {
		t.Errorf("ActiveFlow = %+v, want B", active)
	}

	persisted, err := h.store.ListWorkflows()
	if err != nil {
		t.Fatalf("ListWorkflows failed: %v", err)
	}
	if len(persisted) != 2 || persisted[0].Enabled || !persisted[1].Enabled {
		t.Errorf("persisted = %+v", persisted)
	}
}

func TestActiveFlowTieGoesToLaterInsertion(t *testing.T) {
	h := newHarness(t)
	h.publish(t, scenarioFlow("A"))
	h.publish(t, scenarioFlow("B"))
	// Re-enable A at the same instant B was published.
	if err := h.registry.SetEnabled(context.Background(), "A", true); err != nil {
		t.Fatalf("SetEnabled failed: %v", err)
	}
	if active := h.registry.ActiveFlow(); active.ID != "B" {
		t.Errorf("ActiveFlow = %s, want B", active.ID)
	}

	h.now = h.now.Add(time.Second)
	h.registry.SetEnabled(context.Background(), "A", true)
	if active := h.registry.ActiveFlow(); active.ID != "A" {
		t.Errorf("ActiveFlow = %s, want A after a newer update", active.ID)
	}
}

func TestRepublishResetsSessions(t *testing.T) {
	h := newHarness(t)
	h.publish(t, scenarioFlow("f1"))
	h.send(t, "u2", "oi")
	h.send(t, "other", "oi")
	if st := h.state(t, "u2", "f1"); st == nil || st.CurrentNodeID != "menu" {
		t.Fatalf("precondition: %+v", st)
	}

	v2 := workflow("f1",
		[]models.Node{start(), msg("welcome", "Bem-vindo à versão 2"), opts("menu2", "X")},
		e("start", "welcome"), e("welcome", "menu2"),
	)
	h.now = h.now.Add(time.Hour)
	h.publish(t, v2)

	if st := h.state(t, "u2", "f1"); st != nil {
		t.Fatalf("state survived republish: %+v", st)
	}
	r := h.send(t, "u2", "1")
	if len(r.Messages) != 2 || r.Messages[0].Text != "Bem-vindo à versão 2" {
		t.Errorf("u2 did not restart on the new version: %q", texts(r))
	}
	wf, _ := h.registry.Get("f1")
	if !wf.CreatedAt.Equal(time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC)) || !wf.UpdatedAt.Equal(h.now) {
		t.Errorf("timestamps = created %v updated %v", wf.CreatedAt, wf.UpdatedAt)
	}
}

func TestRepublishKeepsOtherFlowsEnabled(t *testing.T) {
	h := newHarness(t)
	h.publish(t, scenarioFlow("A"))
	h.publish(t, scenarioFlow("B"))
	h.registry.SetEnabled(context.Background(), "A", true)
	h.publish(t, scenarioFlow("B"))
	if a, _ := h.registry.Get("A"); !a.Enabled {
		t.Error("republishing B disabled A")
	}
}

func TestPublishRejectsEmptyWorkflow(t *testing.T) {
	h := newHarness(t)
	h.publish(t, scenarioFlow("A"))

	err := h.registry.Publish(context.Background(), &models.Workflow{ID: "B", Enabled: true})
	if !errors.Is(err, models.ErrEmptyWorkflow) {
		t.Fatalf("error = %v, want ErrEmptyWorkflow", err)
	}
	if _, ok := h.registry.Get("B"); ok {
		t.Error("empty workflow was stored")
	}
	if a, _ := h.registry.Get("A"); !a.Enabled {
		t.Error("rejected publish mutated other flows")
	}
}

func TestSetEnabledUnknownWorkflow(t *testing.T) {
	h := newHarness(t)
	if err := h.registry.SetEnabled(context.Background(), "ghost", true); !errors.Is(err, ErrWorkflowNotFound) {
		t.Errorf("error = %v, want ErrWorkflowNotFound", err)
	}
}

func TestRegistryLoadRehydrates(t *testing.T) {
	st := store.NewInMemoryStore()
	r1 := NewRegistry(st, st)
	ctx := context.Background()
	r1.Publish(ctx, scenarioFlow("A"))
	r1.Publish(ctx, scenarioFlow("B"))

	r2 := NewRegistry(st, st)
	if err := r2.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	list := r2.List()
	if len(list) != 2 || list[0].ID != "A" || list[1].ID != "B" {
		t.Fatalf("List = %+v", list)
	}
	if active := r2.ActiveFlow(); active == nil || active.ID != "B" {
		t.Errorf("ActiveFlow after load = %+v", active)
	}
}

func TestRepublishWaitsForInFlightTraversal(t *testing.T) {
	h := newHarness(t)
	h.publish(t, schedulingFlow(slot("10:00", "2025-01-10")))
	h.send(t, "u", "oi")

	// The booking fails, so the traversal would save the user back on the
	// old scheduling node.
	h.booking.createErr = errFake
	h.booking.entered = make(chan struct{})
	h.booking.release = make(chan struct{})

	ctx := context.Background()
	traversed := make(chan Result, 1)
	go func() { traversed <- h.engine.HandleInbound(ctx, "u", "1") }()
	<-h.booking.entered

	v2 := workflow("agenda", []models.Node{start(), msg("hello", "Nova versão")}, e("start", "hello"))
	published := make(chan error, 1)
	go func() { published <- h.registry.Publish(ctx, v2) }()

	select {
	case err := <-published:
		t.Fatalf("Publish finished during a traversal: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	close(h.booking.release)

	if r := <-traversed; r.Failed {
		t.Fatalf("traversal failed: %+v", r)
	}
	if err := <-published; err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if st := h.state(t, "u", "agenda"); st != nil {
		t.Fatalf("state survived republish: node=%s scheduling=%v", st.CurrentNodeID, st.Scheduling != nil)
	}

	h.booking.createErr = nil
	h.booking.entered = nil
	r := h.send(t, "u", "oi")
	if got := texts(r); len(got) != 1 || got[0] != "Nova versão" {
		t.Errorf("next message after republish = %q, want the new start", got)
	}
}

func TestTraversalUsesLatestPublishedGraph(t *testing.T) {
	h := newHarness(t)
	v1 := workflow("f1", []models.Node{start(), msg("m", "v1")}, e("start", "m"))
	h.publish(t, v1)
	h.publish(t, workflow("f1", []models.Node{start(), msg("m", "v2")}, e("start", "m")))

	// A caller still holding the first snapshot gets the current graph.
	r := h.engine.HandleMessage(context.Background(), "u", v1, "oi")
	if got := texts(r); len(got) != 1 || got[0] != "v2" {
		t.Errorf("messages = %q, want v2", got)
	}
}
