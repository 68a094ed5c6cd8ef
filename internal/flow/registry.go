package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aura-dev/aura/internal/models"
	"github.com/aura-dev/aura/internal/store"
)

// ErrWorkflowNotFound is returned for unknown workflow ids.
var ErrWorkflowNotFound = errors.New("workflow not found")

// Registry holds the published workflows and resolves the active one.
// At most one workflow is enabled after a new id is published.
type Registry struct {
	mu         sync.RWMutex
	repo       store.WorkflowRepo
	executions store.ExecutionRepo
	flows      map[string]*models.Workflow
	order      []string
	now        func() time.Time

	// passMu is held shared by every engine traversal and exclusively by
	// Publish, so a republish never interleaves with a load-traverse-save pass.
	passMu sync.RWMutex
}

// NewRegistry creates an empty registry persisting through repo and
// invalidating states in executions on republish.
func NewRegistry(repo store.WorkflowRepo, executions store.ExecutionRepo) *Registry {
	return &Registry{
		repo:       repo,
		executions: executions,
		flows:      make(map[string]*models.Workflow),
		now:        time.Now,
	}
}

// SetClock overrides the time source used for UpdatedAt.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Load replaces the in-memory set with the workflows persisted in the repo.
func (r *Registry) Load(ctx context.Context) error {
	list, err := r.repo.ListWorkflows()
	if err != nil {
		return fmt.Errorf("load workflows: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flows = make(map[string]*models.Workflow, len(list))
	r.order = r.order[:0]
	for i := range list {
		wf := list[i]
		r.flows[wf.ID] = &wf
		r.order = append(r.order, wf.ID)
	}
	slog.Info("Registry.Load: workflows loaded", "count", len(list))
	return nil
}

// Publish upserts wf. Republishing a known id deletes every execution state
// of that workflow; publishing a new id disables every other workflow.
// A workflow without nodes is rejected and nothing changes.
func (r *Registry) Publish(ctx context.Context, wf *models.Workflow) error {
	if err := wf.Validate(); err != nil {
		slog.Warn("Registry.Publish: rejected workflow", "workflowID", wf.ID, "error", err)
		return err
	}

	r.passMu.Lock()
	defer r.passMu.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	next := wf.Clone()
	next.UpdatedAt = now
	existing, known := r.flows[wf.ID]
	if known {
		next.CreatedAt = existing.CreatedAt
	} else if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}

	var disabled []*models.Workflow
	if !known {
		for _, id := range r.order {
			other := r.flows[id]
			if other.Enabled {
				c := other.Clone()
				c.Enabled = false
				disabled = append(disabled, c)
			}
		}
	}

	if err := r.repo.SaveWorkflow(next); err != nil {
		return fmt.Errorf("save workflow %s: %w", wf.ID, err)
	}
	for _, c := range disabled {
		if err := r.repo.SaveWorkflow(c); err != nil {
			return fmt.Errorf("disable workflow %s: %w", c.ID, err)
		}
		r.flows[c.ID] = c
		slog.Debug("Registry.Publish: disabled previous workflow", "workflowID", c.ID)
	}

	if !known {
		r.order = append(r.order, wf.ID)
	}
	r.flows[wf.ID] = next

	if known {
		n, err := r.executions.DeleteExecutionsByWorkflow(wf.ID)
		if err != nil {
			return fmt.Errorf("reset executions of %s: %w", wf.ID, err)
		}
		slog.Info("Registry.Publish: workflow republished, executions reset", "workflowID", wf.ID, "reset", n)
	} else {
		slog.Info("Registry.Publish: workflow published", "workflowID", wf.ID, "nodes", len(wf.Nodes), "edges", len(wf.Edges))
	}
	return nil
}

// beginPass blocks while a Publish is in progress and returns the release func
// ending the traversal.
func (r *Registry) beginPass() func() {
	r.passMu.RLock()
	return r.passMu.RUnlock
}

// SetEnabled toggles a workflow.
func (r *Registry) SetEnabled(ctx context.Context, id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.flows[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrWorkflowNotFound, id)
	}
	c := existing.Clone()
	c.Enabled = enabled
	c.UpdatedAt = r.now()
	if err := r.repo.SaveWorkflow(c); err != nil {
		return fmt.Errorf("save workflow %s: %w", id, err)
	}
	r.flows[id] = c
	slog.Info("Registry.SetEnabled", "workflowID", id, "enabled", enabled)
	return nil
}

// ActiveFlow returns the enabled workflow updated most recently, ties going
// to the later insertion. It returns nil when no workflow is enabled.
func (r *Registry) ActiveFlow() *models.Workflow {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active *models.Workflow
	for _, id := range r.order {
		wf := r.flows[id]
		if !wf.Enabled {
			continue
		}
		if active == nil || !wf.UpdatedAt.Before(active.UpdatedAt) {
			active = wf
		}
	}
	return active
}

// Get returns the workflow with id.
func (r *Registry) Get(id string) (*models.Workflow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wf, ok := r.flows[id]
	return wf, ok
}

// List returns every workflow in insertion order.
func (r *Registry) List() []models.Workflow {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Workflow, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.flows[id])
	}
	return out
}
