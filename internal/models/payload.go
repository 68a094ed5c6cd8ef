package models

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const workflowSchemaURL = "https://aura.dev/schemas/workflow-payload.json"

//go:embed workflow_schema.json
var workflowSchemaJSON []byte

// ErrInvalidPayload is returned when a publish payload fails schema validation.
var ErrInvalidPayload = errors.New("invalid workflow payload")

var (
	schemaOnce     sync.Once
	workflowSchema *jsonschema.Schema
	schemaErr      error
)

func compiledWorkflowSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(workflowSchemaJSON))
		if err != nil {
			schemaErr = fmt.Errorf("unmarshal workflow schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(workflowSchemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("add workflow schema resource: %w", err)
			return
		}
		workflowSchema, schemaErr = c.Compile(workflowSchemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile workflow schema: %w", schemaErr)
		}
	})
	return workflowSchema, schemaErr
}

// WorkflowPayload is the document the flow builder publishes.
type WorkflowPayload struct {
	ID         string          `json:"_id"`
	Tag        string          `json:"_tag,omitempty"`
	Enabled    *bool           `json:"_enabled,omitempty"`
	InsertedAt json.RawMessage `json:"_insertedAt,omitempty"`
	FlowData   struct {
		Nodes []Node `json:"nodes"`
		Edges []Edge `json:"edges"`
	} `json:"flowData"`
}

// DecodeWorkflowPayload validates raw against the publish schema and converts
// it into a Workflow. Enabled defaults to true when the payload omits it.
func DecodeWorkflowPayload(raw []byte) (*Workflow, error) {
	sch, err := compiledWorkflowSchema()
	if err != nil {
		return nil, err
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := sch.Validate(inst); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	var p WorkflowPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	wf := &Workflow{
		ID:      p.ID,
		Tag:     p.Tag,
		Enabled: p.Enabled == nil || *p.Enabled,
		Nodes:   p.FlowData.Nodes,
		Edges:   p.FlowData.Edges,
	}
	if t, ok := parseInsertedAt(p.InsertedAt); ok {
		wf.CreatedAt = t
	}
	if err := wf.Validate(); err != nil {
		return nil, err
	}
	return wf, nil
}

// parseInsertedAt accepts an RFC 3339 string or a {"$date": ...} wrapper.
func parseInsertedAt(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 {
		return time.Time{}, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var wrapped struct {
			Date string `json:"$date"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return time.Time{}, false
		}
		s = wrapped.Date
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
