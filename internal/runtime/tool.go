package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/user/toolchat/pkg/llm"
)

// Tool is a named capability the model may request. A Tool is built once
// with NewTool and is immutable afterwards.
type Tool struct {
	name        string
	description string
	schema      json.RawMessage
	resolved    *jsonschema.Resolved
	call        func(ctx context.Context, args json.RawMessage) (string, error)
}

// NewTool builds a Tool whose arguments are described by T. The JSON Schema
// advertised to the model and the schema used to validate incoming arguments
// are the same value, derived from T's json and jsonschema struct tags.
func NewTool[T any](name, description string, fn func(ctx context.Context, args T) (string, error)) (*Tool, error) {
	if name == "" {
		return nil, errors.New("tool name is required")
	}
	if fn == nil {
		return nil, fmt.Errorf("tool %s: function is required", name)
	}

	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("derive schema for tool %s: %w", name, err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve schema for tool %s: %w", name, err)
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema for tool %s: %w", name, err)
	}

	return &Tool{
		name:        name,
		description: description,
		schema:      raw,
		resolved:    resolved,
		call: func(ctx context.Context, args json.RawMessage) (string, error) {
			var params T
			if err := json.Unmarshal(args, &params); err != nil {
				return "", &ValidationError{Tool: name, Err: err}
			}
			return fn(ctx, params)
		},
	}, nil
}

// MustTool is like NewTool but panics on error. It is meant for tools whose
// argument types are fixed at compile time.
func MustTool[T any](name, description string, fn func(ctx context.Context, args T) (string, error)) *Tool {
	t, err := NewTool(name, description, fn)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Tool) Name() string        { return t.name }
func (t *Tool) Description() string { return t.description }

// InputSchema returns the JSON Schema advertised to the model.
func (t *Tool) InputSchema() json.RawMessage {
	return append(json.RawMessage(nil), t.schema...)
}

// Spec returns the tool in the form providers advertise it.
func (t *Tool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        t.name,
		Description: t.description,
		InputSchema: t.InputSchema(),
	}
}

// Execute validates args against the tool's schema and runs the tool.
// Arguments that do not match fail with *ValidationError before the tool
// function is called; a failure inside the tool is wrapped in
// *ExecutionError. Empty args are treated as an empty object.
func (t *Tool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	if len(bytes.TrimSpace(args)) == 0 {
		args = json.RawMessage(`{}`)
	}

	var instance any
	if err := json.Unmarshal(args, &instance); err != nil {
		return "", &ValidationError{Tool: t.name, Err: fmt.Errorf("decode arguments: %w", err)}
	}
	if err := t.resolved.Validate(instance); err != nil {
		return "", &ValidationError{Tool: t.name, Err: err}
	}

	out, err := t.call(ctx, args)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return "", err
		}
		return "", &ExecutionError{Tool: t.name, Err: err}
	}
	return out, nil
}

// Registry holds the tools available to the model, in registration order.
// It is immutable once built.
type Registry struct {
	tools  []*Tool
	byName map[string]*Tool
}

// NewRegistry builds a registry. Tool names must be unique.
func NewRegistry(tools ...*Tool) (*Registry, error) {
	r := &Registry{
		tools:  make([]*Tool, 0, len(tools)),
		byName: make(map[string]*Tool, len(tools)),
	}
	for _, t := range tools {
		if t == nil {
			return nil, errors.New("nil tool")
		}
		if _, dup := r.byName[t.name]; dup {
			return nil, fmt.Errorf("duplicate tool name %q", t.name)
		}
		r.tools = append(r.tools, t)
		r.byName[t.name] = t
	}
	return r, nil
}

// Lookup returns a tool by name.
func (r *Registry) Lookup(name string) (*Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// All returns all registered tools in registration order.
func (r *Registry) All() []*Tool {
	return append([]*Tool(nil), r.tools...)
}

// Specs converts registered tools to the LLM provider format.
func (r *Registry) Specs() []llm.ToolSpec {
	out := make([]llm.ToolSpec, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Spec())
	}
	return out
}
