package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

type echoArgs struct {
	Text  string `json:"text" jsonschema:"Text to echo back"`
	Times int    `json:"times,omitempty" jsonschema:"How many times to repeat the text"`
}

func newEchoTool(t *testing.T) *Tool {
	t.Helper()
	tool, err := NewTool("echo", "Echoes input", func(_ context.Context, a echoArgs) (string, error) {
		n := a.Times
		if n == 0 {
			n = 1
		}
		return strings.Repeat(a.Text, n), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return tool
}

func TestNewToolSchema(t *testing.T) {
	tool := newEchoTool(t)

	var schema struct {
		Type       string                    `json:"type"`
		Properties map[string]map[string]any `json:"properties"`
		Required   []string                  `json:"required"`
	}
	if err := json.Unmarshal(tool.InputSchema(), &schema); err != nil {
		t.Fatal(err)
	}
	if schema.Type != "object" {
		t.Errorf("expected object schema, got %q", schema.Type)
	}
	if schema.Properties["text"]["type"] != "string" {
		t.Errorf("expected text to be a string, got %v", schema.Properties["text"])
	}
	if schema.Properties["text"]["description"] != "Text to echo back" {
		t.Errorf("expected description from tag, got %v", schema.Properties["text"]["description"])
	}
	if schema.Properties["times"]["type"] != "integer" {
		t.Errorf("expected times to be an integer, got %v", schema.Properties["times"])
	}
	if len(schema.Required) != 1 || schema.Required[0] != "text" {
		t.Errorf("expected only text to be required, got %v", schema.Required)
	}
}

func TestNewToolRequiresName(t *testing.T) {
	_, err := NewTool("", "x", func(context.Context, echoArgs) (string, error) { return "", nil })
	if err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestExecuteValid(t *testing.T) {
	tool := newEchoTool(t)
	out, err := tool.Execute(context.Background(), json.RawMessage(`{"text":"ab","times":2}`))
	if err != nil {
		t.Fatal(err)
	}
	if out != "abab" {
		t.Errorf("expected 'abab', got %q", out)
	}
}

func TestExecuteValidationErrors(t *testing.T) {
	tool := newEchoTool(t)
	cases := map[string]string{
		"missing required": `{}`,
		"wrong type":       `{"text":5}`,
		"not an object":    `"hello"`,
		"malformed json":   `{"text":`,
		"empty input":      ``,
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tool.Execute(context.Background(), json.RawMessage(args))
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T: %v", err, err)
			}
			if verr.Tool != "echo" {
				t.Errorf("expected tool name echo, got %q", verr.Tool)
			}
		})
	}
}

func TestExecuteDoesNotCallOnInvalidArgs(t *testing.T) {
	called := false
	tool, err := NewTool("probe", "", func(context.Context, echoArgs) (string, error) {
		called = true
		return "", nil
	})
	if err != nil {
		t.Fatal(err)
	}
	tool.Execute(context.Background(), json.RawMessage(`{"text":true}`))
	if called {
		t.Error("tool function ran despite invalid arguments")
	}
}

func TestExecuteWrapsToolFailure(t *testing.T) {
	boom := errors.New("disk on fire")
	tool := MustTool("fail", "", func(context.Context, echoArgs) (string, error) {
		return "", boom
	})

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"text":"x"}`))
	var exec *ExecutionError
	if !errors.As(err, &exec) {
		t.Fatalf("expected *ExecutionError, got %T", err)
	}
	if !errors.Is(err, boom) {
		t.Error("expected cause to be preserved")
	}
}

func TestExecuteIsIdempotent(t *testing.T) {
	tool := newEchoTool(t)
	args := json.RawMessage(`{"text":"same","times":3}`)
	first, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatal(err)
	}
	second, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("expected identical results, got %q and %q", first, second)
	}
}

func TestRegistryLookup(t *testing.T) {
	r, err := NewRegistry(newEchoTool(t))
	if err != nil {
		t.Fatal(err)
	}

	tool, ok := r.Lookup("echo")
	if !ok {
		t.Fatal("expected to find echo tool")
	}
	if tool.Name() != "echo" {
		t.Errorf("expected name 'echo', got %q", tool.Name())
	}
}

func TestRegistryLookupMissing(t *testing.T) {
	r, err := NewRegistry()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Lookup("missing"); ok {
		t.Fatal("expected not to find missing tool")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	if _, err := NewRegistry(newEchoTool(t), newEchoTool(t)); err == nil {
		t.Fatal("expected duplicate name error")
	}
	if _, err := NewRegistry(nil); err == nil {
		t.Fatal("expected nil tool error")
	}
}

func TestRegistryKeepsOrder(t *testing.T) {
	noop := func(context.Context, echoArgs) (string, error) { return "", nil }
	r, err := NewRegistry(MustTool("b", "", noop), MustTool("a", "", noop), MustTool("c", "", noop))
	if err != nil {
		t.Fatal(err)
	}

	all := r.All()
	specs := r.Specs()
	want := []string{"b", "a", "c"}
	if len(all) != 3 || len(specs) != 3 {
		t.Fatalf("expected 3 tools, got %d/%d", len(all), len(specs))
	}
	for i, name := range want {
		if all[i].Name() != name {
			t.Errorf("All()[%d]: expected %s, got %s", i, name, all[i].Name())
		}
		if specs[i].Name != name {
			t.Errorf("Specs()[%d]: expected %s, got %s", i, name, specs[i].Name)
		}
	}
}

func TestRegistrySpecs(t *testing.T) {
	r, err := NewRegistry(newEchoTool(t))
	if err != nil {
		t.Fatal(err)
	}
	specs := r.Specs()
	if len(specs) != 1 {
		t.Fatalf("expected 1 spec, got %d", len(specs))
	}
	if specs[0].Name != "echo" || specs[0].Description != "Echoes input" {
		t.Errorf("unexpected spec %+v", specs[0])
	}
	if !json.Valid(specs[0].InputSchema) {
		t.Error("expected valid JSON schema")
	}
}
