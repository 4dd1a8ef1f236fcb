package runtime_test

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/toolchat/internal/runtime"
	"github.com/user/toolchat/internal/runtime/tools"
	"github.com/user/toolchat/pkg/llm"
)

type userLines struct {
	lines []string
	reads int
}

func (u *userLines) ReadLine() (string, error) {
	u.reads++
	if u.reads > len(u.lines) {
		return "", io.EOF
	}
	return u.lines[u.reads-1], nil
}

type discard struct{}

func (discard) AssistantText(string) {}
func (discard) ToolNotice(string)    {}

type inferCall struct {
	history []llm.Turn
	tools   []llm.ToolSpec
	reads   int
}

type replayProvider struct {
	replies []*llm.Message
	input   *userLines
	calls   []inferCall
}

func (p *replayProvider) Infer(_ context.Context, history []llm.Turn, specs []llm.ToolSpec) (*llm.Message, error) {
	p.calls = append(p.calls, inferCall{history: slices.Clone(history), tools: specs, reads: p.input.reads})
	if len(p.replies) == 0 {
		return &llm.Message{Content: []llm.ContentBlock{llm.TextBlock{Text: "ok"}}}, nil
	}
	reply := p.replies[0]
	p.replies = p.replies[1:]
	return reply, nil
}

func TestListSrcScenario(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "main.go"), []byte("package main"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "util.go"), []byte("package main"), 0644))
	t.Chdir(dir)

	in := &userLines{lines: []string{"list files in ./src"}}
	p := &replayProvider{
		input: in,
		replies: []*llm.Message{
			{Content: []llm.ContentBlock{llm.ToolUseBlock{
				ID:    "toolu_01",
				Name:  "file_list",
				Input: json.RawMessage(`{"directory_path":"./src"}`),
			}}},
			{Content: []llm.ContentBlock{llm.TextBlock{Text: "src has main.go and util.go"}}},
		},
	}
	reg, err := runtime.NewRegistry(tools.Builtin()...)
	require.NoError(t, err)

	rt := runtime.New(p, reg, in, discard{}, runtime.Options{})
	require.NoError(t, rt.Run(context.Background()))

	require.Len(t, p.calls, 2)
	assert.Equal(t, p.calls[0].reads, p.calls[1].reads, "input was read between the tool round and the next inference")
	assert.Equal(t, reg.Specs(), p.calls[0].tools)

	second := p.calls[1].history
	require.Len(t, second, 3)
	assert.Equal(t, llm.NewUserText("list files in ./src"), second[0])
	assert.Equal(t, llm.RoleAssistant, second[1].Role)
	require.Equal(t, llm.RoleUser, second[2].Role)
	require.Len(t, second[2].Content, 1)

	result, ok := second[2].Content[0].(llm.ToolResultBlock)
	require.True(t, ok, "expected tool_result, got %T", second[2].Content[0])
	assert.Equal(t, "toolu_01", result.ToolUseID)
	assert.False(t, result.IsError, result.Content)

	var entries []tools.FileEntry
	require.NoError(t, json.Unmarshal([]byte(result.Content), &entries))
	assert.ElementsMatch(t, []tools.FileEntry{
		{Name: "main.go", Path: filepath.Join("src", "main.go"), Type: "file"},
		{Name: "util.go", Path: filepath.Join("src", "util.go"), Type: "file"},
	}, entries)
}

func TestUndeclaredArgumentReachesModelAsError(t *testing.T) {
	in := &userLines{lines: []string{"list"}}
	p := &replayProvider{
		input: in,
		replies: []*llm.Message{{Content: []llm.ContentBlock{llm.ToolUseBlock{
			ID:    "toolu_01",
			Name:  "file_list",
			Input: json.RawMessage(`{"directory_path":".","recursive":true}`),
		}}}},
	}
	reg, err := runtime.NewRegistry(tools.Builtin()...)
	require.NoError(t, err)

	require.NoError(t, runtime.New(p, reg, in, discard{}, runtime.Options{}).Run(context.Background()))

	require.Len(t, p.calls, 2)
	h := p.calls[1].history
	result := h[len(h)-1].Content[0].(llm.ToolResultBlock)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "recursive")
}
