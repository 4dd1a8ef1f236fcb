package context

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/user/toolchat/pkg/llm"
)

// DefaultPromptName selects DefaultPrompt in the llm.system_prompt setting.
const DefaultPromptName = "default"

// DefaultPrompt is the built-in system prompt template. It uses Go
// text/template syntax with PromptData fields: .Time, .WorkDir, .Tools, .ToolList
const DefaultPrompt = `You are a helpful assistant running in a terminal on the user's machine. You can inspect and change files in the local filesystem through tools.

## Current Context

- Time: {{.Time}}
- Working directory: {{.WorkDir}}
- Available tools: {{.Tools}}
{{- if .ToolList}}

## Tools
{{range .ToolList}}
### {{.Name}}
{{.Description}}
{{end}}
{{- end}}

## Guidelines

- Relative paths are resolved against the working directory.
- Look before you write: list or read files before changing them.
- If a tool returns an error, read it, correct the arguments and try again, or explain what went wrong.
- Be concise. Use code blocks for file contents and command output.
`

// PromptData is the data available to system prompt templates.
type PromptData struct {
	Time     string
	WorkDir  string
	Tools    string
	ToolList []llm.ToolSpec
}

// BuildSystemPrompt resolves the llm.system_prompt setting. An empty
// setting means no system prompt; "default" selects DefaultPrompt; any
// other value is itself rendered as a template.
func BuildSystemPrompt(setting string, tools []llm.ToolSpec, now time.Time, workDir string) (string, error) {
	if strings.TrimSpace(setting) == "" {
		return "", nil
	}
	text := setting
	if setting == DefaultPromptName {
		text = DefaultPrompt
	}

	tmpl, err := template.New("system").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse system prompt: %w", err)
	}

	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}

	var sb strings.Builder
	err = tmpl.Execute(&sb, PromptData{
		Time:     now.Format(time.RFC3339),
		WorkDir:  workDir,
		Tools:    strings.Join(names, ", "),
		ToolList: tools,
	})
	if err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return sb.String(), nil
}
