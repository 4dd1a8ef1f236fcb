// internal/types/ids.go
package types

import (
	"strings"

	"github.com/google/uuid"
)

type SessionID string
type ToolUseID string

func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

// NewToolUseID returns an identifier for a tool invocation that arrived
// without one. The "call_" prefix mirrors the IDs OpenAI-style backends issue.
func NewToolUseID() ToolUseID {
	return ToolUseID("call_" + strings.ReplaceAll(uuid.New().String(), "-", ""))
}
