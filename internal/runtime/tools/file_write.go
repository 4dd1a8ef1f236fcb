package tools

import (
	"context"
	"os"
	"path/filepath"

	"github.com/user/toolchat/internal/runtime"
)

// FileWriteArgs are the arguments of the file_write tool.
type FileWriteArgs struct {
	FilePath   string `json:"file_path" jsonschema:"The path to the file to write"`
	Content    string `json:"content" jsonschema:"The content to write to the file"`
	CreateDirs bool   `json:"create_dirs,omitempty" jsonschema:"Whether to create parent directories if they don't exist (default false)"`
}

// NewFileWrite creates the file_write tool.
func NewFileWrite() *runtime.Tool {
	return runtime.MustTool("file_write", "Writes content to a file", writeFile)
}

func writeFile(_ context.Context, args FileWriteArgs) (string, error) {
	if args.CreateDirs {
		if dir := filepath.Dir(args.FilePath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return "", runtime.Failf("Error writing to file: %v", err)
			}
		}
	}

	if err := os.WriteFile(args.FilePath, []byte(args.Content), 0644); err != nil {
		return "", runtime.Failf("Error writing to file: %v", err)
	}
	return "Successfully wrote to file: " + args.FilePath, nil
}
