package tools

import (
	"context"
	"os"

	"github.com/user/toolchat/internal/runtime"
)

// FileReadArgs are the arguments of the file_read tool.
type FileReadArgs struct {
	FilePath string `json:"file_path" jsonschema:"The path to the file to read"`
}

// NewFileRead creates the file_read tool.
func NewFileRead() *runtime.Tool {
	return runtime.MustTool("file_read", "Reads the content of a file", readFile)
}

func readFile(_ context.Context, args FileReadArgs) (string, error) {
	data, err := os.ReadFile(args.FilePath)
	if err != nil {
		return "", runtime.Failf("Error reading file: %v", err)
	}
	return string(data), nil
}
