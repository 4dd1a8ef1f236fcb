package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/user/toolchat/internal/runtime"
)

// FileListArgs are the arguments of the file_list tool.
type FileListArgs struct {
	DirectoryPath   string `json:"directory_path" jsonschema:"The path to the directory to list files from"`
	ExtensionFilter string `json:"extension_filter,omitempty" jsonschema:"Optional file extension to filter by (e.g. '.js' or '.ts')"`
	IncludeDirs     bool   `json:"include_dirs,omitempty" jsonschema:"Whether to include directories in the results (default false)"`
}

// FileEntry is one element of the file_list result.
type FileEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"`
}

// NewFileList creates the file_list tool.
func NewFileList() *runtime.Tool {
	return runtime.MustTool("file_list",
		"Lists files in a directory, optionally with a specific extension filter",
		listFiles)
}

func listFiles(_ context.Context, args FileListArgs) (string, error) {
	entries, err := os.ReadDir(args.DirectoryPath)
	if err != nil {
		return "", runtime.Failf("Error listing files: %v", err)
	}

	results := make([]FileEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			if !args.IncludeDirs {
				continue
			}
		} else if args.ExtensionFilter != "" && !strings.HasSuffix(e.Name(), args.ExtensionFilter) {
			continue
		}

		entry := FileEntry{
			Name: e.Name(),
			Path: filepath.Join(args.DirectoryPath, e.Name()),
			Type: "file",
		}
		if e.IsDir() {
			entry.Type = "directory"
		}
		results = append(results, entry)
	}

	out, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", runtime.Failf("Error listing files: %v", err)
	}
	return string(out), nil
}
