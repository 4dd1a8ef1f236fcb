package tools

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/toolchat/internal/runtime"
)

func args(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func TestBuiltinNamesAreUnique(t *testing.T) {
	reg, err := runtime.NewRegistry(Builtin()...)
	require.NoError(t, err)

	var names []string
	for _, tool := range reg.All() {
		names = append(names, tool.Name())
	}
	assert.Equal(t, []string{"file_read", "file_list", "file_write"}, names)
}

func TestFileListSchema(t *testing.T) {
	var schema struct {
		Properties map[string]map[string]any `json:"properties"`
		Required   []string                  `json:"required"`
	}
	require.NoError(t, json.Unmarshal(NewFileList().InputSchema(), &schema))

	assert.Equal(t, []string{"directory_path"}, schema.Required)
	assert.Equal(t, "string", schema.Properties["extension_filter"]["type"])
	assert.Equal(t, "boolean", schema.Properties["include_dirs"]["type"])
}

func TestSchemasCloseObjects(t *testing.T) {
	for _, tool := range Builtin() {
		var schema map[string]any
		require.NoError(t, json.Unmarshal(tool.InputSchema(), &schema))
		assert.Equal(t, "object", schema["type"], tool.Name())
		assert.Equal(t, false, schema["additionalProperties"], tool.Name())
	}
}

func TestFileListFilesOnly(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "main.go"))
	touch(t, filepath.Join(dir, "README.md"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "pkg"), 0755))

	out, err := NewFileList().Execute(context.Background(), args(t, map[string]any{"directory_path": dir}))
	require.NoError(t, err)

	var entries []FileEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "file", e.Type)
		assert.Equal(t, filepath.Join(dir, e.Name), e.Path)
	}
}

func TestFileListIncludeDirsAndFilter(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.go"))
	touch(t, filepath.Join(dir, "b.ts"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "src"), 0755))

	out, err := NewFileList().Execute(context.Background(), args(t, map[string]any{
		"directory_path":   dir,
		"extension_filter": ".go",
		"include_dirs":     true,
	}))
	require.NoError(t, err)

	var entries []FileEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, FileEntry{Name: "a.go", Path: filepath.Join(dir, "a.go"), Type: "file"}, entries[0])
	assert.Equal(t, FileEntry{Name: "src", Path: filepath.Join(dir, "src"), Type: "directory"}, entries[1])
}

func TestFileListEmptyDirIsEmptyArray(t *testing.T) {
	out, err := NewFileList().Execute(context.Background(), args(t, map[string]any{"directory_path": t.TempDir()}))
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)
}

func TestFileListMissingDir(t *testing.T) {
	_, err := NewFileList().Execute(context.Background(), args(t, map[string]any{
		"directory_path": filepath.Join(t.TempDir(), "missing"),
	}))
	var failure *runtime.Failure
	require.True(t, errors.As(err, &failure), "expected *runtime.Failure, got %v", err)
	assert.Contains(t, failure.Message, "Error listing files")
}

func TestFileReadReturnsContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello\nworld\n"), 0644))

	out, err := NewFileRead().Execute(context.Background(), args(t, map[string]any{"file_path": path}))
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld\n", out)
}

func TestFileReadMissingThroughDispatcher(t *testing.T) {
	reg, err := runtime.NewRegistry(Builtin()...)
	require.NoError(t, err)
	d := runtime.NewDispatcher(reg, nil)

	out := d.Invoke(context.Background(), "file_read", args(t, map[string]any{
		"file_path": filepath.Join(t.TempDir(), "nope.txt"),
	}))
	assert.True(t, out.IsError)
	assert.Contains(t, out.Content, "Error reading file")
}

func TestFileReadRejectsMissingArgument(t *testing.T) {
	_, err := NewFileRead().Execute(context.Background(), json.RawMessage(`{}`))
	var verr *runtime.ValidationError
	assert.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
}

func TestFileWriteCreatesDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "c", "out.txt")

	out, err := NewFileWrite().Execute(context.Background(), args(t, map[string]any{
		"file_path":   path,
		"content":     "data",
		"create_dirs": true,
	}))
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.Equal(t, "Successfully wrote to file: "+path, out)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))
}

func TestFileWriteWithoutCreateDirsFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.txt")

	_, err := NewFileWrite().Execute(context.Background(), args(t, map[string]any{
		"file_path": path,
		"content":   "data",
	}))
	var failure *runtime.Failure
	require.True(t, errors.As(err, &failure), "expected *runtime.Failure, got %v", err)
	assert.Contains(t, failure.Message, "Error writing to file")
}

func TestFileWriteOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0644))

	_, err := NewFileWrite().Execute(context.Background(), args(t, map[string]any{
		"file_path": path,
		"content":   "new",
	}))
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}
