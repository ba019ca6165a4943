package tool

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Files resolves relative paths against the project root and executes the
// read/write/edit tools on an afero filesystem so tests can run in memory.
type Files struct {
	fs     afero.Fs
	root   string
	logger *slog.Logger
}

func NewFiles(fs afero.Fs, root string, logger *slog.Logger) *Files {
	if logger == nil {
		logger = slog.Default()
	}
	return &Files{fs: fs, root: root, logger: logger}
}

// resolve anchors relative paths at the project root. Absolute paths pass
// through untouched.
func (f *Files) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(f.root, path)
}

type ReadFileInput struct {
	Path string `json:"path" jsonschema:"required" jsonschema_description:"Path to the file to read"`
}

func (f *Files) ReadTool() Tool {
	return NewTool("read_file", "Read the contents of a file", f.readFile, WithReadonly(true))
}

func (f *Files) readFile(ctx context.Context, input ReadFileInput) string {
	path := f.resolve(input.Path)
	content, err := afero.ReadFile(f.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("Error: File not found: %s", input.Path)
		}
		return fmt.Sprintf("Error reading file: %v", err)
	}
	return fmt.Sprintf("File contents of %s:\n```\n%s\n```", input.Path, string(content))
}

type WriteFileInput struct {
	Path    string `json:"path" jsonschema:"required" jsonschema_description:"Path to the file to write"`
	Content string `json:"content" jsonschema:"required" jsonschema_description:"Content to write to the file"`
}

func (f *Files) WriteTool() Tool {
	return NewTool("write_file", "Write content to a file, creating parent directories as needed", f.writeFile)
}

func (f *Files) writeFile(ctx context.Context, input WriteFileInput) string {
	path := f.resolve(input.Path)
	if dir := filepath.Dir(path); dir != "" {
		if err := f.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Sprintf("Error writing file: %v", err)
		}
	}
	if err := afero.WriteFile(f.fs, path, []byte(input.Content), 0o644); err != nil {
		return fmt.Sprintf("Error writing file: %v", err)
	}
	f.logger.Debug("wrote file", "path", path, "bytes", len(input.Content))
	return fmt.Sprintf("Successfully wrote to %s", input.Path)
}

type EditFileInput struct {
	Path      string `json:"path" jsonschema:"required" jsonschema_description:"Path to the file to edit"`
	OldString string `json:"old_string" jsonschema:"required" jsonschema_description:"Exact text to replace; must appear exactly once"`
	NewString string `json:"new_string" jsonschema:"required" jsonschema_description:"Replacement text"`
}

func (f *Files) EditTool() Tool {
	return NewTool("edit_file", "Replace an exact string in a file; the old string must be unique", f.editFile)
}

func (f *Files) editFile(ctx context.Context, input EditFileInput) string {
	path := f.resolve(input.Path)
	content, err := afero.ReadFile(f.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("Error: File not found: %s", input.Path)
		}
		return fmt.Sprintf("Error reading file: %v", err)
	}

	text := string(content)
	count := strings.Count(text, input.OldString)
	switch {
	case count == 0:
		return fmt.Sprintf("Error: String not found in %s", input.Path)
	case count > 1:
		return fmt.Sprintf("Error: String appears %d times in %s. Provide more context for unique match.", count, input.Path)
	}

	edited := strings.Replace(text, input.OldString, input.NewString, 1)
	if err := afero.WriteFile(f.fs, path, []byte(edited), 0o644); err != nil {
		return fmt.Sprintf("Error writing file: %v", err)
	}
	f.logger.Debug("edited file", "path", path)
	return fmt.Sprintf("Successfully edited %s", input.Path)
}
