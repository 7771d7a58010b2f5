package tool_writefile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	udiff "github.com/aymanbagabas/go-udiff"
	"github.com/spf13/afero"

	"chatgate/src/agent"
)

// Tool name constant
const Name = "write_file"

const writeFilePrompt = `Writes a file to the local filesystem.

Usage:
- This tool will overwrite the existing file if there is one at the provided path.
- Prefer editing existing files; only create new files when the task requires it.
- Set create_dirs to true to create missing parent directories.`

const maxContentSize = 10 * 1024 * 1024

// WriteFileInput represents the parameters for write_file
type WriteFileInput struct {
	Path       string `json:"path" required:"true" description:"The file path"`
	Content    string `json:"content" required:"true" description:"The content to write"`
	CreateDirs bool   `json:"create_dirs,omitempty" description:"Create parent directories if they don't exist"`
	Mode       int    `json:"mode,omitempty" description:"File permissions (octal, e.g. 644)"`
}

// WriteFileOutput represents the response from write_file
type WriteFileOutput struct {
	Path    string `json:"path" description:"The file path that was written"`
	Size    int    `json:"size" description:"Size of content written in bytes"`
	Created bool   `json:"created" description:"True when the file did not previously exist"`
}

// Tool returns the write_file tool definition.
func Tool(fs afero.Fs) (agent.Tool, error) {
	return agent.NewGenericTool(Name, writeFilePrompt, makeWriteFileHandler(fs))
}

// DiffPreview builds a unified diff between the current file content (empty
// when the file does not exist) and the proposed content. Used as the
// human-readable description on permission prompts.
func DiffPreview(fs afero.Fs, path, proposed string) string {
	var before string
	if data, err := afero.ReadFile(fs, path); err == nil {
		before = string(data)
	}
	if !strings.HasSuffix(proposed, "\n") {
		proposed += "\n"
	}
	if before != "" && !strings.HasSuffix(before, "\n") {
		before += "\n"
	}
	diff := udiff.Unified(path, path, before, proposed)
	if diff == "" {
		return fmt.Sprintf("write_file: %s (no changes)", path)
	}
	return diff
}

func makeWriteFileHandler(fs afero.Fs) func(ctx context.Context, input WriteFileInput) (WriteFileOutput, error) {
	return func(ctx context.Context, input WriteFileInput) (WriteFileOutput, error) {
		select {
		case <-ctx.Done():
			return WriteFileOutput{}, fmt.Errorf("operation cancelled")
		default:
		}

		if !isPathSafe(input.Path) {
			slog.Error("unsafe path rejected", "path", input.Path)
			return WriteFileOutput{}, fmt.Errorf("unsafe path: %s", input.Path)
		}
		if len(input.Content) > maxContentSize {
			return WriteFileOutput{}, fmt.Errorf("content exceeds maximum size of %d bytes", maxContentSize)
		}

		mode := os.FileMode(input.Mode)
		if input.Mode == 0 {
			mode = 0644
		}

		dir := filepath.Dir(input.Path)
		if input.CreateDirs {
			if err := fs.MkdirAll(dir, 0755); err != nil {
				return WriteFileOutput{}, fmt.Errorf("failed to create directory: %v", err)
			}
		} else if _, err := fs.Stat(dir); err != nil {
			return WriteFileOutput{}, fmt.Errorf("directory does not exist: %s", dir)
		}

		_, statErr := fs.Stat(input.Path)
		created := os.IsNotExist(statErr)

		if err := afero.WriteFile(fs, input.Path, []byte(input.Content), mode); err != nil {
			slog.Error("failed to write file", "path", input.Path, "error", err)
			return WriteFileOutput{}, fmt.Errorf("failed to write file: %v", err)
		}

		slog.Info("wrote file", "path", input.Path, "size", len(input.Content), "created", created)

		return WriteFileOutput{
			Path:    input.Path,
			Size:    len(input.Content),
			Created: created,
		}, nil
	}
}

// isPathSafe rejects empty paths and traversal outside the working tree.
func isPathSafe(path string) bool {
	if path == "" {
		return false
	}
	clean := filepath.Clean(path)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(clean), "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
