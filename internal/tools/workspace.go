package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	reerrors "reagent/internal/errors"
)

// WorkspaceFiles lists files under a fixed root directory. Input is an
// optional relative subpath; traversal outside the root is rejected.
type WorkspaceFiles struct {
	root       string
	maxEntries int
}

func NewWorkspaceFiles(root string) *WorkspaceFiles {
	return &WorkspaceFiles{root: root, maxEntries: 100}
}

func (w *WorkspaceFiles) Name() string { return "list_files" }

func (w *WorkspaceFiles) Description() string {
	return "List files in the workspace directory"
}

func (w *WorkspaceFiles) Execute(ctx context.Context, input string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub := strings.TrimSpace(input)
	target := w.root
	if sub != "" && sub != "." {
		target = filepath.Join(w.root, sub)
		rel, err := filepath.Rel(w.root, target)
		if err != nil || strings.HasPrefix(rel, "..") {
			return nil, reerrors.NewInput("path %q escapes the workspace", sub)
		}
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		return nil, reerrors.NewTool(err, "read directory %q", target)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	truncated := false
	if len(names) > w.maxEntries {
		names = names[:w.maxEntries]
		truncated = true
	}

	content := strings.Join(names, "\n")
	if content == "" {
		content = "(empty directory)"
	}
	if truncated {
		content += fmt.Sprintf("\n... (%d entries shown)", w.maxEntries)
	}
	return &Result{
		Content: content,
		Data: map[string]any{
			"path":  target,
			"count": len(names),
		},
	}, nil
}

var _ Tool = (*WorkspaceFiles)(nil)
