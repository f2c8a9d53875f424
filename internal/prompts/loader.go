// Package prompts holds the prompt templates shipped with the engine,
// embedded at build time and rendered with simple {{name}} substitution.
package prompts

import (
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed *.md
var promptFS embed.FS

// Loader renders named prompt templates.
type Loader struct {
	templates map[string]string
}

// NewLoader reads every embedded template.
func NewLoader() (*Loader, error) {
	loader := &Loader{templates: make(map[string]string)}

	entries, err := promptFS.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("read prompts directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		content, err := promptFS.ReadFile(entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read prompt %s: %w", entry.Name(), err)
		}
		loader.templates[strings.TrimSuffix(entry.Name(), ".md")] = string(content)
	}
	return loader, nil
}

// Render substitutes {{key}} placeholders in the named template.
func (l *Loader) Render(name string, variables map[string]string) (string, error) {
	content, ok := l.templates[name]
	if !ok {
		return "", fmt.Errorf("prompt template %q not found", name)
	}
	for key, value := range variables {
		content = strings.ReplaceAll(content, "{{"+key+"}}", value)
	}
	return content, nil
}

// List returns the available template names, sorted.
func (l *Loader) List() []string {
	names := make([]string, 0, len(l.templates))
	for name := range l.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
