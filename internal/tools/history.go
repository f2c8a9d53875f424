package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	reerrors "reagent/internal/errors"
	"reagent/internal/memory"
)

// History exposes the conversation log as a tool. Reads go through the
// conversation's View, so while a request snapshot is active "last"
// means the turn before the current question.
//
// Input modes: "last", "last_user", "all", or a number of turns.
type History struct {
	conv *memory.Conversation
}

func NewHistory(conv *memory.Conversation) *History {
	return &History{conv: conv}
}

func (h *History) Name() string { return "conversation_history" }

func (h *History) Description() string {
	return "Read earlier turns of this conversation"
}

func (h *History) Execute(ctx context.Context, input string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	view := h.conv.View()
	mode := strings.ToLower(strings.TrimSpace(input))

	switch mode {
	case "", "last":
		entry, ok := memory.LastByRole(view, memory.RoleUser)
		if !ok {
			return emptyHistory(), nil
		}
		return renderEntries("last", []memory.Entry{entry}), nil
	case "last_user":
		entry, ok := memory.LastByRole(view, memory.RoleUser)
		if !ok {
			return emptyHistory(), nil
		}
		return renderEntries("last_user", []memory.Entry{entry}), nil
	case "all":
		return renderEntries("all", view), nil
	}

	n, err := strconv.Atoi(mode)
	if err != nil || n <= 0 {
		return nil, reerrors.NewInput("history mode must be last, last_user, all, or a positive number; got %q", input)
	}
	return renderEntries(mode, memory.LastN(view, n)), nil
}

func emptyHistory() *Result {
	return &Result{
		Content: "No conversation history yet.",
		Data:    map[string]any{"count": 0},
	}
}

func renderEntries(mode string, entries []memory.Entry) *Result {
	if len(entries) == 0 {
		return emptyHistory()
	}
	var b strings.Builder
	items := make([]any, 0, len(entries))
	for _, e := range entries {
		fmt.Fprintf(&b, "[%s] %s\n", e.Role, e.Content)
		items = append(items, map[string]any{
			"role":      string(e.Role),
			"content":   e.Content,
			"timestamp": e.Timestamp,
		})
	}
	return &Result{
		Content: strings.TrimSpace(b.String()),
		Data: map[string]any{
			"mode":    mode,
			"count":   len(entries),
			"entries": items,
		},
	}
}

var _ Tool = (*History)(nil)
